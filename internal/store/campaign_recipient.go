package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sqlCreatePendingRecipient = `
INSERT INTO email_campaign_recipients (campaign_id, prospect_id, status)
VALUES ($1, $2, 'en_attente')
ON CONFLICT (campaign_id, prospect_id) DO NOTHING
`

// CreatePendingRecipientsBulk creates pending recipient rows for newly
// enrolled prospects. Writes are keyed on (campaign_id, prospect_id) so
// concurrent reconciliation cannot duplicate rows.
func (s *Store) CreatePendingRecipientsBulk(ctx context.Context, campaignID uuid.UUID, prospectIDs []uuid.UUID) error {
	if len(prospectIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqlCreatePendingRecipient)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, prospectID := range prospectIDs {
		if _, err := stmt.ExecContext(ctx, campaignID, prospectID); err != nil {
			return fmt.Errorf("failed to insert campaign recipient: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const sqlGetPendingRecipients = `
SELECT r.id AS recipient_id, r.prospect_id, p.full_name, p.email, p.company
FROM email_campaign_recipients r
JOIN prospects p ON p.id = r.prospect_id
WHERE r.campaign_id = $1 AND r.status = 'en_attente'
ORDER BY r.created_at
`

// GetPendingRecipients retrieves a campaign's pending recipients joined with
// prospect contact data.
func (s *Store) GetPendingRecipients(ctx context.Context, campaignID uuid.UUID) ([]PendingRecipient, error) {
	var recipients []PendingRecipient
	err := s.db.SelectContext(ctx, &recipients, sqlGetPendingRecipients, campaignID)
	if err != nil {
		s.logger.Error(ctx, "failed to get pending recipients", err)
		return nil, fmt.Errorf("failed to get pending recipients: %w", err)
	}
	return recipients, nil
}

const sqlUpsertRecipientSent = `
INSERT INTO email_campaign_recipients (campaign_id, prospect_id, status, sent_at)
VALUES ($1, $2, 'envoye', $3)
ON CONFLICT (campaign_id, prospect_id)
DO UPDATE SET status = 'envoye', sent_at = $3, error_message = NULL, updated_at = CURRENT_TIMESTAMP
`

// UpsertRecipientSent records a successful send for (campaign, prospect),
// creating the tracking row if it does not exist yet.
func (s *Store) UpsertRecipientSent(ctx context.Context, campaignID, prospectID uuid.UUID, sentAt time.Time) error {
	_, err := s.db.ExecContext(ctx, sqlUpsertRecipientSent, campaignID, prospectID, sentAt)
	if err != nil {
		s.logger.Error(ctx, "failed to upsert recipient sent status", err)
		return fmt.Errorf("failed to upsert recipient sent status: %w", err)
	}
	return nil
}

const sqlUpdateRecipientStatus = `
UPDATE email_campaign_recipients
SET status = $2, sent_at = $3, error_message = $4, updated_at = CURRENT_TIMESTAMP
WHERE id = $1
`

// UpdateRecipientStatus updates an existing recipient row's delivery outcome
func (s *Store) UpdateRecipientStatus(ctx context.Context, recipientID uuid.UUID, status RecipientStatus, sentAt *time.Time, errorMessage *string) error {
	_, err := s.db.ExecContext(ctx, sqlUpdateRecipientStatus, recipientID, string(status), sentAt, errorMessage)
	if err != nil {
		s.logger.Error(ctx, "failed to update recipient status", err)
		return fmt.Errorf("failed to update recipient status: %w", err)
	}
	return nil
}
