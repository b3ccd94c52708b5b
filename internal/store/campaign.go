package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sqlGetCampaignByID = `
SELECT id, user_id, name, subject, content, status, is_active, auto_enroll_new_prospects,
       target_groups, workflow_steps, workflow_id, sent_at, created_at, updated_at
FROM campaigns
WHERE id = $1
`

// GetCampaignByID retrieves a campaign by ID
func (s *Store) GetCampaignByID(ctx context.Context, campaignID uuid.UUID) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlGetCampaignByID, campaignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get campaign by id", err)
		return Campaign{}, fmt.Errorf("failed to get campaign by id: %w", err)
	}
	return campaign, nil
}

const sqlGetCampaignForUser = `
SELECT id, user_id, name, subject, content, status, is_active, auto_enroll_new_prospects,
       target_groups, workflow_steps, workflow_id, sent_at, created_at, updated_at
FROM campaigns
WHERE id = $1 AND user_id = $2
`

// GetCampaignForUser retrieves a campaign scoped to its owning tenant
func (s *Store) GetCampaignForUser(ctx context.Context, campaignID, userID uuid.UUID) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlGetCampaignForUser, campaignID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get campaign for user", err)
		return Campaign{}, fmt.Errorf("failed to get campaign for user: %w", err)
	}
	return campaign, nil
}

const sqlGetAutoEnrollCampaigns = `
SELECT id, user_id, name, subject, content, status, is_active, auto_enroll_new_prospects,
       target_groups, workflow_steps, workflow_id, sent_at, created_at, updated_at
FROM campaigns
WHERE is_active = true AND auto_enroll_new_prospects = true
`

// GetAutoEnrollCampaigns retrieves all active campaigns with auto-enrollment
// enabled, across all tenants.
func (s *Store) GetAutoEnrollCampaigns(ctx context.Context) ([]Campaign, error) {
	var campaigns []Campaign
	err := s.db.SelectContext(ctx, &campaigns, sqlGetAutoEnrollCampaigns)
	if err != nil {
		s.logger.Error(ctx, "failed to get auto-enroll campaigns", err)
		return nil, fmt.Errorf("failed to get auto-enroll campaigns: %w", err)
	}
	return campaigns, nil
}

const sqlFinalizeCampaignSend = `
UPDATE campaigns
SET status = $2, sent_at = $3, updated_at = CURRENT_TIMESTAMP
WHERE id = $1
`

// FinalizeCampaignSend stamps a campaign's terminal send status and sent_at
func (s *Store) FinalizeCampaignSend(ctx context.Context, campaignID uuid.UUID, status CampaignStatus, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx, sqlFinalizeCampaignSend, campaignID, string(status), sentAt)
	if err != nil {
		s.logger.Error(ctx, "failed to finalize campaign send", err)
		return fmt.Errorf("failed to finalize campaign send: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
