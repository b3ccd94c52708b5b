package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-server/internal/clients/mail"
	"crm-server/internal/interpolate"
	"crm-server/internal/observability"
	"crm-server/internal/store"

	"github.com/google/uuid"
)

// SenderStore defines the database operations required by the batch sender
type SenderStore interface {
	GetCampaignForUser(ctx context.Context, campaignID, userID uuid.UUID) (store.Campaign, error)
	GetVerifiedEmailDomain(ctx context.Context, userID uuid.UUID) (store.EmailDomain, error)
	GetPendingRecipients(ctx context.Context, campaignID uuid.UUID) ([]store.PendingRecipient, error)
	UpdateRecipientStatus(ctx context.Context, recipientID uuid.UUID, status store.RecipientStatus, sentAt *time.Time, errorMessage *string) error
	FinalizeCampaignSend(ctx context.Context, campaignID uuid.UUID, status store.CampaignStatus, sentAt time.Time) error
}

// MailClient defines the email dispatch operation required by the sender
type MailClient interface {
	SendEmail(ctx context.Context, params mail.SendParams) (string, error)
}

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNoVerifiedDomain = errors.New("no verified sending domain for tenant")
)

// SendResult reports one batch send invocation's outcome
type SendResult struct {
	Sent   int `json:"sent"`
	Errors int `json:"errors"`
}

// Sender performs one-shot synchronous sends to all pending recipients of a
// single campaign
type Sender struct {
	store      SenderStore
	mailClient MailClient
	// markSentWhenAllFail keeps the campaign finalized as sent even when
	// every recipient send errored. Off by default: a fully-failed batch
	// finalizes the campaign as failed.
	markSentWhenAllFail bool
	logger              *observability.Logger
}

// NewSender creates a new campaign batch sender
func NewSender(store SenderStore, mailClient MailClient, markSentWhenAllFail bool, logger *observability.Logger) *Sender {
	return &Sender{
		store:               store,
		mailClient:          mailClient,
		markSentWhenAllFail: markSentWhenAllFail,
		logger:              logger,
	}
}

// SendCampaign sends the campaign's content to every pending recipient,
// sequentially. Preconditions are hard failures; per-recipient outcomes are
// recorded on each row and never abort the batch.
func (s *Sender) SendCampaign(ctx context.Context, userID, campaignID uuid.UUID) (SendResult, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "operation", Value: "campaign_batch_send"},
		observability.Field{Key: "campaign_id", Value: campaignID},
		observability.Field{Key: "user_id", Value: userID},
	)

	campaign, err := s.store.GetCampaignForUser(ctx, campaignID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SendResult{}, ErrCampaignNotFound
		}
		return SendResult{}, fmt.Errorf("failed to get campaign: %w", err)
	}

	domain, err := s.store.GetVerifiedEmailDomain(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SendResult{}, ErrNoVerifiedDomain
		}
		return SendResult{}, fmt.Errorf("failed to get verified email domain: %w", err)
	}

	recipients, err := s.store.GetPendingRecipients(ctx, campaignID)
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to get pending recipients: %w", err)
	}

	if len(recipients) == 0 {
		s.logger.Info(ctx, "No pending recipients, nothing to send")
		return SendResult{}, nil
	}

	var result SendResult
	for _, recipient := range recipients {
		if recipient.Email == "" {
			continue
		}

		now := time.Now()
		if err := s.sendToRecipient(ctx, campaign, domain, recipient); err != nil {
			s.logger.Error(ctx, fmt.Sprintf("Failed to send campaign email to %s", recipient.Email), err)
			errMsg := err.Error()
			if updateErr := s.store.UpdateRecipientStatus(ctx, recipient.RecipientID, store.RecipientStatusError, nil, &errMsg); updateErr != nil {
				s.logger.Error(ctx, "failed to record recipient error status", updateErr)
			}
			result.Errors++
			continue
		}

		if err := s.store.UpdateRecipientStatus(ctx, recipient.RecipientID, store.RecipientStatusSent, &now, nil); err != nil {
			s.logger.Error(ctx, "failed to record recipient sent status", err)
		}
		result.Sent++
	}

	status := store.CampaignStatusSent
	if result.Sent == 0 && result.Errors > 0 && !s.markSentWhenAllFail {
		status = store.CampaignStatusFailed
	}
	if err := s.store.FinalizeCampaignSend(ctx, campaignID, status, time.Now()); err != nil {
		s.logger.Error(ctx, "failed to finalize campaign after batch send", err)
	}

	s.logger.Info(ctx, fmt.Sprintf("Campaign batch send completed: sent %d, errors %d", result.Sent, result.Errors))
	return result, nil
}

func (s *Sender) sendToRecipient(ctx context.Context, campaign store.Campaign, domain store.EmailDomain, recipient store.PendingRecipient) error {
	data := interpolate.RecipientData{
		FullName: recipient.FullName,
		Email:    recipient.Email,
		Company:  recipient.Company,
	}

	_, err := s.mailClient.SendEmail(ctx, mail.SendParams{
		From:    domain.From(),
		To:      []string{recipient.Email},
		Subject: interpolate.Interpolate(campaign.Subject, data),
		HTML:    interpolate.Interpolate(campaign.Content, data),
		ReplyTo: domain.ReplyTo,
	})
	return err
}
