package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateEmailDomainParams represents parameters for registering a sending domain
type CreateEmailDomainParams struct {
	UserID           uuid.UUID
	Domain           string
	FromName         string
	FromEmail        string
	ReplyTo          string
	ProviderDomainID string
}

const sqlCreateEmailDomain = `
INSERT INTO email_domains (user_id, domain, from_name, from_email, reply_to, provider_domain_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, domain, from_name, from_email, reply_to, is_verified, provider_domain_id, created_at, updated_at
`

// CreateEmailDomain registers a new sending domain for a tenant
func (s *Store) CreateEmailDomain(ctx context.Context, params CreateEmailDomainParams) (EmailDomain, error) {
	var domain EmailDomain
	err := s.db.GetContext(ctx, &domain, sqlCreateEmailDomain,
		params.UserID,
		params.Domain,
		params.FromName,
		params.FromEmail,
		params.ReplyTo,
		params.ProviderDomainID)
	if err != nil {
		s.logger.Error(ctx, "failed to create email domain", err)
		return EmailDomain{}, fmt.Errorf("failed to create email domain: %w", err)
	}
	return domain, nil
}

const sqlGetEmailDomainForUser = `
SELECT id, user_id, domain, from_name, from_email, reply_to, is_verified, provider_domain_id, created_at, updated_at
FROM email_domains
WHERE id = $1 AND user_id = $2
`

// GetEmailDomainForUser retrieves a sending domain scoped to its tenant
func (s *Store) GetEmailDomainForUser(ctx context.Context, domainID, userID uuid.UUID) (EmailDomain, error) {
	var domain EmailDomain
	err := s.db.GetContext(ctx, &domain, sqlGetEmailDomainForUser, domainID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailDomain{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get email domain", err)
		return EmailDomain{}, fmt.Errorf("failed to get email domain: %w", err)
	}
	return domain, nil
}

const sqlGetVerifiedEmailDomain = `
SELECT id, user_id, domain, from_name, from_email, reply_to, is_verified, provider_domain_id, created_at, updated_at
FROM email_domains
WHERE user_id = $1 AND is_verified = true
ORDER BY created_at
LIMIT 1
`

// GetVerifiedEmailDomain retrieves the tenant's verified sending identity.
// Absence is a hard send precondition failure, surfaced as ErrNotFound.
func (s *Store) GetVerifiedEmailDomain(ctx context.Context, userID uuid.UUID) (EmailDomain, error) {
	var domain EmailDomain
	err := s.db.GetContext(ctx, &domain, sqlGetVerifiedEmailDomain, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailDomain{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get verified email domain", err)
		return EmailDomain{}, fmt.Errorf("failed to get verified email domain: %w", err)
	}
	return domain, nil
}

const sqlUpdateEmailDomainVerification = `
UPDATE email_domains
SET is_verified = $2, updated_at = CURRENT_TIMESTAMP
WHERE id = $1
`

// UpdateEmailDomainVerification records the provider-reported verification state
func (s *Store) UpdateEmailDomainVerification(ctx context.Context, domainID uuid.UUID, isVerified bool) error {
	_, err := s.db.ExecContext(ctx, sqlUpdateEmailDomainVerification, domainID, isVerified)
	if err != nil {
		s.logger.Error(ctx, "failed to update email domain verification", err)
		return fmt.Errorf("failed to update email domain verification: %w", err)
	}
	return nil
}
