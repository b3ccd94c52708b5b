package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const sqlGetEmailTemplateByID = `
SELECT id, user_id, name, subject, content, created_at
FROM email_templates
WHERE id = $1
`

// GetEmailTemplateByID retrieves a reusable email template by ID
func (s *Store) GetEmailTemplateByID(ctx context.Context, templateID uuid.UUID) (EmailTemplate, error) {
	var template EmailTemplate
	err := s.db.GetContext(ctx, &template, sqlGetEmailTemplateByID, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EmailTemplate{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get email template by id", err)
		return EmailTemplate{}, fmt.Errorf("failed to get email template by id: %w", err)
	}
	return template, nil
}
