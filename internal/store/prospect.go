package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const sqlGetProspectByID = `
SELECT id, user_id, full_name, email, company, phone, created_at
FROM prospects
WHERE id = $1
`

// GetProspectByID retrieves a prospect by ID
func (s *Store) GetProspectByID(ctx context.Context, prospectID uuid.UUID) (Prospect, error) {
	var prospect Prospect
	err := s.db.GetContext(ctx, &prospect, sqlGetProspectByID, prospectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prospect{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get prospect by id", err)
		return Prospect{}, fmt.Errorf("failed to get prospect by id: %w", err)
	}
	return prospect, nil
}

const sqlGetProspectIDsInGroups = `
SELECT DISTINCT m.prospect_id
FROM prospect_group_members m
JOIN prospects p ON p.id = m.prospect_id
WHERE m.group_id = ANY($1::uuid[]) AND p.user_id = $2
`

// GetProspectIDsInGroups returns the deduplicated member set of the given
// groups, scoped to the owning tenant.
func (s *Store) GetProspectIDsInGroups(ctx context.Context, groupIDs StringArray, userID uuid.UUID) ([]uuid.UUID, error) {
	var prospectIDs []uuid.UUID
	err := s.db.SelectContext(ctx, &prospectIDs, sqlGetProspectIDsInGroups, groupIDs, userID)
	if err != nil {
		s.logger.Error(ctx, "failed to get prospect ids in groups", err)
		return nil, fmt.Errorf("failed to get prospect ids in groups: %w", err)
	}
	return prospectIDs, nil
}
