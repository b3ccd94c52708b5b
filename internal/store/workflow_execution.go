package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateWorkflowExecutionParams represents parameters for enrolling one
// prospect into a campaign's workflow
type CreateWorkflowExecutionParams struct {
	CampaignID      uuid.UUID
	ProspectID      uuid.UUID
	WorkflowID      *uuid.UUID
	CurrentStepID   *string
	TotalSteps      int
	NextExecutionAt time.Time
}

const sqlCreateWorkflowExecution = `
INSERT INTO workflow_executions
    (campaign_id, prospect_id, workflow_id, current_step, current_step_id, total_steps, status, next_execution_at)
VALUES ($1, $2, $3, 0, $4, $5, 'in_progress', $6)
ON CONFLICT (campaign_id, prospect_id) DO NOTHING
`

// CreateWorkflowExecutionsBulk enrolls multiple prospects in one transaction.
// Existing (campaign, prospect) enrollments are left untouched.
func (s *Store) CreateWorkflowExecutionsBulk(ctx context.Context, params []CreateWorkflowExecutionParams) error {
	if len(params) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqlCreateWorkflowExecution)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range params {
		_, err := stmt.ExecContext(ctx, p.CampaignID, p.ProspectID, p.WorkflowID, p.CurrentStepID, p.TotalSteps, p.NextExecutionAt)
		if err != nil {
			return fmt.Errorf("failed to insert workflow execution: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const sqlClaimDueExecutions = `
UPDATE workflow_executions
SET claimed_until = $1, updated_at = CURRENT_TIMESTAMP
WHERE id IN (
    SELECT id FROM workflow_executions
    WHERE status = 'in_progress'
      AND next_execution_at IS NOT NULL
      AND next_execution_at <= $2
      AND (claimed_until IS NULL OR claimed_until < $2)
    ORDER BY next_execution_at
    LIMIT $3
    FOR UPDATE SKIP LOCKED
)
RETURNING id, campaign_id, prospect_id, workflow_id, current_step, current_step_id, total_steps,
          status, next_execution_at, last_executed_at, claimed_until, metadata, created_at, updated_at
`

// ClaimDueExecutions atomically claims up to limit due executions by stamping
// a lease. Rows already leased by an overlapping invocation are skipped, so
// two concurrent ticks never process the same execution.
func (s *Store) ClaimDueExecutions(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]WorkflowExecution, error) {
	var executions []WorkflowExecution
	err := s.db.SelectContext(ctx, &executions, sqlClaimDueExecutions, now.Add(lease), now, limit)
	if err != nil {
		s.logger.Error(ctx, "failed to claim due executions", err)
		return nil, fmt.Errorf("failed to claim due executions: %w", err)
	}
	return executions, nil
}

// AdvanceExecutionParams carries the post-step state persisted by the executor
type AdvanceExecutionParams struct {
	CurrentStep     int
	CurrentStepID   *string
	Status          ExecutionStatus
	NextExecutionAt *time.Time
	LastExecutedAt  time.Time
}

const sqlAdvanceExecution = `
UPDATE workflow_executions
SET current_step = $2, current_step_id = $3, status = $4, next_execution_at = $5,
    last_executed_at = $6, claimed_until = NULL, updated_at = CURRENT_TIMESTAMP
WHERE id = $1
`

// AdvanceExecution persists one step advancement and releases the claim lease
func (s *Store) AdvanceExecution(ctx context.Context, executionID uuid.UUID, params AdvanceExecutionParams) error {
	_, err := s.db.ExecContext(ctx, sqlAdvanceExecution,
		executionID,
		params.CurrentStep,
		params.CurrentStepID,
		string(params.Status),
		params.NextExecutionAt,
		params.LastExecutedAt)
	if err != nil {
		s.logger.Error(ctx, "failed to advance execution", err)
		return fmt.Errorf("failed to advance execution: %w", err)
	}
	return nil
}

const sqlMarkExecutionStatus = `
UPDATE workflow_executions
SET status = $2, next_execution_at = NULL, claimed_until = NULL,
    metadata = COALESCE($3, metadata), updated_at = CURRENT_TIMESTAMP
WHERE id = $1
`

// MarkExecutionStatus transitions an execution to a non-running state
// (paused, completed, failed, orphaned), clearing its schedule and lease.
// The optional metadata carries a diagnostic for failed transitions.
func (s *Store) MarkExecutionStatus(ctx context.Context, executionID uuid.UUID, status ExecutionStatus, metadata JSONB) error {
	_, err := s.db.ExecContext(ctx, sqlMarkExecutionStatus, executionID, string(status), metadata)
	if err != nil {
		s.logger.Error(ctx, "failed to mark execution status", err)
		return fmt.Errorf("failed to mark execution status: %w", err)
	}
	return nil
}

// ErrExecutionNotFailed reports a reactivation attempt against an execution
// that exists but is not in the failed state.
var ErrExecutionNotFailed = errors.New("execution is not failed")

const sqlGetExecutionStatusForUser = `
SELECT e.status
FROM workflow_executions e
JOIN campaigns c ON c.id = e.campaign_id
WHERE e.id = $1 AND c.user_id = $2
`

const sqlReactivateExecution = `
UPDATE workflow_executions e
SET status = 'in_progress', next_execution_at = $3, claimed_until = NULL, updated_at = CURRENT_TIMESTAMP
FROM campaigns c
WHERE e.id = $1 AND e.campaign_id = c.id AND c.user_id = $2 AND e.status = 'failed'
RETURNING e.id, e.campaign_id, e.prospect_id, e.workflow_id, e.current_step, e.current_step_id,
          e.total_steps, e.status, e.next_execution_at, e.last_executed_at, e.claimed_until,
          e.metadata, e.created_at, e.updated_at
`

// ReactivateExecution resets a failed execution to in_progress, due
// immediately. Only failed executions owned by the tenant qualify; an
// execution in any other state yields ErrExecutionNotFailed rather than
// ErrNotFound.
func (s *Store) ReactivateExecution(ctx context.Context, executionID, userID uuid.UUID, now time.Time) (WorkflowExecution, error) {
	var execution WorkflowExecution
	err := s.db.GetContext(ctx, &execution, sqlReactivateExecution, executionID, userID, now)
	if err == nil {
		return execution, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error(ctx, "failed to reactivate execution", err)
		return WorkflowExecution{}, fmt.Errorf("failed to reactivate execution: %w", err)
	}

	// The conditional update matched nothing: tell a missing execution
	// apart from one that is simply not failed.
	var status string
	err = s.db.GetContext(ctx, &status, sqlGetExecutionStatusForUser, executionID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WorkflowExecution{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to check execution status", err)
		return WorkflowExecution{}, fmt.Errorf("failed to check execution status: %w", err)
	}
	return WorkflowExecution{}, ErrExecutionNotFailed
}

const sqlGetEnrolledProspectIDs = `
SELECT prospect_id FROM workflow_executions WHERE campaign_id = $1
UNION
SELECT prospect_id FROM email_campaign_recipients WHERE campaign_id = $1
`

// GetEnrolledProspectIDs returns prospects already handled for a campaign via
// either an execution row or a recipient row.
func (s *Store) GetEnrolledProspectIDs(ctx context.Context, campaignID uuid.UUID) ([]uuid.UUID, error) {
	var prospectIDs []uuid.UUID
	err := s.db.SelectContext(ctx, &prospectIDs, sqlGetEnrolledProspectIDs, campaignID)
	if err != nil {
		s.logger.Error(ctx, "failed to get enrolled prospect ids", err)
		return nil, fmt.Errorf("failed to get enrolled prospect ids: %w", err)
	}
	return prospectIDs, nil
}
