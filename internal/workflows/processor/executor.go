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

// ExecutorStore defines the database operations required by the step executor
type ExecutorStore interface {
	ClaimDueExecutions(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]store.WorkflowExecution, error)
	GetCampaignByID(ctx context.Context, campaignID uuid.UUID) (store.Campaign, error)
	GetProspectByID(ctx context.Context, prospectID uuid.UUID) (store.Prospect, error)
	GetEmailTemplateByID(ctx context.Context, templateID uuid.UUID) (store.EmailTemplate, error)
	GetVerifiedEmailDomain(ctx context.Context, userID uuid.UUID) (store.EmailDomain, error)
	AdvanceExecution(ctx context.Context, executionID uuid.UUID, params store.AdvanceExecutionParams) error
	MarkExecutionStatus(ctx context.Context, executionID uuid.UUID, status store.ExecutionStatus, metadata store.JSONB) error
	UpsertRecipientSent(ctx context.Context, campaignID, prospectID uuid.UUID, sentAt time.Time) error
	ReactivateExecution(ctx context.Context, executionID, userID uuid.UUID, now time.Time) (store.WorkflowExecution, error)
}

// MailClient defines the email dispatch operation required by the executor
type MailClient interface {
	SendEmail(ctx context.Context, params mail.SendParams) (string, error)
}

var (
	ErrNoVerifiedDomain    = errors.New("no verified sending domain for tenant")
	ErrExecutionNotFound   = errors.New("workflow execution not found")
	ErrExecutionNotRetried = errors.New("execution is not in a failed state")
)

// tickBatchSize caps how many due executions one tick processes, bounding
// invocation latency.
const tickBatchSize = 100

// TickResult reports one tick invocation's outcome
type TickResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// Executor advances due workflow executions by exactly one step per tick
type Executor struct {
	store      ExecutorStore
	mailClient MailClient
	claimLease time.Duration
	logger     *observability.Logger
}

// NewExecutor creates a new workflow step executor
func NewExecutor(store ExecutorStore, mailClient MailClient, claimLease time.Duration, logger *observability.Logger) *Executor {
	if claimLease <= 0 {
		claimLease = 2 * time.Minute
	}
	return &Executor{
		store:      store,
		mailClient: mailClient,
		claimLease: claimLease,
		logger:     logger,
	}
}

// Tick claims all currently-due executions up to the batch cap and advances
// each one step. Per-execution failures are contained and counted; only a
// failure to claim the work list aborts the invocation.
func (e *Executor) Tick(ctx context.Context) (TickResult, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "operation", Value: "workflow_tick"},
	)

	now := time.Now()
	executions, err := e.store.ClaimDueExecutions(ctx, now, e.claimLease, tickBatchSize)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to claim due executions: %w", err)
	}

	if len(executions) == 0 {
		return TickResult{}, nil
	}

	e.logger.Info(ctx, fmt.Sprintf("Claimed %d due executions", len(executions)))

	var result TickResult
	for _, execution := range executions {
		execCtx := observability.WithFields(ctx,
			observability.Field{Key: "execution_id", Value: execution.ID},
			observability.Field{Key: "campaign_id", Value: execution.CampaignID},
			observability.Field{Key: "prospect_id", Value: execution.ProspectID},
		)

		sendErr, err := e.advance(execCtx, execution, now)
		if err != nil {
			e.logger.Error(execCtx, "failed to advance execution", err)
			result.Errors++
			continue
		}
		if sendErr != nil {
			// The step pointer moved on; only the send itself failed, and
			// advance already logged it.
			result.Errors++
			continue
		}
		result.Processed++
	}

	e.logger.Info(ctx, fmt.Sprintf("Tick completed: processed %d, errors %d", result.Processed, result.Errors))
	return result, nil
}

// advance moves one claimed execution through its current step. The second
// return value reports failures to persist the execution's state; the first
// carries a send failure for a step that still advanced.
func (e *Executor) advance(ctx context.Context, execution store.WorkflowExecution, now time.Time) (error, error) {
	campaign, err := e.store.GetCampaignByID(ctx, execution.CampaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, e.store.MarkExecutionStatus(ctx, execution.ID, store.ExecutionStatusOrphaned,
				store.JSONB{"reason": "campaign no longer exists"})
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	prospect, err := e.store.GetProspectByID(ctx, execution.ProspectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, e.store.MarkExecutionStatus(ctx, execution.ID, store.ExecutionStatusOrphaned,
				store.JSONB{"reason": "prospect no longer exists"})
		}
		return nil, fmt.Errorf("failed to get prospect: %w", err)
	}

	if !campaign.IsActive {
		return nil, e.store.MarkExecutionStatus(ctx, execution.ID, store.ExecutionStatusPaused, nil)
	}

	steps := campaign.WorkflowSteps
	stepIndex := e.resolveStepIndex(execution, steps)

	if stepIndex >= len(steps) {
		return nil, e.store.AdvanceExecution(ctx, execution.ID, store.AdvanceExecutionParams{
			CurrentStep:     stepIndex,
			CurrentStepID:   nil,
			Status:          store.ExecutionStatusCompleted,
			NextExecutionAt: nil,
			LastExecutedAt:  now,
		})
	}

	step := steps[stepIndex]
	var stepErr error
	if store.StepType(step.Type) == store.StepTypeSendEmail {
		stepErr = e.sendStepEmail(ctx, campaign, prospect, step, now)
		if errors.Is(stepErr, ErrNoVerifiedDomain) {
			// Configuration failure: terminal until reactivated, and the
			// step pointer stays put so the same step runs on retry.
			return nil, e.store.MarkExecutionStatus(ctx, execution.ID, store.ExecutionStatusFailed,
				store.JSONB{"error": stepErr.Error(), "step_id": step.ID})
		}
		if stepErr != nil {
			e.logger.Error(ctx, fmt.Sprintf("Failed to send step email to %s", prospect.Email), stepErr)
		}
	}

	params := store.AdvanceExecutionParams{
		CurrentStep:    stepIndex + 1,
		Status:         store.ExecutionStatusInProgress,
		LastExecutedAt: now,
	}
	if next := stepIndex + 1; next < len(steps) {
		nextAt := now.Add(steps[next].Delay())
		params.CurrentStepID = &steps[next].ID
		params.NextExecutionAt = &nextAt
	} else {
		params.Status = store.ExecutionStatusCompleted
	}

	if err := e.store.AdvanceExecution(ctx, execution.ID, params); err != nil {
		return nil, err
	}
	return stepErr, nil
}

// resolveStepIndex locates the execution's current step. The stable step id
// is authoritative so edits to the step array cannot silently shift which
// step runs next; the positional index is the fallback for older rows.
func (e *Executor) resolveStepIndex(execution store.WorkflowExecution, steps store.WorkflowSteps) int {
	if execution.CurrentStepID != nil && *execution.CurrentStepID != "" {
		if idx := steps.IndexOf(*execution.CurrentStepID); idx >= 0 {
			return idx
		}
	}
	return execution.CurrentStep
}

// sendStepEmail resolves the step's content, interpolates recipient tokens
// and dispatches the email. Success is recorded on the recipient tracking
// row via upsert so repeated sends for the same pair stay single-rowed.
func (e *Executor) sendStepEmail(ctx context.Context, campaign store.Campaign, prospect store.Prospect, step store.WorkflowStep, now time.Time) error {
	domain, err := e.store.GetVerifiedEmailDomain(ctx, campaign.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoVerifiedDomain
		}
		return fmt.Errorf("failed to get verified email domain: %w", err)
	}

	subject, content := e.resolveStepContent(ctx, campaign, step)

	data := interpolate.RecipientData{
		FullName: prospect.FullName,
		Email:    prospect.Email,
		Company:  prospect.Company,
	}

	_, err = e.mailClient.SendEmail(ctx, mail.SendParams{
		From:    domain.From(),
		To:      []string{prospect.Email},
		Subject: interpolate.Interpolate(subject, data),
		HTML:    interpolate.Interpolate(content, data),
		ReplyTo: domain.ReplyTo,
	})
	if err != nil {
		return fmt.Errorf("failed to send step email: %w", err)
	}

	if err := e.store.UpsertRecipientSent(ctx, campaign.ID, prospect.ID, now); err != nil {
		return fmt.Errorf("failed to record recipient sent status: %w", err)
	}
	return nil
}

// resolveStepContent picks the step's subject and body: stored template
// first, then the step's inline fields, then the parent campaign's.
func (e *Executor) resolveStepContent(ctx context.Context, campaign store.Campaign, step store.WorkflowStep) (string, string) {
	if step.TemplateID != nil {
		template, err := e.store.GetEmailTemplateByID(ctx, *step.TemplateID)
		if err == nil {
			return template.Subject, template.Content
		}
		e.logger.Warn(observability.WithFields(ctx,
			observability.Field{Key: "template_id", Value: *step.TemplateID},
		), "step template missing, falling back to inline content")
	}

	subject := step.Subject
	content := step.Content
	if subject == "" {
		subject = campaign.Subject
	}
	if content == "" {
		content = campaign.Content
	}
	return subject, content
}

// ReactivateExecution resets a failed execution to in_progress, due
// immediately. Once the tenant's sending domain is verified an operator can
// requeue the stuck execution this way.
func (e *Executor) ReactivateExecution(ctx context.Context, userID, executionID uuid.UUID) (store.WorkflowExecution, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "execution_id", Value: executionID},
		observability.Field{Key: "user_id", Value: userID},
	)

	execution, err := e.store.ReactivateExecution(ctx, executionID, userID, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.WorkflowExecution{}, ErrExecutionNotFound
		}
		if errors.Is(err, store.ErrExecutionNotFailed) {
			return store.WorkflowExecution{}, ErrExecutionNotRetried
		}
		e.logger.Error(ctx, "failed to reactivate execution", err)
		return store.WorkflowExecution{}, err
	}

	e.logger.Info(ctx, "execution reactivated")
	return execution, nil
}
