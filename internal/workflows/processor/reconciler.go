package processor

import (
	"context"
	"fmt"
	"time"

	"crm-server/internal/observability"
	"crm-server/internal/store"

	"github.com/google/uuid"
)

// ReconcilerStore defines the database operations required by the
// enrollment reconciler
type ReconcilerStore interface {
	GetAutoEnrollCampaigns(ctx context.Context) ([]store.Campaign, error)
	GetProspectIDsInGroups(ctx context.Context, groupIDs store.StringArray, userID uuid.UUID) ([]uuid.UUID, error)
	GetEnrolledProspectIDs(ctx context.Context, campaignID uuid.UUID) ([]uuid.UUID, error)
	CreateWorkflowExecutionsBulk(ctx context.Context, params []store.CreateWorkflowExecutionParams) error
	CreatePendingRecipientsBulk(ctx context.Context, campaignID uuid.UUID, prospectIDs []uuid.UUID) error
}

// ReconcileResult reports one reconciliation invocation's outcome
type ReconcileResult struct {
	Enrolled int `json:"enrolled"`
	Errors   int `json:"errors"`
}

// Reconciler keeps workflow executions and recipient rows in sync with
// campaign target-group membership
type Reconciler struct {
	store  ReconcilerStore
	logger *observability.Logger
}

// NewReconciler creates a new enrollment reconciler
func NewReconciler(store ReconcilerStore, logger *observability.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger,
	}
}

// Reconcile enrolls prospects newly added to an auto-enroll campaign's
// target groups. A prospect with either an execution row or a recipient row
// for the campaign is considered already handled. Per-campaign failures are
// logged and skipped; only a failure to list the campaigns aborts.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "operation", Value: "enrollment_reconcile"},
	)

	campaigns, err := r.store.GetAutoEnrollCampaigns(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("failed to get auto-enroll campaigns: %w", err)
	}

	var result ReconcileResult
	for _, campaign := range campaigns {
		if len(campaign.TargetGroups) == 0 {
			continue
		}

		campaignCtx := observability.WithFields(ctx,
			observability.Field{Key: "campaign_id", Value: campaign.ID},
		)

		enrolled, err := r.reconcileCampaign(campaignCtx, campaign)
		if err != nil {
			r.logger.Error(campaignCtx, "failed to reconcile campaign enrollment", err)
			result.Errors++
			continue
		}
		result.Enrolled += enrolled
	}

	if result.Enrolled > 0 {
		r.logger.Info(ctx, fmt.Sprintf("Reconciliation enrolled %d prospects", result.Enrolled))
	}
	return result, nil
}

// reconcileCampaign enrolls one campaign's unhandled target-group members
func (r *Reconciler) reconcileCampaign(ctx context.Context, campaign store.Campaign) (int, error) {
	members, err := r.store.GetProspectIDsInGroups(ctx, campaign.TargetGroups, campaign.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to get target group members: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	handled, err := r.store.GetEnrolledProspectIDs(ctx, campaign.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to get enrolled prospects: %w", err)
	}

	handledSet := make(map[uuid.UUID]struct{}, len(handled))
	for _, id := range handled {
		handledSet[id] = struct{}{}
	}

	var newProspects []uuid.UUID
	for _, id := range members {
		if _, ok := handledSet[id]; !ok {
			newProspects = append(newProspects, id)
		}
	}
	if len(newProspects) == 0 {
		return 0, nil
	}

	now := time.Now()
	firstExecutionAt := now
	var firstStepID *string
	steps := campaign.WorkflowSteps
	if len(steps) > 0 {
		firstExecutionAt = now.Add(steps[0].Delay())
		firstStepID = &steps[0].ID
	}

	executions := make([]store.CreateWorkflowExecutionParams, 0, len(newProspects))
	for _, prospectID := range newProspects {
		executions = append(executions, store.CreateWorkflowExecutionParams{
			CampaignID:      campaign.ID,
			ProspectID:      prospectID,
			WorkflowID:      campaign.WorkflowID,
			CurrentStepID:   firstStepID,
			TotalSteps:      len(steps),
			NextExecutionAt: firstExecutionAt,
		})
	}

	if err := r.store.CreateWorkflowExecutionsBulk(ctx, executions); err != nil {
		return 0, fmt.Errorf("failed to create workflow executions: %w", err)
	}
	if err := r.store.CreatePendingRecipientsBulk(ctx, campaign.ID, newProspects); err != nil {
		return 0, fmt.Errorf("failed to create campaign recipients: %w", err)
	}

	r.logger.Info(ctx, fmt.Sprintf("Enrolled %d new prospects", len(newProspects)))
	return len(newProspects), nil
}
