package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"crm-server/internal/observability"
	"crm-server/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockReconcilerStore is a mock implementation of ReconcilerStore
type MockReconcilerStore struct {
	mock.Mock
}

func (m *MockReconcilerStore) GetAutoEnrollCampaigns(ctx context.Context) ([]store.Campaign, error) {
	args := m.Called(ctx)
	return args.Get(0).([]store.Campaign), args.Error(1)
}

func (m *MockReconcilerStore) GetProspectIDsInGroups(ctx context.Context, groupIDs store.StringArray, userID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, groupIDs, userID)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockReconcilerStore) GetEnrolledProspectIDs(ctx context.Context, campaignID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockReconcilerStore) CreateWorkflowExecutionsBulk(ctx context.Context, params []store.CreateWorkflowExecutionParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockReconcilerStore) CreatePendingRecipientsBulk(ctx context.Context, campaignID uuid.UUID, prospectIDs []uuid.UUID) error {
	args := m.Called(ctx, campaignID, prospectIDs)
	return args.Error(0)
}

func autoEnrollCampaign(steps store.WorkflowSteps) store.Campaign {
	return store.Campaign{
		ID:                     uuid.New(),
		UserID:                 uuid.New(),
		IsActive:               true,
		AutoEnrollNewProspects: true,
		TargetGroups:           store.StringArray{uuid.NewString()},
		WorkflowSteps:          steps,
	}
}

func TestReconcile_EnrollsOnlyUnhandledProspects(t *testing.T) {
	mockStore := new(MockReconcilerStore)
	reconciler := NewReconciler(mockStore, observability.NewLogger())

	campaign := autoEnrollCampaign(store.WorkflowSteps{{ID: "step-1", Type: "send_email"}})
	handledByExecution := uuid.New()
	handledByRecipient := uuid.New()
	fresh := uuid.New()

	mockStore.On("GetAutoEnrollCampaigns", mock.Anything).Return([]store.Campaign{campaign}, nil)
	mockStore.On("GetProspectIDsInGroups", mock.Anything, campaign.TargetGroups, campaign.UserID).
		Return([]uuid.UUID{handledByExecution, handledByRecipient, fresh}, nil)
	mockStore.On("GetEnrolledProspectIDs", mock.Anything, campaign.ID).
		Return([]uuid.UUID{handledByExecution, handledByRecipient}, nil)
	mockStore.On("CreateWorkflowExecutionsBulk", mock.Anything, mock.MatchedBy(func(params []store.CreateWorkflowExecutionParams) bool {
		return len(params) == 1 && params[0].ProspectID == fresh && params[0].CampaignID == campaign.ID
	})).Return(nil)
	mockStore.On("CreatePendingRecipientsBulk", mock.Anything, campaign.ID, []uuid.UUID{fresh}).Return(nil)

	result, err := reconciler.Reconcile(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Enrolled)
	assert.Equal(t, 0, result.Errors)
	mockStore.AssertExpectations(t)
}

func TestReconcile_FirstStepDelayShiftsFirstExecution(t *testing.T) {
	mockStore := new(MockReconcilerStore)
	reconciler := NewReconciler(mockStore, observability.NewLogger())

	campaign := autoEnrollCampaign(store.WorkflowSteps{
		{ID: "step-1", Type: "send_email", DelayHours: 3},
	})
	prospectID := uuid.New()

	mockStore.On("GetAutoEnrollCampaigns", mock.Anything).Return([]store.Campaign{campaign}, nil)
	mockStore.On("GetProspectIDsInGroups", mock.Anything, campaign.TargetGroups, campaign.UserID).
		Return([]uuid.UUID{prospectID}, nil)
	mockStore.On("GetEnrolledProspectIDs", mock.Anything, campaign.ID).Return([]uuid.UUID{}, nil)
	mockStore.On("CreateWorkflowExecutionsBulk", mock.Anything, mock.MatchedBy(func(params []store.CreateWorkflowExecutionParams) bool {
		if len(params) != 1 || params[0].CurrentStepID == nil || *params[0].CurrentStepID != "step-1" {
			return false
		}
		until := time.Until(params[0].NextExecutionAt)
		return until > 2*time.Hour && until <= 3*time.Hour
	})).Return(nil)
	mockStore.On("CreatePendingRecipientsBulk", mock.Anything, campaign.ID, []uuid.UUID{prospectID}).Return(nil)

	result, err := reconciler.Reconcile(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Enrolled)
	mockStore.AssertExpectations(t)
}

func TestReconcile_SkipsCampaignsWithoutTargetGroups(t *testing.T) {
	mockStore := new(MockReconcilerStore)
	reconciler := NewReconciler(mockStore, observability.NewLogger())

	campaign := autoEnrollCampaign(nil)
	campaign.TargetGroups = store.StringArray{}

	mockStore.On("GetAutoEnrollCampaigns", mock.Anything).Return([]store.Campaign{campaign}, nil)

	result, err := reconciler.Reconcile(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Enrolled)
	mockStore.AssertNotCalled(t, "GetProspectIDsInGroups", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_PerCampaignFailureIsContained(t *testing.T) {
	mockStore := new(MockReconcilerStore)
	reconciler := NewReconciler(mockStore, observability.NewLogger())

	broken := autoEnrollCampaign(store.WorkflowSteps{{ID: "step-1", Type: "send_email"}})
	healthy := autoEnrollCampaign(store.WorkflowSteps{{ID: "step-1", Type: "send_email"}})
	prospectID := uuid.New()

	mockStore.On("GetAutoEnrollCampaigns", mock.Anything).Return([]store.Campaign{broken, healthy}, nil)
	mockStore.On("GetProspectIDsInGroups", mock.Anything, broken.TargetGroups, broken.UserID).
		Return([]uuid.UUID{}, errors.New("query timeout"))
	mockStore.On("GetProspectIDsInGroups", mock.Anything, healthy.TargetGroups, healthy.UserID).
		Return([]uuid.UUID{prospectID}, nil)
	mockStore.On("GetEnrolledProspectIDs", mock.Anything, healthy.ID).Return([]uuid.UUID{}, nil)
	mockStore.On("CreateWorkflowExecutionsBulk", mock.Anything, mock.Anything).Return(nil)
	mockStore.On("CreatePendingRecipientsBulk", mock.Anything, healthy.ID, []uuid.UUID{prospectID}).Return(nil)

	result, err := reconciler.Reconcile(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Enrolled)
	assert.Equal(t, 1, result.Errors)
	mockStore.AssertExpectations(t)
}

func TestReconcile_CampaignListFailureAborts(t *testing.T) {
	mockStore := new(MockReconcilerStore)
	reconciler := NewReconciler(mockStore, observability.NewLogger())

	mockStore.On("GetAutoEnrollCampaigns", mock.Anything).
		Return([]store.Campaign{}, errors.New("connection refused"))

	_, err := reconciler.Reconcile(context.Background())

	assert.Error(t, err)
}
