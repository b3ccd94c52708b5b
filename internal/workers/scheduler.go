package workers

import (
	"context"
	"fmt"
	"time"

	"crm-server/internal/observability"
	workflowsProcessor "crm-server/internal/workflows/processor"
)

// WorkflowEngine defines the periodic operations the scheduler drives
type WorkflowEngine interface {
	Tick(ctx context.Context) (workflowsProcessor.TickResult, error)
}

// EnrollmentReconciler backfills executions for auto-enroll campaigns
type EnrollmentReconciler interface {
	Reconcile(ctx context.Context) (workflowsProcessor.ReconcileResult, error)
}

// Scheduler periodically advances due workflow executions and reconciles
// campaign enrollments
type Scheduler struct {
	engine            WorkflowEngine
	reconciler        EnrollmentReconciler
	logger            *observability.Logger
	tickInterval      time.Duration
	reconcileInterval time.Duration
	stopChan          chan struct{}
}

// NewScheduler creates a new workflow scheduler
func NewScheduler(
	engine WorkflowEngine,
	reconciler EnrollmentReconciler,
	logger *observability.Logger,
	tickInterval time.Duration,
	reconcileInterval time.Duration,
) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = time.Minute
	}
	if reconcileInterval <= 0 {
		reconcileInterval = 5 * time.Minute
	}

	return &Scheduler{
		engine:            engine,
		reconciler:        reconciler,
		logger:            logger,
		tickInterval:      tickInterval,
		reconcileInterval: reconcileInterval,
		stopChan:          make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info(ctx, fmt.Sprintf("Starting workflow scheduler: tick every %v, reconcile every %v", s.tickInterval, s.reconcileInterval))

	tickTicker := time.NewTicker(s.tickInterval)
	defer tickTicker.Stop()
	reconcileTicker := time.NewTicker(s.reconcileInterval)
	defer reconcileTicker.Stop()

	// Run both immediately on start
	s.runReconcile(ctx)
	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Workflow scheduler stopping: context cancelled")
			return
		case <-s.stopChan:
			s.logger.Info(ctx, "Workflow scheduler stopping: stop signal received")
			return
		case <-tickTicker.C:
			s.runTick(ctx)
		case <-reconcileTicker.C:
			s.runReconcile(ctx)
		}
	}
}

// Stop signals the scheduler to stop
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) runTick(ctx context.Context) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "operation", Value: "workflow_tick"},
	)

	result, err := s.engine.Tick(ctx)
	if err != nil {
		s.logger.Error(ctx, "Workflow tick failed", err)
		return
	}

	if result.Processed > 0 || result.Errors > 0 {
		s.logger.Info(ctx, fmt.Sprintf("Workflow tick advanced %d executions (%d errors)", result.Processed, result.Errors))
	}
}

func (s *Scheduler) runReconcile(ctx context.Context) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "operation", Value: "enrollment_reconcile"},
	)

	result, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.logger.Error(ctx, "Enrollment reconcile failed", err)
		return
	}

	if result.Enrolled > 0 || result.Errors > 0 {
		s.logger.Info(ctx, fmt.Sprintf("Enrollment reconcile enrolled %d prospects (%d campaign errors)", result.Enrolled, result.Errors))
	}
}

var _ WorkflowEngine = (*workflowsProcessor.Executor)(nil)
var _ EnrollmentReconciler = (*workflowsProcessor.Reconciler)(nil)
