package handler

import (
	"errors"
	"net/http"

	"crm-server/internal/apierrors"
	"crm-server/internal/observability"
	"crm-server/internal/workflows/processor"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	executor   *processor.Executor
	reconciler *processor.Reconciler
	logger     *observability.Logger
}

func New(executor *processor.Executor, reconciler *processor.Reconciler, logger *observability.Logger) Handler {
	return Handler{
		executor:   executor,
		reconciler: reconciler,
		logger:     logger,
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, processor.ErrExecutionNotFound):
		apierrors.NotFound(c, "Workflow execution not found")
	case errors.Is(err, processor.ErrExecutionNotRetried):
		apierrors.BadRequest(c, "EXECUTION_NOT_FAILED", "Only failed executions can be reactivated")
	default:
		apierrors.InternalError(c, err)
	}
}

// HandleTick handles POST /api/workflows/tick
func (h *Handler) HandleTick(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.executor.Tick(ctx)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleReconcile handles POST /api/workflows/reconcile
func (h *Handler) HandleReconcile(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.reconciler.Reconcile(ctx)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleReactivateExecution handles POST /api/workflows/executions/:id/reactivate
func (h *Handler) HandleReactivateExecution(c *gin.Context) {
	ctx := c.Request.Context()

	userIDStr, exists := c.Get("User-ID")
	if !exists {
		apierrors.Unauthorized(c, "user ID not found in context")
		return
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		h.logger.Error(ctx, "failed to parse user ID", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	executionIDStr := c.Param("id")
	executionID, err := uuid.Parse(executionIDStr)
	if err != nil {
		h.logger.Error(ctx, "failed to parse execution ID", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid execution id"})
		return
	}

	execution, err := h.executor.ReactivateExecution(ctx, userID, executionID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, execution)
}
