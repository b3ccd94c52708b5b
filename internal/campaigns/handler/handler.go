package handler

import (
	"errors"
	"net/http"

	"crm-server/internal/apierrors"
	"crm-server/internal/campaigns/processor"
	"crm-server/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	sender *processor.Sender
	logger *observability.Logger
}

func New(sender *processor.Sender, logger *observability.Logger) Handler {
	return Handler{
		sender: sender,
		logger: logger,
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, processor.ErrCampaignNotFound):
		apierrors.NotFound(c, "Campaign not found")
	case errors.Is(err, processor.ErrNoVerifiedDomain):
		apierrors.BadRequest(c, "NO_VERIFIED_DOMAIN", "A verified sending domain is required before sending")
	default:
		apierrors.InternalError(c, err)
	}
}

// HandleSendCampaign handles POST /api/campaigns/:id/send
func (h *Handler) HandleSendCampaign(c *gin.Context) {
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

	campaignIDStr := c.Param("id")
	campaignID, err := uuid.Parse(campaignIDStr)
	if err != nil {
		h.logger.Error(ctx, "failed to parse campaign ID", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign id"})
		return
	}

	result, err := h.sender.SendCampaign(ctx, userID, campaignID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
