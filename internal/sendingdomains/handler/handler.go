package handler

import (
	"errors"
	"net/http"

	"crm-server/internal/apierrors"
	"crm-server/internal/clients/domains"
	"crm-server/internal/observability"
	"crm-server/internal/sendingdomains/processor"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	processor *processor.Processor
	logger    *observability.Logger
}

func New(processor *processor.Processor, logger *observability.Logger) Handler {
	return Handler{
		processor: processor,
		logger:    logger,
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, processor.ErrDomainNotFound):
		apierrors.NotFound(c, "Sending domain not found")
	case errors.Is(err, domains.ErrProviderRequestFailed):
		apierrors.BadRequest(c, "PROVIDER_REQUEST_FAILED", "The email provider rejected the request")
	default:
		apierrors.InternalError(c, err)
	}
}

func userIDFromContext(c *gin.Context, logger *observability.Logger) (uuid.UUID, bool) {
	ctx := c.Request.Context()

	userIDStr, exists := c.Get("User-ID")
	if !exists {
		apierrors.Unauthorized(c, "user ID not found in context")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		logger.Error(ctx, "failed to parse user ID", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return uuid.Nil, false
	}
	return userID, true
}

// AddDomainRequest represents the HTTP request for registering a sending domain
type AddDomainRequest struct {
	Domain    string `json:"domain" binding:"required,fqdn"`
	FromName  string `json:"from_name" binding:"required,max=255"`
	FromEmail string `json:"from_email" binding:"required,email"`
	ReplyTo   string `json:"reply_to" binding:"omitempty,email"`
}

// HandleAddDomain handles POST /api/domains
func (h *Handler) HandleAddDomain(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := userIDFromContext(c, h.logger)
	if !ok {
		return
	}

	var req AddDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationError(c, err)
		return
	}

	result, err := h.processor.AddDomain(ctx, userID, processor.AddDomainRequest{
		Domain:    req.Domain,
		FromName:  req.FromName,
		FromEmail: req.FromEmail,
		ReplyTo:   req.ReplyTo,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// HandleCheckStatus handles GET /api/domains/:id/status
func (h *Handler) HandleCheckStatus(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := userIDFromContext(c, h.logger)
	if !ok {
		return
	}

	domainID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.logger.Error(ctx, "failed to parse domain ID", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid domain id"})
		return
	}

	status, err := h.processor.CheckStatus(ctx, userID, domainID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// HandleDNSCheck handles GET /api/domains/:id/dns-check
func (h *Handler) HandleDNSCheck(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := userIDFromContext(c, h.logger)
	if !ok {
		return
	}

	domainID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.logger.Error(ctx, "failed to parse domain ID", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid domain id"})
		return
	}

	checks, err := h.processor.CrossCheckDNS(ctx, userID, domainID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": checks})
}
