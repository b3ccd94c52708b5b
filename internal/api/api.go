package api

import (
	"net/http"

	campaignsHandler "crm-server/internal/campaigns/handler"
	domainsHandler "crm-server/internal/sendingdomains/handler"
	workflowsHandler "crm-server/internal/workflows/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router           *gin.RouterGroup
	workflowsHandler workflowsHandler.Handler
	campaignsHandler campaignsHandler.Handler
	domainsHandler   domainsHandler.Handler
}

func New(router *gin.RouterGroup, workflows workflowsHandler.Handler, campaigns campaignsHandler.Handler, domains domainsHandler.Handler) API {
	return API{
		router:           router,
		workflowsHandler: workflows,
		campaignsHandler: campaigns,
		domainsHandler:   domains,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	apiGroup := a.router.Group("/api")

	workflowsGroup := apiGroup.Group("/workflows")
	{
		workflowsGroup.POST("/tick", a.workflowsHandler.HandleTick)
		workflowsGroup.POST("/reconcile", a.workflowsHandler.HandleReconcile)
		workflowsGroup.POST("/executions/:id/reactivate", UserIdentityMiddleware, a.workflowsHandler.HandleReactivateExecution)
	}

	campaignsGroup := apiGroup.Group("/campaigns", UserIdentityMiddleware)
	{
		campaignsGroup.POST("/:id/send", a.campaignsHandler.HandleSendCampaign)
	}

	domainsGroup := apiGroup.Group("/domains", UserIdentityMiddleware)
	{
		domainsGroup.POST("", a.domainsHandler.HandleAddDomain)
		domainsGroup.GET("/:id/status", a.domainsHandler.HandleCheckStatus)
		domainsGroup.GET("/:id/dns-check", a.domainsHandler.HandleDNSCheck)
	}
}

// UserIdentityMiddleware resolves the calling tenant from the X-User-ID
// header and makes it available to handlers through the gin context.
func UserIdentityMiddleware(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
		return
	}
	c.Set("User-ID", userID)
	c.Next()
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
