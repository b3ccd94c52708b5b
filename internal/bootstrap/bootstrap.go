package bootstrap

import (
	"context"
	"fmt"

	"crm-server/internal/config"
	"crm-server/internal/observability"
	"crm-server/internal/store"

	campaignsHandler "crm-server/internal/campaigns/handler"
	campaignsProcessor "crm-server/internal/campaigns/processor"
	"crm-server/internal/clients/dnscheck"
	"crm-server/internal/clients/domains"
	"crm-server/internal/clients/mail"
	domainsHandler "crm-server/internal/sendingdomains/handler"
	domainsProcessor "crm-server/internal/sendingdomains/processor"
	workflowsHandler "crm-server/internal/workflows/handler"
	workflowsProcessor "crm-server/internal/workflows/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store  store.Store
	Logger *observability.Logger

	// Processors, shared with the worker binary
	Executor   *workflowsProcessor.Executor
	Reconciler *workflowsProcessor.Reconciler
	Sender     *campaignsProcessor.Sender

	// Handlers
	WorkflowsHandler workflowsHandler.Handler
	CampaignsHandler campaignsHandler.Handler
	DomainsHandler   domainsHandler.Handler
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	connectionString := cfg.Database.ConnectionString()
	var err error
	deps.Store, err = store.New(connectionString, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	mailClient, err := mail.NewResendClient(cfg.Services.ResendAPIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create resend client: %w", err)
	}

	domainsClient := domains.NewClient(cfg.Services.ResendAPIKey, cfg.Services.ResendAPIBaseURL, logger)
	primaryResolver := dnscheck.NewResolver(cfg.Services.PrimaryDoHResolver, logger)
	backupResolver := dnscheck.NewResolver(cfg.Services.BackupDoHResolver, logger)

	deps.Executor = workflowsProcessor.NewExecutor(&deps.Store, mailClient, cfg.Worker.ClaimLease, logger)
	deps.Reconciler = workflowsProcessor.NewReconciler(&deps.Store, logger)
	deps.WorkflowsHandler = workflowsHandler.New(deps.Executor, deps.Reconciler, logger)

	deps.Sender = campaignsProcessor.NewSender(&deps.Store, mailClient, cfg.Sender.MarkSentWhenAllFail, logger)
	deps.CampaignsHandler = campaignsHandler.New(deps.Sender, logger)

	domainsProc := domainsProcessor.New(&deps.Store, domainsClient, primaryResolver, backupResolver, logger)
	deps.DomainsHandler = domainsHandler.New(domainsProc, logger)

	return deps, nil
}
