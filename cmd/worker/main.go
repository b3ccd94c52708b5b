package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"crm-server/internal/bootstrap"
	"crm-server/internal/config"
	"crm-server/internal/observability"
	"crm-server/internal/workers"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}

	logger := observability.NewLogger()

	deps, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize dependencies", err)
	}

	scheduler := workers.NewScheduler(
		deps.Executor,
		deps.Reconciler,
		logger,
		cfg.Worker.TickInterval,
		cfg.Worker.ReconcileInterval,
	)

	go scheduler.Start(ctx)
	logger.Info(ctx, "Workflow worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "Shutting down worker...")
	scheduler.Stop()
	logger.Info(ctx, "Worker exited gracefully")
}
