package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-stock/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-stock/internal/jobs"
	"github.com/odyssey-erp/odyssey-stock/internal/observability"
	"github.com/odyssey-erp/odyssey-stock/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	metrics := observability.NewMetrics()
	container, err := app.Build(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		os.Exit(1)
	}
	defer container.Close()

	redisOpts, ok := container.RedisOpts()
	if !ok {
		logger.Error("worker requires redis", slog.String("addr", cfg.RedisAddr))
		os.Exit(1)
	}

	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	reorderJob := jobs.NewReorderScanJob(container.Services.Reorder, logger, jobMetrics)
	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskReorderScan, Handler: reorderJob.Handle},
	}

	reorderTask, err := jobs.NewReorderScanTask(time.Now().UTC())
	if err != nil {
		logger.Error("build reorder task", slog.Any("error", err))
		os.Exit(1)
	}
	cron := []jobs.CronRegistration{
		{Spec: cfg.ReorderScanCron, Task: reorderTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}

	if container.KeyCleaner != nil {
		cleanupJob := &jobs.IdempotencyCleanupJob{Store: container.KeyCleaner, Logger: logger, Metrics: jobMetrics}
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle})
		cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyTTL)
		if err != nil {
			logger.Error("build cleanup task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: "30 3 * * *", Task: cleanupTask})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
