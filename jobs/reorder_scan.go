package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-stock/internal/jobs"
	"github.com/odyssey-erp/odyssey-stock/internal/reorder"
)

// BelowMinimumLister is the advisor surface the scan needs.
type BelowMinimumLister interface {
	BelowMinimumList(ctx context.Context) ([]reorder.BelowMinimum, error)
}

// ReorderScanJob logs every product under its reorder minimum.
type ReorderScanJob struct {
	Advisor BelowMinimumLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReorderScanJob initialises the reorder scan handler.
func NewReorderScanJob(advisor BelowMinimumLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReorderScanJob {
	return &ReorderScanJob{Advisor: advisor, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *ReorderScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Advisor == nil {
		return errors.New("reorder scan: handler not configured")
	}
	var payload ReorderScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	tracker := j.Metrics.Track(TaskReorderScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting reorder scan", slog.Time("scheduled_for", payload.ScheduledFor))

	below, err := j.Advisor.BelowMinimumList(ctx)
	if err != nil {
		logger.Error("reorder scan failed", slog.Any("error", err))
		return err
	}
	for _, item := range below {
		logger.Warn("product below reorder minimum",
			slog.Int64("product_id", item.ProductID),
			slog.String("code", item.ProductCode),
			slog.String("balance", item.Balance.String()),
			slog.String("minimum", item.ReorderMin.String()),
			slog.String("deficit", item.Deficit.String()),
		)
	}
	j.Metrics.SetBelowMinimum(len(below))

	logger.Info("completed reorder scan",
		slog.Int("below_minimum", len(below)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ReorderScanJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
