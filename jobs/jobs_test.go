package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-stock/internal/jobs"
	"github.com/odyssey-erp/odyssey-stock/internal/reorder"
)

type stubAdvisor struct {
	items []reorder.BelowMinimum
	err   error
}

func (s stubAdvisor) BelowMinimumList(context.Context) ([]reorder.BelowMinimum, error) {
	return s.items, s.err
}

type stubCleaner struct {
	olderThan time.Duration
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) error {
	s.olderThan = olderThan
	return nil
}

func TestReorderScanTaskPayload(t *testing.T) {
	at := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	task, err := NewReorderScanTask(at)
	require.NoError(t, err)
	require.Equal(t, TaskReorderScan, task.Type())

	var payload ReorderScanPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.True(t, payload.ScheduledFor.Equal(at))
}

func TestReorderScanJobHandle(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewReorderScanJob(stubAdvisor{items: []reorder.BelowMinimum{{
		ProductID: 1, ProductCode: "MP-01",
		ReorderMin: decimal.NewFromInt(10), Balance: decimal.NewFromInt(4), Deficit: decimal.NewFromInt(6),
	}}}, nil, metrics)

	task, err := NewReorderScanTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestReorderScanJobPropagatesFailure(t *testing.T) {
	boom := errors.New("ledger offline")
	job := NewReorderScanJob(stubAdvisor{err: boom}, nil, nil)
	task, err := NewReorderScanTask(time.Now())
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)

	bad := asynq.NewTask(TaskReorderScan, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	cleaner := &stubCleaner{}
	job := &IdempotencyCleanupJob{Store: cleaner}
	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, DefaultIdempotencyRetention, cleaner.olderThan)
}

func TestHandlerWithoutBackends(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	r := chi.NewRouter()
	h.MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/reorder-scan", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
