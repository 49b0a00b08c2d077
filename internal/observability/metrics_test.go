package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `odyssey_http_request_duration_seconds_bucket{route="/test"`)
}

func TestStorageMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.MovementAppended("saida")
	metrics.MovementAppended("saida")
	metrics.UnitOfWork(false)
	metrics.UnitOfWork(true)
	metrics.Compensation(true)

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_stock_movements_total{kind="saida"} 2`)
	require.Contains(t, body, `odyssey_storage_units_of_work_total{outcome="failure"} 1`)
	require.Contains(t, body, `odyssey_storage_units_of_work_total{outcome="success"} 1`)
	require.Contains(t, body, `odyssey_saga_compensations_total{outcome="failure"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.MovementAppended("entrada")
	metrics.UnitOfWork(true)
	metrics.Compensation(false)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.False(t, strings.Contains(rr.Body.String(), "odyssey_"))
}
