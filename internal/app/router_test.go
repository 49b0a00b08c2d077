package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/shared"
	"github.com/odyssey-erp/odyssey-stock/internal/storage"
	"github.com/odyssey-erp/odyssey-stock/internal/storage/memory"
)

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := shared.FixedClock{At: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := storage.New(memory.New(clock), storage.Options{Logger: logger})
	return &Container{
		Config:   &Config{AppEnv: "test", RateLimitPerMinute: 1000, AppRequestTimeout: 5 * time.Second},
		Logger:   logger,
		Store:    store,
		Services: NewServices(store, ServicesConfig{Clock: clock, Logger: logger}),
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthz(t *testing.T) {
	router := newTestContainer(t).Router(nil)
	rec := do(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterAdjustAndBalance(t *testing.T) {
	router := newTestContainer(t).Router(nil)

	rec := do(t, router, http.MethodPost, "/api/products", map[string]any{
		"code": "CAD-01", "description": "Cadeira", "unit": "UN", "kind": "resale",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/ledger/adjustments", map[string]any{
		"product_id": 1, "quantity": "5", "note": "contagem inicial",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/ledger/products/1/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		ProductID int64           `json:"product_id"`
		Balance   decimal.Decimal `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, int64(1), got.ProductID)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(5)), got.Balance.String())
}

func TestRouterUnknownProduct(t *testing.T) {
	router := newTestContainer(t).Router(nil)
	rec := do(t, router, http.MethodGet, "/api/products/42", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIdempotencyMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	guard := shared.NewRedisIdempotencyStore(client, time.Hour)

	status := http.StatusCreated
	calls := 0
	h := Idempotency(guard, slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	rec := do(t, h, http.MethodPost, "/api/sales", nil, IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/sales", nil, IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 1, calls)

	status = http.StatusUnprocessableEntity
	rec = do(t, h, http.MethodPost, "/api/sales", nil, IdempotencyHeader, "k-2")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	exists, err := client.Exists(context.Background(), shared.IdempotencyRedisKey("k-2", "POST /api/sales")).Result()
	require.NoError(t, err)
	require.Zero(t, exists)

	rec = do(t, h, http.MethodGet, "/api/sales", nil, IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, 3, calls)
}

func TestIdempotencyKeysAreScopedPerEndpoint(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	guard := shared.NewRedisIdempotencyStore(client, time.Hour)

	calls := 0
	h := Idempotency(guard, slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	rec := do(t, h, http.MethodPost, "/api/sales", nil, IdempotencyHeader, "shared-key")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/purchases", nil, IdempotencyHeader, "shared-key")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodPut, "/api/sales", nil, IdempotencyHeader, "shared-key")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/purchases", nil, IdempotencyHeader, "shared-key")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 3, calls)
}
