package storage_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
	"github.com/odyssey-erp/odyssey-stock/internal/storage"
	"github.com/odyssey-erp/odyssey-stock/internal/storage/memory"
)

type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) Version(context.Context, string) (int64, error) { return 0, nil }
func (c *recordingCache) Get(context.Context, string, int64) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, nil
}
func (c *recordingCache) Set(context.Context, string, int64, decimal.Decimal) error { return nil }
func (c *recordingCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, keys...)
	return nil
}

type countingMetrics struct {
	appended map[string]int
	failed   int
	ok       int
}

func (m *countingMetrics) MovementAppended(kind string) { m.appended[kind]++ }
func (m *countingMetrics) UnitOfWork(failed bool) {
	if failed {
		m.failed++
		return
	}
	m.ok++
}

var clock = shared.FixedClock{At: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}

func newStore(t *testing.T) (*storage.Store, *recordingCache, *countingMetrics) {
	t.Helper()
	cache := &recordingCache{}
	metrics := &countingMetrics{appended: make(map[string]int)}
	store := storage.New(memory.New(clock), storage.Options{Cache: cache, Metrics: metrics})
	t.Cleanup(store.Close)
	return store, cache, metrics
}

func seedProduct(t *testing.T, store *storage.Store, code string) int64 {
	t.Helper()
	var productID int64
	err := store.Catalog().WithTx(context.Background(), func(ctx context.Context, tx catalog.TxRepository) error {
		var err error
		productID, err = tx.CreateProduct(ctx, catalog.Product{Code: code, Description: code, Unit: "un", Kind: catalog.ProductKindResale})
		return err
	})
	require.NoError(t, err)
	return productID
}

func TestFailedUnitOfWorkRollsBack(t *testing.T) {
	ctx := context.Background()
	store, _, metrics := newStore(t)
	boom := errors.New("boom")

	err := store.Catalog().WithTx(ctx, func(ctx context.Context, tx catalog.TxRepository) error {
		if _, err := tx.CreateProduct(ctx, catalog.Product{Code: "P-1", Kind: catalog.ProductKindResale}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Catalog().GetProductByCode(ctx, "P-1")
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	require.Equal(t, 1, metrics.failed)

	productID := seedProduct(t, store, "P-2")
	require.Equal(t, int64(1), productID)
}

func TestAppendInvalidatesTouchedKeysEvenOnFailure(t *testing.T) {
	ctx := context.Background()
	store, cache, metrics := newStore(t)
	productID := seedProduct(t, store, "P-1")
	color := int64(4)

	err := store.Ledger().WithTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
		_, err := ledger.Append(ctx, tx, clock, ledger.Movement{
			Kind: ledger.KindEntrada, ProductID: productID, ColorID: &color, Quantity: decimal.NewFromInt(5),
		})
		if err != nil {
			return err
		}
		return errors.New("later step failed")
	})
	require.Error(t, err)

	movements, err := store.Ledger().ScanMovements(ctx, ledger.Filter{ProductID: productID})
	require.NoError(t, err)
	require.Empty(t, movements)

	keys := append([]string(nil), cache.invalidated...)
	sort.Strings(keys)
	require.Equal(t, []string{"1:*", "1:4"}, keys)
	require.Equal(t, 1, metrics.appended["entrada"])
}

func TestLedgerPortSumsThroughBackend(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newStore(t)
	productID := seedProduct(t, store, "P-1")

	err := store.Ledger().WithTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
		for _, q := range []int64{10, -3} {
			kind := ledger.KindEntrada
			if q < 0 {
				kind = ledger.KindSaida
			}
			if _, err := ledger.Append(ctx, tx, clock, ledger.Movement{Kind: kind, ProductID: productID, Quantity: decimal.NewFromInt(q)}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	port := store.Ledger()
	_, ok := port.(ledger.Summer)
	require.True(t, ok)
	total, err := ledger.Sum(ctx, port, ledger.Filter{ProductID: productID})
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.NewFromInt(7)))
}

func TestUnitsOfWorkAreSerialized(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newStore(t)
	productID := seedProduct(t, store, "P-1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Ledger().WithTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
				_, err := ledger.Append(ctx, tx, clock, ledger.Movement{Kind: ledger.KindEntrada, ProductID: productID, Quantity: decimal.NewFromInt(1)})
				return err
			})
		}()
	}
	wg.Wait()

	movements, err := store.Ledger().ScanMovements(ctx, ledger.Filter{ProductID: productID})
	require.NoError(t, err)
	require.Len(t, movements, 20)
	for i, m := range movements {
		require.Equal(t, int64(i+1), m.ID)
	}
}
