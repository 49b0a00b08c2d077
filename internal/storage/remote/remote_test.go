package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/sales"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
	"github.com/odyssey-erp/odyssey-stock/internal/storage"
)

type sagaMetrics struct {
	compensations int
	failed        int
}

func (m *sagaMetrics) Compensation(failed bool) {
	m.compensations++
	if failed {
		m.failed++
	}
}

var testClock = shared.FixedClock{At: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}

func newBackend(t *testing.T) (*Backend, *sagaMetrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	metrics := &sagaMetrics{}
	b := New(client, Options{Prefix: "t", Clock: testClock, Metrics: metrics})
	t.Cleanup(b.Close)
	return b, metrics
}

func createProduct(t *testing.T, b *Backend, code string) int64 {
	t.Helper()
	var productID int64
	err := b.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		productID, err = tx.CreateProduct(ctx, catalog.Product{Code: code, Kind: catalog.ProductKindResale, TrackedByColor: true})
		return err
	})
	require.NoError(t, err)
	return productID
}

func TestCatalogDocuments(t *testing.T) {
	ctx := context.Background()
	b, _ := newBackend(t)
	productID := createProduct(t, b, "CAD-01")

	got, err := b.Reader().GetProductByCode(ctx, "CAD-01")
	require.NoError(t, err)
	require.Equal(t, productID, got.ID)
	require.True(t, got.TrackedByColor)

	err = b.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.CreateProduct(ctx, catalog.Product{Code: "CAD-01"})
		return err
	})
	require.ErrorIs(t, err, catalog.ErrDuplicateCode)

	err = b.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		got.Code = "CAD-02"
		return tx.UpdateProduct(ctx, got)
	})
	require.NoError(t, err)
	_, err = b.Reader().GetProductByCode(ctx, "CAD-01")
	require.ErrorIs(t, err, catalog.ErrProductNotFound)

	_, err = b.Reader().GetProduct(ctx, 999)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestFailedSagaCompensatesWrites(t *testing.T) {
	ctx := context.Background()
	b, metrics := newBackend(t)
	inputID := createProduct(t, b, "MP-01")
	color := int64(2)
	boom := errors.New("boom")

	err := b.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		outputID, err := tx.CreateProduct(ctx, catalog.Product{Code: "FAB-01", Kind: catalog.ProductKindFabricated})
		if err != nil {
			return err
		}
		if err := tx.UpsertEdge(ctx, bom.Edge{FabricatedID: outputID, InputID: inputID, QuantityPerUnit: decimal.NewFromInt(2)}); err != nil {
			return err
		}
		_, err = tx.AppendMovement(ctx, ledger.Movement{
			Date: testClock.At, Kind: ledger.KindEntrada, ProductID: inputID, ColorID: &color, Quantity: decimal.NewFromInt(8),
		})
		if err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, metrics.compensations)
	require.Zero(t, metrics.failed)

	reader := b.Reader()
	_, err = reader.GetProductByCode(ctx, "FAB-01")
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	products, err := reader.ListProducts(ctx, catalog.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)

	movements, err := reader.ScanMovements(ctx, ledger.Filter{ProductID: inputID})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, ledger.KindAjuste, movements[1].Kind)
	require.Equal(t, ledger.OriginCompensation, movements[1].OriginKind)
	require.Equal(t, movements[0].ID, movements[1].OriginID)

	total, err := ledger.Sum(ctx, reader, ledger.Filter{ProductID: inputID, ColorID: &color})
	require.NoError(t, err)
	require.True(t, total.IsZero())
}

func TestEdgesRestoreOnFailure(t *testing.T) {
	ctx := context.Background()
	b, _ := newBackend(t)
	outputID := createProduct(t, b, "FAB-01")
	inputID := createProduct(t, b, "MP-01")

	require.NoError(t, b.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.UpsertEdge(ctx, bom.Edge{FabricatedID: outputID, InputID: inputID, QuantityPerUnit: decimal.NewFromInt(3)})
	}))

	err := b.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.UpsertEdge(ctx, bom.Edge{FabricatedID: outputID, InputID: inputID, QuantityPerUnit: decimal.NewFromInt(5)}); err != nil {
			return err
		}
		if _, err := tx.DeleteEdge(ctx, outputID, inputID); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	edges, err := b.Reader().ListEdges(ctx, outputID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.True(t, edges[0].QuantityPerUnit.Equal(decimal.NewFromInt(3)))
}

func TestSaleDocumentAndLocks(t *testing.T) {
	ctx := context.Background()
	b, _ := newBackend(t)
	productID := createProduct(t, b, "CAD-01")

	var saleID int64
	require.NoError(t, b.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		order, err := tx.InsertSale(ctx, sales.Order{
			OrderDate:    testClock.At,
			DeliveryKind: sales.DeliveryPickup,
			Status:       sales.StatusDraft,
			Lines:        []sales.Line{{ProductID: productID, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(10)}},
		})
		saleID = order.ID
		return err
	}))

	require.NoError(t, b.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		order, err := tx.LockSale(ctx, saleID)
		if err != nil {
			return err
		}
		if _, err := tx.LockSale(ctx, saleID); err != nil {
			return err
		}
		if err := tx.LockProducts(ctx, []int64{productID}); err != nil {
			return err
		}
		order.Status = sales.StatusConfirmed
		return tx.UpdateSaleHeader(ctx, order)
	}))

	got, err := b.Reader().GetSale(ctx, saleID)
	require.NoError(t, err)
	require.Equal(t, sales.StatusConfirmed, got.Status)
	require.Len(t, got.Lines, 1)
	require.Equal(t, saleID, got.Lines[0].OrderID)

	confirmed, err := b.Reader().ListSales(ctx, sales.ListFilter{Status: sales.StatusConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)

	_, err = b.Reader().GetSale(ctx, saleID+1)
	require.ErrorIs(t, err, sales.ErrOrderNotFound)
}
