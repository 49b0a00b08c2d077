package sales_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/sales"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
	"github.com/odyssey-erp/odyssey-stock/internal/storage"
	"github.com/odyssey-erp/odyssey-stock/internal/storage/memory"
)

type fixture struct {
	svc    *sales.Service
	ledger *ledger.Service

	cadeira, sofa, espuma, almofada int64
	verde                           int64
	customer                        int64
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func days(n int) *int {
	return &n
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := shared.FixedClock{At: time.Date(2024, 9, 16, 10, 30, 0, 0, time.UTC)}
	store := storage.New(memory.New(clock), storage.Options{Logger: logger})
	cat := catalog.NewService(store.Catalog(), clock, logger)

	f := &fixture{
		svc:    sales.NewService(store.Sales(), clock, shared.LogAuditor{}, logger),
		ledger: ledger.NewService(store.Ledger(), ledger.ServiceConfig{Clock: clock, Logger: logger}),
	}
	product := func(in catalog.ProductInput) int64 {
		p, err := cat.CreateProduct(ctx, in)
		require.NoError(t, err)
		return p.ID
	}
	f.cadeira = product(catalog.ProductInput{Code: "CADEIRA", Description: "Cadeira de jantar", Kind: catalog.ProductKindResale})
	f.sofa = product(catalog.ProductInput{Code: "SOFA", Kind: catalog.ProductKindFabricated, TrackedByColor: true})
	f.espuma = product(catalog.ProductInput{Code: "ESPUMA", Kind: catalog.ProductKindRawMaterial})
	f.almofada = product(catalog.ProductInput{Code: "ALMOFADA", Kind: catalog.ProductKindResale, TrackedByColor: true})

	verde, err := cat.CreateColor(ctx, "Verde")
	require.NoError(t, err)
	f.verde = verde.ID
	customer, err := cat.CreateCustomer(ctx, "Maria", catalog.CustomerKindRegular)
	require.NoError(t, err)
	f.customer = customer.ID

	f.adjust(t, f.cadeira, nil, "4")
	f.adjust(t, f.almofada, &f.verde, "2")
	return f
}

func (f *fixture) adjust(t *testing.T, productID int64, colorID *int64, qty string) {
	t.Helper()
	_, err := f.ledger.Adjust(context.Background(), ledger.AdjustInput{ProductID: productID, ColorID: colorID, Quantity: dec(qty)})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, productID int64, colorID *int64) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), productID, colorID)
	require.NoError(t, err)
	return b
}

func productsOf(t *testing.T, err error) []string {
	t.Helper()
	var domainErr *shared.Error
	require.True(t, errors.As(err, &domainErr), err)
	return domainErr.Products
}

func TestCreateRejectsRawMaterials(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), sales.CreateInput{Lines: []sales.LineInput{
		{ProductID: f.espuma, Quantity: dec("1")},
		{ProductID: f.cadeira, Quantity: dec("1")},
		{ProductID: f.espuma, Quantity: dec("2")},
	}})
	require.ErrorIs(t, err, sales.ErrRawMaterialNotSellable)
	require.Equal(t, []string{"ESPUMA"}, productsOf(t, err))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, sales.CreateInput{})
	require.ErrorIs(t, err, sales.ErrNoLines)

	_, err = f.svc.Create(ctx, sales.CreateInput{Freight: dec("-1"), Lines: []sales.LineInput{{ProductID: f.cadeira, Quantity: dec("1")}}})
	require.ErrorIs(t, err, sales.ErrInvalidFreight)

	_, err = f.svc.Create(ctx, sales.CreateInput{Lines: []sales.LineInput{{ProductID: f.almofada, Quantity: dec("1")}}})
	require.ErrorIs(t, err, sales.ErrColorRequired)

	_, err = f.svc.Create(ctx, sales.CreateInput{PromisedLeadDays: days(0), Lines: []sales.LineInput{{ProductID: f.cadeira, Quantity: dec("1")}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	missing := int64(77)
	_, err = f.svc.Create(ctx, sales.CreateInput{CustomerID: &missing, Lines: []sales.LineInput{{ProductID: f.cadeira, Quantity: dec("1")}}})
	require.ErrorIs(t, err, catalog.ErrCustomerNotFound)
}

func TestConfirmWritesSaidas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, sales.CreateInput{
		CustomerID: &f.customer,
		Freight:    dec("30"),
		Lines: []sales.LineInput{
			{ProductID: f.cadeira, Quantity: dec("3"), UnitPrice: dec("150")},
			{ProductID: f.almofada, ColorID: &f.verde, Quantity: dec("2"), UnitPrice: dec("25")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, sales.StatusDraft, order.Status)
	require.True(t, order.Total.Equal(dec("530")), order.Total.String())

	confirmed, err := f.svc.Confirm(ctx, order.ID, nil)
	require.NoError(t, err)
	require.Equal(t, sales.StatusConfirmed, confirmed.Status)
	require.True(t, f.balance(t, f.cadeira, nil).Equal(dec("1")))
	require.True(t, f.balance(t, f.almofada, &f.verde).IsZero())

	_, err = f.svc.Confirm(ctx, order.ID, nil)
	require.ErrorIs(t, err, sales.ErrInvalidState)

	_, err = f.svc.Update(ctx, order.ID, sales.UpdateInput{})
	require.ErrorIs(t, err, sales.ErrNotEditable)
}

func TestConfirmAggregatesDemandPerProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, sales.CreateInput{Lines: []sales.LineInput{
		{ProductID: f.cadeira, Quantity: dec("3")},
		{ProductID: f.cadeira, Quantity: dec("2")},
	}})
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, order.ID, nil)
	require.ErrorIs(t, err, sales.ErrInsufficientStockNonFabricable)
	require.Equal(t, []string{"CADEIRA"}, productsOf(t, err))
	require.True(t, f.balance(t, f.cadeira, nil).Equal(dec("4")))

	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, sales.StatusDraft, stored.Status)
}

func TestConfirmFabricatedShortageNeedsLeadDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, sales.CreateInput{Lines: []sales.LineInput{
		{ProductID: f.sofa, ColorID: &f.verde, Quantity: dec("1"), UnitPrice: dec("2000")},
	}})
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, order.ID, nil)
	require.ErrorIs(t, err, sales.ErrLeadTimeRequired)
	require.Equal(t, []string{"SOFA"}, productsOf(t, err))

	confirmed, err := f.svc.Confirm(ctx, order.ID, days(20))
	require.NoError(t, err)
	require.NotNil(t, confirmed.PromisedLeadDays)
	require.Equal(t, 20, *confirmed.PromisedLeadDays)
	require.True(t, f.balance(t, f.sofa, &f.verde).Equal(dec("-1")))
}

func TestCancelReturnsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, sales.CreateInput{Lines: []sales.LineInput{{ProductID: f.cadeira, Quantity: dec("2")}}})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, order.ID)
	require.ErrorIs(t, err, sales.ErrInvalidStateForCancel)

	_, err = f.svc.Confirm(ctx, order.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Deliver(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, f.balance(t, f.cadeira, nil).Equal(dec("2")))

	cancelled, err := f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, sales.StatusCancelled, cancelled.Status)
	require.True(t, f.balance(t, f.cadeira, nil).Equal(dec("4")))

	entradas, err := f.ledger.Scan(ctx, ledger.Filter{OriginKind: ledger.OriginSaleCancellation, OriginID: order.ID})
	require.NoError(t, err)
	require.Len(t, entradas, 1)

	_, err = f.svc.Cancel(ctx, order.ID)
	require.ErrorIs(t, err, sales.ErrInvalidStateForCancel)
	_, err = f.svc.Deliver(ctx, order.ID)
	require.ErrorIs(t, err, sales.ErrInvalidState)
}

func TestDeliveryFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pickup, err := f.svc.Create(ctx, sales.CreateInput{Lines: []sales.LineInput{{ProductID: f.cadeira, Quantity: dec("1")}}})
	require.NoError(t, err)
	delivery, err := f.svc.Create(ctx, sales.CreateInput{
		CustomerID:       &f.customer,
		DeliveryKind:     sales.DeliveryDelivery,
		PromisedLeadDays: days(5),
		Freight:          dec("15"),
		Lines:            []sales.LineInput{{ProductID: f.cadeira, Quantity: dec("2"), UnitPrice: dec("150")}},
	})
	require.NoError(t, err)
	for _, id := range []int64{pickup.ID, delivery.ID} {
		_, err := f.svc.Confirm(ctx, id, nil)
		require.NoError(t, err)
	}

	stops, err := f.svc.DeliveryFeed(ctx)
	require.NoError(t, err)
	require.Len(t, stops, 1)
	stop := stops[0]
	require.Equal(t, delivery.ID, stop.OrderID)
	require.Equal(t, "Maria", stop.CustomerName)
	require.NotNil(t, stop.PromisedDate)
	require.Equal(t, delivery.OrderDate.AddDate(0, 0, 5), *stop.PromisedDate)
	require.Len(t, stop.Lines, 1)
	require.Equal(t, "CADEIRA", stop.Lines[0].ProductCode)
	require.True(t, stop.Lines[0].LineTotal.Equal(dec("300")))
	require.True(t, stop.Total.Equal(dec("315")))
}
