package procurement_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/procurement"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
	"github.com/odyssey-erp/odyssey-stock/internal/storage"
	"github.com/odyssey-erp/odyssey-stock/internal/storage/memory"
)

type fixture struct {
	svc    *procurement.Service
	ledger *ledger.Service
	audit  *recordingAudit

	tecido, cola int64
	azul         int64
}

type recordingAudit struct {
	actions []string
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := shared.FixedClock{At: time.Date(2024, 7, 2, 11, 0, 0, 0, time.UTC)}
	store := storage.New(memory.New(clock), storage.Options{Logger: logger})
	cat := catalog.NewService(store.Catalog(), clock, logger)

	tecido, err := cat.CreateProduct(ctx, catalog.ProductInput{Code: "TECIDO", Kind: catalog.ProductKindRawMaterial, TrackedByColor: true})
	require.NoError(t, err)
	cola, err := cat.CreateProduct(ctx, catalog.ProductInput{Code: "COLA", Kind: catalog.ProductKindRawMaterial})
	require.NoError(t, err)
	azul, err := cat.CreateColor(ctx, "Azul")
	require.NoError(t, err)

	audit := &recordingAudit{}
	return &fixture{
		svc:    procurement.NewService(store.Purchases(), clock, audit, logger),
		ledger: ledger.NewService(store.Ledger(), ledger.ServiceConfig{Clock: clock, Logger: logger}),
		audit:  audit,
		tecido: tecido.ID,
		cola:   cola.ID,
		azul:   azul.ID,
	}
}

func (f *fixture) balance(t *testing.T, productID int64, colorID *int64) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), productID, colorID)
	require.NoError(t, err)
	return b
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, procurement.CreateInput{Lines: []procurement.LineInput{{ProductID: f.cola, Quantity: dec("1")}}})
	require.ErrorIs(t, err, procurement.ErrSupplierRequired)

	_, err = f.svc.Create(ctx, procurement.CreateInput{SupplierID: 1})
	require.ErrorIs(t, err, procurement.ErrNoLines)

	_, err = f.svc.Create(ctx, procurement.CreateInput{SupplierID: 1, Lines: []procurement.LineInput{{ProductID: f.cola, Quantity: dec("-1")}}})
	require.ErrorIs(t, err, procurement.ErrInvalidQuantity)

	_, err = f.svc.Create(ctx, procurement.CreateInput{SupplierID: 1, Lines: []procurement.LineInput{{ProductID: f.cola, Quantity: dec("1"), UnitPrice: dec("-2")}}})
	require.ErrorIs(t, err, procurement.ErrInvalidPrice)

	_, err = f.svc.Create(ctx, procurement.CreateInput{SupplierID: 1, Lines: []procurement.LineInput{{ProductID: f.tecido, Quantity: dec("1")}}})
	require.ErrorIs(t, err, procurement.ErrColorRequired)
}

func TestCreateComputesTotal(t *testing.T) {
	f := newFixture(t)
	order, err := f.svc.Create(context.Background(), procurement.CreateInput{
		SupplierID: 7,
		Lines: []procurement.LineInput{
			{ProductID: f.tecido, ColorID: &f.azul, Quantity: dec("10"), UnitPrice: dec("12.50")},
			{ProductID: f.cola, Quantity: dec("3"), UnitPrice: dec("4")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, procurement.StatusOpen, order.Status)
	require.Equal(t, procurement.KindOrder, order.Kind)
	require.True(t, order.Total.Equal(dec("137")), order.Total.String())
	require.True(t, f.balance(t, f.tecido, nil).IsZero())
}

func TestReceivePostsOnlyTheDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, procurement.CreateInput{
		SupplierID: 7,
		Lines: []procurement.LineInput{
			{ProductID: f.tecido, ColorID: &f.azul, Quantity: dec("10"), UnitPrice: dec("12.50")},
			{ProductID: f.cola, Quantity: dec("3"), UnitPrice: dec("4")},
		},
	})
	require.NoError(t, err)
	tecidoLine, colaLine := order.Lines[0].ID, order.Lines[1].ID

	order, err = f.svc.Receive(ctx, order.ID, []procurement.ReceiveInput{{LineID: tecidoLine, QuantityReceived: dec("4")}})
	require.NoError(t, err)
	require.Equal(t, procurement.StatusPartiallyReceived, order.Status)
	require.True(t, f.balance(t, f.tecido, &f.azul).Equal(dec("4")))

	// Re-sending a lower cumulative value posts nothing.
	order, err = f.svc.Receive(ctx, order.ID, []procurement.ReceiveInput{{LineID: tecidoLine, QuantityReceived: dec("2")}})
	require.NoError(t, err)
	require.True(t, f.balance(t, f.tecido, &f.azul).Equal(dec("4")))

	// Over-receipt is clamped to the ordered quantity.
	order, err = f.svc.Receive(ctx, order.ID, []procurement.ReceiveInput{
		{LineID: tecidoLine, QuantityReceived: dec("15")},
		{LineID: colaLine, QuantityReceived: dec("3")},
	})
	require.NoError(t, err)
	require.Equal(t, procurement.StatusReceived, order.Status)
	require.True(t, f.balance(t, f.tecido, &f.azul).Equal(dec("10")))
	require.True(t, f.balance(t, f.cola, nil).Equal(dec("3")))

	entradas, err := f.ledger.Scan(ctx, ledger.Filter{OriginKind: ledger.OriginPurchase, OriginID: order.ID})
	require.NoError(t, err)
	require.Len(t, entradas, 3)

	_, err = f.svc.Receive(ctx, order.ID, []procurement.ReceiveInput{{LineID: colaLine, QuantityReceived: dec("3")}})
	require.ErrorIs(t, err, procurement.ErrAlreadyFinalReceived)

	require.Contains(t, f.audit.actions, "purchase.receive")
}

func TestReceiveUnknownLineWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, procurement.CreateInput{
		SupplierID: 7,
		Lines:      []procurement.LineInput{{ProductID: f.cola, Quantity: dec("3")}},
	})
	require.NoError(t, err)

	_, err = f.svc.Receive(ctx, order.ID, []procurement.ReceiveInput{
		{LineID: order.Lines[0].ID, QuantityReceived: dec("3")},
		{LineID: 999, QuantityReceived: dec("1")},
	})
	require.ErrorIs(t, err, procurement.ErrLineNotFound)
	require.True(t, f.balance(t, f.cola, nil).IsZero())

	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, procurement.StatusOpen, stored.Status)
	require.True(t, stored.Lines[0].QuantityReceived.IsZero())
}

func TestDirectReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, procurement.CreateInput{
		SupplierID: 3,
		Kind:       procurement.KindDirectReceipt,
		Lines: []procurement.LineInput{
			{ProductID: f.tecido, ColorID: &f.azul, Quantity: dec("2.5"), UnitPrice: dec("10")},
			{ProductID: f.cola, Quantity: dec("1"), UnitPrice: dec("4")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, procurement.StatusReceived, order.Status)
	for _, l := range order.Lines {
		require.True(t, l.Complete())
	}
	require.True(t, f.balance(t, f.tecido, &f.azul).Equal(dec("2.5")))
	require.True(t, f.balance(t, f.cola, nil).Equal(dec("1")))

	_, err = f.svc.Receive(ctx, order.ID, []procurement.ReceiveInput{{LineID: order.Lines[0].ID, QuantityReceived: dec("1")}})
	require.ErrorIs(t, err, procurement.ErrDirectReceiptNotReceivable)

	_, err = f.svc.Update(ctx, order.ID, procurement.UpdateInput{})
	require.ErrorIs(t, err, procurement.ErrNotEditable)
}

func TestUpdateReplacesLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, procurement.CreateInput{
		SupplierID: 7,
		Lines:      []procurement.LineInput{{ProductID: f.cola, Quantity: dec("3"), UnitPrice: dec("4")}},
	})
	require.NoError(t, err)

	note := " urgente "
	updated, err := f.svc.Update(ctx, order.ID, procurement.UpdateInput{
		Note:  &note,
		Lines: []procurement.LineInput{{ProductID: f.cola, Quantity: dec("5"), UnitPrice: dec("4")}},
	})
	require.NoError(t, err)
	require.Equal(t, "urgente", updated.Note)
	require.Len(t, updated.Lines, 1)
	require.True(t, updated.Total.Equal(dec("20")))

	list, err := f.svc.List(ctx, procurement.ListFilter{SupplierID: 7})
	require.NoError(t, err)
	require.Len(t, list, 1)
}
