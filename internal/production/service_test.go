package production_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/production"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
	"github.com/odyssey-erp/odyssey-stock/internal/storage"
	"github.com/odyssey-erp/odyssey-stock/internal/storage/memory"
)

type fixture struct {
	catalog *catalog.Service
	ledger  *ledger.Service
	graph   *bom.Graph
	svc     *production.Service

	mesa, tampo, pe, kit, banco int64
	preto, branco               int64
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(t *testing.T, checker production.ColorChecker) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := shared.FixedClock{At: time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)}
	store := storage.New(memory.New(clock), storage.Options{Logger: logger})

	f := &fixture{
		catalog: catalog.NewService(store.Catalog(), clock, logger),
		ledger:  ledger.NewService(store.Ledger(), ledger.ServiceConfig{Clock: clock, Logger: logger}),
	}
	f.graph = bom.NewGraph(store.BOM(), f.ledger.Calculator(), logger)
	f.svc = production.NewService(store.Production(), f.graph, production.ServiceConfig{Colors: checker, Clock: clock, Logger: logger})

	product := func(code string, kind catalog.ProductKind, fab catalog.FabricationKind, colored bool) int64 {
		p, err := f.catalog.CreateProduct(ctx, catalog.ProductInput{Code: code, Kind: kind, FabricationKind: fab, TrackedByColor: colored})
		require.NoError(t, err)
		return p.ID
	}
	f.mesa = product("MESA", catalog.ProductKindFabricated, catalog.FabricationFabricated, false)
	f.tampo = product("TAMPO", catalog.ProductKindRawMaterial, catalog.FabricationNone, true)
	f.pe = product("PE", catalog.ProductKindRawMaterial, catalog.FabricationNone, false)
	f.kit = product("KIT-MESA", catalog.ProductKindResale, catalog.FabricationKit, false)
	f.banco = product("BANCO", catalog.ProductKindFabricated, catalog.FabricationFabricated, false)

	preto, err := f.catalog.CreateColor(ctx, "Preto")
	require.NoError(t, err)
	branco, err := f.catalog.CreateColor(ctx, "Branco")
	require.NoError(t, err)
	f.preto, f.branco = preto.ID, branco.ID

	for _, e := range []struct {
		out, in int64
		qty     string
	}{
		{f.mesa, f.tampo, "1"},
		{f.mesa, f.pe, "4"},
		{f.kit, f.pe, "2"},
	} {
		_, err := f.graph.UpsertEdge(ctx, e.out, e.in, dec(e.qty))
		require.NoError(t, err)
	}

	f.adjust(t, f.tampo, &f.preto, "1")
	f.adjust(t, f.tampo, &f.branco, "5")
	f.adjust(t, f.pe, nil, "20")
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

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, production.CreateInput{})
	require.ErrorIs(t, err, production.ErrNoLines)

	_, err = f.svc.CreateOrder(ctx, production.CreateInput{OutputProductID: f.mesa, Quantity: dec("0")})
	require.ErrorIs(t, err, production.ErrInvalidQuantity)

	_, err = f.svc.CreateOrder(ctx, production.CreateInput{Lines: []production.LineInput{
		{ProductID: f.kit, Role: production.RoleKit, Quantity: dec("1")},
	}})
	require.ErrorIs(t, err, production.ErrNoFabricatedLine)

	_, err = f.svc.CreateOrder(ctx, production.CreateInput{Lines: []production.LineInput{
		{ProductID: f.mesa, Role: production.RoleFabricated, Quantity: dec("1")},
		{ProductID: f.mesa, Role: production.RoleKit, Quantity: dec("1")},
	}})
	require.ErrorIs(t, err, production.ErrRoleMismatch)

	_, err = f.svc.CreateOrder(ctx, production.CreateInput{Lines: []production.LineInput{
		{ProductID: f.mesa, Role: production.RoleFabricated, Quantity: dec("1")},
		{ProductID: f.kit, Role: production.RoleFabricated, Quantity: dec("1")},
	}})
	require.ErrorIs(t, err, production.ErrRoleMismatch)

	missing := int64(99)
	_, err = f.svc.CreateOrder(ctx, production.CreateInput{OutputProductID: f.mesa, Quantity: dec("1"), ColorID: &missing})
	require.ErrorIs(t, err, catalog.ErrColorNotFound)

	order, err := f.svc.CreateOrder(ctx, production.CreateInput{OutputProductID: f.mesa, Quantity: dec("2"), ColorID: &f.branco, Note: "  lote 7 "})
	require.NoError(t, err)
	require.Equal(t, production.StatusPending, order.Status)
	require.Equal(t, "lote 7", order.Note)
	require.Len(t, order.Lines, 1)
	require.Equal(t, production.RoleFabricated, order.Lines[0].Role)
}

func TestExecuteWritesConsumptionAndOutput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, production.CreateInput{Lines: []production.LineInput{
		{ProductID: f.mesa, Role: production.RoleFabricated, Quantity: dec("2")},
		{ProductID: f.kit, Role: production.RoleKit, Quantity: dec("3")},
	}, ColorID: &f.branco})
	require.NoError(t, err)

	done, err := f.svc.Execute(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, production.StatusDone, done.Status)
	require.NotNil(t, done.DoneAt)

	require.True(t, f.balance(t, f.tampo, &f.branco).Equal(dec("3")))
	require.True(t, f.balance(t, f.tampo, &f.preto).Equal(dec("1")))
	// 20 - 2*4 - 3*2
	require.True(t, f.balance(t, f.pe, nil).Equal(dec("6")))
	require.True(t, f.balance(t, f.mesa, &f.branco).Equal(dec("2")))
	require.True(t, f.balance(t, f.kit, nil).IsZero())

	movements, err := f.ledger.Scan(ctx, ledger.Filter{OriginKind: ledger.OriginProductionOrder, OriginID: order.ID})
	require.NoError(t, err)
	require.Len(t, movements, 4)

	_, err = f.svc.Execute(ctx, order.ID)
	require.ErrorIs(t, err, production.ErrAlreadyCompleted)

	movements, err = f.ledger.Scan(ctx, ledger.Filter{OriginKind: ledger.OriginProductionOrder, OriginID: order.ID})
	require.NoError(t, err)
	require.Len(t, movements, 4)
	require.True(t, f.balance(t, f.pe, nil).Equal(dec("6")))

	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, production.StatusDone, stored.Status)
}

func TestExecuteColorShortageWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, production.CreateInput{OutputProductID: f.mesa, Quantity: dec("2"), ColorID: &f.preto})
	require.NoError(t, err)

	report, err := f.svc.CheckColors(ctx, order.ID)
	require.NoError(t, err)
	require.False(t, report.Available)
	require.Len(t, report.Shortages, 1)
	require.Equal(t, "TAMPO", report.Shortages[0].ProductCode)
	require.True(t, report.Shortages[0].Required.Equal(dec("2")))
	require.True(t, report.Shortages[0].Available.Equal(dec("1")))
	require.Len(t, report.Alternatives, 1)
	require.Equal(t, "Branco", report.Alternatives[0].Name)

	_, err = f.svc.Execute(ctx, order.ID)
	require.ErrorIs(t, err, production.ErrInsufficientColorStock)
	var domainErr *shared.Error
	require.True(t, errors.As(err, &domainErr))
	require.Equal(t, []string{"TAMPO"}, domainErr.Products)
	require.Contains(t, domainErr.Message, "Preto")
	require.Contains(t, domainErr.Message, "Branco")

	require.True(t, f.balance(t, f.pe, nil).Equal(dec("20")))
	require.True(t, f.balance(t, f.mesa, nil).IsZero())
	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, production.StatusPending, stored.Status)
}

func TestExecuteWithoutRecipe(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, production.CreateInput{OutputProductID: f.banco, Quantity: dec("1")})
	require.NoError(t, err)
	_, err = f.svc.Execute(ctx, order.ID)
	require.ErrorIs(t, err, production.ErrNoBOMDefined)

	_, err = f.svc.Execute(ctx, 404)
	require.ErrorIs(t, err, production.ErrOrderNotFound)
}

func TestPermissiveCheckerAllowsNegativeColorStock(t *testing.T) {
	f := newFixture(t, production.PermissiveColorChecker{})
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, production.CreateInput{OutputProductID: f.mesa, Quantity: dec("3"), ColorID: &f.preto})
	require.NoError(t, err)
	_, err = f.svc.Execute(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, f.balance(t, f.tampo, &f.preto).Equal(dec("-2")))
}

func TestBuildableQuantity(t *testing.T) {
	f := newFixture(t, nil)
	got, err := f.svc.BuildableQuantity(context.Background(), f.mesa)
	require.NoError(t, err)
	// TAMPO has 6 over every color, PE allows 5.
	require.True(t, got.Quantity.Equal(dec("5")), got.Quantity.String())
	require.NotNil(t, got.BottleneckInputID)
	require.Equal(t, f.pe, *got.BottleneckInputID)
}
