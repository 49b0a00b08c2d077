package reorder

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

type fakeSource struct {
	products  map[int64]catalog.Product
	movements []ledger.Movement
}

func (f *fakeSource) AppendMovement(ctx context.Context, m ledger.Movement) (ledger.Movement, error) {
	m.ID = int64(len(f.movements) + 1)
	f.movements = append(f.movements, m)
	return m, nil
}

func (f *fakeSource) ScanMovements(ctx context.Context, filter ledger.Filter) ([]ledger.Movement, error) {
	var out []ledger.Movement
	for _, m := range f.movements {
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeSource) ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range f.products {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

var now = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newSource() *fakeSource {
	capped := dec("10")
	return &fakeSource{products: map[int64]catalog.Product{
		1: {ID: 1, Code: "CADEIRA", Kind: catalog.ProductKindResale, ReorderMin: dec("20")},
		2: {ID: 2, Code: "BANCO", Kind: catalog.ProductKindResale, ReorderMin: dec("5"), ReorderMax: &capped},
		3: {ID: 3, Code: "ARMARIO", Kind: catalog.ProductKindResale},
	}}
}

func (f *fakeSource) add(productID int64, kind ledger.Kind, qty string, daysAgo int, origin string) {
	f.movements = append(f.movements, ledger.Movement{
		ID:         int64(len(f.movements) + 1),
		Date:       now.AddDate(0, 0, -daysAgo),
		Kind:       kind,
		ProductID:  productID,
		Quantity:   dec(qty),
		OriginKind: origin,
	})
}

func newAdvisor(src *fakeSource) *Advisor {
	return NewAdvisor(src, ledger.NewCalculator(src, nil), shared.FixedClock{At: now}, Config{}, nil)
}

func TestSuggestFromConsumption(t *testing.T) {
	src := newSource()
	src.add(1, ledger.KindEntrada, "100", 80, ledger.OriginPurchase)
	src.add(1, ledger.KindSaida, "-30", 70, ledger.OriginSale)
	src.add(1, ledger.KindSaida, "-40", 20, ledger.OriginSale)
	src.add(1, ledger.KindSaida, "-20", 3, ledger.OriginProductionOrder)
	src.add(1, ledger.KindEntrada, "4", 2, ledger.OriginSaleCancellation)

	s, err := newAdvisor(src).Suggest(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 56, s.WindowDays)
	require.Empty(t, s.Message)
	// 56 consumed over 56 days: 1/day, 14 for lead+safety, 56 for eight weeks.
	require.True(t, s.AvgDailyConsumption.Equal(dec("1")), s.AvgDailyConsumption.String())
	require.True(t, s.MinSuggested.Equal(dec("14")), s.MinSuggested.String())
	require.NotNil(t, s.MaxSuggested)
	require.True(t, s.MaxSuggested.Equal(dec("56")), s.MaxSuggested.String())
}

func TestSuggestRoundsUpAndCaps(t *testing.T) {
	src := newSource()
	src.add(2, ledger.KindSaida, "-9", 10, ledger.OriginSale)

	s, err := newAdvisor(src).Suggest(context.Background(), 2)
	require.NoError(t, err)
	// ceil(9*14/56)=3, ceil(9*56/56)=9, both under the cap of 10.
	require.True(t, s.MinSuggested.Equal(dec("3")))
	require.True(t, s.MaxSuggested.Equal(dec("9")))

	src.add(2, ledger.KindSaida, "-40", 5, ledger.OriginSale)
	s, err = newAdvisor(src).Suggest(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, s.MinSuggested.Equal(dec("10")), s.MinSuggested.String())
	require.True(t, s.MaxSuggested.Equal(dec("10")))
	require.NotEmpty(t, s.Message)
}

func TestSuggestWithoutConsumption(t *testing.T) {
	src := newSource()
	src.add(3, ledger.KindEntrada, "5", 1, ledger.OriginPurchase)
	src.add(3, ledger.KindSaida, "-5", 2, ledger.OriginSale)
	src.add(3, ledger.KindEntrada, "5", 1, ledger.OriginSaleCancellation)

	s, err := newAdvisor(src).Suggest(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, s.MinSuggested.IsZero())
	require.Nil(t, s.MaxSuggested)
	require.NotEmpty(t, s.Message)
}

func TestSuggestNetsSagaCompensations(t *testing.T) {
	src := newSource()
	src.add(3, ledger.KindSaida, "-56", 4, ledger.OriginSale)
	sale := src.movements[len(src.movements)-1]
	src.movements = append(src.movements, sale.Reversal(sale.Date, "saga compensation"))

	s, err := newAdvisor(src).Suggest(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, s.MinSuggested.IsZero(), s.MinSuggested.String())
	require.True(t, s.AvgDailyConsumption.IsZero())
	require.Nil(t, s.MaxSuggested)
	require.NotEmpty(t, s.Message)

	// A compensated cancellation leaves the original sale counted.
	src.add(3, ledger.KindSaida, "-56", 3, ledger.OriginSale)
	src.add(3, ledger.KindEntrada, "56", 2, ledger.OriginSaleCancellation)
	cancellation := src.movements[len(src.movements)-1]
	src.movements = append(src.movements, cancellation.Reversal(cancellation.Date, "saga compensation"))

	s, err = newAdvisor(src).Suggest(context.Background(), 3)
	require.NoError(t, err)
	require.Empty(t, s.Message)
	require.True(t, s.AvgDailyConsumption.Equal(dec("1")), s.AvgDailyConsumption.String())
	require.True(t, s.MinSuggested.Equal(dec("14")), s.MinSuggested.String())
}

func TestSuggestUnknownProduct(t *testing.T) {
	_, err := newAdvisor(newSource()).Suggest(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBelowMinimumListOrderedByCode(t *testing.T) {
	src := newSource()
	src.add(1, ledger.KindEntrada, "25", 30, ledger.OriginPurchase)
	src.add(1, ledger.KindSaida, "-8", 10, ledger.OriginSale)
	src.add(2, ledger.KindEntrada, "1", 30, ledger.OriginPurchase)

	list, err := newAdvisor(src).BelowMinimumList(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "BANCO", list[0].ProductCode)
	require.True(t, list[0].Deficit.Equal(dec("4")))
	require.Equal(t, "CADEIRA", list[1].ProductCode)
	require.True(t, list[1].Balance.Equal(dec("17")))
	require.True(t, list[1].Deficit.Equal(dec("3")))
}
