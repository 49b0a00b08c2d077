// Package reorder suggests minimum and maximum stock levels from the
// consumption recorded in the ledger.
package reorder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// Config holds the advisor parameters.
type Config struct {
	WindowDays    int
	LeadDays      int
	SafetyDays    int
	CoverageWeeks int
}

// DefaultConfig is eight weeks of history, one week lead time plus one week
// of safety stock and eight weeks of coverage.
func DefaultConfig() Config {
	return Config{WindowDays: 56, LeadDays: 7, SafetyDays: 7, CoverageWeeks: 8}
}

// Source is the read access the advisor needs.
type Source interface {
	ledger.Store
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
	ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error)
}

// BalanceReader yields derived balances.
type BalanceReader interface {
	Balance(ctx context.Context, productID int64, colorID *int64) (decimal.Decimal, error)
}

// Suggestion is the advised stock range of a product.
type Suggestion struct {
	ProductID           int64            `json:"product_id"`
	ProductCode         string           `json:"product_code"`
	MinSuggested        decimal.Decimal  `json:"min_suggested"`
	MaxSuggested        *decimal.Decimal `json:"max_suggested,omitempty"`
	AvgDailyConsumption decimal.Decimal  `json:"avg_daily_consumption"`
	WindowDays          int              `json:"window_days"`
	Message             string           `json:"message,omitempty"`
}

// BelowMinimum is a product whose balance is under its reorder minimum.
type BelowMinimum struct {
	ProductID   int64           `json:"product_id"`
	ProductCode string          `json:"product_code"`
	Description string          `json:"description"`
	ReorderMin  decimal.Decimal `json:"reorder_min"`
	Balance     decimal.Decimal `json:"balance"`
	Deficit     decimal.Decimal `json:"deficit"`
	Suggestion  Suggestion      `json:"suggestion"`
}

// Advisor computes reorder suggestions. It never writes.
type Advisor struct {
	src      Source
	balances BalanceReader
	clock    shared.Clock
	cfg      Config
	logger   *slog.Logger
}

// NewAdvisor builds Advisor. Zero config fields take the defaults.
func NewAdvisor(src Source, balances BalanceReader, clock shared.Clock, cfg Config, logger *slog.Logger) *Advisor {
	def := DefaultConfig()
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = def.WindowDays
	}
	if cfg.LeadDays <= 0 {
		cfg.LeadDays = def.LeadDays
	}
	if cfg.SafetyDays <= 0 {
		cfg.SafetyDays = def.SafetyDays
	}
	if cfg.CoverageWeeks <= 0 {
		cfg.CoverageWeeks = def.CoverageWeeks
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{src: src, balances: balances, clock: clock, cfg: cfg, logger: logger}
}

// Suggest derives min/max levels from the consumption in the trailing window.
func (a *Advisor) Suggest(ctx context.Context, productID int64) (Suggestion, error) {
	p, err := a.src.GetProduct(ctx, productID)
	if err != nil {
		return Suggestion{}, err
	}
	return a.suggest(ctx, p)
}

func (a *Advisor) suggest(ctx context.Context, p catalog.Product) (Suggestion, error) {
	consumption, err := a.consumption(ctx, p.ID)
	if err != nil {
		return Suggestion{}, err
	}
	window := decimal.NewFromInt(int64(a.cfg.WindowDays))
	s := Suggestion{
		ProductID:           p.ID,
		ProductCode:         p.Code,
		MinSuggested:        decimal.Zero,
		AvgDailyConsumption: consumption.DivRound(window, 6),
		WindowDays:          a.cfg.WindowDays,
	}
	if !consumption.IsPositive() {
		s.AvgDailyConsumption = decimal.Zero
		s.Message = fmt.Sprintf("no consumption in the last %d days; set the reorder levels manually", a.cfg.WindowDays)
		return s, nil
	}

	cover := decimal.NewFromInt(int64(a.cfg.LeadDays + a.cfg.SafetyDays))
	minQty := consumption.Mul(cover).Div(window).Ceil()
	weeks := decimal.NewFromInt(int64(7 * a.cfg.CoverageWeeks))
	maxQty := consumption.Mul(weeks).Div(window).Ceil()
	if maxQty.LessThan(minQty) {
		maxQty = minQty
	}
	if p.ReorderMax != nil {
		capped := false
		if minQty.GreaterThan(*p.ReorderMax) {
			minQty, capped = *p.ReorderMax, true
		}
		if maxQty.GreaterThan(*p.ReorderMax) {
			maxQty, capped = *p.ReorderMax, true
		}
		if capped {
			s.Message = fmt.Sprintf("capped at reorder maximum %s", p.ReorderMax.String())
		}
	}
	s.MinSuggested = minQty
	s.MaxSuggested = &maxQty
	return s, nil
}

// consumption is Σ|saida| in the window net of sale cancellations and of
// compensations reversing either of them, floored at zero.
func (a *Advisor) consumption(ctx context.Context, productID int64) (decimal.Decimal, error) {
	now := a.clock.Now()
	from := shared.Today(a.clock).AddDate(0, 0, -a.cfg.WindowDays)
	movements, err := a.src.ScanMovements(ctx, ledger.Filter{
		ProductID: productID,
		Kinds:     []ledger.Kind{ledger.KindSaida, ledger.KindEntrada, ledger.KindAjuste},
		From:      from,
		To:        now,
	})
	if err != nil {
		return decimal.Zero, err
	}
	cancellations := make(map[int64]struct{})
	for _, m := range movements {
		if m.Kind == ledger.KindEntrada && m.OriginKind == ledger.OriginSaleCancellation {
			cancellations[m.ID] = struct{}{}
		}
	}
	total := decimal.Zero
	for _, m := range movements {
		switch {
		case m.Kind == ledger.KindSaida:
			total = total.Add(m.Quantity.Abs())
		case m.Kind == ledger.KindEntrada && m.OriginKind == ledger.OriginSaleCancellation:
			total = total.Sub(m.Quantity)
		case m.Kind == ledger.KindAjuste && m.OriginKind == ledger.OriginCompensation:
			if m.Quantity.IsPositive() {
				// reverses a saida
				total = total.Sub(m.Quantity)
			} else if _, ok := cancellations[m.OriginID]; ok {
				total = total.Add(m.Quantity.Abs())
			}
		}
	}
	if total.IsNegative() {
		return decimal.Zero, nil
	}
	return total, nil
}

// BelowMinimumList lists products with a reorder minimum whose balance is
// below it, ordered by code.
func (a *Advisor) BelowMinimumList(ctx context.Context) ([]BelowMinimum, error) {
	products, err := a.src.ListProducts(ctx, catalog.ProductFilter{WithReorderMin: true})
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Code < products[j].Code })
	var out []BelowMinimum
	for _, p := range products {
		if !p.ReorderMin.IsPositive() {
			continue
		}
		balance, err := a.balances.Balance(ctx, p.ID, nil)
		if err != nil {
			return nil, err
		}
		if !balance.LessThan(p.ReorderMin) {
			continue
		}
		s, err := a.suggest(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, BelowMinimum{
			ProductID:   p.ID,
			ProductCode: p.Code,
			Description: p.Description,
			ReorderMin:  p.ReorderMin,
			Balance:     balance,
			Deficit:     p.ReorderMin.Sub(balance),
			Suggestion:  s,
		})
	}
	a.logger.DebugContext(ctx, "below minimum scan", slog.Int("checked", len(products)), slog.Int("below", len(out)))
	return out, nil
}
