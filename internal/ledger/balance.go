package ledger

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
)

// BalanceCache stores derived balances under versioned keys. Invalidate bumps
// the version so fills started before a write can never be read back.
type BalanceCache interface {
	Version(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string, version int64) (decimal.Decimal, bool, error)
	Set(ctx context.Context, key string, version int64, qty decimal.Decimal) error
	Invalidate(ctx context.Context, keys ...string) error
}

// ColorLister resolves color names.
type ColorLister interface {
	ListColors(ctx context.Context) ([]catalog.Color, error)
}

// Calculator derives balances from the ledger.
type Calculator struct {
	store  Store
	colors ColorLister
	cache  BalanceCache
	logger *slog.Logger
	group  singleflight.Group
}

// NewCalculator builds a calculator without cache, safe to use inside a unit of work.
func NewCalculator(store Store, colors ColorLister) *Calculator {
	return &Calculator{store: store, colors: colors}
}

// NewCachedCalculator builds a read-through cached calculator. It must only
// serve reads outside write operations.
func NewCachedCalculator(store Store, colors ColorLister, cache BalanceCache, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{store: store, colors: colors, cache: cache, logger: logger}
}

// Balance sums the product's movements; a nil color means every color.
func (c *Calculator) Balance(ctx context.Context, productID int64, colorID *int64) (decimal.Decimal, error) {
	filter := Filter{ProductID: productID, ColorID: colorID}
	if c.cache == nil {
		return Sum(ctx, c.store, filter)
	}
	key := BalanceKey(productID, colorID)
	version, err := c.cache.Version(ctx, key)
	if err != nil {
		c.logger.Warn("balance cache unavailable", slog.String("key", key), slog.Any("error", err))
		return Sum(ctx, c.store, filter)
	}
	if qty, ok, err := c.cache.Get(ctx, key, version); err == nil && ok {
		return qty, nil
	}
	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		qty, err := Sum(ctx, c.store, filter)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, version, qty); err != nil {
			c.logger.Warn("balance cache fill failed", slog.String("key", key), slog.Any("error", err))
		}
		return qty, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return res.(decimal.Decimal), nil
}

// BalancesByColor groups the product's movements by color, drops groups that
// net to zero and orders them by color name. Uncolored stock sorts last.
func (c *Calculator) BalancesByColor(ctx context.Context, productID int64) ([]ColorBalance, error) {
	movements, err := c.store.ScanMovements(ctx, Filter{ProductID: productID})
	if err != nil {
		return nil, err
	}
	totals := make(map[int64]decimal.Decimal)
	uncolored := decimal.Zero
	for _, m := range movements {
		if m.ColorID == nil {
			uncolored = uncolored.Add(m.Quantity)
			continue
		}
		totals[*m.ColorID] = totals[*m.ColorID].Add(m.Quantity)
	}

	names := make(map[int64]string)
	if len(totals) > 0 && c.colors != nil {
		colors, err := c.colors.ListColors(ctx)
		if err != nil {
			return nil, err
		}
		for _, col := range colors {
			names[col.ID] = col.Name
		}
	}

	result := make([]ColorBalance, 0, len(totals)+1)
	for id, qty := range totals {
		if IsZero(qty) {
			continue
		}
		colorID := id
		result = append(result, ColorBalance{ColorID: &colorID, ColorName: names[id], Quantity: qty})
	}
	coll := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	sort.Slice(result, func(i, j int) bool {
		if cmp := coll.CompareString(result[i].ColorName, result[j].ColorName); cmp != 0 {
			return cmp < 0
		}
		return *result[i].ColorID < *result[j].ColorID
	})
	if !IsZero(uncolored) {
		result = append(result, ColorBalance{Quantity: uncolored})
	}
	return result, nil
}
