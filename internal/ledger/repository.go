package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// Store is the append-only movement log. Implementations assign id and
// created_at and return movements ordered by (date, id).
type Store interface {
	AppendMovement(ctx context.Context, m Movement) (Movement, error)
	ScanMovements(ctx context.Context, filter Filter) ([]Movement, error)
}

// Summer is implemented by stores that can push the balance sum down.
type Summer interface {
	SumMovements(ctx context.Context, filter Filter) (decimal.Decimal, error)
}

// TxRepository exposes what ledger operations need inside one unit of work.
type TxRepository interface {
	Store
	catalog.Lookup
}

// RepositoryPort abstracts the storage backend for the ledger service.
type RepositoryPort interface {
	Store
	catalog.Lookup
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Append validates m, stamps a missing date from clock and writes it.
// It never checks business rules; callers own those.
func Append(ctx context.Context, store Store, clock shared.Clock, m Movement) (Movement, error) {
	if m.Date.IsZero() {
		m.Date = clock.Now()
	}
	if err := m.Validate(); err != nil {
		return Movement{}, err
	}
	return store.AppendMovement(ctx, m)
}

// Sum returns Σ quantity over the movements matching filter.
func Sum(ctx context.Context, store Store, filter Filter) (decimal.Decimal, error) {
	if summer, ok := store.(Summer); ok {
		return summer.SumMovements(ctx, filter)
	}
	movements, err := store.ScanMovements(ctx, filter)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.Quantity)
	}
	return total, nil
}
