package production

import (
	"context"
	"time"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
)

// OrderReader reads production orders.
type OrderReader interface {
	GetProductionOrder(ctx context.Context, id int64) (Order, error)
	ListProductionOrders(ctx context.Context, filter ListFilter) ([]Order, error)
}

// CheckSource is what the color check reads.
type CheckSource interface {
	bom.Source
	ledger.Store
	ListColors(ctx context.Context) ([]catalog.Color, error)
}

// TxRepository exposes transactional operations used by the engine.
type TxRepository interface {
	OrderReader
	catalog.Lookup
	bom.EdgeReader
	ledger.Store
	InsertProductionOrder(ctx context.Context, order Order) (Order, error)
	LockProductionOrder(ctx context.Context, id int64) (Order, error)
	MarkProductionDone(ctx context.Context, id int64, doneAt time.Time) error
}

// RepositoryPort abstracts the storage backend for the engine.
type RepositoryPort interface {
	OrderReader
	catalog.Lookup
	bom.EdgeReader
	ledger.Store
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// BuildableQuerier answers buildable-quantity queries.
type BuildableQuerier interface {
	BuildableQuantity(ctx context.Context, fabricatedID int64) (bom.Buildable, error)
}
