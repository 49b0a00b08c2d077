package procurement

import (
	"context"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
)

// OrderReader reads purchase orders.
type OrderReader interface {
	GetPurchase(ctx context.Context, id int64) (Order, error)
	ListPurchases(ctx context.Context, filter ListFilter) ([]Order, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	OrderReader
	catalog.Lookup
	ledger.Store
	// InsertPurchase stores the header and lines and returns them with ids.
	InsertPurchase(ctx context.Context, order Order) (Order, error)
	// LockPurchase loads the order and holds it until the unit of work ends.
	LockPurchase(ctx context.Context, id int64) (Order, error)
	UpdatePurchaseHeader(ctx context.Context, order Order) error
	ReplacePurchaseLines(ctx context.Context, orderID int64, lines []Line) ([]Line, error)
	SetLineReceived(ctx context.Context, line Line) error
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	OrderReader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
