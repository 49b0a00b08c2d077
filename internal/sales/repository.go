package sales

import (
	"context"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
)

// OrderReader reads sales orders.
type OrderReader interface {
	GetSale(ctx context.Context, id int64) (Order, error)
	ListSales(ctx context.Context, filter ListFilter) ([]Order, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	OrderReader
	catalog.Lookup
	ledger.Store
	InsertSale(ctx context.Context, order Order) (Order, error)
	LockSale(ctx context.Context, id int64) (Order, error)
	UpdateSaleHeader(ctx context.Context, order Order) error
	ReplaceSaleLines(ctx context.Context, orderID int64, lines []Line) ([]Line, error)
	// LockProducts serializes concurrent confirmations touching the same products.
	LockProducts(ctx context.Context, ids []int64) error
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	OrderReader
	catalog.Lookup
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
