package catalog

import "context"

// Lookup is the read contract other packages depend on.
type Lookup interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProductByCode(ctx context.Context, code string) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetColor(ctx context.Context, id int64) (Color, error)
	ListColors(ctx context.Context) ([]Color, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
}

// TxRepository exposes catalog writes.
type TxRepository interface {
	Lookup
	CreateProduct(ctx context.Context, p Product) (int64, error)
	UpdateProduct(ctx context.Context, p Product) error
	CreateColor(ctx context.Context, c Color) (int64, error)
	CreateCustomer(ctx context.Context, c Customer) (int64, error)
	FindStoreCustomer(ctx context.Context) (Customer, bool, error)
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Lookup
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}
