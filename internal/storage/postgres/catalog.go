package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
)

const productColumns = `id, code, description, unit, kind, purchase_price, sale_price, reorder_min,
	reorder_max, primary_supplier_id, tracked_by_color, fabrication_kind, created_at, updated_at`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	var reorderMax decimal.NullDecimal
	err := row.Scan(&p.ID, &p.Code, &p.Description, &p.Unit, &p.Kind, &p.PurchasePrice, &p.SalePrice,
		&p.ReorderMin, &reorderMax, &p.PrimarySupplierID, &p.TrackedByColor, &p.FabricationKind,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return catalog.Product{}, err
	}
	if reorderMax.Valid {
		p.ReorderMax = &reorderMax.Decimal
	}
	return p, nil
}

func (r *repo) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	return p, notFound(err, catalog.ErrProductNotFound)
}

func (r *repo) GetProductByCode(ctx context.Context, code string) (catalog.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE code = $1`, code))
	return p, notFound(err, catalog.ErrProductNotFound)
}

func (r *repo) ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1::text = '' OR kind = $1::text)
		  AND (NOT $2::boolean OR reorder_min > 0)
		  AND ($3::text = '' OR code ILIKE '%' || $3::text || '%' OR description ILIKE '%' || $3::text || '%')
		ORDER BY code
	`
	rows, err := r.q.Query(ctx, query, string(filter.Kind), filter.WithReorderMin, filter.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]catalog.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *repo) CreateProduct(ctx context.Context, p catalog.Product) (int64, error) {
	query := `
		INSERT INTO products (
			code, description, unit, kind, purchase_price, sale_price, reorder_min,
			reorder_max, primary_supplier_id, tracked_by_color, fabrication_kind, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	var id int64
	err := r.q.QueryRow(ctx, query,
		p.Code, p.Description, p.Unit, string(p.Kind), p.PurchasePrice, p.SalePrice, p.ReorderMin,
		nullDecimal(p.ReorderMax), p.PrimarySupplierID, p.TrackedByColor, string(p.FabricationKind),
		p.CreatedAt, p.UpdatedAt,
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, catalog.ErrDuplicateCode.WithProducts(p.Code)
	}
	return id, err
}

func (r *repo) UpdateProduct(ctx context.Context, p catalog.Product) error {
	query := `
		UPDATE products
		SET code = $1, description = $2, unit = $3, kind = $4, purchase_price = $5, sale_price = $6,
		    reorder_min = $7, reorder_max = $8, primary_supplier_id = $9, tracked_by_color = $10,
		    fabrication_kind = $11, updated_at = $12
		WHERE id = $13
	`
	tag, err := r.q.Exec(ctx, query,
		p.Code, p.Description, p.Unit, string(p.Kind), p.PurchasePrice, p.SalePrice,
		p.ReorderMin, nullDecimal(p.ReorderMax), p.PrimarySupplierID, p.TrackedByColor,
		string(p.FabricationKind), p.UpdatedAt, p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrDuplicateCode.WithProducts(p.Code)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *repo) GetColor(ctx context.Context, id int64) (catalog.Color, error) {
	var c catalog.Color
	err := r.q.QueryRow(ctx, `SELECT id, name FROM colors WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	return c, notFound(err, catalog.ErrColorNotFound)
}

func (r *repo) ListColors(ctx context.Context) ([]catalog.Color, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name FROM colors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	colors := make([]catalog.Color, 0)
	for rows.Next() {
		var c catalog.Color
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		colors = append(colors, c)
	}
	return colors, rows.Err()
}

func (r *repo) CreateColor(ctx context.Context, c catalog.Color) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO colors (name) VALUES ($1) RETURNING id`, c.Name).Scan(&id)
	if isUniqueViolation(err) {
		return 0, catalog.ErrDuplicateColor
	}
	return id, err
}

func (r *repo) GetCustomer(ctx context.Context, id int64) (catalog.Customer, error) {
	var c catalog.Customer
	err := r.q.QueryRow(ctx, `SELECT id, name, kind, created_at FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Kind, &c.CreatedAt)
	return c, notFound(err, catalog.ErrCustomerNotFound)
}

func (r *repo) ListCustomers(ctx context.Context) ([]catalog.Customer, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, kind, created_at FROM customers ORDER BY lower(name), id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	customers := make([]catalog.Customer, 0)
	for rows.Next() {
		var c catalog.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *repo) CreateCustomer(ctx context.Context, c catalog.Customer) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO customers (name, kind, created_at) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, string(c.Kind), c.CreatedAt).Scan(&id)
	if isUniqueViolation(err) {
		return 0, catalog.ErrDuplicateStoreCustomer
	}
	return id, err
}

func (r *repo) FindStoreCustomer(ctx context.Context) (catalog.Customer, bool, error) {
	var c catalog.Customer
	err := r.q.QueryRow(ctx, `SELECT id, name, kind, created_at FROM customers WHERE kind = $1`+r.forUpdate(),
		string(catalog.CustomerKindStore)).Scan(&c.ID, &c.Name, &c.Kind, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Customer{}, false, nil
		}
		return catalog.Customer{}, false, err
	}
	return c, true, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
