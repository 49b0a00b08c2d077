package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-stock/internal/sales"
)

const saleColumns = `id, customer_id, order_date, delivery_kind, status, promised_lead_days, freight, total, note, created_at, updated_at`

func scanSale(row pgx.Row) (sales.Order, error) {
	var o sales.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.OrderDate, &o.DeliveryKind, &o.Status, &o.PromisedLeadDays,
		&o.Freight, &o.Total, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *repo) saleLines(ctx context.Context, orderID int64) ([]sales.Line, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, product_id, color_id, quantity, unit_price
		FROM sales_lines
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := make([]sales.Line, 0)
	for rows.Next() {
		var l sales.Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ColorID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repo) loadSale(ctx context.Context, id int64, lock bool) (sales.Order, error) {
	query := `SELECT ` + saleColumns + ` FROM sales_orders WHERE id = $1`
	if lock {
		query += r.forUpdate()
	}
	o, err := scanSale(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return sales.Order{}, notFound(err, sales.ErrOrderNotFound)
	}
	o.Lines, err = r.saleLines(ctx, id)
	return o, err
}

func (r *repo) GetSale(ctx context.Context, id int64) (sales.Order, error) {
	return r.loadSale(ctx, id, false)
}

func (r *repo) LockSale(ctx context.Context, id int64) (sales.Order, error) {
	return r.loadSale(ctx, id, true)
}

func (r *repo) ListSales(ctx context.Context, filter sales.ListFilter) ([]sales.Order, error) {
	var from, to any
	if !filter.From.IsZero() {
		from = filter.From
	}
	if !filter.To.IsZero() {
		to = filter.To
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+saleColumns+`
		FROM sales_orders
		WHERE ($1::text = '' OR status = $1::text)
		  AND ($2::bigint = 0 OR customer_id = $2::bigint)
		  AND ($3::date IS NULL OR order_date >= $3::date)
		  AND ($4::date IS NULL OR order_date <= $4::date)
		ORDER BY id DESC`, string(filter.Status), filter.CustomerID, from, to)
	if err != nil {
		return nil, err
	}
	orders := make([]sales.Order, 0)
	for rows.Next() {
		o, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].Lines, err = r.saleLines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *repo) InsertSale(ctx context.Context, order sales.Order) (sales.Order, error) {
	err := r.q.QueryRow(ctx, `
		INSERT INTO sales_orders (customer_id, order_date, delivery_kind, status, promised_lead_days, freight, total, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		order.CustomerID, order.OrderDate, string(order.DeliveryKind), string(order.Status), order.PromisedLeadDays,
		order.Freight, order.Total, order.Note, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return sales.Order{}, err
	}
	order.Lines, err = r.insertSaleLines(ctx, order.ID, order.Lines)
	if err != nil {
		return sales.Order{}, err
	}
	return order, nil
}

func (r *repo) insertSaleLines(ctx context.Context, orderID int64, lines []sales.Line) ([]sales.Line, error) {
	out := make([]sales.Line, len(lines))
	for i, line := range lines {
		line.OrderID = orderID
		err := r.q.QueryRow(ctx, `
			INSERT INTO sales_lines (order_id, product_id, color_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			orderID, line.ProductID, line.ColorID, line.Quantity, line.UnitPrice,
		).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out[i] = line
	}
	return out, nil
}

func (r *repo) UpdateSaleHeader(ctx context.Context, order sales.Order) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE sales_orders
		SET customer_id = $1, order_date = $2, delivery_kind = $3, status = $4, promised_lead_days = $5,
		    freight = $6, total = $7, note = $8, updated_at = $9
		WHERE id = $10`,
		order.CustomerID, order.OrderDate, string(order.DeliveryKind), string(order.Status), order.PromisedLeadDays,
		order.Freight, order.Total, order.Note, order.UpdatedAt, order.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sales.ErrOrderNotFound
	}
	return nil
}

func (r *repo) ReplaceSaleLines(ctx context.Context, orderID int64, lines []sales.Line) ([]sales.Line, error) {
	if _, err := r.q.Exec(ctx, `DELETE FROM sales_lines WHERE order_id = $1`, orderID); err != nil {
		return nil, err
	}
	return r.insertSaleLines(ctx, orderID, lines)
}

// LockProducts takes row locks on ids in ascending order.
func (r *repo) LockProducts(ctx context.Context, ids []int64) error {
	if !r.locking || len(ids) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx, `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	return err
}
