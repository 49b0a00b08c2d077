package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-stock/internal/production"
)

const productionColumns = `id, date, color_id, status, note, done_at, created_at`

func scanProductionOrder(row pgx.Row) (production.Order, error) {
	var o production.Order
	err := row.Scan(&o.ID, &o.Date, &o.ColorID, &o.Status, &o.Note, &o.DoneAt, &o.CreatedAt)
	return o, err
}

func (r *repo) productionLines(ctx context.Context, orderID int64) ([]production.Line, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, product_id, role, quantity
		FROM production_lines
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := make([]production.Line, 0)
	for rows.Next() {
		var l production.Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Role, &l.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repo) loadProductionOrder(ctx context.Context, id int64, lock bool) (production.Order, error) {
	query := `SELECT ` + productionColumns + ` FROM production_orders WHERE id = $1`
	if lock {
		query += r.forUpdate()
	}
	o, err := scanProductionOrder(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return production.Order{}, notFound(err, production.ErrOrderNotFound)
	}
	o.Lines, err = r.productionLines(ctx, id)
	return o, err
}

func (r *repo) GetProductionOrder(ctx context.Context, id int64) (production.Order, error) {
	return r.loadProductionOrder(ctx, id, false)
}

func (r *repo) LockProductionOrder(ctx context.Context, id int64) (production.Order, error) {
	return r.loadProductionOrder(ctx, id, true)
}

func (r *repo) ListProductionOrders(ctx context.Context, filter production.ListFilter) ([]production.Order, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+productionColumns+`
		FROM production_orders
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY id DESC`, string(filter.Status))
	if err != nil {
		return nil, err
	}
	orders := make([]production.Order, 0)
	for rows.Next() {
		o, err := scanProductionOrder(rows)
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
		if orders[i].Lines, err = r.productionLines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *repo) InsertProductionOrder(ctx context.Context, order production.Order) (production.Order, error) {
	err := r.q.QueryRow(ctx, `
		INSERT INTO production_orders (date, color_id, status, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		order.Date, order.ColorID, string(order.Status), order.Note, order.CreatedAt,
	).Scan(&order.ID)
	if err != nil {
		return production.Order{}, err
	}
	for i := range order.Lines {
		line := &order.Lines[i]
		line.OrderID = order.ID
		err := r.q.QueryRow(ctx, `
			INSERT INTO production_lines (order_id, product_id, role, quantity)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			line.OrderID, line.ProductID, string(line.Role), line.Quantity,
		).Scan(&line.ID)
		if err != nil {
			return production.Order{}, err
		}
	}
	return order, nil
}

func (r *repo) MarkProductionDone(ctx context.Context, id int64, doneAt time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE production_orders SET status = $1, done_at = $2 WHERE id = $3`,
		string(production.StatusDone), doneAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return production.ErrOrderNotFound
	}
	return nil
}
