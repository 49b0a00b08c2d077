package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-stock/internal/procurement"
)

const purchaseColumns = `id, supplier_id, order_date, kind, status, expected_date, total, note, created_at, updated_at`

func scanPurchase(row pgx.Row) (procurement.Order, error) {
	var o procurement.Order
	err := row.Scan(&o.ID, &o.SupplierID, &o.OrderDate, &o.Kind, &o.Status, &o.ExpectedDate,
		&o.Total, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *repo) purchaseLines(ctx context.Context, orderID int64) ([]procurement.Line, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, product_id, color_id, quantity, unit_price, quantity_received
		FROM purchase_lines
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := make([]procurement.Line, 0)
	for rows.Next() {
		var l procurement.Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ColorID, &l.Quantity, &l.UnitPrice, &l.QuantityReceived); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repo) loadPurchase(ctx context.Context, id int64, lock bool) (procurement.Order, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchase_orders WHERE id = $1`
	if lock {
		query += r.forUpdate()
	}
	o, err := scanPurchase(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return procurement.Order{}, notFound(err, procurement.ErrOrderNotFound)
	}
	o.Lines, err = r.purchaseLines(ctx, id)
	return o, err
}

func (r *repo) GetPurchase(ctx context.Context, id int64) (procurement.Order, error) {
	return r.loadPurchase(ctx, id, false)
}

func (r *repo) LockPurchase(ctx context.Context, id int64) (procurement.Order, error) {
	return r.loadPurchase(ctx, id, true)
}

func (r *repo) ListPurchases(ctx context.Context, filter procurement.ListFilter) ([]procurement.Order, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchase_orders
		WHERE ($1::text = '' OR status = $1::text)
		  AND ($2::bigint = 0 OR supplier_id = $2::bigint)
		  AND ($3::text = '' OR kind = $3::text)
		ORDER BY id DESC`, string(filter.Status), filter.SupplierID, string(filter.Kind))
	if err != nil {
		return nil, err
	}
	orders := make([]procurement.Order, 0)
	for rows.Next() {
		o, err := scanPurchase(rows)
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
		if orders[i].Lines, err = r.purchaseLines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *repo) InsertPurchase(ctx context.Context, order procurement.Order) (procurement.Order, error) {
	err := r.q.QueryRow(ctx, `
		INSERT INTO purchase_orders (supplier_id, order_date, kind, status, expected_date, total, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		order.SupplierID, order.OrderDate, string(order.Kind), string(order.Status), order.ExpectedDate,
		order.Total, order.Note, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return procurement.Order{}, err
	}
	order.Lines, err = r.insertPurchaseLines(ctx, order.ID, order.Lines)
	if err != nil {
		return procurement.Order{}, err
	}
	return order, nil
}

func (r *repo) insertPurchaseLines(ctx context.Context, orderID int64, lines []procurement.Line) ([]procurement.Line, error) {
	out := make([]procurement.Line, len(lines))
	for i, line := range lines {
		line.OrderID = orderID
		err := r.q.QueryRow(ctx, `
			INSERT INTO purchase_lines (order_id, product_id, color_id, quantity, unit_price, quantity_received)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			orderID, line.ProductID, line.ColorID, line.Quantity, line.UnitPrice, line.QuantityReceived,
		).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out[i] = line
	}
	return out, nil
}

func (r *repo) UpdatePurchaseHeader(ctx context.Context, order procurement.Order) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE purchase_orders
		SET supplier_id = $1, status = $2, expected_date = $3, total = $4, note = $5, updated_at = $6
		WHERE id = $7`,
		order.SupplierID, string(order.Status), order.ExpectedDate, order.Total, order.Note, order.UpdatedAt, order.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return procurement.ErrOrderNotFound
	}
	return nil
}

func (r *repo) ReplacePurchaseLines(ctx context.Context, orderID int64, lines []procurement.Line) ([]procurement.Line, error) {
	if _, err := r.q.Exec(ctx, `DELETE FROM purchase_lines WHERE order_id = $1`, orderID); err != nil {
		return nil, err
	}
	return r.insertPurchaseLines(ctx, orderID, lines)
}

func (r *repo) SetLineReceived(ctx context.Context, line procurement.Line) error {
	tag, err := r.q.Exec(ctx, `UPDATE purchase_lines SET quantity_received = $1 WHERE id = $2 AND order_id = $3`,
		line.QuantityReceived, line.ID, line.OrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return procurement.ErrLineNotFound
	}
	return nil
}
