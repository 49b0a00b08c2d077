package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
)

func (r *repo) AppendMovement(ctx context.Context, m ledger.Movement) (ledger.Movement, error) {
	query := `
		INSERT INTO stock_movements (date, kind, product_id, quantity, color_id, origin_kind, origin_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query,
		m.Date, string(m.Kind), m.ProductID, m.Quantity, m.ColorID, m.OriginKind, m.OriginID, m.Note,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return ledger.Movement{}, err
	}
	return m, nil
}

// movementWhere renders filter as a WHERE clause and its arguments.
func movementWhere(filter ledger.Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.ProductID != 0 {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.ColorID != nil {
		add("color_id = $%d", *filter.ColorID)
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		add("kind = ANY($%d)", kinds)
	}
	if !filter.From.IsZero() {
		add("date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("date <= $%d", filter.To)
	}
	if filter.OriginKind != "" {
		add("origin_kind = $%d", filter.OriginKind)
	}
	if filter.OriginID != 0 {
		add("origin_id = $%d", filter.OriginID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *repo) ScanMovements(ctx context.Context, filter ledger.Filter) ([]ledger.Movement, error) {
	where, args := movementWhere(filter)
	query := `
		SELECT id, date, kind, product_id, quantity, color_id, origin_kind, origin_id, note, created_at
		FROM stock_movements` + where + `
		ORDER BY date, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]ledger.Movement, 0)
	for rows.Next() {
		var m ledger.Movement
		if err := rows.Scan(&m.ID, &m.Date, &m.Kind, &m.ProductID, &m.Quantity, &m.ColorID,
			&m.OriginKind, &m.OriginID, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// SumMovements implements ledger.Summer.
func (r *repo) SumMovements(ctx context.Context, filter ledger.Filter) (decimal.Decimal, error) {
	where, args := movementWhere(filter)
	var total decimal.Decimal
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_movements`+where, args...).Scan(&total)
	return total, err
}
