package postgres

import (
	"context"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
)

func (r *repo) ListEdges(ctx context.Context, fabricatedID int64) ([]bom.Edge, error) {
	rows, err := r.q.Query(ctx, `
		SELECT fabricated_id, input_id, quantity_per_unit
		FROM bom_edges
		WHERE fabricated_id = $1
		ORDER BY input_id`, fabricatedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	edges := make([]bom.Edge, 0)
	for rows.Next() {
		var e bom.Edge
		if err := rows.Scan(&e.FabricatedID, &e.InputID, &e.QuantityPerUnit); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (r *repo) UpsertEdge(ctx context.Context, edge bom.Edge) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO bom_edges (fabricated_id, input_id, quantity_per_unit)
		VALUES ($1, $2, $3)
		ON CONFLICT (fabricated_id, input_id) DO UPDATE SET quantity_per_unit = EXCLUDED.quantity_per_unit`,
		edge.FabricatedID, edge.InputID, edge.QuantityPerUnit)
	return err
}

func (r *repo) DeleteEdge(ctx context.Context, fabricatedID, inputID int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM bom_edges WHERE fabricated_id = $1 AND input_id = $2`, fabricatedID, inputID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
