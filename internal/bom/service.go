package bom

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// Graph maintains recipes and answers buildable queries.
type Graph struct {
	repo     RepositoryPort
	balances BalanceReader
	logger   *slog.Logger
}

// NewGraph builds Graph.
func NewGraph(repo RepositoryPort, balances BalanceReader, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{repo: repo, balances: balances, logger: logger}
}

// ListInputs returns the recipe of fabricatedID ordered by input code.
func (g *Graph) ListInputs(ctx context.Context, fabricatedID int64) ([]Input, error) {
	return ListInputs(ctx, g.repo, fabricatedID)
}

// UpsertEdge creates or replaces the (fabricated, input) edge.
func (g *Graph) UpsertEdge(ctx context.Context, fabricatedID, inputID int64, qty decimal.Decimal) (Edge, error) {
	if !qty.IsPositive() {
		return Edge{}, ErrInvalidQuantity
	}
	if fabricatedID == inputID {
		return Edge{}, ErrSelfReference
	}
	edge := Edge{FabricatedID: fabricatedID, InputID: inputID, QuantityPerUnit: qty}
	err := g.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		output, err := tx.GetProduct(ctx, fabricatedID)
		if err != nil {
			return err
		}
		if !output.CanBeBOMOutput() {
			return ErrNotFabricable.WithProducts(output.Code)
		}
		if _, err := tx.GetProduct(ctx, inputID); err != nil {
			return err
		}
		return tx.UpsertEdge(ctx, edge)
	})
	if err != nil {
		return Edge{}, shared.StorageError("bom.upsert_edge", 0, err)
	}
	g.logger.InfoContext(ctx, "bom edge saved",
		slog.Int64("fabricated_id", fabricatedID),
		slog.Int64("input_id", inputID),
		slog.String("qty_per_unit", qty.String()),
	)
	return edge, nil
}

// RemoveEdge deletes the edge and reports whether it existed.
func (g *Graph) RemoveEdge(ctx context.Context, fabricatedID, inputID int64) (bool, error) {
	var removed bool
	err := g.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.DeleteEdge(ctx, fabricatedID, inputID)
		removed = ok
		return err
	})
	if err != nil {
		return false, shared.StorageError("bom.remove_edge", 0, err)
	}
	return removed, nil
}

// BuildableQuantity reports how many units current stock can build.
func (g *Graph) BuildableQuantity(ctx context.Context, fabricatedID int64) (Buildable, error) {
	return BuildableQuantity(ctx, g.repo, g.balances, fabricatedID)
}
