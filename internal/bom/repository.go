package bom

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
)

// EdgeReader lists the edges of a fabricated product.
type EdgeReader interface {
	ListEdges(ctx context.Context, fabricatedID int64) ([]Edge, error)
}

// Source is what recipe resolution needs. Transactions satisfy it so the
// production engine can resolve recipes inside its unit of work.
type Source interface {
	EdgeReader
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// BalanceReader yields derived balances.
type BalanceReader interface {
	Balance(ctx context.Context, productID int64, colorID *int64) (decimal.Decimal, error)
}

// TxRepository exposes BOM writes.
type TxRepository interface {
	Source
	UpsertEdge(ctx context.Context, edge Edge) error
	DeleteEdge(ctx context.Context, fabricatedID, inputID int64) (bool, error)
}

// RepositoryPort abstracts repository usage for the graph.
type RepositoryPort interface {
	Source
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// ListInputs resolves the recipe of a fabricated product ordered by input code.
func ListInputs(ctx context.Context, src Source, fabricatedID int64) ([]Input, error) {
	if _, err := src.GetProduct(ctx, fabricatedID); err != nil {
		return nil, err
	}
	edges, err := src.ListEdges(ctx, fabricatedID)
	if err != nil {
		return nil, err
	}
	inputs := make([]Input, 0, len(edges))
	for _, e := range edges {
		p, err := src.GetProduct(ctx, e.InputID)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, Input{
			InputID:        e.InputID,
			InputCode:      p.Code,
			QtyPerUnit:     e.QuantityPerUnit,
			TrackedByColor: p.TrackedByColor,
		})
	}
	sort.SliceStable(inputs, func(i, j int) bool {
		if inputs[i].InputCode != inputs[j].InputCode {
			return inputs[i].InputCode < inputs[j].InputCode
		}
		return inputs[i].InputID < inputs[j].InputID
	})
	return inputs, nil
}

// BuildableQuantity is the minimum over the recipe of floor(balance/qty).
// Negative balances count as zero and an empty recipe builds nothing.
func BuildableQuantity(ctx context.Context, src Source, balances BalanceReader, fabricatedID int64) (Buildable, error) {
	inputs, err := ListInputs(ctx, src, fabricatedID)
	if err != nil {
		return Buildable{}, err
	}
	result := Buildable{Quantity: decimal.Zero}
	for i, in := range inputs {
		balance, err := balances.Balance(ctx, in.InputID, nil)
		if err != nil {
			return Buildable{}, err
		}
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		units := balance.Div(in.QtyPerUnit).Floor()
		if i == 0 || units.LessThan(result.Quantity) {
			id := in.InputID
			result = Buildable{Quantity: units, BottleneckInputID: &id}
		}
	}
	return result, nil
}
