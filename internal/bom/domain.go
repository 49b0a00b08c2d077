// Package bom keeps the flat bill of materials of each fabricated product and
// answers how many units the current stock can build.
package bom

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// Edge links a fabricated product to one input.
type Edge struct {
	FabricatedID    int64           `json:"fabricated_product_id"`
	InputID         int64           `json:"input_product_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
}

// Input is an edge resolved against the catalog.
type Input struct {
	InputID        int64           `json:"input_id"`
	InputCode      string          `json:"input_code"`
	QtyPerUnit     decimal.Decimal `json:"qty_per_unit"`
	TrackedByColor bool            `json:"tracked_by_color"`
}

// Buildable reports how many units can be built and which input limits it.
type Buildable struct {
	Quantity          decimal.Decimal `json:"quantity"`
	BottleneckInputID *int64          `json:"bottleneck_input_id,omitempty"`
}

var (
	// ErrInvalidQuantity indicates a non-positive quantity per unit.
	ErrInvalidQuantity = shared.NewError(shared.ErrValidation, "bom_invalid_quantity", "bom: quantity per unit must be positive")
	// ErrSelfReference indicates an input equal to its output.
	ErrSelfReference = shared.NewError(shared.ErrValidation, "bom_self_reference", "bom: a product cannot be its own input")
	// ErrNotFabricable indicates an output without fabrication kind.
	ErrNotFabricable = shared.NewError(shared.ErrBusinessRule, "bom_output_not_fabricable", "bom: product has no fabrication kind")
	// ErrEdgeNotFound indicates a missing edge.
	ErrEdgeNotFound = shared.NewError(shared.ErrNotFound, "bom_edge_not_found", "bom: edge not found")
)
