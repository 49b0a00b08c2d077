// Package catalog holds the product, color and customer records the
// fulfillment workflows look up.
package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// ProductKind classifies how a product enters stock.
type ProductKind string

const (
	ProductKindResale      ProductKind = "resale"
	ProductKindRawMaterial ProductKind = "raw_material"
	ProductKindFabricated  ProductKind = "fabricated"
)

// FabricationKind marks products that may be BOM outputs.
type FabricationKind string

const (
	FabricationNone       FabricationKind = ""
	FabricationFabricated FabricationKind = "fabricated"
	FabricationKit        FabricationKind = "kit"
)

// Product is a catalog entry.
type Product struct {
	ID                int64            `json:"id"`
	Code              string           `json:"code"`
	Description       string           `json:"description"`
	Unit              string           `json:"unit"`
	Kind              ProductKind      `json:"kind"`
	PurchasePrice     decimal.Decimal  `json:"purchase_price"`
	SalePrice         decimal.Decimal  `json:"sale_price"`
	ReorderMin        decimal.Decimal  `json:"reorder_min"`
	ReorderMax        *decimal.Decimal `json:"reorder_max,omitempty"`
	PrimarySupplierID *int64           `json:"primary_supplier_id,omitempty"`
	TrackedByColor    bool             `json:"tracked_by_color"`
	FabricationKind   FabricationKind  `json:"fabrication_kind,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// IsRawMaterial reports whether the product may never be sold.
func (p Product) IsRawMaterial() bool {
	return p.Kind == ProductKindRawMaterial
}

// IsFabricated reports whether the product can be produced after a sale.
func (p Product) IsFabricated() bool {
	return p.Kind == ProductKindFabricated
}

// CanBeBOMOutput reports whether the product may own a recipe.
func (p Product) CanBeBOMOutput() bool {
	return p.FabricationKind == FabricationFabricated || p.FabricationKind == FabricationKit
}

// Color is a stock-tracking color.
type Color struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CustomerKind classifies customers.
type CustomerKind string

const (
	CustomerKindRegular CustomerKind = "regular"
	// CustomerKindStore is the walk-in "loja" customer; at most one exists.
	CustomerKindStore CustomerKind = "loja"
)

// Customer is a sales counterparty.
type Customer struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Kind      CustomerKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Kind           ProductKind
	Search         string
	WithReorderMin bool
}

// Matches applies the filter in memory.
func (f ProductFilter) Matches(p Product) bool {
	if f.Kind != "" && p.Kind != f.Kind {
		return false
	}
	if f.WithReorderMin && !p.ReorderMin.IsPositive() {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Code), needle) && !strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	return true
}

var (
	ErrProductNotFound        = shared.NewError(shared.ErrNotFound, "product_not_found", "catalog: product not found")
	ErrColorNotFound          = shared.NewError(shared.ErrNotFound, "color_not_found", "catalog: color not found")
	ErrCustomerNotFound       = shared.NewError(shared.ErrNotFound, "customer_not_found", "catalog: customer not found")
	ErrDuplicateCode          = shared.NewError(shared.ErrBusinessRule, "duplicate_product_code", "catalog: product code already exists")
	ErrDuplicateColor         = shared.NewError(shared.ErrBusinessRule, "duplicate_color", "catalog: color already exists")
	ErrDuplicateStoreCustomer = shared.NewError(shared.ErrBusinessRule, "duplicate_store_customer", "catalog: a loja customer already exists")
)
