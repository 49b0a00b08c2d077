// Package production explodes recipes into ledger consumption and output.
package production

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// Status of a production order.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Role tells whether a line yields stock (fabricated) or only consumes its recipe (kit).
type Role string

const (
	RoleFabricated Role = "fabricated"
	RoleKit        Role = "kit"
)

// Order is a production order. Done orders are immutable.
type Order struct {
	ID        int64      `json:"id"`
	Date      time.Time  `json:"date"`
	ColorID   *int64     `json:"color_id,omitempty"`
	Status    Status     `json:"status"`
	Note      string     `json:"note,omitempty"`
	Lines     []Line     `json:"lines"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Line is one output of an order.
type Line struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Role      Role            `json:"role"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// LineInput describes an output line on creation.
type LineInput struct {
	ProductID int64
	Role      Role
	Quantity  decimal.Decimal
}

// CreateInput accepts either the single-output shape (OutputProductID and
// Quantity) or explicit Lines, never both.
type CreateInput struct {
	Date            time.Time
	ColorID         *int64
	Note            string
	OutputProductID int64
	Quantity        decimal.Decimal
	Lines           []LineInput
}

// Normalize folds the single-output shape into one fabricated line.
func (in CreateInput) Normalize() ([]LineInput, error) {
	if in.OutputProductID != 0 {
		if len(in.Lines) > 0 {
			return nil, shared.Validation("production: give either output_product_id or lines, not both")
		}
		return []LineInput{{ProductID: in.OutputProductID, Role: RoleFabricated, Quantity: in.Quantity}}, nil
	}
	if len(in.Lines) == 0 {
		return nil, ErrNoLines
	}
	lines := make([]LineInput, len(in.Lines))
	copy(lines, in.Lines)
	return lines, nil
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status Status
}

// Shortage is a color-tracked input the order color cannot cover.
type Shortage struct {
	ProductID   int64           `json:"product_id"`
	ProductCode string          `json:"product_code"`
	Required    decimal.Decimal `json:"required"`
	Available   decimal.Decimal `json:"available"`
}

// ColorReport is the outcome of the color availability check.
type ColorReport struct {
	Available    bool            `json:"available"`
	Shortages    []Shortage      `json:"shortages,omitempty"`
	Alternatives []catalog.Color `json:"alternatives,omitempty"`
}

var (
	ErrOrderNotFound          = shared.NewError(shared.ErrNotFound, "production_order_not_found", "production: order not found")
	ErrAlreadyCompleted       = shared.NewError(shared.ErrInvalidState, "production_already_completed", "production: order already completed")
	ErrNoBOMDefined           = shared.NewError(shared.ErrBusinessRule, "production_no_bom", "production: no BOM defined")
	ErrInsufficientColorStock = shared.NewError(shared.ErrBusinessRule, "production_insufficient_color_stock", "production: insufficient stock in the order color")
	ErrRoleMismatch           = shared.NewError(shared.ErrBusinessRule, "production_role_mismatch", "production: line role does not match the product fabrication kind")
	ErrNoLines                = shared.NewError(shared.ErrValidation, "production_no_lines", "production: at least one line required")
	ErrNoFabricatedLine       = shared.NewError(shared.ErrValidation, "production_no_fabricated_line", "production: at least one fabricated line required")
	ErrInvalidQuantity        = shared.NewError(shared.ErrValidation, "production_invalid_quantity", "production: quantity must be positive")
)
