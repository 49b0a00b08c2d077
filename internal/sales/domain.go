// Package sales runs sales orders through draft, confirmation, delivery and
// cancellation. Confirmation is where overselling is prevented.
package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// ============================================================================
// ORDER
// ============================================================================

// DeliveryKind tells whether the customer picks the goods up.
type DeliveryKind string

const (
	DeliveryPickup   DeliveryKind = "pickup"
	DeliveryDelivery DeliveryKind = "delivery"
)

// Status of a sales order.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

type Order struct {
	ID               int64           `json:"id"`
	CustomerID       *int64          `json:"customer_id,omitempty"`
	OrderDate        time.Time       `json:"order_date"`
	DeliveryKind     DeliveryKind    `json:"delivery_kind"`
	Status           Status          `json:"status"`
	PromisedLeadDays *int            `json:"promised_lead_days,omitempty"`
	Freight          decimal.Decimal `json:"freight"`
	Total            decimal.Decimal `json:"total"`
	Note             string          `json:"note,omitempty"`
	Lines            []Line          `json:"lines"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type Line struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	ColorID   *int64          `json:"color_id,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Total is quantity × unit price.
func (l Line) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// ComputeTotal sums the lines and adds freight.
func ComputeTotal(lines []Line, freight decimal.Decimal) decimal.Decimal {
	total := freight
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

// PromisedDate is the order date plus the promised lead days, when set.
func (o Order) PromisedDate() *time.Time {
	if o.PromisedLeadDays == nil {
		return nil
	}
	d := o.OrderDate.AddDate(0, 0, *o.PromisedLeadDays)
	return &d
}

// ============================================================================
// INPUTS
// ============================================================================

type LineInput struct {
	ProductID int64
	ColorID   *int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

type CreateInput struct {
	CustomerID       *int64
	OrderDate        time.Time
	DeliveryKind     DeliveryKind
	PromisedLeadDays *int
	Freight          decimal.Decimal
	Note             string
	Lines            []LineInput
}

// UpdateInput changes a draft. Nil fields are kept; non-nil Lines replace all lines.
type UpdateInput struct {
	CustomerID       *int64
	DeliveryKind     *DeliveryKind
	PromisedLeadDays *int
	Freight          *decimal.Decimal
	Note             *string
	Lines            []LineInput
}

type ListFilter struct {
	Status     Status
	CustomerID int64
	From       time.Time
	To         time.Time
}

// Matches applies the filter in memory.
func (f ListFilter) Matches(o Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.CustomerID != 0 && (o.CustomerID == nil || *o.CustomerID != f.CustomerID) {
		return false
	}
	if !f.From.IsZero() && o.OrderDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && o.OrderDate.After(f.To) {
		return false
	}
	return true
}

// ============================================================================
// DELIVERY FEED
// ============================================================================

// DeliveryStop is a confirmed order waiting to be routed.
type DeliveryStop struct {
	OrderID      int64           `json:"order_id"`
	CustomerID   *int64          `json:"customer_id,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	OrderDate    time.Time       `json:"order_date"`
	PromisedDate *time.Time      `json:"promised_date,omitempty"`
	Freight      decimal.Decimal `json:"freight"`
	Total        decimal.Decimal `json:"total"`
	Lines        []DeliveryLine  `json:"lines"`
}

// DeliveryLine is a line of a delivery stop with its total.
type DeliveryLine struct {
	ProductID   int64           `json:"product_id"`
	ProductCode string          `json:"product_code"`
	Description string          `json:"description"`
	ColorID     *int64          `json:"color_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// ============================================================================
// ERRORS
// ============================================================================

var (
	ErrOrderNotFound                  = shared.NewError(shared.ErrNotFound, "sale_not_found", "sales: order not found")
	ErrInvalidState                   = shared.NewError(shared.ErrInvalidState, "sale_invalid_state", "sales: operation not allowed in the current state")
	ErrInvalidStateForCancel          = shared.NewError(shared.ErrInvalidState, "sale_invalid_state_for_cancel", "sales: only confirmed or delivered orders can be cancelled")
	ErrNotEditable                    = shared.NewError(shared.ErrInvalidState, "sale_not_editable", "sales: only draft orders can be edited")
	ErrRawMaterialNotSellable         = shared.NewError(shared.ErrBusinessRule, "sale_raw_material", "sales: remove raw materials")
	ErrInsufficientStockNonFabricable = shared.NewError(shared.ErrBusinessRule, "sale_insufficient_stock", "sales: insufficient stock for products that cannot be fabricated")
	ErrLeadTimeRequired               = shared.NewError(shared.ErrBusinessRule, "sale_lead_time_required", "sales: promised lead days required for products that must be fabricated")
	ErrColorRequired                  = shared.NewError(shared.ErrValidation, "sale_color_required", "sales: color required for color-tracked products")
	ErrNoLines                        = shared.NewError(shared.ErrValidation, "sale_no_lines", "sales: at least one line required")
	ErrInvalidQuantity                = shared.NewError(shared.ErrValidation, "sale_invalid_quantity", "sales: quantity must be positive")
	ErrInvalidPrice                   = shared.NewError(shared.ErrValidation, "sale_invalid_price", "sales: unit price must not be negative")
	ErrInvalidFreight                 = shared.NewError(shared.ErrValidation, "sale_invalid_freight", "sales: freight must not be negative")
)
