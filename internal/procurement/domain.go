// Package procurement runs purchase orders from creation to full receipt.
// Receiving is the only path that writes purchase entradas to the ledger.
package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// Kind distinguishes regular orders from receipts booked on arrival.
type Kind string

const (
	KindOrder         Kind = "order"
	KindDirectReceipt Kind = "direct_receipt"
)

// Status of a purchase order.
type Status string

const (
	StatusOpen              Status = "open"
	StatusPartiallyReceived Status = "partially_received"
	StatusReceived          Status = "received"
)

// Order is a purchase order with its lines.
type Order struct {
	ID           int64           `json:"id"`
	SupplierID   int64           `json:"supplier_id"`
	OrderDate    time.Time       `json:"order_date"`
	Kind         Kind            `json:"kind"`
	Status       Status          `json:"status"`
	ExpectedDate *time.Time      `json:"expected_date,omitempty"`
	Total        decimal.Decimal `json:"total"`
	Note         string          `json:"note,omitempty"`
	Lines        []Line          `json:"lines"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Line is one product ordered.
type Line struct {
	ID               int64           `json:"id"`
	OrderID          int64           `json:"order_id"`
	ProductID        int64           `json:"product_id"`
	ColorID          *int64          `json:"color_id,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
}

// Complete reports whether the line is fully received.
func (l Line) Complete() bool {
	return l.QuantityReceived.GreaterThanOrEqual(l.Quantity)
}

// DeriveStatus computes the status from the line receipts.
func (o Order) DeriveStatus() Status {
	all, some := true, false
	for _, l := range o.Lines {
		if !l.Complete() {
			all = false
		}
		if l.QuantityReceived.IsPositive() {
			some = true
		}
	}
	switch {
	case all && len(o.Lines) > 0:
		return StatusReceived
	case some:
		return StatusPartiallyReceived
	default:
		return StatusOpen
	}
}

// LineTotal sums quantity × unit price.
func LineTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Quantity.Mul(l.UnitPrice))
	}
	return total
}

// LineInput describes a line on create or update.
type LineInput struct {
	ProductID int64
	ColorID   *int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// CreateInput describes a new purchase order.
type CreateInput struct {
	SupplierID   int64
	Kind         Kind
	OrderDate    time.Time
	ExpectedDate *time.Time
	Note         string
	Lines        []LineInput
}

// UpdateInput changes an open order. Nil fields are kept; non-nil Lines
// replace every line.
type UpdateInput struct {
	SupplierID   *int64
	ExpectedDate *time.Time
	Note         *string
	Lines        []LineInput
}

// ReceiveInput sets the cumulative received quantity of one line.
type ReceiveInput struct {
	LineID           int64
	QuantityReceived decimal.Decimal
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status     Status
	SupplierID int64
	Kind       Kind
}

// Matches applies the filter in memory.
func (f ListFilter) Matches(o Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.SupplierID != 0 && o.SupplierID != f.SupplierID {
		return false
	}
	if f.Kind != "" && o.Kind != f.Kind {
		return false
	}
	return true
}

var (
	ErrOrderNotFound              = shared.NewError(shared.ErrNotFound, "purchase_not_found", "procurement: purchase order not found")
	ErrLineNotFound               = shared.NewError(shared.ErrNotFound, "purchase_line_not_found", "procurement: purchase line not found")
	ErrAlreadyFinalReceived       = shared.NewError(shared.ErrInvalidState, "purchase_already_received", "procurement: purchase order already fully received")
	ErrDirectReceiptNotReceivable = shared.NewError(shared.ErrInvalidState, "purchase_direct_receipt", "procurement: direct receipts are received at creation")
	ErrNotEditable                = shared.NewError(shared.ErrInvalidState, "purchase_not_editable", "procurement: only open orders can be edited")
	ErrColorRequired              = shared.NewError(shared.ErrValidation, "purchase_color_required", "procurement: color required for color-tracked products")
	ErrSupplierRequired           = shared.NewError(shared.ErrValidation, "purchase_supplier_required", "procurement: supplier required")
	ErrNoLines                    = shared.NewError(shared.ErrValidation, "purchase_no_lines", "procurement: at least one line required")
	ErrInvalidQuantity            = shared.NewError(shared.ErrValidation, "purchase_invalid_quantity", "procurement: quantity must be positive")
	ErrInvalidPrice               = shared.NewError(shared.ErrValidation, "purchase_invalid_price", "procurement: unit price must not be negative")
)
