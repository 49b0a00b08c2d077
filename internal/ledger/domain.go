// Package ledger implements the append-only stock movement log. Balances are
// always derived by summing movements; nothing else is trusted as stock.
package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// Kind enumerates supported movements.
type Kind string

const (
	// KindEntrada is an inbound movement (receipt, cancellation).
	KindEntrada Kind = "entrada"
	// KindSaida is an outbound movement (sale, production consumption).
	KindSaida Kind = "saida"
	// KindAjuste is a manual or compensating correction.
	KindAjuste Kind = "ajuste"
	// KindProducao is production output.
	KindProducao Kind = "producao"
)

// Origin kinds tag which workflow wrote a movement.
const (
	OriginPurchase         = "purchase"
	OriginSale             = "sale"
	OriginSaleCancellation = "sale_cancellation"
	OriginProductionOrder  = "production_order"
	OriginAdjustment       = "adjustment"
	OriginReconciliation   = "reconciliation"
	OriginCompensation     = "compensation"
)

// Epsilon is the tolerance under which a summed quantity counts as zero.
var Epsilon = decimal.New(1, -6)

// IsZero reports whether q is zero within Epsilon.
func IsZero(q decimal.Decimal) bool {
	return q.Abs().LessThan(Epsilon)
}

// Movement is an immutable ledger entry.
type Movement struct {
	ID         int64           `json:"id"`
	Date       time.Time       `json:"date"`
	Kind       Kind            `json:"kind"`
	ProductID  int64           `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	ColorID    *int64          `json:"color_id,omitempty"`
	OriginKind string          `json:"origin_kind,omitempty"`
	OriginID   int64           `json:"origin_id,omitempty"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Validate checks the structural fields of a movement.
func (m Movement) Validate() error {
	if m.ProductID == 0 {
		return ErrProductRequired
	}
	switch m.Kind {
	case KindEntrada, KindProducao:
		if !m.Quantity.IsPositive() {
			return ErrInvalidQuantity.WithMessage("ledger: %s quantity must be positive", m.Kind)
		}
	case KindSaida:
		if !m.Quantity.IsNegative() {
			return ErrInvalidQuantity.WithMessage("ledger: saida quantity must be negative")
		}
	case KindAjuste:
		if m.Quantity.IsZero() {
			return ErrInvalidQuantity
		}
	case "":
		return ErrKindRequired
	default:
		return ErrKindRequired.WithMessage("ledger: unknown movement kind %q", m.Kind)
	}
	return nil
}

// Reversal builds the compensating ajuste for m.
func (m Movement) Reversal(date time.Time, note string) Movement {
	return Movement{
		Date:       date,
		Kind:       KindAjuste,
		ProductID:  m.ProductID,
		Quantity:   m.Quantity.Neg(),
		ColorID:    m.ColorID,
		OriginKind: OriginCompensation,
		OriginID:   m.ID,
		Note:       note,
	}
}

// Filter narrows a scan. Zero values mean "any".
type Filter struct {
	ProductID  int64
	ColorID    *int64
	Kinds      []Kind
	From       time.Time
	To         time.Time
	OriginKind string
	OriginID   int64
	Limit      int
}

// Matches applies the filter in memory.
func (f Filter) Matches(m Movement) bool {
	if f.ProductID != 0 && m.ProductID != f.ProductID {
		return false
	}
	if f.ColorID != nil && (m.ColorID == nil || *m.ColorID != *f.ColorID) {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == m.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && m.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && m.Date.After(f.To) {
		return false
	}
	if f.OriginKind != "" && m.OriginKind != f.OriginKind {
		return false
	}
	if f.OriginID != 0 && m.OriginID != f.OriginID {
		return false
	}
	return true
}

// BalanceKey identifies a cached balance: a product overall or one color of it.
func BalanceKey(productID int64, colorID *int64) string {
	if colorID == nil {
		return strconv.FormatInt(productID, 10) + ":*"
	}
	return fmt.Sprintf("%d:%d", productID, *colorID)
}

// TouchedKeys lists the balance keys a movement changes.
func TouchedKeys(m Movement) []string {
	keys := []string{BalanceKey(m.ProductID, nil)}
	if m.ColorID != nil {
		keys = append(keys, BalanceKey(m.ProductID, m.ColorID))
	}
	return keys
}

// ColorBalance is the stock of one color of a product.
type ColorBalance struct {
	ColorID   *int64          `json:"color_id,omitempty"`
	ColorName string          `json:"color_name"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// StockCardEntry is a movement with the running balance after it.
type StockCardEntry struct {
	Movement
	QtyIn      decimal.Decimal `json:"qty_in"`
	QtyOut     decimal.Decimal `json:"qty_out"`
	BalanceQty decimal.Decimal `json:"balance_qty"`
}

var (
	// ErrProductRequired triggered when a movement has no product.
	ErrProductRequired = shared.NewError(shared.ErrValidation, "movement_product_required", "ledger: product required")
	// ErrKindRequired triggered when a movement has no valid kind.
	ErrKindRequired = shared.NewError(shared.ErrValidation, "movement_kind_required", "ledger: movement kind required")
	// ErrInvalidQuantity indicates a quantity that breaks the sign rules.
	ErrInvalidQuantity = shared.NewError(shared.ErrValidation, "movement_invalid_quantity", "ledger: quantity must be non zero")
)
