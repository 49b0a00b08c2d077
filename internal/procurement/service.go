package procurement

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates purchase flows.
type Service struct {
	repo   RepositoryPort
	clock  shared.Clock
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, clock shared.Clock, audit AuditPort, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clock: clock, audit: audit, logger: logger}
}

// Create persists a purchase order. Direct receipts are fully received in the
// same unit of work, one entrada per line.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	if input.SupplierID <= 0 {
		return Order{}, ErrSupplierRequired
	}
	if input.Kind == "" {
		input.Kind = KindOrder
	}
	if input.Kind != KindOrder && input.Kind != KindDirectReceipt {
		return Order{}, shared.Validation("procurement: unknown kind %q", input.Kind)
	}
	if err := checkLineInputs(input.Lines); err != nil {
		return Order{}, err
	}
	now := s.clock.Now()
	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = shared.Today(s.clock)
	}
	order := Order{
		SupplierID:   input.SupplierID,
		OrderDate:    orderDate,
		Kind:         input.Kind,
		Status:       StatusOpen,
		ExpectedDate: input.ExpectedDate,
		Note:         strings.TrimSpace(input.Note),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := buildLines(ctx, tx, input.Lines)
		if err != nil {
			return err
		}
		if order.Kind == KindDirectReceipt {
			for i := range lines {
				lines[i].QuantityReceived = lines[i].Quantity
			}
			order.Status = StatusReceived
		}
		order.Lines = lines
		order.Total = LineTotal(lines)
		created, err := tx.InsertPurchase(ctx, order)
		if err != nil {
			return err
		}
		order = created
		if order.Kind != KindDirectReceipt {
			return nil
		}
		for _, l := range order.Lines {
			if err := s.appendEntrada(ctx, tx, order.ID, l, l.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, shared.StorageError("procurement.create", 0, err)
	}
	s.logger.InfoContext(ctx, "purchase order created",
		slog.Int64("order_id", order.ID),
		slog.String("kind", string(order.Kind)),
		slog.String("total", order.Total.String()),
	)
	s.recordAudit(ctx, "purchase.create", order.ID, map[string]any{"kind": order.Kind, "total": order.Total.String()})
	return order, nil
}

// Update changes an open order; replacing lines recomputes the total.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Order, error) {
	if input.SupplierID != nil && *input.SupplierID <= 0 {
		return Order{}, ErrSupplierRequired
	}
	if input.Lines != nil {
		if err := checkLineInputs(input.Lines); err != nil {
			return Order{}, err
		}
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockPurchase(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusOpen || current.Kind == KindDirectReceipt {
			return ErrNotEditable
		}
		if input.SupplierID != nil {
			current.SupplierID = *input.SupplierID
		}
		if input.ExpectedDate != nil {
			current.ExpectedDate = input.ExpectedDate
		}
		if input.Note != nil {
			current.Note = strings.TrimSpace(*input.Note)
		}
		if input.Lines != nil {
			lines, err := buildLines(ctx, tx, input.Lines)
			if err != nil {
				return err
			}
			saved, err := tx.ReplacePurchaseLines(ctx, current.ID, lines)
			if err != nil {
				return err
			}
			current.Lines = saved
			current.Total = LineTotal(saved)
		}
		current.UpdatedAt = s.clock.Now()
		if err := tx.UpdatePurchaseHeader(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, shared.StorageError("procurement.update", id, err)
	}
	return order, nil
}

// Receive sets cumulative received quantities. Only the positive difference
// to what was already received produces an entrada.
func (s *Service) Receive(ctx context.Context, id int64, receipts []ReceiveInput) (Order, error) {
	if len(receipts) == 0 {
		return Order{}, shared.Validation("procurement: nothing to receive")
	}
	var order Order
	var posted int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockPurchase(ctx, id)
		if err != nil {
			return err
		}
		if current.Kind == KindDirectReceipt {
			return ErrDirectReceiptNotReceivable
		}
		if current.Status == StatusReceived {
			return ErrAlreadyFinalReceived
		}
		index := make(map[int64]int, len(current.Lines))
		for i, l := range current.Lines {
			index[l.ID] = i
		}
		for _, r := range receipts {
			if _, ok := index[r.LineID]; !ok {
				return ErrLineNotFound.WithMessage("procurement: line %d not found on order %d", r.LineID, id)
			}
		}
		for _, r := range receipts {
			i := index[r.LineID]
			line := current.Lines[i]
			target := clamp(r.QuantityReceived, line.Quantity)
			delta := target.Sub(line.QuantityReceived)
			if !delta.IsPositive() {
				continue
			}
			if err := s.appendEntrada(ctx, tx, current.ID, line, delta); err != nil {
				return err
			}
			line.QuantityReceived = target
			if err := tx.SetLineReceived(ctx, line); err != nil {
				return err
			}
			current.Lines[i] = line
			posted++
		}
		current.Status = current.DeriveStatus()
		current.UpdatedAt = s.clock.Now()
		if err := tx.UpdatePurchaseHeader(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, shared.StorageError("procurement.receive", id, err)
	}
	s.logger.InfoContext(ctx, "purchase order received",
		slog.Int64("order_id", id),
		slog.Int("entradas", posted),
		slog.String("status", string(order.Status)),
	)
	s.recordAudit(ctx, "purchase.receive", id, map[string]any{"status": order.Status, "entradas": posted})
	return order, nil
}

// Get returns an order with lines.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetPurchase(ctx, id)
}

// List lists orders.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	return s.repo.ListPurchases(ctx, filter)
}

func (s *Service) appendEntrada(ctx context.Context, tx TxRepository, orderID int64, line Line, qty decimal.Decimal) error {
	_, err := ledger.Append(ctx, tx, s.clock, ledger.Movement{
		Kind:       ledger.KindEntrada,
		ProductID:  line.ProductID,
		ColorID:    line.ColorID,
		Quantity:   qty,
		OriginKind: ledger.OriginPurchase,
		OriginID:   orderID,
	})
	return err
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.clock.Now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func checkLineInputs(lines []LineInput) error {
	if len(lines) == 0 {
		return ErrNoLines
	}
	for _, l := range lines {
		if l.ProductID <= 0 {
			return shared.Validation("procurement: product required on every line")
		}
		if !l.Quantity.IsPositive() {
			return ErrInvalidQuantity
		}
		if l.UnitPrice.IsNegative() {
			return ErrInvalidPrice
		}
	}
	return nil
}

// buildLines resolves products and colors for the given inputs.
func buildLines(ctx context.Context, lookup catalog.Lookup, inputs []LineInput) ([]Line, error) {
	lines := make([]Line, 0, len(inputs))
	for _, in := range inputs {
		p, err := lookup.GetProduct(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		if p.TrackedByColor && in.ColorID == nil {
			return nil, ErrColorRequired.WithProducts(p.Code)
		}
		if in.ColorID != nil {
			if _, err := lookup.GetColor(ctx, *in.ColorID); err != nil {
				return nil, err
			}
		}
		lines = append(lines, Line{
			ProductID:        in.ProductID,
			ColorID:          in.ColorID,
			Quantity:         in.Quantity,
			UnitPrice:        in.UnitPrice,
			QuantityReceived: decimal.Zero,
		})
	}
	return lines, nil
}

// clamp bounds v to [0, limit].
func clamp(v, limit decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(limit) {
		return limit
	}
	return v
}
