package sales

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the sales order lifecycle.
type Service struct {
	repo   RepositoryPort
	clock  shared.Clock
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the sales service.
func NewService(repo RepositoryPort, clock shared.Clock, audit AuditPort, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, clock: clock, audit: audit, logger: logger}
}

// Create stores a draft order.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	if input.DeliveryKind == "" {
		input.DeliveryKind = DeliveryPickup
	}
	if err := checkDeliveryKind(input.DeliveryKind); err != nil {
		return Order{}, err
	}
	if input.Freight.IsNegative() {
		return Order{}, ErrInvalidFreight
	}
	if err := checkLeadDays(input.PromisedLeadDays); err != nil {
		return Order{}, err
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
		CustomerID:       input.CustomerID,
		OrderDate:        orderDate,
		DeliveryKind:     input.DeliveryKind,
		Status:           StatusDraft,
		PromisedLeadDays: input.PromisedLeadDays,
		Freight:          input.Freight,
		Note:             strings.TrimSpace(input.Note),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if order.CustomerID != nil {
			if _, err := tx.GetCustomer(ctx, *order.CustomerID); err != nil {
				return err
			}
		}
		lines, err := buildLines(ctx, tx, input.Lines)
		if err != nil {
			return err
		}
		order.Lines = lines
		order.Total = ComputeTotal(lines, order.Freight)
		created, err := tx.InsertSale(ctx, order)
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return Order{}, shared.StorageError("sales.create", 0, err)
	}
	s.logger.InfoContext(ctx, "sales order created", slog.Int64("order_id", order.ID), slog.String("total", order.Total.String()))
	return order, nil
}

// Update changes a draft order.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Order, error) {
	if input.DeliveryKind != nil {
		if err := checkDeliveryKind(*input.DeliveryKind); err != nil {
			return Order{}, err
		}
	}
	if input.Freight != nil && input.Freight.IsNegative() {
		return Order{}, ErrInvalidFreight
	}
	if err := checkLeadDays(input.PromisedLeadDays); err != nil {
		return Order{}, err
	}
	if input.Lines != nil {
		if err := checkLineInputs(input.Lines); err != nil {
			return Order{}, err
		}
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockSale(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrNotEditable
		}
		if input.CustomerID != nil {
			if _, err := tx.GetCustomer(ctx, *input.CustomerID); err != nil {
				return err
			}
			current.CustomerID = input.CustomerID
		}
		if input.DeliveryKind != nil {
			current.DeliveryKind = *input.DeliveryKind
		}
		if input.PromisedLeadDays != nil {
			current.PromisedLeadDays = input.PromisedLeadDays
		}
		if input.Freight != nil {
			current.Freight = *input.Freight
		}
		if input.Note != nil {
			current.Note = strings.TrimSpace(*input.Note)
		}
		if input.Lines != nil {
			lines, err := buildLines(ctx, tx, input.Lines)
			if err != nil {
				return err
			}
			saved, err := tx.ReplaceSaleLines(ctx, current.ID, lines)
			if err != nil {
				return err
			}
			current.Lines = saved
		}
		current.Total = ComputeTotal(current.Lines, current.Freight)
		current.UpdatedAt = s.clock.Now()
		if err := tx.UpdateSaleHeader(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, shared.StorageError("sales.update", id, err)
	}
	return order, nil
}

type demandKey struct {
	productID int64
	colorID   int64
	colored   bool
}

// Confirm checks stock for every (product, color) demanded and writes one
// saida per line. Shortages of products that cannot be fabricated always
// fail; shortages of fabricated products need promised lead days.
func (s *Service) Confirm(ctx context.Context, id int64, promisedLeadDays *int) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockSale(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrInvalidState.WithMessage("sales: order %d is %s, only draft orders can be confirmed", id, current.Status)
		}
		if len(current.Lines) == 0 {
			return ErrNoLines
		}

		demand := make(map[demandKey]decimal.Decimal)
		var keys []demandKey
		productIDs := make([]int64, 0, len(current.Lines))
		seen := make(map[int64]bool)
		for _, l := range current.Lines {
			k := demandKey{productID: l.ProductID}
			if l.ColorID != nil {
				k.colorID, k.colored = *l.ColorID, true
			}
			if _, ok := demand[k]; !ok {
				keys = append(keys, k)
			}
			demand[k] = demand[k].Add(l.Quantity)
			if !seen[l.ProductID] {
				seen[l.ProductID] = true
				productIDs = append(productIDs, l.ProductID)
			}
		}
		sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })
		if err := tx.LockProducts(ctx, productIDs); err != nil {
			return err
		}

		var nonFabricable, fabricable []string
		for _, k := range keys {
			p, err := tx.GetProduct(ctx, k.productID)
			if err != nil {
				return err
			}
			filter := ledger.Filter{ProductID: k.productID}
			if k.colored {
				colorID := k.colorID
				filter.ColorID = &colorID
			}
			balance, err := ledger.Sum(ctx, tx, filter)
			if err != nil {
				return err
			}
			if balance.GreaterThanOrEqual(demand[k]) {
				continue
			}
			if p.IsFabricated() {
				fabricable = appendUnique(fabricable, p.Code)
			} else {
				nonFabricable = appendUnique(nonFabricable, p.Code)
			}
		}
		if len(nonFabricable) > 0 {
			return ErrInsufficientStockNonFabricable.WithProducts(nonFabricable...)
		}
		validCall := promisedLeadDays != nil && *promisedLeadDays >= 1
		validOrder := current.PromisedLeadDays != nil && *current.PromisedLeadDays >= 1
		if len(fabricable) > 0 && !validCall && !validOrder {
			return ErrLeadTimeRequired.WithProducts(fabricable...)
		}
		if validCall {
			days := *promisedLeadDays
			current.PromisedLeadDays = &days
		}

		now := s.clock.Now()
		for _, l := range current.Lines {
			_, err := ledger.Append(ctx, tx, s.clock, ledger.Movement{
				Date:       now,
				Kind:       ledger.KindSaida,
				ProductID:  l.ProductID,
				ColorID:    l.ColorID,
				Quantity:   l.Quantity.Neg(),
				OriginKind: ledger.OriginSale,
				OriginID:   current.ID,
			})
			if err != nil {
				return err
			}
		}
		current.Status = StatusConfirmed
		current.UpdatedAt = now
		if err := tx.UpdateSaleHeader(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, shared.StorageError("sales.confirm", id, err)
	}
	s.logger.InfoContext(ctx, "sales order confirmed", slog.Int64("order_id", id), slog.Int("lines", len(order.Lines)))
	s.recordAudit(ctx, "sales.confirm", id, map[string]any{"total": order.Total.String()})
	return order, nil
}

// Cancel returns the stock of a confirmed or delivered order with one
// compensating entrada per line.
func (s *Service) Cancel(ctx context.Context, id int64) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockSale(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusConfirmed && current.Status != StatusDelivered {
			return ErrInvalidStateForCancel
		}
		now := s.clock.Now()
		for _, l := range current.Lines {
			_, err := ledger.Append(ctx, tx, s.clock, ledger.Movement{
				Date:       now,
				Kind:       ledger.KindEntrada,
				ProductID:  l.ProductID,
				ColorID:    l.ColorID,
				Quantity:   l.Quantity,
				OriginKind: ledger.OriginSaleCancellation,
				OriginID:   current.ID,
				Note:       fmt.Sprintf("cancellation of sale %d", current.ID),
			})
			if err != nil {
				return err
			}
		}
		current.Status = StatusCancelled
		current.UpdatedAt = now
		if err := tx.UpdateSaleHeader(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, shared.StorageError("sales.cancel", id, err)
	}
	s.logger.InfoContext(ctx, "sales order cancelled", slog.Int64("order_id", id))
	s.recordAudit(ctx, "sales.cancel", id, nil)
	return order, nil
}

// Deliver marks a confirmed order delivered. The ledger is untouched.
func (s *Service) Deliver(ctx context.Context, id int64) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockSale(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusConfirmed {
			return ErrInvalidState.WithMessage("sales: order %d is %s, only confirmed orders can be delivered", id, current.Status)
		}
		current.Status = StatusDelivered
		current.UpdatedAt = s.clock.Now()
		if err := tx.UpdateSaleHeader(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, shared.StorageError("sales.deliver", id, err)
	}
	return order, nil
}

// Get returns an order with lines.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetSale(ctx, id)
}

// List lists orders.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	return s.repo.ListSales(ctx, filter)
}

// DeliveryFeed lists confirmed delivery orders with line totals for routing.
func (s *Service) DeliveryFeed(ctx context.Context) ([]DeliveryStop, error) {
	orders, err := s.repo.ListSales(ctx, ListFilter{Status: StatusConfirmed})
	if err != nil {
		return nil, err
	}
	products := make(map[int64]catalog.Product)
	stops := make([]DeliveryStop, 0, len(orders))
	for _, o := range orders {
		if o.DeliveryKind != DeliveryDelivery {
			continue
		}
		stop := DeliveryStop{
			OrderID:      o.ID,
			CustomerID:   o.CustomerID,
			OrderDate:    o.OrderDate,
			PromisedDate: o.PromisedDate(),
			Freight:      o.Freight,
			Total:        o.Total,
		}
		if o.CustomerID != nil {
			c, err := s.repo.GetCustomer(ctx, *o.CustomerID)
			if err != nil {
				return nil, err
			}
			stop.CustomerName = c.Name
		}
		for _, l := range o.Lines {
			p, ok := products[l.ProductID]
			if !ok {
				if p, err = s.repo.GetProduct(ctx, l.ProductID); err != nil {
					return nil, err
				}
				products[l.ProductID] = p
			}
			stop.Lines = append(stop.Lines, DeliveryLine{
				ProductID:   l.ProductID,
				ProductCode: p.Code,
				Description: p.Description,
				ColorID:     l.ColorID,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
				LineTotal:   l.Total(),
			})
		}
		stops = append(stops, stop)
	}
	return stops, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "sales_order",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.clock.Now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func checkDeliveryKind(kind DeliveryKind) error {
	if kind != DeliveryPickup && kind != DeliveryDelivery {
		return shared.Validation("sales: unknown delivery kind %q", kind)
	}
	return nil
}

func checkLeadDays(days *int) error {
	if days != nil && *days < 1 {
		return shared.Validation("sales: promised lead days must be at least 1")
	}
	return nil
}

func checkLineInputs(lines []LineInput) error {
	if len(lines) == 0 {
		return ErrNoLines
	}
	for _, l := range lines {
		if l.ProductID <= 0 {
			return shared.Validation("sales: product required on every line")
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

// buildLines resolves products, rejecting every raw material at once.
func buildLines(ctx context.Context, lookup catalog.Lookup, inputs []LineInput) ([]Line, error) {
	lines := make([]Line, 0, len(inputs))
	var raw []string
	for _, in := range inputs {
		p, err := lookup.GetProduct(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		if p.IsRawMaterial() {
			raw = appendUnique(raw, p.Code)
			continue
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
			ProductID: in.ProductID,
			ColorID:   in.ColorID,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
		})
	}
	if len(raw) > 0 {
		return nil, ErrRawMaterialNotSellable.WithProducts(raw...)
	}
	return lines, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
