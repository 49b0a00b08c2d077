package production

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the production engine.
type Service struct {
	repo      RepositoryPort
	buildable BuildableQuerier
	colors    ColorChecker
	clock     shared.Clock
	audit     AuditPort
	logger    *slog.Logger
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Colors ColorChecker
	Clock  shared.Clock
	Audit  AuditPort
	Logger *slog.Logger
}

// NewService builds Service. Without a checker the ledger-based check is used.
func NewService(repo RepositoryPort, buildable BuildableQuerier, cfg ServiceConfig) *Service {
	if cfg.Colors == nil {
		cfg.Colors = LedgerColorChecker{}
	}
	if cfg.Clock == nil {
		cfg.Clock = shared.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		buildable: buildable,
		colors:    cfg.Colors,
		clock:     cfg.Clock,
		audit:     cfg.Audit,
		logger:    cfg.Logger,
	}
}

// CreateOrder validates and stores a pending order.
func (s *Service) CreateOrder(ctx context.Context, input CreateInput) (Order, error) {
	lines, err := input.Normalize()
	if err != nil {
		return Order{}, err
	}
	hasFabricated := false
	for _, l := range lines {
		if l.ProductID == 0 {
			return Order{}, shared.Validation("production: product required on every line")
		}
		if !l.Quantity.IsPositive() {
			return Order{}, ErrInvalidQuantity
		}
		switch l.Role {
		case RoleFabricated:
			hasFabricated = true
		case RoleKit:
		default:
			return Order{}, shared.Validation("production: unknown line role %q", l.Role)
		}
	}
	if !hasFabricated {
		return Order{}, ErrNoFabricatedLine
	}

	date := input.Date
	if date.IsZero() {
		date = shared.Today(s.clock)
	}
	order := Order{
		Date:      date,
		ColorID:   input.ColorID,
		Status:    StatusPending,
		Note:      strings.TrimSpace(input.Note),
		CreatedAt: s.clock.Now(),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if order.ColorID != nil {
			if _, err := tx.GetColor(ctx, *order.ColorID); err != nil {
				return err
			}
		}
		for _, l := range lines {
			p, err := tx.GetProduct(ctx, l.ProductID)
			if err != nil {
				return err
			}
			if string(p.FabricationKind) != string(l.Role) {
				return ErrRoleMismatch.WithProducts(p.Code)
			}
			order.Lines = append(order.Lines, Line{ProductID: l.ProductID, Role: l.Role, Quantity: l.Quantity})
		}
		created, err := tx.InsertProductionOrder(ctx, order)
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return Order{}, shared.StorageError("production.create", 0, err)
	}
	s.logger.InfoContext(ctx, "production order created", slog.Int64("order_id", order.ID), slog.Int("lines", len(order.Lines)))
	return order, nil
}

// Execute explodes every line into ledger movements and marks the order done.
// All checks run before the first write.
func (s *Service) Execute(ctx context.Context, id int64) (Order, error) {
	var order Order
	var written int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockProductionOrder(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusDone {
			return ErrAlreadyCompleted
		}

		recipes := make(map[int64][]bom.Input, len(current.Lines))
		for _, line := range current.Lines {
			if _, ok := recipes[line.ProductID]; ok {
				continue
			}
			inputs, err := bom.ListInputs(ctx, tx, line.ProductID)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				p, err := tx.GetProduct(ctx, line.ProductID)
				if err != nil {
					return err
				}
				return ErrNoBOMDefined.WithProducts(p.Code)
			}
			recipes[line.ProductID] = inputs
		}

		report, err := s.colors.Check(ctx, tx, current)
		if err != nil {
			return err
		}
		if !report.Available {
			return shortageError(ctx, tx, current, report)
		}

		now := s.clock.Now()
		for _, line := range current.Lines {
			for _, in := range recipes[line.ProductID] {
				m := ledger.Movement{
					Date:       now,
					Kind:       ledger.KindSaida,
					ProductID:  in.InputID,
					Quantity:   in.QtyPerUnit.Mul(line.Quantity).Neg(),
					OriginKind: ledger.OriginProductionOrder,
					OriginID:   current.ID,
				}
				if in.TrackedByColor {
					m.ColorID = current.ColorID
				}
				if _, err := ledger.Append(ctx, tx, s.clock, m); err != nil {
					return err
				}
				written++
			}
			if line.Role == RoleFabricated {
				_, err := ledger.Append(ctx, tx, s.clock, ledger.Movement{
					Date:       now,
					Kind:       ledger.KindProducao,
					ProductID:  line.ProductID,
					Quantity:   line.Quantity,
					ColorID:    current.ColorID,
					OriginKind: ledger.OriginProductionOrder,
					OriginID:   current.ID,
				})
				if err != nil {
					return err
				}
				written++
			}
		}
		if err := tx.MarkProductionDone(ctx, current.ID, now); err != nil {
			return err
		}
		current.Status = StatusDone
		current.DoneAt = &now
		order = current
		return nil
	})
	if err != nil {
		return Order{}, shared.StorageError("production.execute", id, err)
	}
	s.logger.InfoContext(ctx, "production order executed", slog.Int64("order_id", id), slog.Int("movements", written))
	s.record(ctx, "production.execute", order)
	return order, nil
}

// BuildableQuantity delegates to the BOM graph.
func (s *Service) BuildableQuantity(ctx context.Context, productID int64) (bom.Buildable, error) {
	return s.buildable.BuildableQuantity(ctx, productID)
}

// Get fetches an order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetProductionOrder(ctx, id)
}

// List lists orders.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	return s.repo.ListProductionOrders(ctx, filter)
}

// CheckColors runs the color availability check without writing anything.
func (s *Service) CheckColors(ctx context.Context, id int64) (ColorReport, error) {
	order, err := s.repo.GetProductionOrder(ctx, id)
	if err != nil {
		return ColorReport{}, err
	}
	return s.colors.Check(ctx, s.repo, order)
}

func shortageError(ctx context.Context, lookup catalog.Lookup, order Order, report ColorReport) error {
	codes := make([]string, len(report.Shortages))
	for i, sh := range report.Shortages {
		codes[i] = sh.ProductCode
	}
	colorName := strconv.FormatInt(*order.ColorID, 10)
	if c, err := lookup.GetColor(ctx, *order.ColorID); err == nil {
		colorName = c.Name
	}
	msg := fmt.Sprintf("production: insufficient stock in color %s", colorName)
	if len(report.Alternatives) > 0 {
		msg += fmt.Sprintf(" (colors with enough stock: %s)", strings.Join(colorNames(report.Alternatives), ", "))
	}
	return ErrInsufficientColorStock.WithMessage("%s", msg).WithProducts(codes...)
}

func (s *Service) record(ctx context.Context, action string, order Order) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "production_order",
		EntityID: strconv.FormatInt(order.ID, 10),
		Meta:     map[string]any{"lines": len(order.Lines)},
		At:       s.clock.Now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
