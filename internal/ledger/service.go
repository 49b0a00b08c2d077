package ledger

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes ledger reads and the manual correction operations.
type Service struct {
	repo   RepositoryPort
	calc   *Calculator
	clock  shared.Clock
	audit  AuditPort
	logger *slog.Logger
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Cache  BalanceCache
	Clock  shared.Clock
	Audit  AuditPort
	Logger *slog.Logger
}

// NewService builds Service. A nil cache disables read-through caching.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	if cfg.Clock == nil {
		cfg.Clock = shared.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	calc := NewCalculator(repo, repo)
	if cfg.Cache != nil {
		calc = NewCachedCalculator(repo, repo, cfg.Cache, cfg.Logger)
	}
	return &Service{repo: repo, calc: calc, clock: cfg.Clock, audit: cfg.Audit, logger: cfg.Logger}
}

// Calculator exposes the read-side calculator for other read-only components.
func (s *Service) Calculator() *Calculator {
	return s.calc
}

// Scan lists movements ordered by (date, id).
func (s *Service) Scan(ctx context.Context, filter Filter) ([]Movement, error) {
	return s.repo.ScanMovements(ctx, filter)
}

// Balance returns the derived balance of a product, optionally for one color.
func (s *Service) Balance(ctx context.Context, productID int64, colorID *int64) (decimal.Decimal, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return decimal.Zero, err
	}
	return s.calc.Balance(ctx, productID, colorID)
}

// BalancesByColor returns the non-zero per-color balances of a product.
func (s *Service) BalancesByColor(ctx context.Context, productID int64) ([]ColorBalance, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.calc.BalancesByColor(ctx, productID)
}

// StockCard returns the matching movements with the running balance after
// each one. The opening balance covers everything before filter.From.
func (s *Service) StockCard(ctx context.Context, filter Filter) ([]StockCardEntry, error) {
	if filter.ProductID == 0 {
		return nil, ErrProductRequired
	}
	running := decimal.Zero
	if !filter.From.IsZero() {
		opening := Filter{ProductID: filter.ProductID, ColorID: filter.ColorID, To: filter.From.Add(-time.Nanosecond)}
		sum, err := Sum(ctx, s.repo, opening)
		if err != nil {
			return nil, err
		}
		running = sum
	}
	movements, err := s.repo.ScanMovements(ctx, filter)
	if err != nil {
		return nil, err
	}
	entries := make([]StockCardEntry, 0, len(movements))
	for _, m := range movements {
		running = running.Add(m.Quantity)
		entry := StockCardEntry{Movement: m, QtyIn: decimal.Zero, QtyOut: decimal.Zero, BalanceQty: running}
		if m.Quantity.IsPositive() {
			entry.QtyIn = m.Quantity
		} else {
			entry.QtyOut = m.Quantity.Neg()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// AdjustInput describes a manual correction.
type AdjustInput struct {
	ProductID int64
	ColorID   *int64
	Quantity  decimal.Decimal
	Note      string
}

// Adjust appends an ajuste movement for the product.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Movement, error) {
	if input.Quantity.IsZero() {
		return Movement{}, ErrInvalidQuantity
	}
	var written Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkTarget(ctx, tx, input.ProductID, input.ColorID); err != nil {
			return err
		}
		m, err := Append(ctx, tx, s.clock, Movement{
			Kind:       KindAjuste,
			ProductID:  input.ProductID,
			ColorID:    input.ColorID,
			Quantity:   input.Quantity,
			OriginKind: OriginAdjustment,
			Note:       input.Note,
		})
		if err != nil {
			return err
		}
		written = m
		return nil
	})
	if err != nil {
		return Movement{}, shared.StorageError("ledger.adjust", 0, err)
	}
	s.record(ctx, "ledger.adjust", written)
	return written, nil
}

// ReconcileResult reports a physical count against the ledger.
type ReconcileResult struct {
	Balance    decimal.Decimal `json:"balance"`
	Counted    decimal.Decimal `json:"counted"`
	Difference decimal.Decimal `json:"difference"`
	Movement   *Movement       `json:"movement,omitempty"`
}

// Reconcile appends an ajuste of counted minus balance. A difference that is
// zero within Epsilon writes nothing.
func (s *Service) Reconcile(ctx context.Context, productID int64, colorID *int64, counted decimal.Decimal) (ReconcileResult, error) {
	if counted.IsNegative() {
		return ReconcileResult{}, shared.Validation("ledger: counted quantity must not be negative")
	}
	var result ReconcileResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkTarget(ctx, tx, productID, colorID); err != nil {
			return err
		}
		balance, err := NewCalculator(tx, tx).Balance(ctx, productID, colorID)
		if err != nil {
			return err
		}
		diff := counted.Sub(balance)
		result = ReconcileResult{Balance: balance, Counted: counted, Difference: diff}
		if IsZero(diff) {
			result.Difference = decimal.Zero
			return nil
		}
		m, err := Append(ctx, tx, s.clock, Movement{
			Kind:       KindAjuste,
			ProductID:  productID,
			ColorID:    colorID,
			Quantity:   diff,
			OriginKind: OriginReconciliation,
			Note:       "physical count " + counted.String(),
		})
		if err != nil {
			return err
		}
		result.Movement = &m
		return nil
	})
	if err != nil {
		return ReconcileResult{}, shared.StorageError("ledger.reconcile", 0, err)
	}
	if result.Movement != nil {
		s.record(ctx, "ledger.reconcile", *result.Movement)
	}
	return result, nil
}

func checkTarget(ctx context.Context, tx TxRepository, productID int64, colorID *int64) error {
	if productID == 0 {
		return ErrProductRequired
	}
	if _, err := tx.GetProduct(ctx, productID); err != nil {
		return err
	}
	if colorID != nil {
		if _, err := tx.GetColor(ctx, *colorID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, m Movement) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "movement",
		EntityID: strconv.FormatInt(m.ID, 10),
		Meta: map[string]any{
			"product_id": m.ProductID,
			"quantity":   m.Quantity.String(),
		},
		At: s.clock.Now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
