// Package storage binds the domain repository ports to one storage backend
// chosen at start-up, and keeps the balance cache coherent with the ledger.
package storage

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/procurement"
	"github.com/odyssey-erp/odyssey-stock/internal/production"
	"github.com/odyssey-erp/odyssey-stock/internal/sales"
)

// Tx is every operation a unit of work may perform.
type Tx interface {
	catalog.TxRepository
	ledger.TxRepository
	bom.TxRepository
	production.TxRepository
	procurement.TxRepository
	sales.TxRepository
}

// Backend runs units of work against one persistence technology.
type Backend interface {
	// WithTx runs fn as one unit of work; any error undoes its writes.
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	// Reader serves reads outside a unit of work.
	Reader() Tx
	Close()
}

// Metrics receives storage events.
type Metrics interface {
	MovementAppended(kind string)
	UnitOfWork(failed bool)
}

type nopMetrics struct{}

func (nopMetrics) MovementAppended(string) {}
func (nopMetrics) UnitOfWork(bool)         {}

// Options configures Store.
type Options struct {
	Cache   ledger.BalanceCache
	Metrics Metrics
	Logger  *slog.Logger
}

// Store hands out the per-domain repository ports.
type Store struct {
	backend Backend
	cache   ledger.BalanceCache
	metrics Metrics
	logger  *slog.Logger
}

// New wraps backend.
func New(backend Backend, opts Options) *Store {
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{backend: backend, cache: opts.Cache, metrics: opts.Metrics, logger: opts.Logger}
}

// Close releases the backend.
func (s *Store) Close() {
	s.backend.Close()
}

// Reader exposes non-transactional reads.
func (s *Store) Reader() Tx {
	return s.backend.Reader()
}

// run executes fn in one unit of work and then drops the cached balances of
// every key an append touched, whether the unit committed or not.
func (s *Store) run(ctx context.Context, fn func(context.Context, Tx) error) error {
	var touched map[string]struct{}
	err := s.backend.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		touched = make(map[string]struct{})
		return fn(ctx, &trackingTx{Tx: tx, touched: touched, metrics: s.metrics})
	})
	s.metrics.UnitOfWork(err != nil)
	s.invalidate(ctx, touched)
	return err
}

func (s *Store) invalidate(ctx context.Context, touched map[string]struct{}) {
	if s.cache == nil || len(touched) == 0 {
		return
	}
	keys := make([]string, 0, len(touched))
	for k := range touched {
		keys = append(keys, k)
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), keys...); err != nil {
		s.logger.ErrorContext(ctx, "balance cache invalidation failed", slog.Any("keys", keys), slog.Any("error", err))
	}
}

// trackingTx records the balance keys touched by appends.
type trackingTx struct {
	Tx
	touched map[string]struct{}
	metrics Metrics
}

func (t *trackingTx) AppendMovement(ctx context.Context, m ledger.Movement) (ledger.Movement, error) {
	for _, k := range ledger.TouchedKeys(m) {
		t.touched[k] = struct{}{}
	}
	written, err := t.Tx.AppendMovement(ctx, m)
	if err != nil {
		return ledger.Movement{}, err
	}
	t.metrics.MovementAppended(string(written.Kind))
	return written, nil
}

// SumMovements keeps the backend's summing push-down reachable through the
// wrapper.
func (t *trackingTx) SumMovements(ctx context.Context, filter ledger.Filter) (decimal.Decimal, error) {
	return ledger.Sum(ctx, t.Tx, filter)
}
