package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/observability"
	"github.com/odyssey-erp/odyssey-stock/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-stock/internal/platform/db"
	"github.com/odyssey-erp/odyssey-stock/internal/procurement"
	"github.com/odyssey-erp/odyssey-stock/internal/production"
	"github.com/odyssey-erp/odyssey-stock/internal/reorder"
	"github.com/odyssey-erp/odyssey-stock/internal/sales"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
	"github.com/odyssey-erp/odyssey-stock/internal/storage"
	"github.com/odyssey-erp/odyssey-stock/internal/storage/memory"
	"github.com/odyssey-erp/odyssey-stock/internal/storage/postgres"
	"github.com/odyssey-erp/odyssey-stock/internal/storage/remote"
	"github.com/odyssey-erp/odyssey-stock/jobs"
)

// Services groups the domain services of one process.
type Services struct {
	Catalog     *catalog.Service
	Ledger      *ledger.Service
	BOM         *bom.Graph
	Production  *production.Service
	Procurement *procurement.Service
	Sales       *sales.Service
	Reorder     *reorder.Advisor
}

// Container owns the infrastructure of one process and the services wired on
// top of it.
type Container struct {
	Config   *Config
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Store    *storage.Store
	Services Services

	// Idempotency is nil when no shared store is available.
	Idempotency shared.IdempotencyGuard
	// KeyCleaner purges expired idempotency keys; nil when keys expire on their own.
	KeyCleaner jobs.KeyCleaner

	pool  *pgxpool.Pool
	redis *redis.Client
}

// Build connects the configured backend and wires every service.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{Config: cfg, Logger: logger, Metrics: metrics}

	if cfg.StorageBackend != BackendMemory || cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			if cfg.StorageBackend != BackendMemory {
				return nil, fmt.Errorf("connect redis: %w", err)
			}
			logger.Warn("redis unavailable, running without balance cache", slog.Any("error", err))
		} else {
			c.redis = client
		}
	}

	var (
		backend storage.Backend
		audit   shared.AuditRecorder = shared.LogAuditor{Logger: logger}
		colors  production.ColorChecker
	)
	switch cfg.StorageBackend {
	case BackendPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGMaxConnLifetime})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.pool = pool
		pg := postgres.New(pool)
		if cfg.AutoMigrate && !InTestMode() {
			if err := pg.Migrate(ctx); err != nil {
				c.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		backend = pg
		audit = shared.NewAuditLogger(pool)
		keys := shared.NewIdempotencyStore(pool)
		c.Idempotency = keys
		c.KeyCleaner = keys
		colors = production.LedgerColorChecker{}
	case BackendRemote:
		backend = remote.New(c.redis, remote.Options{
			Prefix:  cfg.RedisPrefix,
			LockTTL: cfg.RedisLockTTL,
			Metrics: metrics,
			Logger:  logger,
		})
		c.Idempotency = shared.NewRedisIdempotencyStore(c.redis, cfg.IdempotencyTTL)
		colors = production.PermissiveColorChecker{Logger: logger}
	case BackendMemory:
		backend = memory.New(shared.SystemClock{})
		if c.redis != nil {
			c.Idempotency = shared.NewRedisIdempotencyStore(c.redis, cfg.IdempotencyTTL)
		}
		colors = production.LedgerColorChecker{}
	default:
		c.Close()
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	var balanceCache ledger.BalanceCache
	if c.redis != nil {
		balanceCache = cache.NewBalances(c.redis, cfg.RedisPrefix, cfg.BalanceCacheTTL)
	}
	c.Store = storage.New(backend, storage.Options{Cache: balanceCache, Metrics: metrics, Logger: logger})
	c.Services = NewServices(c.Store, ServicesConfig{
		Cache:   balanceCache,
		Audit:   audit,
		Colors:  colors,
		Reorder: cfg.ReorderConfig(),
		Logger:  logger,
	})
	logger.Info("storage ready", slog.String("backend", cfg.StorageBackend))
	return c, nil
}

// ServicesConfig carries the collaborators shared by every service.
type ServicesConfig struct {
	Cache   ledger.BalanceCache
	Clock   shared.Clock
	Audit   shared.AuditRecorder
	Colors  production.ColorChecker
	Reorder reorder.Config
	Logger  *slog.Logger
}

// NewServices wires the domain services over store.
func NewServices(store *storage.Store, cfg ServicesConfig) Services {
	if cfg.Clock == nil {
		cfg.Clock = shared.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Audit == nil {
		cfg.Audit = shared.LogAuditor{Logger: cfg.Logger}
	}
	ledgerSvc := ledger.NewService(store.Ledger(), ledger.ServiceConfig{
		Cache:  cfg.Cache,
		Clock:  cfg.Clock,
		Audit:  cfg.Audit,
		Logger: cfg.Logger,
	})
	balances := ledgerSvc.Calculator()
	graph := bom.NewGraph(store.BOM(), balances, cfg.Logger)
	return Services{
		Catalog: catalog.NewService(store.Catalog(), cfg.Clock, cfg.Logger),
		Ledger:  ledgerSvc,
		BOM:     graph,
		Production: production.NewService(store.Production(), graph, production.ServiceConfig{
			Colors: cfg.Colors,
			Clock:  cfg.Clock,
			Audit:  cfg.Audit,
			Logger: cfg.Logger,
		}),
		Procurement: procurement.NewService(store.Purchases(), cfg.Clock, cfg.Audit, cfg.Logger),
		Sales:       sales.NewService(store.Sales(), cfg.Clock, cfg.Audit, cfg.Logger),
		Reorder:     reorder.NewAdvisor(store.Reader(), balances, cfg.Clock, cfg.Reorder, cfg.Logger),
	}
}

// ReorderConfig returns the advisor parameters. Zero fields take the
// advisor defaults.
func (c *Config) ReorderConfig() reorder.Config {
	return reorder.Config{
		WindowDays:    c.ReorderWindowDays,
		LeadDays:      c.ReorderLeadDays,
		SafetyDays:    c.ReorderSafetyDays,
		CoverageWeeks: c.ReorderCoverageWeeks,
	}
}

// RedisOpts returns the asynq connection options, or false without redis.
func (c *Container) RedisOpts() (asynq.RedisClientOpt, bool) {
	if c.redis == nil {
		return asynq.RedisClientOpt{}, false
	}
	return asynq.RedisClientOpt{Addr: c.Config.RedisAddr, Password: c.Config.RedisPassword, DB: c.Config.RedisDB}, true
}

// Router builds the HTTP handler. jobHandler may be nil.
func (c *Container) Router(jobHandler *jobs.Handler) http.Handler {
	s := c.Services
	return NewRouter(RouterParams{
		Logger:             c.Logger,
		Config:             c.Config,
		Metrics:            c.Metrics,
		Idempotency:        c.Idempotency,
		CatalogHandler:     catalog.NewHandler(c.Logger, s.Catalog),
		LedgerHandler:      ledger.NewHandler(c.Logger, s.Ledger),
		BOMHandler:         bom.NewHandler(c.Logger, s.BOM),
		ProductionHandler:  production.NewHandler(c.Logger, s.Production),
		ProcurementHandler: procurement.NewHandler(c.Logger, s.Procurement),
		SalesHandler:       sales.NewHandler(c.Logger, s.Sales),
		ReorderHandler:     reorder.NewHandler(c.Logger, s.Reorder),
		JobHandler:         jobHandler,
	})
}

// Close releases every connection the container opened.
func (c *Container) Close() {
	if c.Store != nil {
		c.Store.Close()
	} else if c.pool != nil {
		c.pool.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
}
