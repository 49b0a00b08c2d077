package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
	"github.com/odyssey-erp/odyssey-stock/internal/procurement"
	"github.com/odyssey-erp/odyssey-stock/internal/production"
	"github.com/odyssey-erp/odyssey-stock/internal/sales"
)

type catalogPort struct {
	Tx
	store *Store
}

func (p catalogPort) WithTx(ctx context.Context, fn func(context.Context, catalog.TxRepository) error) error {
	return p.store.run(ctx, func(ctx context.Context, tx Tx) error { return fn(ctx, tx) })
}

// Catalog returns the catalog repository port.
func (s *Store) Catalog() catalog.RepositoryPort {
	return catalogPort{Tx: s.Reader(), store: s}
}

type ledgerPort struct {
	Tx
	store *Store
}

func (p ledgerPort) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	return p.store.run(ctx, func(ctx context.Context, tx Tx) error { return fn(ctx, tx) })
}

func (p ledgerPort) SumMovements(ctx context.Context, filter ledger.Filter) (decimal.Decimal, error) {
	return ledger.Sum(ctx, p.Tx, filter)
}

// Ledger returns the ledger repository port.
func (s *Store) Ledger() ledger.RepositoryPort {
	return ledgerPort{Tx: s.Reader(), store: s}
}

type bomPort struct {
	Tx
	store *Store
}

func (p bomPort) WithTx(ctx context.Context, fn func(context.Context, bom.TxRepository) error) error {
	return p.store.run(ctx, func(ctx context.Context, tx Tx) error { return fn(ctx, tx) })
}

// BOM returns the BOM repository port.
func (s *Store) BOM() bom.RepositoryPort {
	return bomPort{Tx: s.Reader(), store: s}
}

type productionPort struct {
	Tx
	store *Store
}

func (p productionPort) WithTx(ctx context.Context, fn func(context.Context, production.TxRepository) error) error {
	return p.store.run(ctx, func(ctx context.Context, tx Tx) error { return fn(ctx, tx) })
}

// Production returns the production repository port.
func (s *Store) Production() production.RepositoryPort {
	return productionPort{Tx: s.Reader(), store: s}
}

type purchasePort struct {
	Tx
	store *Store
}

func (p purchasePort) WithTx(ctx context.Context, fn func(context.Context, procurement.TxRepository) error) error {
	return p.store.run(ctx, func(ctx context.Context, tx Tx) error { return fn(ctx, tx) })
}

// Purchases returns the procurement repository port.
func (s *Store) Purchases() procurement.RepositoryPort {
	return purchasePort{Tx: s.Reader(), store: s}
}

type salesPort struct {
	Tx
	store *Store
}

func (p salesPort) WithTx(ctx context.Context, fn func(context.Context, sales.TxRepository) error) error {
	return p.store.run(ctx, func(ctx context.Context, tx Tx) error { return fn(ctx, tx) })
}

// Sales returns the sales repository port.
func (s *Store) Sales() sales.RepositoryPort {
	return salesPort{Tx: s.Reader(), store: s}
}
