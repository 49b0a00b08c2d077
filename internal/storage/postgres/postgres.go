// Package postgres is the PostgreSQL storage backend. Units of work are
// read-committed transactions; order and product rows are locked with
// SELECT ... FOR UPDATE before they are read for a state change.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-stock/internal/platform/db"
	"github.com/odyssey-erp/odyssey-stock/internal/storage"
)

//go:embed schema.sql
var schema string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Backend persists everything in PostgreSQL.
type Backend struct {
	pool *pgxpool.Pool
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

var _ storage.Backend = (*Backend)(nil)

// Migrate creates missing tables and indexes.
func (b *Backend) Migrate(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("storage/postgres: migrate: %w", err)
	}
	return nil
}

// WithTx implements storage.Backend.
func (b *Backend) WithTx(ctx context.Context, fn func(context.Context, storage.Tx) error) error {
	return db.WithTx(ctx, b.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repo{q: tx, locking: true})
	})
}

// Reader implements storage.Backend.
func (b *Backend) Reader() storage.Tx {
	return &repo{q: b.pool}
}

// Close implements storage.Backend.
func (b *Backend) Close() {
	b.pool.Close()
}

// repo implements storage.Tx over a querier. locking enables FOR UPDATE
// clauses, which only make sense inside a transaction.
type repo struct {
	q       querier
	locking bool
}

func (r *repo) forUpdate() string {
	if r.locking {
		return " FOR UPDATE"
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(err error, domainErr error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domainErr
	}
	return err
}
