// Package remote is the Redis storage backend. Redis offers no multi-key
// transaction spanning reads and writes, so a unit of work runs as a saga:
// every write records its inverse, and a failed unit replays the inverses
// newest first. Ledger appends are never deleted; they are compensated with
// an opposite ajuste. Order and product locks are redislock leases.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-stock/internal/shared"
	"github.com/odyssey-erp/odyssey-stock/internal/storage"
)

// Metrics receives saga outcomes.
type Metrics interface {
	Compensation(failed bool)
}

type nopMetrics struct{}

func (nopMetrics) Compensation(bool) {}

// Options configures Backend.
type Options struct {
	Prefix  string
	LockTTL time.Duration
	Clock   shared.Clock
	Metrics Metrics
	Logger  *slog.Logger
}

// Backend persists aggregates as JSON documents in Redis.
type Backend struct {
	rdb     *redis.Client
	locker  *redislock.Client
	prefix  string
	lockTTL time.Duration
	clock   shared.Clock
	metrics Metrics
	logger  *slog.Logger
}

// New wraps an open Redis client.
func New(rdb *redis.Client, opts Options) *Backend {
	if opts.Prefix == "" {
		opts.Prefix = "odyssey"
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Backend{
		rdb:     rdb,
		locker:  redislock.New(rdb),
		prefix:  opts.Prefix,
		lockTTL: opts.LockTTL,
		clock:   opts.Clock,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

var _ storage.Backend = (*Backend)(nil)

// WithTx implements storage.Backend.
func (b *Backend) WithTx(ctx context.Context, fn func(context.Context, storage.Tx) error) error {
	tx := &repo{b: b, saga: &saga{id: uuid.NewString()}, locks: make(map[string]*redislock.Lock)}
	defer tx.releaseLocks(context.WithoutCancel(ctx))

	err := fn(ctx, tx)
	if err == nil {
		return nil
	}
	if compErr := tx.compensate(context.WithoutCancel(ctx)); compErr != nil {
		b.logger.ErrorContext(ctx, "saga compensation incomplete",
			slog.String("saga_id", tx.saga.id), slog.Any("cause", err), slog.Any("error", compErr))
		return errors.Join(err, compErr)
	}
	return err
}

// Reader implements storage.Backend.
func (b *Backend) Reader() storage.Tx {
	return &repo{b: b}
}

// Close implements storage.Backend.
func (b *Backend) Close() {
	_ = b.rdb.Close()
}

func (b *Backend) key(parts ...string) string {
	return b.prefix + ":" + strings.Join(parts, ":")
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

type step struct {
	name string
	undo func(context.Context) error
}

type saga struct {
	id    string
	steps []step
}

// repo implements storage.Tx. Outside a unit of work saga is nil and writes
// are not recorded.
type repo struct {
	b     *Backend
	saga  *saga
	locks map[string]*redislock.Lock
}

func (r *repo) record(name string, undo func(context.Context) error) {
	if r.saga == nil {
		return
	}
	r.saga.steps = append(r.saga.steps, step{name: name, undo: undo})
}

func (r *repo) compensate(ctx context.Context) error {
	var errs []error
	for i := len(r.saga.steps) - 1; i >= 0; i-- {
		s := r.saga.steps[i]
		if err := s.undo(ctx); err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", s.name, err))
		}
	}
	err := errors.Join(errs...)
	r.b.metrics.Compensation(err != nil)
	r.b.logger.WarnContext(ctx, "saga compensated",
		slog.String("saga_id", r.saga.id), slog.Int("steps", len(r.saga.steps)), slog.Int("failed", len(errs)))
	return err
}

// lock obtains a lease on name for the rest of the unit of work.
func (r *repo) lock(ctx context.Context, name string) error {
	if r.locks == nil {
		return nil
	}
	if _, held := r.locks[name]; held {
		return nil
	}
	lock, err := r.b.locker.Obtain(ctx, r.b.key("lock", name), r.b.lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 200),
	})
	if err != nil {
		return fmt.Errorf("lock %s: %w", name, err)
	}
	r.locks[name] = lock
	return nil
}

func (r *repo) releaseLocks(ctx context.Context) {
	for name, lock := range r.locks {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.b.logger.WarnContext(ctx, "lock release failed", slog.String("lock", name), slog.Any("error", err))
		}
	}
}

func (r *repo) nextID(ctx context.Context, table string) (int64, error) {
	return r.b.rdb.Incr(ctx, r.b.key("seq", table)).Result()
}

// load reads the JSON document at key into v and reports whether it exists.
func (r *repo) load(ctx context.Context, key string, v any) (bool, error) {
	raw, err := r.b.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, v)
}

// save writes v at key and records the restore of the previous value.
func (r *repo) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	prev, err := r.b.rdb.Get(ctx, key).Bytes()
	existed := err == nil
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if err := r.b.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return err
	}
	r.record("set "+key, func(ctx context.Context) error {
		if !existed {
			return r.b.rdb.Del(ctx, key).Err()
		}
		return r.b.rdb.Set(ctx, key, prev, 0).Err()
	})
	return nil
}

// claim sets key to value only when absent, recording its removal.
func (r *repo) claim(ctx context.Context, key, value string) (bool, error) {
	ok, err := r.b.rdb.SetNX(ctx, key, value, 0).Result()
	if err != nil || !ok {
		return false, err
	}
	r.record("claim "+key, func(ctx context.Context) error {
		return r.b.rdb.Del(ctx, key).Err()
	})
	return true, nil
}

// release deletes key, recording its restore.
func (r *repo) release(ctx context.Context, key string) error {
	prev, err := r.b.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.b.rdb.Del(ctx, key).Err(); err != nil {
		return err
	}
	r.record("release "+key, func(ctx context.Context) error {
		return r.b.rdb.Set(ctx, key, prev, 0).Err()
	})
	return nil
}

// index adds member to a sorted-set index scored by id.
func (r *repo) index(ctx context.Context, set string, member int64) error {
	if err := r.b.rdb.ZAdd(ctx, set, redis.Z{Score: float64(member), Member: id(member)}).Err(); err != nil {
		return err
	}
	r.record("index "+set, func(ctx context.Context) error {
		return r.b.rdb.ZRem(ctx, set, id(member)).Err()
	})
	return nil
}

func (r *repo) members(ctx context.Context, set string) ([]int64, error) {
	raw, err := r.b.rdb.ZRange(ctx, set, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, v)
	}
	return ids, nil
}

// loadAll fetches the documents of every member of set in one MGET.
func loadAll[T any](ctx context.Context, r *repo, set, doc string) ([]T, error) {
	ids, err := r.members(ctx, set)
	if err != nil || len(ids) == 0 {
		return []T{}, err
	}
	keys := make([]string, len(ids))
	for i, v := range ids {
		keys[i] = r.b.key(doc, id(v))
	}
	raw, err := r.b.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func sortDesc[T any](items []T, key func(T) int64) {
	sort.Slice(items, func(i, j int) bool { return key(items[i]) > key(items[j]) })
}
