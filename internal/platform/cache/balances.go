package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// BumpChannel carries the keys whose balances changed.
const BumpChannel = "stock.bump"

// Balances caches derived stock balances. Every balance key has its own
// version counter; a fill is stored under the version read before the sum,
// so a write that lands mid-fill leaves the fill unreachable.
type Balances struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewBalances instantiates the balance cache.
func NewBalances(client *redis.Client, prefix string, ttl time.Duration) *Balances {
	if prefix == "" {
		prefix = "odyssey"
	}
	return &Balances{client: client, prefix: prefix, ttl: ttl}
}

func (b *Balances) versionKey(key string) string {
	return b.prefix + ":balance_version:" + key
}

func (b *Balances) valueKey(key string, version int64) string {
	return b.prefix + ":balance:" + key + ":" + strconv.FormatInt(version, 10)
}

// Version returns the current version of key, zero when never bumped.
func (b *Balances) Version(ctx context.Context, key string) (int64, error) {
	ver, err := b.client.Get(ctx, b.versionKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// Get loads the balance cached for key at version.
func (b *Balances) Get(ctx context.Context, key string, version int64) (decimal.Decimal, bool, error) {
	raw, err := b.client.Get(ctx, b.valueKey(key, version)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	qty, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, err
	}
	return qty, true, nil
}

// Set stores qty for key at version.
func (b *Balances) Set(ctx context.Context, key string, version int64, qty decimal.Decimal) error {
	return b.client.Set(ctx, b.valueKey(key, version), qty.String(), b.ttl).Err()
}

// Invalidate bumps the version of every key and announces the bump.
func (b *Balances) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, b.versionKey(key))
		}
		pipe.Publish(ctx, BumpChannel, strings.Join(keys, ","))
		return nil
	})
	return err
}
