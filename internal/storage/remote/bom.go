package remote

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
)

// Recipes live in one hash per fabricated product, keyed by input id.

func (r *repo) ListEdges(ctx context.Context, fabricatedID int64) ([]bom.Edge, error) {
	raw, err := r.b.rdb.HGetAll(ctx, r.b.key("bom", id(fabricatedID))).Result()
	if err != nil {
		return nil, err
	}
	edges := make([]bom.Edge, 0, len(raw))
	for _, v := range raw {
		var e bom.Edge
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].InputID < edges[j].InputID })
	return edges, nil
}

func (r *repo) UpsertEdge(ctx context.Context, edge bom.Edge) error {
	key := r.b.key("bom", id(edge.FabricatedID))
	field := id(edge.InputID)
	raw, err := json.Marshal(edge)
	if err != nil {
		return err
	}
	prev, err := r.b.rdb.HGet(ctx, key, field).Result()
	existed := err == nil
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if err := r.b.rdb.HSet(ctx, key, field, raw).Err(); err != nil {
		return err
	}
	r.record("bom "+key+" "+field, func(ctx context.Context) error {
		if !existed {
			return r.b.rdb.HDel(ctx, key, field).Err()
		}
		return r.b.rdb.HSet(ctx, key, field, prev).Err()
	})
	return nil
}

func (r *repo) DeleteEdge(ctx context.Context, fabricatedID, inputID int64) (bool, error) {
	key := r.b.key("bom", id(fabricatedID))
	field := id(inputID)
	prev, err := r.b.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := r.b.rdb.HDel(ctx, key, field).Err(); err != nil {
		return false, err
	}
	r.record("bom "+key+" "+field, func(ctx context.Context) error {
		return r.b.rdb.HSet(ctx, key, field, prev).Err()
	})
	return true, nil
}
