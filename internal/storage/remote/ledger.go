package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
)

// AppendMovement writes the movement and indexes it globally and per product.
// Its compensation is an opposite ajuste, never a delete.
func (r *repo) AppendMovement(ctx context.Context, m ledger.Movement) (ledger.Movement, error) {
	written, err := r.appendRaw(ctx, m)
	if err != nil {
		return ledger.Movement{}, err
	}
	if r.saga != nil {
		sagaID := r.saga.id
		r.record(fmt.Sprintf("movement %d", written.ID), func(ctx context.Context) error {
			_, err := r.appendRaw(ctx, written.Reversal(written.Date, "saga "+sagaID+" compensation"))
			return err
		})
	}
	return written, nil
}

func (r *repo) appendRaw(ctx context.Context, m ledger.Movement) (ledger.Movement, error) {
	movementID, err := r.nextID(ctx, "movement")
	if err != nil {
		return ledger.Movement{}, err
	}
	m.ID = movementID
	m.CreatedAt = r.b.clock.Now()
	raw, err := json.Marshal(m)
	if err != nil {
		return ledger.Movement{}, err
	}
	z := redis.Z{Score: float64(movementID), Member: id(movementID)}
	_, err = r.b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.b.key("movement", id(movementID)), raw, 0)
		pipe.ZAdd(ctx, r.b.key("movements"), z)
		pipe.ZAdd(ctx, r.b.key("movements", "product", id(m.ProductID)), z)
		return nil
	})
	if err != nil {
		return ledger.Movement{}, err
	}
	return m, nil
}

func (r *repo) ScanMovements(ctx context.Context, filter ledger.Filter) ([]ledger.Movement, error) {
	set := r.b.key("movements")
	if filter.ProductID != 0 {
		set = r.b.key("movements", "product", id(filter.ProductID))
	}
	all, err := loadAll[ledger.Movement](ctx, r, set, "movement")
	if err != nil {
		return nil, err
	}
	movements := make([]ledger.Movement, 0, len(all))
	for _, m := range all {
		if filter.Matches(m) {
			movements = append(movements, m)
		}
	}
	sort.SliceStable(movements, func(i, j int) bool {
		if !movements[i].Date.Equal(movements[j].Date) {
			return movements[i].Date.Before(movements[j].Date)
		}
		return movements[i].ID < movements[j].ID
	})
	if filter.Limit > 0 && len(movements) > filter.Limit {
		movements = movements[:filter.Limit]
	}
	return movements, nil
}
