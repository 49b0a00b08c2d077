package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
)

func TestMovementWhere(t *testing.T) {
	where, args := movementWhere(ledger.Filter{})
	require.Empty(t, where)
	require.Empty(t, args)

	color := int64(3)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args = movementWhere(ledger.Filter{
		ProductID: 9,
		ColorID:   &color,
		Kinds:     []ledger.Kind{ledger.KindSaida},
		From:      from,
	})
	require.Equal(t, " WHERE product_id = $1 AND color_id = $2 AND kind = ANY($3) AND date >= $4", where)
	require.Equal(t, []any{int64(9), int64(3), []string{"saida"}, from}, args)

	where, args = movementWhere(ledger.Filter{OriginKind: ledger.OriginSale, OriginID: 12})
	require.Equal(t, " WHERE origin_kind = $1 AND origin_id = $2", where)
	require.Equal(t, []any{"sale", int64(12)}, args)
}
