package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/reorder"
)

type stubLister struct {
	items []reorder.BelowMinimum
	err   error
}

func (s stubLister) BelowMinimumList(context.Context) ([]reorder.BelowMinimum, error) {
	return s.items, s.err
}

func TestBelowMinimumCommandJSON(t *testing.T) {
	cli := NewReorderCLI(stubLister{items: []reorder.BelowMinimum{{
		ProductID:   3,
		ProductCode: "TEC-01",
		Description: "Tecido azul",
		ReorderMin:  decimal.NewFromInt(10),
		Balance:     decimal.NewFromInt(4),
		Deficit:     decimal.NewFromInt(6),
	}}})

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := cli.BelowMinimumCommand(context.Background(), ReportOptions{JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, ExitBelowMinimum, code)
	require.Empty(t, stderr.String())

	var summary ReportSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Len(t, summary.Items, 1)
	require.Equal(t, "TEC-01", summary.Items[0].ProductCode)
	require.True(t, summary.Items[0].Deficit.Equal(decimal.NewFromInt(6)))
}

func TestBelowMinimumCommandHumanEmpty(t *testing.T) {
	stdout := new(bytes.Buffer)
	code := NewReorderCLI(stubLister{}).BelowMinimumCommand(context.Background(), ReportOptions{Stdout: stdout})
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "No product is below")
}

func TestBelowMinimumCommandFailure(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := NewReorderCLI(stubLister{err: errors.New("boom")}).BelowMinimumCommand(context.Background(), ReportOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "boom")
}

func TestJobsCLIRequiresAddress(t *testing.T) {
	_, err := NewJobsCLI(asynq.RedisClientOpt{})
	require.Error(t, err)
}
