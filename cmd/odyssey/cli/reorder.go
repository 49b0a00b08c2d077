package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/odyssey-erp/odyssey-stock/internal/reorder"
)

// BelowMinimumLister lists products under their reorder minimum.
type BelowMinimumLister interface {
	BelowMinimumList(ctx context.Context) ([]reorder.BelowMinimum, error)
}

// ReorderCLI prints reorder reports.
type ReorderCLI struct {
	advisor BelowMinimumLister
}

// NewReorderCLI constructs the helper.
func NewReorderCLI(advisor BelowMinimumLister) *ReorderCLI {
	return &ReorderCLI{advisor: advisor}
}

// ReportOptions defines the flags of the below-minimum report.
type ReportOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ReportSummary is the JSON form of the report.
type ReportSummary struct {
	OK    bool                   `json:"ok"`
	Items []reorder.BelowMinimum `json:"items"`
}

// ExitBelowMinimum is returned when at least one product needs reordering.
const ExitBelowMinimum = 10

// BelowMinimumCommand prints products under their minimum. It exits 0 when
// none are, ExitBelowMinimum when some are and 1 on failure.
func (c *ReorderCLI) BelowMinimumCommand(ctx context.Context, opts ReportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	items, err := c.advisor.BelowMinimumList(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "reorder report: %v\n", err)
		return 1
	}
	if items == nil {
		items = []reorder.BelowMinimum{}
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(ReportSummary{OK: len(items) == 0, Items: items}); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "reorder report: encode json: %v\n", err)
			return 1
		}
	} else {
		renderReport(opts.Stdout, items)
	}
	if len(items) > 0 {
		return ExitBelowMinimum
	}
	return 0
}

func renderReport(out io.Writer, items []reorder.BelowMinimum) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(out, "No product is below its reorder minimum.")
		return
	}
	_, _ = fmt.Fprintf(out, "%d product(s) below minimum:\n", len(items))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CODE\tDESCRIPTION\tBALANCE\tMINIMUM\tDEFICIT")
	for _, item := range items {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			item.ProductCode, item.Description, item.Balance.String(), item.ReorderMin.String(), item.Deficit.String())
	}
	_ = tw.Flush()
}
