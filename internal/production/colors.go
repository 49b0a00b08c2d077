package production

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-stock/internal/bom"
	"github.com/odyssey-erp/odyssey-stock/internal/catalog"
	"github.com/odyssey-erp/odyssey-stock/internal/ledger"
)

// ColorChecker decides whether the order color has enough stock of every
// color-tracked input across all lines.
type ColorChecker interface {
	Check(ctx context.Context, src CheckSource, order Order) (ColorReport, error)
}

// LedgerColorChecker checks the per-color ledger balances.
type LedgerColorChecker struct{}

// Check implements ColorChecker.
func (LedgerColorChecker) Check(ctx context.Context, src CheckSource, order Order) (ColorReport, error) {
	if order.ColorID == nil {
		return ColorReport{Available: true}, nil
	}
	required, codes, err := colorDemand(ctx, src, order)
	if err != nil {
		return ColorReport{}, err
	}
	if len(required) == 0 {
		return ColorReport{Available: true}, nil
	}

	ids := make([]int64, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return codes[ids[i]] < codes[ids[j]] })

	report := ColorReport{Available: true}
	for _, id := range ids {
		available, err := ledger.Sum(ctx, src, ledger.Filter{ProductID: id, ColorID: order.ColorID})
		if err != nil {
			return ColorReport{}, err
		}
		if available.LessThan(required[id]) {
			report.Available = false
			report.Shortages = append(report.Shortages, Shortage{
				ProductID:   id,
				ProductCode: codes[id],
				Required:    required[id],
				Available:   available,
			})
		}
	}
	if report.Available {
		return report, nil
	}

	colors, err := src.ListColors(ctx)
	if err != nil {
		return ColorReport{}, err
	}
	for _, c := range colors {
		if c.ID == *order.ColorID {
			continue
		}
		colorID := c.ID
		fits := true
		for _, id := range ids {
			available, err := ledger.Sum(ctx, src, ledger.Filter{ProductID: id, ColorID: &colorID})
			if err != nil {
				return ColorReport{}, err
			}
			if available.LessThan(required[id]) {
				fits = false
				break
			}
		}
		if fits {
			report.Alternatives = append(report.Alternatives, c)
		}
	}
	coll := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	sort.Slice(report.Alternatives, func(i, j int) bool {
		return coll.CompareString(report.Alternatives[i].Name, report.Alternatives[j].Name) < 0
	})
	return report, nil
}

// colorDemand sums the color-tracked input requirements of every line.
func colorDemand(ctx context.Context, src CheckSource, order Order) (map[int64]decimal.Decimal, map[int64]string, error) {
	required := make(map[int64]decimal.Decimal)
	codes := make(map[int64]string)
	for _, line := range order.Lines {
		inputs, err := bom.ListInputs(ctx, src, line.ProductID)
		if err != nil {
			return nil, nil, err
		}
		for _, in := range inputs {
			if !in.TrackedByColor {
				continue
			}
			required[in.InputID] = required[in.InputID].Add(in.QtyPerUnit.Mul(line.Quantity))
			codes[in.InputID] = in.InputCode
		}
	}
	return required, codes, nil
}

// PermissiveColorChecker always reports the color as available. It backs
// the remote store, where a cross-check over independent calls is not
// attempted.
type PermissiveColorChecker struct {
	Logger *slog.Logger
}

// Check implements ColorChecker.
func (c PermissiveColorChecker) Check(ctx context.Context, _ CheckSource, order Order) (ColorReport, error) {
	if order.ColorID != nil && c.Logger != nil {
		c.Logger.WarnContext(ctx, "color availability not verified",
			slog.Int64("order_id", order.ID),
			slog.Int64("color_id", *order.ColorID),
		)
	}
	return ColorReport{Available: true}, nil
}

func colorNames(colors []catalog.Color) []string {
	names := make([]string, len(colors))
	for i, c := range colors {
		names[i] = c.Name
	}
	return names
}
