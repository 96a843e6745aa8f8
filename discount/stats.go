package discount

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Stats summarizes the current discount state of the catalog: how many
// in-stock products exist, how many carry an engine-set discount or an
// exclusion flag, the total and average discount amounts, and a per-rule
// usage breakdown. Read-only.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	total, err := e.cat.CountInStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting in-stock products: %w", err)
	}
	excluded, err := e.cat.CountInStockWithMetaValue(ctx, metaExcludeFlag, ExcludedValue)
	if err != nil {
		return nil, fmt.Errorf("counting excluded products: %w", err)
	}

	stats := &Stats{
		TotalInStock:    total,
		Excluded:        excluded,
		TotalDiscount:   decimal.Zero,
		AverageDiscount: decimal.Zero,
		RulesUsage:      make(map[int]RuleUsage),
	}

	ids, err := e.cat.ListInStockWithAnyMeta(ctx, provenanceKeys...)
	if err != nil {
		return nil, fmt.Errorf("listing discounted products: %w", err)
	}
	stats.Discounted = len(ids)

	for _, id := range ids {
		regularRaw, _, err := e.cat.GetMeta(ctx, id, metaRegularPrice)
		if err != nil {
			return nil, fmt.Errorf("reading regular price for product %d: %w", id, err)
		}
		saleRaw, _, err := e.cat.GetMeta(ctx, id, metaSalePrice)
		if err != nil {
			return nil, fmt.Errorf("reading sale price for product %d: %w", id, err)
		}

		regular, rerr := decimal.NewFromString(regularRaw)
		sale, serr := decimal.NewFromString(saleRaw)
		if rerr == nil && serr == nil {
			stats.TotalDiscount = stats.TotalDiscount.Add(regular.Sub(sale))
		}

		marker, _, err := e.readProvenance(ctx, id)
		if err != nil {
			return nil, err
		}
		if marker != nil {
			usage := stats.RulesUsage[marker.RulePriority]
			usage.Count++
			usage.DiscountPercent = marker.DiscountPercent
			stats.RulesUsage[marker.RulePriority] = usage
		}
	}

	if stats.Discounted > 0 {
		stats.AverageDiscount = stats.TotalDiscount.
			Div(decimal.NewFromInt(int64(stats.Discounted))).Round(2)
	}
	return stats, nil
}
