package discount

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/liamcoop/autodiscounts/internal/logger"
)

var oneHundred = decimal.NewFromInt(100)

// SalePrice computes the discounted sale price for a regular price and a
// discount percentage, rounded to 2 decimal places (half away from zero). A
// discount above 100% is computed mechanically and the negative result
// clamped to zero.
func SalePrice(regular decimal.Decimal, discountPercent float64) decimal.Decimal {
	amount := regular.Mul(decimal.NewFromFloat(discountPercent)).Div(oneHundred)
	sale := regular.Sub(amount).Round(2)
	if sale.IsNegative() {
		return decimal.Zero.Round(2)
	}
	return sale
}

// apply writes the discounted sale price and provenance for the matched
// rule. Idempotent: when the product already carries provenance for the same
// rule and the stored sale price equals the computed one, nothing is
// written, so a repeated pass changes no state.
func (e *Engine) apply(ctx context.Context, productID int64, regular decimal.Decimal, r Rule) (bool, error) {
	sale := SalePrice(regular, r.Discount)
	if sale.IsZero() && r.Discount > 100 {
		logger.Warn("discount exceeds 100%, sale price clamped to zero",
			"product_id", productID, "rule_priority", r.Priority, "discount", r.Discount)
	}

	current, present, err := e.readProvenance(ctx, productID)
	if err != nil {
		return false, err
	}
	if present && current != nil &&
		current.RulePriority == r.Priority && current.DiscountPercent == r.Discount {
		raw, ok, err := e.cat.GetMeta(ctx, productID, metaSalePrice)
		if err != nil {
			return false, fmt.Errorf("reading sale price for product %d: %w", productID, err)
		}
		if ok {
			if stored, perr := decimal.NewFromString(raw); perr == nil && stored.Equal(sale) {
				return false, nil
			}
		}
	}

	if err := e.cat.SetMeta(ctx, productID, metaSalePrice, sale.StringFixed(2)); err != nil {
		return false, fmt.Errorf("writing sale price for product %d: %w", productID, err)
	}
	if err := e.cat.SetMeta(ctx, productID, metaPrice, sale.StringFixed(2)); err != nil {
		return false, fmt.Errorf("writing price for product %d: %w", productID, err)
	}

	marker, err := json.Marshal(AppliedRule{
		RulePriority:    r.Priority,
		DiscountPercent: r.Discount,
		AppliedAt:       e.now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("encoding provenance for product %d: %w", productID, err)
	}
	if err := e.cat.SetMeta(ctx, productID, metaAppliedRule, string(marker)); err != nil {
		return false, fmt.Errorf("writing provenance for product %d: %w", productID, err)
	}
	for _, key := range []string{metaLegacyAppliedWC, metaLegacyAppliedBDO} {
		if err := e.cat.DeleteMeta(ctx, productID, key); err != nil {
			return false, fmt.Errorf("clearing legacy provenance for product %d: %w", productID, err)
		}
	}
	return true, nil
}

// clearAuto removes an engine-set discount: the sale price is deleted, the
// effective price reset to the regular price, and every provenance marker
// (current and legacy) cleared. Products carrying no provenance are left
// untouched, so manual discounts survive.
func (e *Engine) clearAuto(ctx context.Context, productID int64) (bool, error) {
	_, present, err := e.readProvenance(ctx, productID)
	if err != nil {
		return false, err
	}
	if !present {
		return false, nil
	}

	if err := e.cat.DeleteMeta(ctx, productID, metaSalePrice); err != nil {
		return false, fmt.Errorf("clearing sale price for product %d: %w", productID, err)
	}
	regular, ok, err := e.cat.GetMeta(ctx, productID, metaRegularPrice)
	if err != nil {
		return false, fmt.Errorf("reading regular price for product %d: %w", productID, err)
	}
	if ok && regular != "" {
		if err := e.cat.SetMeta(ctx, productID, metaPrice, regular); err != nil {
			return false, fmt.Errorf("resetting price for product %d: %w", productID, err)
		}
	}
	for _, key := range provenanceKeys {
		if err := e.cat.DeleteMeta(ctx, productID, key); err != nil {
			return false, fmt.Errorf("clearing provenance for product %d: %w", productID, err)
		}
	}
	return true, nil
}
