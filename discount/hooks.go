package discount

import (
	"context"
	"errors"
	"fmt"

	"github.com/liamcoop/autodiscounts/internal/logger"
)

// Invalidator is implemented by configuration sources that cache snapshots.
type Invalidator interface {
	Invalidate()
}

// OnProductSaved re-checks a single product after an edit: if it is now
// excluded (individually or by category) and still carries an engine-set
// discount, the discount is cleared immediately instead of waiting for the
// next pass.
func (e *Engine) OnProductSaved(ctx context.Context, productID int64) error {
	flag, _, err := e.cat.GetMeta(ctx, productID, metaExcludeFlag)
	if err != nil {
		return fmt.Errorf("reading exclusion flag for product %d: %w", productID, err)
	}
	categories, err := e.cat.Categories(ctx, productID)
	if err != nil {
		return fmt.Errorf("listing categories for product %d: %w", productID, err)
	}
	excluded, err := e.excludedSet(ctx)
	if err != nil {
		return err
	}
	if !Excluded(flag, categories, excluded) {
		return nil
	}
	_, err = e.clearAuto(ctx, productID)
	return err
}

// OnRulesChanged invalidates any cached configuration snapshot and runs a
// full pass so the new rules take effect immediately.
func (e *Engine) OnRulesChanged(ctx context.Context) (*PassReport, error) {
	if inv, ok := e.config.(Invalidator); ok {
		inv.Invalidate()
	}
	return e.RunFullPass(ctx)
}

// OnScheduledTick runs the periodic full pass. A tick colliding with a
// running pass is skipped, not queued.
func (e *Engine) OnScheduledTick(ctx context.Context) error {
	_, err := e.RunFullPass(ctx)
	if errors.Is(err, ErrPassInProgress) {
		logger.Warn("scheduled pass skipped, another pass is running")
		return nil
	}
	return err
}

// SetProductExcluded sets or clears a product's individual exclusion flag.
// Excluding a product clears any engine-set discount immediately.
func (e *Engine) SetProductExcluded(ctx context.Context, productID int64, excluded bool) error {
	value := "no"
	if excluded {
		value = ExcludedValue
	}
	if err := e.cat.SetMeta(ctx, productID, metaExcludeFlag, value); err != nil {
		return fmt.Errorf("writing exclusion flag for product %d: %w", productID, err)
	}
	if !excluded {
		return nil
	}
	_, err := e.clearAuto(ctx, productID)
	return err
}

// SetProductsExcluded applies SetProductExcluded to a batch of products and
// returns how many were updated before any failure.
func (e *Engine) SetProductsExcluded(ctx context.Context, productIDs []int64, excluded bool) (int, error) {
	for i, id := range productIDs {
		if err := e.SetProductExcluded(ctx, id, excluded); err != nil {
			return i, err
		}
	}
	return len(productIDs), nil
}
