package discount

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liamcoop/autodiscounts/catalog"
	"github.com/liamcoop/autodiscounts/internal/logger"
)

// DefaultBatchSize is the page size used when walking the catalog.
const DefaultBatchSize = 50

// Engine evaluates the configured discount rules against the catalog and
// applies or clears sale prices. Construct one Engine at process start and
// share the handle; a pass never runs concurrently with itself.
type Engine struct {
	cat    catalog.Catalog
	config ConfigSource
	batch  int
	now    func() time.Time

	running atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize overrides the catalog page size.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batch = n
		}
	}
}

// WithClock overrides the time source, for deterministic ages and
// provenance timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine over a catalog and a configuration source.
func New(cat catalog.Catalog, config ConfigSource, opts ...Option) *Engine {
	e := &Engine{
		cat:    cat,
		config: config,
		batch:  DefaultBatchSize,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunFullPass sweeps the whole catalog once: every published in-stock
// product is evaluated against the rule set, then a cleanup sweep clears
// engine-set discounts from out-of-stock products.
//
// An empty rule set is a designed no-op, not an error. A second pass
// requested while one is running gets ErrPassInProgress. A catalog access
// failure aborts the pass; writes from earlier pages stand.
func (e *Engine) RunFullPass(ctx context.Context) (*PassReport, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrPassInProgress
	}
	defer e.running.Store(false)

	rules, err := e.config.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	if len(rules) == 0 {
		logger.Info("no discount rules configured, skipping pass")
		return &PassReport{}, nil
	}
	sorted := SortRules(rules)

	excluded, err := e.excludedSet(ctx)
	if err != nil {
		return nil, err
	}

	report := &PassReport{}
	started := e.now()

	offset := 0
	for {
		page, err := e.cat.ListProducts(ctx, catalog.Query{
			Status:      catalog.StatusPublished,
			StockStatus: catalog.StockInStock,
			Limit:       e.batch,
			Offset:      offset,
		})
		if err != nil {
			logger.ErrorFailedPass()
			return nil, fmt.Errorf("listing products at offset %d: %w", offset, err)
		}

		for i := range page {
			if err := e.processProduct(ctx, page[i], sorted, excluded, report); err != nil {
				logger.ErrorFailedPass()
				return nil, err
			}
		}

		if len(page) < e.batch {
			break
		}
		offset += e.batch
	}

	if err := e.cleanupOutOfStock(ctx, report); err != nil {
		logger.ErrorFailedPass()
		return nil, err
	}

	logger.Info("discount pass complete",
		"applied", report.Applied,
		"cleared", report.Cleared,
		"skipped", report.Skipped,
		"duration", e.now().Sub(started).String())
	return report, nil
}

// processProduct runs one product through the pipeline: exclusion, manual
// detection, age, matching, application. Per-product data problems are
// recorded on the report and skipped; only catalog failures return an error.
func (e *Engine) processProduct(ctx context.Context, p catalog.Product, sorted []Rule, excluded map[int64]struct{}, report *PassReport) error {
	categories, err := e.cat.Categories(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("listing categories for product %d: %w", p.ID, err)
	}
	flag, _, err := e.cat.GetMeta(ctx, p.ID, metaExcludeFlag)
	if err != nil {
		return fmt.Errorf("reading exclusion flag for product %d: %w", p.ID, err)
	}

	isExcluded := Excluded(flag, categories, excluded)
	if isExcluded {
		cleared, err := e.clearAuto(ctx, p.ID)
		if err != nil {
			return err
		}
		if cleared {
			report.Cleared++
		}
		return nil
	}

	regularRaw, _, err := e.cat.GetMeta(ctx, p.ID, metaRegularPrice)
	if err != nil {
		return fmt.Errorf("reading regular price for product %d: %w", p.ID, err)
	}
	if regularRaw == "" {
		e.skip(report, p.ID, "missing regular price")
		return nil
	}
	regular, perr := decimal.NewFromString(regularRaw)
	if perr != nil {
		e.skip(report, p.ID, fmt.Sprintf("malformed regular price %q", regularRaw))
		return nil
	}

	saleRaw, _, err := e.cat.GetMeta(ctx, p.ID, metaSalePrice)
	if err != nil {
		return fmt.Errorf("reading sale price for product %d: %w", p.ID, err)
	}
	_, hasProvenance, err := e.readProvenance(ctx, p.ID)
	if err != nil {
		return err
	}
	hasManual := HasManualDiscount(saleRaw, hasProvenance)

	age, err := e.productAge(ctx, p)
	if err != nil {
		if errors.Is(err, ErrIncompleteData) {
			e.skip(report, p.ID, err.Error())
			return nil
		}
		return err
	}

	rule, matched := Match(sorted, age, hasManual, isExcluded)
	if !matched {
		cleared, err := e.clearAuto(ctx, p.ID)
		if err != nil {
			return err
		}
		if cleared {
			report.Cleared++
		}
		return nil
	}

	applied, err := e.apply(ctx, p.ID, regular, rule)
	if err != nil {
		return err
	}
	if applied {
		report.Applied++
	}
	return nil
}

// cleanupOutOfStock clears engine-set discounts from products no longer in
// stock. Runs strictly after all pages so it observes the post-pass state.
func (e *Engine) cleanupOutOfStock(ctx context.Context, report *PassReport) error {
	ids, err := e.cat.ListOutOfStockWithAnyMeta(ctx, provenanceKeys...)
	if err != nil {
		return fmt.Errorf("listing out-of-stock discounted products: %w", err)
	}
	for _, id := range ids {
		cleared, err := e.clearAuto(ctx, id)
		if err != nil {
			return err
		}
		if cleared {
			report.Cleared++
		}
	}
	return nil
}

func (e *Engine) skip(report *PassReport, productID int64, reason string) {
	report.Skipped++
	report.Errors = append(report.Errors, ProductError{ProductID: productID, Reason: reason})
	logger.WarnSkippedProduct("skipping product", "product_id", productID, "reason", reason)
}

func (e *Engine) excludedSet(ctx context.Context) (map[int64]struct{}, error) {
	ids, err := e.config.ExcludedCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading excluded categories: %w", err)
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
