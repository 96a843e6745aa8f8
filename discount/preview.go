package discount

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/liamcoop/autodiscounts/catalog"
)

// previewSampleLimit caps the number of sample products in a preview result.
const previewSampleLimit = 10

// Preview reports how many published in-stock products a candidate rule
// {minAgeDays, respectManual} would reach, the sum of their regular prices,
// and a capped sample. Read-only: no price or provenance is ever written, so
// it may run alongside an update pass.
//
// Products with incomplete data are silently excluded from the count.
func (e *Engine) Preview(ctx context.Context, minAgeDays int, respectManual bool) (*PreviewResult, error) {
	excluded, err := e.excludedSet(ctx)
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{
		TotalValue: decimal.Zero,
		Sample:     []PreviewProduct{},
	}

	offset := 0
	for {
		page, err := e.cat.ListProducts(ctx, catalog.Query{
			Status:      catalog.StatusPublished,
			StockStatus: catalog.StockInStock,
			Limit:       e.batch,
			Offset:      offset,
		})
		if err != nil {
			return nil, fmt.Errorf("listing products at offset %d: %w", offset, err)
		}

		for i := range page {
			if err := e.previewProduct(ctx, page[i], minAgeDays, respectManual, excluded, result); err != nil {
				return nil, err
			}
		}

		if len(page) < e.batch {
			break
		}
		offset += e.batch
	}
	return result, nil
}

func (e *Engine) previewProduct(ctx context.Context, p catalog.Product, minAgeDays int, respectManual bool, excluded map[int64]struct{}, result *PreviewResult) error {
	categories, err := e.cat.Categories(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("listing categories for product %d: %w", p.ID, err)
	}
	flag, _, err := e.cat.GetMeta(ctx, p.ID, metaExcludeFlag)
	if err != nil {
		return fmt.Errorf("reading exclusion flag for product %d: %w", p.ID, err)
	}
	if Excluded(flag, categories, excluded) {
		return nil
	}

	age, err := e.previewAge(ctx, p)
	if err != nil {
		if errors.Is(err, ErrIncompleteData) {
			return nil
		}
		return err
	}
	if age < minAgeDays {
		return nil
	}

	if respectManual {
		saleRaw, _, err := e.cat.GetMeta(ctx, p.ID, metaSalePrice)
		if err != nil {
			return fmt.Errorf("reading sale price for product %d: %w", p.ID, err)
		}
		_, hasProvenance, err := e.readProvenance(ctx, p.ID)
		if err != nil {
			return err
		}
		if HasManualDiscount(saleRaw, hasProvenance) {
			return nil
		}
	}

	price := decimal.Zero
	if raw, _, err := e.cat.GetMeta(ctx, p.ID, metaRegularPrice); err != nil {
		return fmt.Errorf("reading regular price for product %d: %w", p.ID, err)
	} else if raw != "" {
		if parsed, perr := decimal.NewFromString(raw); perr == nil {
			price = parsed
		}
	}

	result.Count++
	result.TotalValue = result.TotalValue.Add(price)
	if len(result.Sample) < previewSampleLimit {
		result.Sample = append(result.Sample, PreviewProduct{
			ID:    p.ID,
			Name:  p.Name,
			Price: price,
			Link:  p.EditLink,
		})
	}
	return nil
}

// previewAge computes the product age without persisting the creation-date
// fact: preview must not write anything, not even the age anchor.
func (e *Engine) previewAge(ctx context.Context, p catalog.Product) (int, error) {
	raw, ok, err := e.cat.GetMeta(ctx, p.ID, metaCreationDate)
	if err != nil {
		return 0, fmt.Errorf("reading creation date for product %d: %w", p.ID, err)
	}
	created := p.CreatedAt
	if ok && raw != "" {
		parsed, perr := parseCreationDate(raw)
		if perr != nil {
			return 0, fmt.Errorf("%w: product %d has unreadable creation date %q", ErrIncompleteData, p.ID, raw)
		}
		created = parsed
	} else if created.IsZero() {
		return 0, fmt.Errorf("%w: product %d has no listing date", ErrIncompleteData, p.ID)
	}

	days := daysBetween(created, e.now())
	if days < 0 {
		days = 0
	}
	return days, nil
}
