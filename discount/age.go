package discount

import (
	"context"
	"fmt"
	"time"

	"github.com/liamcoop/autodiscounts/catalog"
)

const creationDateLayout = "2006-01-02"

// productAge computes a product's age in whole days, at day granularity in
// UTC. The creation date is anchored to a persisted fact: on first
// observation the product's listing date is written as the fact, so later
// changes to the listing date never shift the age.
//
// A product with no stored fact and no listing date fails with
// ErrIncompleteData; the caller skips the product.
func (e *Engine) productAge(ctx context.Context, p catalog.Product) (int, error) {
	raw, ok, err := e.cat.GetMeta(ctx, p.ID, metaCreationDate)
	if err != nil {
		return 0, fmt.Errorf("reading creation date for product %d: %w", p.ID, err)
	}

	var created time.Time
	if ok && raw != "" {
		created, err = parseCreationDate(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: product %d has unreadable creation date %q", ErrIncompleteData, p.ID, raw)
		}
	} else {
		if p.CreatedAt.IsZero() {
			return 0, fmt.Errorf("%w: product %d has no listing date", ErrIncompleteData, p.ID)
		}
		created = p.CreatedAt.UTC()
		if err := e.cat.SetMeta(ctx, p.ID, metaCreationDate, created.Format(creationDateLayout)); err != nil {
			return 0, fmt.Errorf("persisting creation date for product %d: %w", p.ID, err)
		}
	}

	days := daysBetween(created, e.now())
	if days < 0 {
		days = 0
	}
	return days, nil
}

func parseCreationDate(raw string) (time.Time, error) {
	return time.Parse(creationDateLayout, raw)
}

// daysBetween returns the number of whole days from a to b, comparing dates
// only (both taken in UTC).
func daysBetween(a, b time.Time) int {
	a = a.UTC()
	b = b.UTC()
	aDay := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bDay := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bDay.Sub(aDay) / (24 * time.Hour))
}
