package discount

import (
	"context"
	"testing"

	"github.com/liamcoop/autodiscounts/catalog"
)

func TestStats(t *testing.T) {
	cat := catalog.NewInMemoryCatalog()
	addProduct(t, cat, 1, "100.00", 45) // 15% -> 85.00
	addProduct(t, cat, 2, "50.00", 200) // 15% -> 42.50
	addProduct(t, cat, 3, "30.00", 5)   // too young
	addProduct(t, cat, 4, "80.00", 400) // excluded
	if err := cat.SetMeta(context.Background(), 4, metaExcludeFlag, ExcludedValue); err != nil {
		t.Fatal(err)
	}

	cfg := &staticConfig{rules: []Rule{
		{Priority: 1, MinAgeDays: 30, Discount: 15, Active: true},
	}}
	engine := newTestEngine(cat, cfg)

	if _, err := engine.RunFullPass(context.Background()); err != nil {
		t.Fatalf("RunFullPass failed: %v", err)
	}

	stats, err := engine.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.TotalInStock != 4 {
		t.Errorf("Expected 4 in-stock products, got %d", stats.TotalInStock)
	}
	if stats.Discounted != 2 {
		t.Errorf("Expected 2 discounted products, got %d", stats.Discounted)
	}
	if stats.Excluded != 1 {
		t.Errorf("Expected 1 excluded product, got %d", stats.Excluded)
	}
	if got := stats.TotalDiscount.StringFixed(2); got != "22.50" {
		t.Errorf("Expected total discount 22.50, got %s", got)
	}
	if got := stats.AverageDiscount.StringFixed(2); got != "11.25" {
		t.Errorf("Expected average discount 11.25, got %s", got)
	}

	usage, ok := stats.RulesUsage[1]
	if !ok {
		t.Fatal("Expected usage for rule priority 1")
	}
	if usage.Count != 2 || usage.DiscountPercent != 15 {
		t.Errorf("Expected usage {2, 15%%}, got %+v", usage)
	}
}

func TestStats_EmptyCatalog(t *testing.T) {
	engine := newTestEngine(catalog.NewInMemoryCatalog(), &staticConfig{})

	stats, err := engine.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalInStock != 0 || stats.Discounted != 0 {
		t.Errorf("Expected zeroed stats, got %+v", stats)
	}
	if !stats.AverageDiscount.IsZero() {
		t.Errorf("Expected zero average discount, got %s", stats.AverageDiscount)
	}
}
