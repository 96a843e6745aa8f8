package discount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liamcoop/autodiscounts/catalog"
)

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{
			"same instant",
			time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
			time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
			0,
		},
		{
			"same day different hours",
			time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC),
			time.Date(2026, 6, 1, 1, 0, 0, 0, time.UTC),
			0,
		},
		{
			"one midnight apart despite one hour elapsed",
			time.Date(2026, 5, 31, 23, 30, 0, 0, time.UTC),
			time.Date(2026, 6, 1, 0, 30, 0, 0, time.UTC),
			1,
		},
		{
			"thirty days",
			time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC),
			time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
			30,
		},
		{
			"future date is negative",
			time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			-4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := daysBetween(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("daysBetween(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestProductAge_PersistsCreationFact(t *testing.T) {
	cat := catalog.NewInMemoryCatalog()
	addProduct(t, cat, 1, "100.00", 40)
	engine := newTestEngine(cat, &staticConfig{})

	ctx := context.Background()
	age, err := engine.productAge(ctx, mustProduct(t, cat, 1))
	if err != nil {
		t.Fatalf("productAge failed: %v", err)
	}
	if age != 40 {
		t.Errorf("Expected age 40, got %d", age)
	}

	fact, ok := mustMeta(t, cat, 1, metaCreationDate)
	if !ok {
		t.Fatal("Expected the creation date fact to be persisted on first observation")
	}
	want := testNow.AddDate(0, 0, -40).Format(creationDateLayout)
	if fact != want {
		t.Errorf("Expected persisted fact %q, got %q", want, fact)
	}
}

// Once the fact exists, a changed listing date no longer moves the age.
func TestProductAge_FactAnchorsAge(t *testing.T) {
	cat := catalog.NewInMemoryCatalog()
	addProduct(t, cat, 1, "100.00", 40)
	engine := newTestEngine(cat, &staticConfig{})

	ctx := context.Background()
	if _, err := engine.productAge(ctx, mustProduct(t, cat, 1)); err != nil {
		t.Fatalf("productAge failed: %v", err)
	}

	// Republish the product with a fresh listing date.
	cat.AddProduct(catalog.Product{
		ID:          1,
		Name:        "Product 1",
		Status:      catalog.StatusPublished,
		StockStatus: catalog.StockInStock,
		CreatedAt:   testNow,
	})

	age, err := engine.productAge(ctx, mustProduct(t, cat, 1))
	if err != nil {
		t.Fatalf("productAge failed: %v", err)
	}
	if age != 40 {
		t.Errorf("Expected anchored age 40 after the listing date changed, got %d", age)
	}
}

func TestProductAge_UnreadableFact(t *testing.T) {
	cat := catalog.NewInMemoryCatalog()
	addProduct(t, cat, 1, "100.00", 40)
	if err := cat.SetMeta(context.Background(), 1, metaCreationDate, "not-a-date"); err != nil {
		t.Fatal(err)
	}
	engine := newTestEngine(cat, &staticConfig{})

	_, err := engine.productAge(context.Background(), mustProduct(t, cat, 1))
	if !errors.Is(err, ErrIncompleteData) {
		t.Errorf("Expected ErrIncompleteData for an unreadable fact, got %v", err)
	}
}

func TestProductAge_NoListingDate(t *testing.T) {
	cat := catalog.NewInMemoryCatalog()
	cat.AddProduct(catalog.Product{
		ID:          1,
		Name:        "Product 1",
		Status:      catalog.StatusPublished,
		StockStatus: catalog.StockInStock,
	})
	engine := newTestEngine(cat, &staticConfig{})

	_, err := engine.productAge(context.Background(), mustProduct(t, cat, 1))
	if !errors.Is(err, ErrIncompleteData) {
		t.Errorf("Expected ErrIncompleteData without a listing date, got %v", err)
	}
}

func TestProductAge_FutureDateClampedToZero(t *testing.T) {
	cat := catalog.NewInMemoryCatalog()
	addProduct(t, cat, 1, "100.00", -10)
	engine := newTestEngine(cat, &staticConfig{})

	age, err := engine.productAge(context.Background(), mustProduct(t, cat, 1))
	if err != nil {
		t.Fatalf("productAge failed: %v", err)
	}
	if age != 0 {
		t.Errorf("Expected a future-dated product to have age 0, got %d", age)
	}
}

func mustProduct(t *testing.T, cat *catalog.InMemoryCatalog, id int64) catalog.Product {
	t.Helper()

	page, err := cat.ListProducts(context.Background(), catalog.Query{})
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	for _, p := range page {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("Product %d not found", id)
	return catalog.Product{}
}
