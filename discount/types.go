package discount

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Rule is one prioritized age-based discount rule. Rules are configuration,
// created and edited by the admin surface; the engine only reads them.
type Rule struct {
	ID            string  `json:"id,omitempty" yaml:"id,omitempty"`
	Priority      int     `json:"priority" yaml:"priority"`
	MinAgeDays    int     `json:"min_age" yaml:"min_age"`
	Discount      float64 `json:"discount" yaml:"discount"`
	Active        bool    `json:"active" yaml:"active"`
	RespectManual bool    `json:"respect_manual" yaml:"respect_manual"`
}

// SortRules returns a copy of rules sorted by priority ascending. The sort is
// stable: rules sharing a priority keep their configured order, which decides
// ties during matching.
func SortRules(rules []Rule) []Rule {
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// AppliedRule is the provenance marker persisted on a product whose sale
// price was set by this engine.
type AppliedRule struct {
	RulePriority    int       `json:"rule_priority"`
	DiscountPercent float64   `json:"discount_percent"`
	AppliedAt       time.Time `json:"applied_at"`
}

// ConfigSource supplies the rule list and the excluded category set. A pass
// reads each exactly once at its start; edits during a pass take effect on
// the next pass.
type ConfigSource interface {
	Rules(ctx context.Context) ([]Rule, error)
	ExcludedCategories(ctx context.Context) ([]int64, error)
}

// ProductError records why a single product was skipped during a pass.
type ProductError struct {
	ProductID int64  `json:"product_id"`
	Reason    string `json:"reason"`
}

// PassReport summarizes one full pass. Applied and Cleared count actual
// writes: a product whose discount was already correct counts as neither.
type PassReport struct {
	Applied int            `json:"applied"`
	Cleared int            `json:"cleared"`
	Skipped int            `json:"skipped"`
	Errors  []ProductError `json:"errors,omitempty"`
}

// PreviewProduct is one sample entry in a preview result.
type PreviewProduct struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Link  string          `json:"link"`
}

// PreviewResult reports how many products a candidate rule would reach,
// without writing anything.
type PreviewResult struct {
	Count      int              `json:"count"`
	TotalValue decimal.Decimal  `json:"total_value"`
	Sample     []PreviewProduct `json:"products"`
}

// RuleUsage counts products currently discounted by one rule priority.
type RuleUsage struct {
	Count           int     `json:"count"`
	DiscountPercent float64 `json:"discount_percent"`
}

// Stats summarizes the current discount state of the catalog.
type Stats struct {
	TotalInStock    int               `json:"total_products"`
	Discounted      int               `json:"discounted_products"`
	Excluded        int               `json:"excluded_products"`
	TotalDiscount   decimal.Decimal   `json:"total_discount_amount"`
	AverageDiscount decimal.Decimal   `json:"average_discount"`
	RulesUsage      map[int]RuleUsage `json:"rules_usage"`
}
