package settings

import (
	"fmt"

	"github.com/liamcoop/autodiscounts/discount"
)

// maxRules bounds the configurable rule set.
const maxRules = 100

// ValidateRules validates a rule list at the configuration boundary.
// Returns an error describing the first problem found, nil when valid.
func ValidateRules(rules []discount.Rule) error {
	if len(rules) > maxRules {
		return fmt.Errorf("rule set contains %d rules, maximum allowed is %d", len(rules), maxRules)
	}

	for i, r := range rules {
		if r.Priority < 0 {
			return fmt.Errorf("rule %d has negative priority %d", i, r.Priority)
		}
		if r.MinAgeDays < 0 {
			return fmt.Errorf("rule %d has negative minimum age %d", i, r.MinAgeDays)
		}
		if r.Discount < 0 || r.Discount > 100 {
			return fmt.Errorf("rule %d has discount %v, must be between 0 and 100", i, r.Discount)
		}
	}
	return nil
}
