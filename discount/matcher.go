package discount

// Match selects at most one applicable rule for a product. rules must already
// be sorted by priority ascending (see SortRules); the first active rule
// whose minimum age is satisfied wins, and no later rule is considered even
// if it would produce a larger discount.
//
// An excluded product never matches. A rule with RespectManual set is skipped
// when the product already carries a manual discount.
func Match(rules []Rule, ageDays int, hasManual, excluded bool) (Rule, bool) {
	if excluded {
		return Rule{}, false
	}
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if r.RespectManual && hasManual {
			continue
		}
		if ageDays >= r.MinAgeDays {
			return r, true
		}
	}
	return Rule{}, false
}
