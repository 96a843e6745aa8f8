package discount

// ExcludedValue is the meta value marking a product individually excluded
// from automatic discounting.
const ExcludedValue = "yes"

// Excluded reports whether a product is excluded from automatic discounting,
// either by its own exclusion flag or because one of its categories is in the
// excluded set. Pure function, no side effects.
func Excluded(exclusionFlag string, categoryIDs []int64, excludedCategories map[int64]struct{}) bool {
	if exclusionFlag == ExcludedValue {
		return true
	}
	for _, id := range categoryIDs {
		if _, ok := excludedCategories[id]; ok {
			return true
		}
	}
	return false
}
