package discount

// HasManualDiscount reports whether a product's current sale price was set by
// a human rather than by this engine. A product with no sale price has no
// discount at all. A sale price with no recognized provenance marker is a
// manual discount by definition; there is no third state.
func HasManualDiscount(salePrice string, hasProvenance bool) bool {
	if salePrice == "" {
		return false
	}
	return !hasProvenance
}
