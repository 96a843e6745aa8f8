package discount

import "errors"

var (
	// ErrPassInProgress is returned when a full pass is requested while
	// another pass is still running. The caller may retry later; passes
	// are never queued or interleaved.
	ErrPassInProgress = errors.New("discount pass already in progress")

	// ErrIncompleteData marks a per-product data problem (missing listing
	// date, unparseable creation-date fact). The pass skips the product
	// and continues.
	ErrIncompleteData = errors.New("incomplete product data")
)
