package discount

import (
	"context"
	"encoding/json"
	"fmt"
)

// Meta keys the engine reads and writes on products. The provenance marker
// keys are the engine's exclusive property: only these markers identify an
// automatic discount. The two legacy keys were written by superseded rule
// systems; they are recognized on read and deleted on write, never written.
const (
	metaRegularPrice = "_regular_price"
	metaSalePrice    = "_sale_price"
	metaPrice        = "_price"
	metaCreationDate = "_product_creation_date"

	metaExcludeFlag = "_wcad_exclude_from_discounts"

	metaAppliedRule      = "_wcad_applied_discount_rule"
	metaLegacyAppliedWC  = "_wc_applied_discount_rule"
	metaLegacyAppliedBDO = "_bdo_applied_discount_rule"
)

// provenanceKeys is the ordered read path: current marker first, then the
// legacy markers.
var provenanceKeys = []string{metaAppliedRule, metaLegacyAppliedWC, metaLegacyAppliedBDO}

// readProvenance looks up the product's provenance marker, trying the current
// key and then each legacy key in order. present is true when any marker
// exists, even one whose payload cannot be decoded (legacy serializations);
// in that case marker is nil.
func (e *Engine) readProvenance(ctx context.Context, productID int64) (marker *AppliedRule, present bool, err error) {
	for _, key := range provenanceKeys {
		raw, ok, err := e.cat.GetMeta(ctx, productID, key)
		if err != nil {
			return nil, false, fmt.Errorf("reading provenance for product %d: %w", productID, err)
		}
		if !ok {
			continue
		}
		var applied AppliedRule
		if jsonErr := json.Unmarshal([]byte(raw), &applied); jsonErr != nil {
			return nil, true, nil
		}
		return &applied, true, nil
	}
	return nil, false, nil
}
