package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/liamcoop/autodiscounts/discount"
	"github.com/liamcoop/autodiscounts/internal/logger"
)

// Option keys. The wcad_ keys are current; the wc_ and bdo_ keys were
// written by superseded rule systems and are promoted once at startup when
// the current keys are still empty.
const (
	keyRules              = "wcad_discount_rules"
	keyExcludedCategories = "wcad_excluded_categories"

	legacyKeyRulesWC       = "wc_discount_rules"
	legacyKeyRulesBDO      = "bdo_discount_rules"
	legacyKeyCategoriesWC  = "wc_excluded_categories"
	legacyKeyCategoriesBDO = "bdo_excluded_categories"
)

// Store reads and writes the engine's configuration on top of an
// OptionStore: the rule list and the excluded category set.
type Store struct {
	opts OptionStore
}

// NewStore creates a Store and promotes any legacy configuration into the
// current option keys.
func NewStore(ctx context.Context, opts OptionStore) (*Store, error) {
	s := &Store{opts: opts}
	if err := s.migrateLegacy(ctx); err != nil {
		return nil, fmt.Errorf("migrating legacy settings: %w", err)
	}
	return s, nil
}

// Rules returns the configured rule list, in configured order. An absent
// option yields an empty list.
func (s *Store) Rules(ctx context.Context) ([]discount.Rule, error) {
	raw, ok, err := s.opts.Get(ctx, keyRules)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var rules []discount.Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	return rules, nil
}

// SaveRules validates and stores the rule list, assigning IDs to new rules.
// Validation happens here, at the configuration boundary: the engine itself
// computes mechanically with whatever it is given.
func (s *Store) SaveRules(ctx context.Context, rules []discount.Rule) error {
	if err := ValidateRules(rules); err != nil {
		return err
	}
	for i := range rules {
		if rules[i].ID == "" {
			rules[i].ID = uuid.New().String()
		}
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return s.opts.Set(ctx, keyRules, raw)
}

// ExcludedCategories returns the globally excluded category IDs.
func (s *Store) ExcludedCategories(ctx context.Context) ([]int64, error) {
	raw, ok, err := s.opts.Get(ctx, keyExcludedCategories)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode excluded categories: %w", err)
	}
	return ids, nil
}

// SaveExcludedCategories stores the excluded category set.
func (s *Store) SaveExcludedCategories(ctx context.Context, categoryIDs []int64) error {
	raw, err := json.Marshal(categoryIDs)
	if err != nil {
		return fmt.Errorf("failed to encode excluded categories: %w", err)
	}
	return s.opts.Set(ctx, keyExcludedCategories, raw)
}

// migrateLegacy copies rule and exclusion options written by the superseded
// systems into the current keys, when the current keys are still empty. The
// legacy keys are left in place; they are never written again.
func (s *Store) migrateLegacy(ctx context.Context) error {
	migrated, err := s.promote(ctx, keyRules, legacyKeyRulesWC, legacyKeyRulesBDO)
	if err != nil {
		return err
	}
	if migrated != "" {
		logger.Info("migrated legacy discount rules", "from", migrated)
	}

	migrated, err = s.promote(ctx, keyExcludedCategories, legacyKeyCategoriesWC, legacyKeyCategoriesBDO)
	if err != nil {
		return err
	}
	if migrated != "" {
		logger.Info("migrated legacy excluded categories", "from", migrated)
	}
	return nil
}

// promote copies the first present legacy key into target, unless target
// already holds data. Returns the legacy key used, or "".
func (s *Store) promote(ctx context.Context, target string, legacyKeys ...string) (string, error) {
	raw, ok, err := s.opts.Get(ctx, target)
	if err != nil {
		return "", err
	}
	if ok && len(raw) > 0 && string(raw) != "null" && string(raw) != "[]" {
		return "", nil
	}

	for _, key := range legacyKeys {
		raw, ok, err := s.opts.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if !ok || len(raw) == 0 {
			continue
		}
		if err := s.opts.Set(ctx, target, raw); err != nil {
			return "", err
		}
		return key, nil
	}
	return "", nil
}
