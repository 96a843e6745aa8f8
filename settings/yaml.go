package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/liamcoop/autodiscounts/discount"
)

type rulesFile struct {
	Rules              []discount.Rule `yaml:"rules"`
	ExcludedCategories []int64         `yaml:"excluded_categories"`
}

// LoadRulesFile reads a YAML rule pack from disk and validates it. Used to
// bootstrap an empty settings store from a file at startup.
func LoadRulesFile(path string) ([]discount.Rule, []int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	if err := ValidateRules(file.Rules); err != nil {
		return nil, nil, fmt.Errorf("invalid rules in %s: %w", path, err)
	}
	return file.Rules, file.ExcludedCategories, nil
}
