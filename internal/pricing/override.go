package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/model"
)

// OverrideTableName labels resolutions served by an override file
const OverrideTableName = "override"

// overrideFile is the on-disk override format; rates are dollars per
// million tokens
type overrideFile struct {
	Models map[string]overrideEntry `yaml:"models"`
}

type overrideEntry struct {
	Input         *float64 `yaml:"input"`
	Output        *float64 `yaml:"output"`
	CacheCreation *float64 `yaml:"cache_creation"`
	CacheRead     *float64 `yaml:"cache_read"`
	Aliases       []string `yaml:"aliases"`
}

// LoadOverride reads a YAML override file into a table
func LoadOverride(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.WithPath(apperr.KindConfig, "load pricing override", path, err)
	}
	t, err := ParseOverride(data)
	if err != nil {
		return nil, apperr.WithPath(apperr.KindConfig, "load pricing override", path, err)
	}
	return t, nil
}

// ParseOverride decodes override YAML into a table
func ParseOverride(data []byte) (*Table, error) {
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid pricing yaml: %w", err)
	}

	prices := make(map[string]model.ModelPricing, len(f.Models))
	aliases := make(map[string]string)
	for name, e := range f.Models {
		if name == "" {
			return nil, fmt.Errorf("model entry without a name")
		}
		for field, r := range map[string]*float64{
			"input": e.Input, "output": e.Output,
			"cache_creation": e.CacheCreation, "cache_read": e.CacheRead,
		} {
			if r != nil && *r < 0 {
				return nil, fmt.Errorf("model %s: negative %s rate", name, field)
			}
		}
		prices[name] = model.ModelPricing{
			InputCostPerToken:         perToken(e.Input),
			OutputCostPerToken:        perToken(e.Output),
			CacheCreationCostPerToken: perToken(e.CacheCreation),
			CacheReadCostPerToken:     perToken(e.CacheRead),
		}
		for _, a := range e.Aliases {
			aliases[a] = name
		}
	}
	return NewTable(OverrideTableName, prices, aliases), nil
}

func perToken(perMillion *float64) *float64 {
	if perMillion == nil {
		return nil
	}
	v := *perMillion / 1e6
	return &v
}
