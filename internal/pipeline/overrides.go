package pipeline

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// overridesFile mirrors configs/retailers.yaml:
//
//	retailers:
//	  gbh:
//	    min_delay_seconds: 8
//	    max_delay_seconds: 15
//	  btv:
//	    disabled: true
type overridesFile struct {
	Retailers map[string]retailerOverride `yaml:"retailers"`
}

type retailerOverride struct {
	MinDelaySeconds int  `yaml:"min_delay_seconds"`
	MaxDelaySeconds int  `yaml:"max_delay_seconds"`
	Disabled        bool `yaml:"disabled"`
}

// LoadOverrides reads per-retailer pacing overrides. A missing file is
// not an error; runs then use the global delays for everything.
func LoadOverrides(path string) (map[string]RetailerConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file %s: %w", path, err)
	}

	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file %s: %w", path, err)
	}

	out := make(map[string]RetailerConfig, len(file.Retailers))
	for retailerID, o := range file.Retailers {
		out[retailerID] = RetailerConfig{
			MinDelay: time.Duration(o.MinDelaySeconds) * time.Second,
			MaxDelay: time.Duration(o.MaxDelaySeconds) * time.Second,
			Disabled: o.Disabled,
		}
	}
	return out, nil
}
