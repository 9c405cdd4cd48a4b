package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadYAML merges a YAML document at path onto a copy of base, matching the
// teacher's yaml.v3-based config loading idiom.
func loadYAML(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
