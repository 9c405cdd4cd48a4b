package config

import "fmt"

// Validate checks every field for a usable deployment configuration,
// aggregating every problem found rather than stopping at the first.
func (c Config) Validate() error {
	var problems []string

	if c.DataDir == "" {
		problems = append(problems, "data_dir must not be empty")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "session_ttl must be positive")
	}
	if c.RateLimitPerWindow <= 0 {
		problems = append(problems, "rate_limit_per_window must be positive")
	}
	if c.RateLimitWindow <= 0 {
		problems = append(problems, "rate_limit_window must be positive")
	}
	if c.ProfilingDuration <= 0 {
		problems = append(problems, "profiling_duration must be positive")
	}
	if c.MaintenanceWindow.StartHour < 0 || c.MaintenanceWindow.StartHour > 23 {
		problems = append(problems, "maintenance_window.start_hour must be in [0,23]")
	}
	if c.MaintenanceWindow.EndHour < 0 || c.MaintenanceWindow.EndHour > 23 {
		problems = append(problems, "maintenance_window.end_hour must be in [0,23]")
	}

	if len(problems) == 0 {
		return nil
	}
	msg := "invalid configuration:"
	for _, p := range problems {
		msg += "\n  - " + p
	}
	return fmt.Errorf(msg)
}

// Load reads and parses a YAML config file at path, overlays environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := loadYAML(path, cfg)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	cfg, err := LoadFromEnv(cfg)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.MaintenanceWindow.Resolve(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
