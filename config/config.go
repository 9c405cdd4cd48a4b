// Package config loads and validates the control plane's deployment
// configuration: environment flags, store locations, worker cadences, and
// the maintenance-window schedule.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Cadences holds the tick interval for each Supervisor-owned worker (§5).
type Cadences struct {
	AdmissionPoll    time.Duration `yaml:"admission_poll"`
	ProfilingMonitor time.Duration `yaml:"profiling_monitor"`
	FlowPoll         time.Duration `yaml:"flow_poll"`
	AnomalyTick      time.Duration `yaml:"anomaly_tick"`
	AnalystReplay    time.Duration `yaml:"analyst_replay"`
	Attestation      time.Duration `yaml:"attestation"`
	PolicyAdapt      time.Duration `yaml:"policy_adapt"`
	HoneypotIngest   time.Duration `yaml:"honeypot_ingest"`
	ActivityUpdater  time.Duration `yaml:"activity_updater"`
}

// DefaultCadences returns the cadences named in spec §5.
func DefaultCadences() Cadences {
	return Cadences{
		AdmissionPoll:    2 * time.Second,
		ProfilingMonitor: 30 * time.Second,
		FlowPoll:         10 * time.Second,
		AnomalyTick:      10 * time.Second,
		AnalystReplay:    30 * time.Second,
		Attestation:      300 * time.Second,
		PolicyAdapt:      60 * time.Second,
		HoneypotIngest:   10 * time.Second,
		ActivityUpdater:  10 * time.Second,
	}
}

// MaintenanceWindow defines a daily wall-clock window during which C12
// rejects all data submissions with reason "maintenance_window". Resolves
// the spec's Open Question by making the window explicit, configurable,
// and timezone-aware (default preserves the source's 02:00-03:00 local
// behavior but is no longer hardcoded).
type MaintenanceWindow struct {
	Enabled   bool   `yaml:"enabled"`
	StartHour int    `yaml:"start_hour"`
	EndHour   int    `yaml:"end_hour"`
	Timezone  string `yaml:"timezone"`

	location *time.Location
}

// DefaultMaintenanceWindow mirrors the original 02:00-03:00 local-time window,
// disabled by default so a fresh deployment isn't surprised by silent rejects.
func DefaultMaintenanceWindow() MaintenanceWindow {
	return MaintenanceWindow{Enabled: false, StartHour: 2, EndHour: 3, Timezone: "Local"}
}

// Resolve parses Timezone into a *time.Location, caching it. Call once after
// loading configuration and before using Contains.
func (w *MaintenanceWindow) Resolve() error {
	if w.Timezone == "" || w.Timezone == "Local" {
		w.location = time.Local
		return nil
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return fmt.Errorf("invalid maintenance window timezone %q: %w", w.Timezone, err)
	}
	w.location = loc
	return nil
}

// Contains reports whether t falls inside the configured window, evaluated
// in the window's configured timezone. Windows that wrap past midnight
// (StartHour > EndHour) are supported.
func (w MaintenanceWindow) Contains(t time.Time) bool {
	if !w.Enabled {
		return false
	}
	loc := w.location
	if loc == nil {
		loc = time.Local
	}
	hour := t.In(loc).Hour()
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	return hour >= w.StartHour || hour < w.EndHour
}

// Config is the full deployment configuration for the control plane.
type Config struct {
	// AllowInsecureAutoAuth enables new-MAC auto-admission for token issuance
	// when true. Off by default per the spec's security posture.
	AllowInsecureAutoAuth bool `yaml:"allow_insecure_auto_auth"`

	// WiFiInterface is the link-layer interface the Admission Service watches.
	WiFiInterface string `yaml:"wifi_interface"`

	// HostapdLogPath, if set, enables the hostapd association-log watcher.
	HostapdLogPath string `yaml:"hostapd_log_path"`

	// DataDir is the root directory for the Identity Store, Pending
	// Admission Queue, and CA material.
	DataDir string `yaml:"data_dir"`

	// SessionTTL is how long a session token remains valid without activity.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// RateLimitPerWindow / RateLimitWindow configure C12's per-device
	// sliding-window rate limit (default 60 packets / 60 s).
	RateLimitPerWindow int           `yaml:"rate_limit_per_window"`
	RateLimitWindow     time.Duration `yaml:"rate_limit_window"`

	// ProfilingDuration is C5's observation window (default 300 s).
	ProfilingDuration time.Duration `yaml:"profiling_duration"`

	MaintenanceWindow MaintenanceWindow `yaml:"maintenance_window"`
	Cadences          Cadences          `yaml:"cadences"`
}

// Default returns a Config with every field set to the spec's stated defaults.
func Default() Config {
	return Config{
		AllowInsecureAutoAuth: false,
		WiFiInterface:         "wlan0",
		DataDir:               "./data",
		SessionTTL:            300 * time.Second,
		RateLimitPerWindow:    60,
		RateLimitWindow:       60 * time.Second,
		ProfilingDuration:     300 * time.Second,
		MaintenanceWindow:     DefaultMaintenanceWindow(),
		Cadences:              DefaultCadences(),
	}
}

// LoadFromEnv overlays the environment variables named in spec §6 onto cfg,
// following the teacher's pattern of explicit, individually-parsed env
// overrides rather than a reflection-based binder.
func LoadFromEnv(cfg Config) (Config, error) {
	if v, ok := os.LookupEnv("ALLOW_INSECURE_AUTO_AUTH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("ALLOW_INSECURE_AUTO_AUTH: %w", err)
		}
		cfg.AllowInsecureAutoAuth = b
	}
	if v, ok := os.LookupEnv("WIFI_INTERFACE"); ok && v != "" {
		cfg.WiFiInterface = v
	}
	if v, ok := os.LookupEnv("HOSTAPD_LOG_PATH"); ok && v != "" {
		cfg.HostapdLogPath = v
	}
	if v, ok := os.LookupEnv("ZEROTRUST_DATA_DIR"); ok && v != "" {
		cfg.DataDir = v
	}
	return cfg, nil
}
