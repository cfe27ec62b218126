// Package config loads the engine's tunable settings from environment
// variables and an optional YAML file, the way the teacher's
// internal/config package layers viper over a config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable constant the spec calls out by value so
// operators can adjust timing without recompiling.
type Config struct {
	// TheaRoot is the project root boundary; every worker working directory
	// must resolve inside it.
	TheaRoot string

	// PersistDir holds workers.json, checkpoints/, and bulldoze state files.
	PersistDir string

	// CaptureInterval is the Output & Control Plane's capture tick (§4.4, ~5s).
	CaptureInterval time.Duration
	// HealthInterval is the Health & Recovery evaluation tick (§4.5, ~10s).
	HealthInterval time.Duration
	// CleanupInterval is the periodic cleanup sweep tick (§4.5, 60s).
	CleanupInterval time.Duration

	// CircuitBreakerThreshold is the consecutive-failure count that trips
	// the breaker (§4.1, default 3).
	CircuitBreakerThreshold int
	// CircuitBreakerWindow is the window failures must fall within to trip
	// the breaker (§4.1, default 60s).
	CircuitBreakerWindow time.Duration

	// MaxActiveWorkers bounds active+pending+in-flight workers (§4.6, 100).
	MaxActiveWorkers int

	// SaveDebounce is the debounce window for saveWorkerState (§4.6, 2s).
	SaveDebounce time.Duration

	// HealthAddr, if non-empty, serves a liveness endpoint for operators.
	HealthAddr string

	// TracingEnabled turns on span export for Lifecycle operations and
	// capture ticks (stdout exporter by default; see internal/orchestration
	// /tracing).
	TracingEnabled bool
}

// Defaults returns the engine's default configuration, matching every
// numeric constant named in spec.md.
func Defaults() Config {
	return Config{
		TheaRoot:                ".",
		PersistDir:              ".strategos",
		CaptureInterval:         5 * time.Second,
		HealthInterval:          10 * time.Second,
		CleanupInterval:         60 * time.Second,
		CircuitBreakerThreshold: 3,
		CircuitBreakerWindow:    60 * time.Second,
		MaxActiveWorkers:        100,
		SaveDebounce:            2 * time.Second,
		HealthAddr:              "",
		TracingEnabled:          true,
	}
}

// Load reads configuration from (in priority order) environment variables
// prefixed STRATEGOS_, a YAML file at configPath (if non-empty and it
// exists), and finally the built-in defaults. THEA_ROOT (unprefixed, per
// §6) always overrides TheaRoot when set.
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("STRATEGOS")
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return cfg, fmt.Errorf("reading config file %s: %w", configPath, err)
			}
		}
	}

	if v.IsSet("persist_dir") {
		cfg.PersistDir = v.GetString("persist_dir")
	}
	if v.IsSet("capture_interval") {
		cfg.CaptureInterval = v.GetDuration("capture_interval")
	}
	if v.IsSet("health_interval") {
		cfg.HealthInterval = v.GetDuration("health_interval")
	}
	if v.IsSet("cleanup_interval") {
		cfg.CleanupInterval = v.GetDuration("cleanup_interval")
	}
	if v.IsSet("circuit_breaker_threshold") {
		cfg.CircuitBreakerThreshold = v.GetInt("circuit_breaker_threshold")
	}
	if v.IsSet("circuit_breaker_window") {
		cfg.CircuitBreakerWindow = v.GetDuration("circuit_breaker_window")
	}
	if v.IsSet("max_active_workers") {
		cfg.MaxActiveWorkers = v.GetInt("max_active_workers")
	}
	if v.IsSet("save_debounce") {
		cfg.SaveDebounce = v.GetDuration("save_debounce")
	}
	if v.IsSet("health_addr") {
		cfg.HealthAddr = v.GetString("health_addr")
	}
	if v.IsSet("tracing_enabled") {
		cfg.TracingEnabled = v.GetBool("tracing_enabled")
	}

	// THEA_ROOT is the one setting the spec requires to be read directly
	// (§6), unprefixed, so it composes with tools that already export it.
	if root := os.Getenv("THEA_ROOT"); root != "" {
		cfg.TheaRoot = root
	}

	abs, err := filepath.Abs(cfg.TheaRoot)
	if err != nil {
		return cfg, fmt.Errorf("resolving THEA_ROOT %q: %w", cfg.TheaRoot, err)
	}
	cfg.TheaRoot = abs

	return cfg, nil
}
