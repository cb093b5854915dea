// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Scenario settings.
	ScenarioPath string // Path to the scenario JSON file.
	HorizonDays  int    // Simulation horizon in days past day zero.

	// Archive settings.
	DatabasePath string // SQLite file for run archives; empty disables archiving.

	// Capacity sweep settings.
	SweepFrom int // Smallest quota-resource count tried by -sweep.
	SweepTo   int // Largest quota-resource count tried by -sweep.

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string

	// Operational settings.
	LogLevel        string
	RunTimeout      time.Duration // Wall-clock bound on a single simulation run.
	ArchiveBatchMax int           // Events per insert batch when archiving.
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ScenarioPath:    envStr("DANDORI_SCENARIO", ""),
		HorizonDays:     envInt("DANDORI_HORIZON_DAYS", 365),
		DatabasePath:    envStr("DANDORI_DB_PATH", ""),
		SweepFrom:       envInt("DANDORI_SWEEP_FROM", 1),
		SweepTo:         envInt("DANDORI_SWEEP_TO", 8),
		OTELEndpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:     envStr("OTEL_SERVICE_NAME", "dandori"),
		LogLevel:        envStr("DANDORI_LOG_LEVEL", "info"),
		RunTimeout:      envDuration("DANDORI_RUN_TIMEOUT", 5*time.Minute),
		ArchiveBatchMax: envInt("DANDORI_ARCHIVE_BATCH_MAX", 500),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.HorizonDays <= 0 {
		return fmt.Errorf("config: DANDORI_HORIZON_DAYS must be positive")
	}
	if c.SweepFrom <= 0 || c.SweepTo < c.SweepFrom {
		return fmt.Errorf("config: sweep range %d..%d is invalid", c.SweepFrom, c.SweepTo)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("config: DANDORI_RUN_TIMEOUT must be positive")
	}
	if c.ArchiveBatchMax <= 0 {
		return fmt.Errorf("config: DANDORI_ARCHIVE_BATCH_MAX must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
