package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HorizonDays != 365 {
		t.Fatalf("expected default horizon 365, got %d", cfg.HorizonDays)
	}
	if cfg.ServiceName != "dandori" {
		t.Fatalf("expected default service name dandori, got %q", cfg.ServiceName)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DANDORI_SCENARIO", "/tmp/pilot.json")
	t.Setenv("DANDORI_HORIZON_DAYS", "90")
	t.Setenv("DANDORI_RUN_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ScenarioPath != "/tmp/pilot.json" {
		t.Fatalf("expected scenario path from env, got %q", cfg.ScenarioPath)
	}
	if cfg.HorizonDays != 90 {
		t.Fatalf("expected horizon 90, got %d", cfg.HorizonDays)
	}
	if cfg.RunTimeout != 30*time.Second {
		t.Fatalf("expected 30s run timeout, got %s", cfg.RunTimeout)
	}
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("DANDORI_HORIZON_DAYS", "ninety")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HorizonDays != 365 {
		t.Fatalf("expected fallback 365, got %d", cfg.HorizonDays)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero horizon", func(c *Config) { c.HorizonDays = 0 }},
		{"inverted sweep range", func(c *Config) { c.SweepFrom = 5; c.SweepTo = 2 }},
		{"zero sweep from", func(c *Config) { c.SweepFrom = 0 }},
		{"zero run timeout", func(c *Config) { c.RunTimeout = 0 }},
		{"zero batch max", func(c *Config) { c.ArchiveBatchMax = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tc.mut(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}
