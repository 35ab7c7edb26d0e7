package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := New()
	cfg.TasksPath = "tasks.yaml"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"missing tasks file", func(c *Config) { c.TasksPath = "" }, true},
		{"negative max results", func(c *Config) { c.MaxResults = -1 }, true},
		{"negative delay", func(c *Config) { c.DelayMin = -time.Second }, true},
		{"min above max", func(c *Config) { c.DelayMin = 5 * time.Second; c.DelayMax = time.Second }, true},
		{"equal bounds", func(c *Config) { c.DelayMin = time.Second; c.DelayMax = time.Second }, false},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, true},
		{"zero retries", func(c *Config) { c.SinkRetries = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MAX_RESULTS_PER_SEARCH", "250")
	t.Setenv("DELAY_MIN", "1.5")
	t.Setenv("DELAY_MAX", "3")
	t.Setenv("OUTPUT_TAB", "Leads")

	cfg := New()
	if cfg.MaxResults != 250 {
		t.Errorf("MaxResults = %d, want 250", cfg.MaxResults)
	}
	if cfg.DelayMin != 1500*time.Millisecond {
		t.Errorf("DelayMin = %s, want 1.5s", cfg.DelayMin)
	}
	if cfg.DelayMax != 3*time.Second {
		t.Errorf("DelayMax = %s, want 3s", cfg.DelayMax)
	}
	if cfg.OutputTab != "Leads" {
		t.Errorf("OutputTab = %q, want Leads", cfg.OutputTab)
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("MAX_RESULTS_PER_SEARCH", "lots")
	t.Setenv("DELAY_MIN", "soon")

	cfg := New()
	if cfg.MaxResults != 0 {
		t.Errorf("MaxResults = %d, want default 0", cfg.MaxResults)
	}
	if cfg.DelayMin != DefaultDelayMin {
		t.Errorf("DelayMin = %s, want default", cfg.DelayMin)
	}
}
