package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rewired-gh/pdtta/internal/distribution"
	"github.com/rewired-gh/pdtta/internal/pta"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
learner:
  omit_fraction: 0.01
  kernel: epanechnikov
  bandwidth: 0.25
  merge_strategy: merge_in_process

events:
  file: "./events.yaml"

sampler:
  seed: 42
  count: 500

storage:
  db_path: "./data/test.db"
  max_models: 5
  export_dir: "./data/out"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Learner.OmitFraction != 0.01 {
		t.Errorf("Unexpected omit fraction: %f", cfg.Learner.OmitFraction)
	}
	if cfg.Events.File != "./events.yaml" {
		t.Errorf("Unexpected events file: %s", cfg.Events.File)
	}
	if cfg.Sampler.Seed != 42 || cfg.Sampler.Count != 500 {
		t.Errorf("Unexpected sampler config: %+v", cfg.Sampler)
	}
	if cfg.Storage.MaxModels != 5 {
		t.Errorf("Expected 5 max models, got %d", cfg.Storage.MaxModels)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	fitter, err := cfg.Fitter()
	if err != nil {
		t.Fatalf("Fitter failed: %v", err)
	}
	kde, ok := fitter.(distribution.KDEFitter)
	if !ok || kde.Kernel != distribution.Epanechnikov || kde.Bandwidth != 0.25 {
		t.Errorf("Unexpected fitter: %#v", fitter)
	}

	strategy, err := cfg.MergeStrategy()
	if err != nil || strategy != pta.IsolateCriticalAreasMergeInProcess {
		t.Errorf("Unexpected merge strategy %v (err %v)", strategy, err)
	}
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: warn\n")
	t.Setenv("PDTTA_SAMPLER_COUNT", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Learner.OmitFraction != 0.0001 {
		t.Errorf("Expected default omit fraction, got %f", cfg.Learner.OmitFraction)
	}
	if cfg.Sampler.Count != 7 {
		t.Errorf("Expected env override of sampler.count, got %d", cfg.Sampler.Count)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected level warn, got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"omit fraction too large", func(c *Config) { c.Learner.OmitFraction = 1.5 }},
		{"negative omit fraction", func(c *Config) { c.Learner.OmitFraction = -0.1 }},
		{"unknown kernel", func(c *Config) { c.Learner.Kernel = "triangle" }},
		{"negative bandwidth", func(c *Config) { c.Learner.Bandwidth = -1 }},
		{"unknown merge strategy", func(c *Config) { c.Learner.MergeStrategy = "greedy" }},
		{"zero sample count", func(c *Config) { c.Sampler.Count = 0 }},
		{"missing db path", func(c *Config) { c.Storage.DBPath = "" }},
		{"zero max models", func(c *Config) { c.Storage.MaxModels = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() expected error")
			}
		})
	}
}
