package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/rewired-gh/pdtta/internal/distribution"
	"github.com/rewired-gh/pdtta/internal/pta"
)

// Config represents the complete application configuration
type Config struct {
	Learner LearnerConfig `mapstructure:"learner"`
	Events  EventsConfig  `mapstructure:"events"`
	Sampler SamplerConfig `mapstructure:"sampler"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LearnerConfig holds learning configuration
type LearnerConfig struct {
	OmitFraction  float64 `mapstructure:"omit_fraction"`
	Kernel        string  `mapstructure:"kernel"`
	Bandwidth     float64 `mapstructure:"bandwidth"`
	MergeStrategy string  `mapstructure:"merge_strategy"`
}

// EventsConfig points to the event-set definition used for PTA construction.
// An empty file means every event has a single untimed sub-event.
type EventsConfig struct {
	File string `mapstructure:"file"`
}

// SamplerConfig holds sampling configuration. A zero seed seeds from the clock.
type SamplerConfig struct {
	Seed  int64 `mapstructure:"seed"`
	Count int   `mapstructure:"count"`
}

// StorageConfig holds storage and export configuration
type StorageConfig struct {
	DBPath    string `mapstructure:"db_path"`
	MaxModels int    `mapstructure:"max_models"`
	ExportDir string `mapstructure:"export_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// Enable environment variable override, e.g. PDTTA_LEARNER_OMIT_FRACTION
	v.SetEnvPrefix("PDTTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults are plain scalars, decoding them cannot fail
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Learner defaults
	v.SetDefault("learner.omit_fraction", 0.0001)
	v.SetDefault("learner.kernel", "gaussian")
	v.SetDefault("learner.bandwidth", 0.0)
	v.SetDefault("learner.merge_strategy", "isolate")

	// Events defaults
	v.SetDefault("events.file", "")

	// Sampler defaults
	v.SetDefault("sampler.seed", 0)
	v.SetDefault("sampler.count", 100)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/pdtta.db")
	v.SetDefault("storage.max_models", 50)
	v.SetDefault("storage.export_dir", "./data/exports")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Learner config
	if c.Learner.OmitFraction < 0.0 || c.Learner.OmitFraction >= 1.0 {
		return fmt.Errorf("learner.omit_fraction must be in [0.0, 1.0)")
	}
	if _, err := distribution.ParseKernel(c.Learner.Kernel); err != nil {
		return fmt.Errorf("learner.kernel must be one of: gaussian, epanechnikov, uniform")
	}
	if c.Learner.Bandwidth < 0 {
		return fmt.Errorf("learner.bandwidth must not be negative (0 selects Silverman's rule)")
	}
	if _, err := pta.ParseMergeStrategy(c.Learner.MergeStrategy); err != nil {
		return fmt.Errorf("learner.merge_strategy must be one of: isolate, merge_in_process")
	}

	// Validate Sampler config
	if c.Sampler.Count < 1 {
		return fmt.Errorf("sampler.count must be at least 1")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxModels < 1 {
		return fmt.Errorf("storage.max_models must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Fitter builds the time distribution fitter described by the learner section.
func (c *Config) Fitter() (distribution.Fitter, error) {
	kernel, err := distribution.ParseKernel(c.Learner.Kernel)
	if err != nil {
		return nil, err
	}
	return distribution.KDEFitter{Kernel: kernel, Bandwidth: c.Learner.Bandwidth}, nil
}

// MergeStrategy returns the configured PTA merge strategy.
func (c *Config) MergeStrategy() (pta.MergeStrategy, error) {
	return pta.ParseMergeStrategy(c.Learner.MergeStrategy)
}
