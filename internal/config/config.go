// Package config loads engine settings from an optional YAML file with
// NEWSLOOM_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/newsloom/newsloom/internal/detect"
	"github.com/newsloom/newsloom/internal/momentum"
	"github.com/newsloom/newsloom/internal/thread"
)

const (
	configPathEnv = "NEWSLOOM_CONFIG"

	serverPortEnv = "NEWSLOOM_SERVER_PORT"
	apiTokenEnv   = "NEWSLOOM_API_TOKEN"
	logLevelEnv   = "NEWSLOOM_LOG_LEVEL"
	dataDirEnv    = "NEWSLOOM_DATA_DIR"
)

// Config holds all settings for the engine, server, and CLI.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Threading ThreadingConfig `yaml:"threading"`
	Momentum  MomentumConfig  `yaml:"momentum"`
	Detection DetectionConfig `yaml:"detection"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	APIToken string `yaml:"api_token"`
	LogLevel string `yaml:"log_level"`
}

// StorageConfig describes where the SQLite database lives.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// ThreadingConfig mirrors the tier classification boundaries.
type ThreadingConfig struct {
	Tier1MinSim            float64 `yaml:"tier1_min_sim"`
	Tier1MaxDays           int     `yaml:"tier1_max_days"`
	Tier2MinSim            float64 `yaml:"tier2_min_sim"`
	Tier2MaxSim            float64 `yaml:"tier2_max_sim"`
	Tier2MaxDays           int     `yaml:"tier2_max_days"`
	Tier3MinSim            float64 `yaml:"tier3_min_sim"`
	Tier3MaxSim            float64 `yaml:"tier3_max_sim"`
	Tier3MinSharedEntities int     `yaml:"tier3_min_shared_entities"`
}

// MomentumConfig mirrors the recency weighting bands and status boundaries.
type MomentumConfig struct {
	FullDays       int     `yaml:"full_days"`
	HalfDays       int     `yaml:"half_days"`
	QuarterDays    int     `yaml:"quarter_days"`
	ActiveMomentum float64 `yaml:"active_momentum"`
	DormantDays    int     `yaml:"dormant_days"`
}

// DetectionConfig mirrors the anomaly check parameters.
type DetectionConfig struct {
	WindowDays              int     `yaml:"window_days"`
	SurgeRatio              float64 `yaml:"surge_ratio"`
	SurgeMediumRatio        float64 `yaml:"surge_medium_ratio"`
	SurgeHighRatio          float64 `yaml:"surge_high_ratio"`
	ReactivationDormantDays int     `yaml:"reactivation_dormant_days"`
	NewActorMinMentions     int     `yaml:"new_actor_min_mentions"`
}

// Thresholds converts the threading section into engine thresholds.
func (c ThreadingConfig) Thresholds() thread.Thresholds {
	return thread.Thresholds{
		Tier1MinSim:            c.Tier1MinSim,
		Tier1MaxDays:           c.Tier1MaxDays,
		Tier2MinSim:            c.Tier2MinSim,
		Tier2MaxSim:            c.Tier2MaxSim,
		Tier2MaxDays:           c.Tier2MaxDays,
		Tier3MinSim:            c.Tier3MinSim,
		Tier3MaxSim:            c.Tier3MaxSim,
		Tier3MinSharedEntities: c.Tier3MinSharedEntities,
	}
}

// Weights converts the momentum section into scorer weights.
func (c MomentumConfig) Weights() momentum.Weights {
	return momentum.Weights{
		FullDays:       c.FullDays,
		HalfDays:       c.HalfDays,
		QuarterDays:    c.QuarterDays,
		ActiveMomentum: c.ActiveMomentum,
		DormantDays:    c.DormantDays,
	}
}

// Detect converts the detection section into detector config.
func (c DetectionConfig) Detect() detect.Config {
	return detect.Config{
		WindowDays:              c.WindowDays,
		SurgeRatio:              c.SurgeRatio,
		SurgeMediumRatio:        c.SurgeMediumRatio,
		SurgeHighRatio:          c.SurgeHighRatio,
		ReactivationDormantDays: c.ReactivationDormantDays,
		NewActorMinMentions:     c.NewActorMinMentions,
	}
}

func defaults() Config {
	thresholds := thread.DefaultThresholds()
	weights := momentum.DefaultWeights()
	detection := detect.DefaultConfig()

	return Config{
		Server: ServerConfig{
			Port:     4600,
			LogLevel: "info",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Threading: ThreadingConfig{
			Tier1MinSim:            thresholds.Tier1MinSim,
			Tier1MaxDays:           thresholds.Tier1MaxDays,
			Tier2MinSim:            thresholds.Tier2MinSim,
			Tier2MaxSim:            thresholds.Tier2MaxSim,
			Tier2MaxDays:           thresholds.Tier2MaxDays,
			Tier3MinSim:            thresholds.Tier3MinSim,
			Tier3MaxSim:            thresholds.Tier3MaxSim,
			Tier3MinSharedEntities: thresholds.Tier3MinSharedEntities,
		},
		Momentum: MomentumConfig{
			FullDays:       weights.FullDays,
			HalfDays:       weights.HalfDays,
			QuarterDays:    weights.QuarterDays,
			ActiveMomentum: weights.ActiveMomentum,
			DormantDays:    weights.DormantDays,
		},
		Detection: DetectionConfig{
			WindowDays:              detection.WindowDays,
			SurgeRatio:              detection.SurgeRatio,
			SurgeMediumRatio:        detection.SurgeMediumRatio,
			SurgeHighRatio:          detection.SurgeHighRatio,
			ReactivationDormantDays: detection.ReactivationDormantDays,
			NewActorMinMentions:     detection.NewActorMinMentions,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".newsloom")
}

// Load reads the YAML config named by NEWSLOOM_CONFIG (if set), applies
// NEWSLOOM_* environment overrides, and validates every tunable section.
// Invalid thresholds are a startup error, not a warning.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(serverPortEnv); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s=%q: %w", serverPortEnv, v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(apiTokenEnv); v != "" {
		c.Server.APIToken = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv(dataDirEnv); v != "" {
		c.Storage.DataDir = v
	}
	return nil
}

// Validate checks every tunable section against the engine's own rules.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Server.LogLevel)
	}
	if err := c.Threading.Thresholds().Validate(); err != nil {
		return fmt.Errorf("threading config: %w", err)
	}
	if err := c.Momentum.Weights().Validate(); err != nil {
		return fmt.Errorf("momentum config: %w", err)
	}
	if err := c.Detection.Detect().Validate(); err != nil {
		return fmt.Errorf("detection config: %w", err)
	}
	return nil
}
