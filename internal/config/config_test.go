package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{configPathEnv, serverPortEnv, apiTokenEnv, logLevelEnv, dataDirEnv} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4600 {
		t.Errorf("port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Threading.Tier1MinSim != 0.85 || cfg.Threading.Tier2MaxDays != 7 {
		t.Errorf("threading defaults = %+v", cfg.Threading)
	}
	if cfg.Detection.NewActorMinMentions != 5 {
		t.Errorf("detection defaults = %+v", cfg.Detection)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
server:
  port: 9000
  log_level: debug
threading:
  tier1_min_sim: 0.9
detection:
  surge_high_ratio: 4.0
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.LogLevel != "debug" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Threading.Tier1MinSim != 0.9 {
		t.Errorf("tier1 min sim = %v, want 0.9", cfg.Threading.Tier1MinSim)
	}
	// Untouched keys keep their defaults.
	if cfg.Threading.Tier2MinSim != 0.65 {
		t.Errorf("tier2 min sim = %v, want default 0.65", cfg.Threading.Tier2MinSim)
	}
	if cfg.Detection.SurgeHighRatio != 4.0 {
		t.Errorf("surge high ratio = %v, want 4.0", cfg.Detection.SurgeHighRatio)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	if _, err := Load(); err == nil {
		t.Error("expected a parse error for malformed YAML")
	}
}

func TestLoadMissingConfigFileIsFatal(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Error("expected an error when the named config file is missing")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(serverPortEnv, "7777")
	t.Setenv(apiTokenEnv, "sekrit")
	t.Setenv(logLevelEnv, "warn")
	t.Setenv(dataDirEnv, "/tmp/newsloom-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7777 || cfg.Server.APIToken != "sekrit" || cfg.Server.LogLevel != "warn" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Storage.DataDir != "/tmp/newsloom-test" {
		t.Errorf("data dir = %q", cfg.Storage.DataDir)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv(serverPortEnv, "7777")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("port = %d, want env override 7777", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown log level", func(c *Config) { c.Server.LogLevel = "trace" }},
		{"inverted tier bands", func(c *Config) { c.Threading.Tier2MinSim = 0.9 }},
		{"bad momentum bands", func(c *Config) { c.Momentum.HalfDays = 2 }},
		{"bad surge ratio", func(c *Config) { c.Detection.SurgeRatio = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestLoadRejectsUnparsablePortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(serverPortEnv, "not-a-port")

	if _, err := Load(); err == nil {
		t.Error("expected an error for a non-numeric port override")
	}
}
