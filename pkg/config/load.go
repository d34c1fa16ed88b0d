package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path,
// applies defaults, and validates the result. Environment variables are
// not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies AGRIMIND_* environment variable overrides. Environment variables
// always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file (applies defaults)
//  2. Apply environment variable overrides
//  3. Re-validate the final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Variables use
// the format AGRIMIND_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("AGRIMIND_HEALTH_SWEEP_SCHEDULE"); val != "" {
		cfg.Health.SweepSchedule = val
	}
	if val := os.Getenv("AGRIMIND_EXECUTOR_DEFAULT_MAX_ATTEMPTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Executor.DefaultMaxAttempts = i
		}
	}
	if val := os.Getenv("AGRIMIND_FANOUT_DEADLINE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Fanout.Deadline = d
		}
	}
	if val := os.Getenv("AGRIMIND_FANOUT_MAX_ENDPOINTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Fanout.MaxEndpoints = i
		}
	}
	if val := os.Getenv("AGRIMIND_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("AGRIMIND_AUDIT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Audit.Enabled = b
		}
	}
	if val := os.Getenv("AGRIMIND_AUDIT_DB_PATH"); val != "" {
		cfg.Audit.DBPath = val
	}

	// Credential secrets are never stored in the file; each credential's
	// key is read from AGRIMIND_CREDENTIAL_<ID> when the file leaves it
	// empty.
	for i := range cfg.Credentials {
		if cfg.Credentials[i].Key != "" {
			continue
		}
		envName := "AGRIMIND_CREDENTIAL_" + credentialEnvSuffix(cfg.Credentials[i].ID)
		if val := os.Getenv(envName); val != "" {
			cfg.Credentials[i].Key = val
		}
	}
}

// credentialEnvSuffix converts a credential id to its environment variable
// suffix: upper-cased with dashes and dots replaced by underscores.
func credentialEnvSuffix(id string) string {
	s := strings.ToUpper(id)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return s
}
