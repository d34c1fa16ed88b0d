package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
credentials:
  - id: cred-a
    key: sk-test-a
  - id: cred-b

endpoints:
  - id: openrouter/llama-3.3-70b
    provider: openrouter
    specializations: [general, chat]
    requests_per_minute: 60
    requests_per_day: 5000
  - id: groq/llama-3.1-8b
    provider: groq
    specializations: [general]
    requests_per_minute: 30

tasks:
  chat:
    preferred: [openrouter/llama-3.3-70b]
    fallback: [groq/llama-3.1-8b]
    max_retries: 4
    expected_tokens: 512

fanout:
  deadline: 45s
  max_endpoints: 2
  synthesize: true
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "router.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if len(cfg.Endpoints) != 2 || len(cfg.Credentials) != 2 {
		t.Fatalf("got %d endpoints, %d credentials, want 2 and 2",
			len(cfg.Endpoints), len(cfg.Credentials))
	}
	if cfg.Endpoints[0].RequestsPerMinute != 60 {
		t.Errorf("RequestsPerMinute = %d, want 60", cfg.Endpoints[0].RequestsPerMinute)
	}

	task, ok := cfg.Tasks["chat"]
	if !ok {
		t.Fatal("chat task missing from table")
	}
	if task.MaxRetries != 4 || task.ExpectedTokens != 512 {
		t.Errorf("chat task = %+v, want max_retries=4 expected_tokens=512", task)
	}

	if cfg.Fanout.Deadline != 45*time.Second {
		t.Errorf("Fanout.Deadline = %v, want 45s", cfg.Fanout.Deadline)
	}
	if cfg.Fanout.MaxEndpoints != 2 {
		t.Errorf("Fanout.MaxEndpoints = %d, want 2", cfg.Fanout.MaxEndpoints)
	}
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	minimal := `
credentials:
  - id: cred-a
endpoints:
  - id: ep-1
    specializations: [general]
`
	cfg, err := LoadConfig(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Executor.DefaultMaxAttempts != DefaultMaxAttempts {
		t.Errorf("DefaultMaxAttempts = %d, want %d", cfg.Executor.DefaultMaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Health.SweepSchedule != DefaultSweepSchedule {
		t.Errorf("SweepSchedule = %q, want %q", cfg.Health.SweepSchedule, DefaultSweepSchedule)
	}
	if cfg.Fanout.Deadline != DefaultFanoutDeadline {
		t.Errorf("Fanout.Deadline = %v, want %v", cfg.Fanout.Deadline, DefaultFanoutDeadline)
	}
	if cfg.Fanout.MaxEndpoints != DefaultFanoutEndpoints {
		t.Errorf("Fanout.MaxEndpoints = %d, want %d", cfg.Fanout.MaxEndpoints, DefaultFanoutEndpoints)
	}
	if cfg.Metrics.Namespace != DefaultMetricsNS || cfg.Metrics.Subsystem != DefaultMetricsSub {
		t.Errorf("metrics names = %q/%q, want defaults", cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	}
	if cfg.Audit.RetentionDays != DefaultRetentionDays {
		t.Errorf("Audit.RetentionDays = %d, want %d", cfg.Audit.RetentionDays, DefaultRetentionDays)
	}
	if cfg.Tasks == nil {
		t.Error("Tasks map is nil after defaults")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadConfig() error = nil for missing file")
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "credentials: [\n"))
	if err == nil {
		t.Fatal("LoadConfig() error = nil for malformed yaml")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("error %q does not mention parsing", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{
			Credentials: []CredentialConfig{{ID: "cred-a"}},
			Endpoints:   []EndpointConfig{{ID: "ep-1"}, {ID: "ep-2"}},
			Tasks: map[string]TaskConfig{
				"chat": {Preferred: []string{"ep-1"}, Fallback: []string{"ep-2"}},
			},
		}
		ApplyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "no endpoints",
			mutate:  func(cfg *Config) { cfg.Endpoints = nil },
			wantErr: "at least one endpoint",
		},
		{
			name:    "no credentials",
			mutate:  func(cfg *Config) { cfg.Credentials = nil },
			wantErr: "at least one credential",
		},
		{
			name:    "duplicate endpoint id",
			mutate:  func(cfg *Config) { cfg.Endpoints[1].ID = "ep-1" },
			wantErr: "duplicate id",
		},
		{
			name:    "credential id collides with endpoint",
			mutate:  func(cfg *Config) { cfg.Credentials[0].ID = "ep-1" },
			wantErr: "collides",
		},
		{
			name: "task references unknown endpoint",
			mutate: func(cfg *Config) {
				cfg.Tasks["chat"] = TaskConfig{Preferred: []string{"no-such"}}
			},
			wantErr: "not configured",
		},
		{
			name:    "negative rate ceiling",
			mutate:  func(cfg *Config) { cfg.Endpoints[0].RequestsPerMinute = -1 },
			wantErr: "requests_per_minute",
		},
		{
			name:    "zero max attempts",
			mutate:  func(cfg *Config) { cfg.Executor.DefaultMaxAttempts = 0 },
			wantErr: "default_max_attempts",
		},
		{
			name: "audit enabled with zero retention",
			mutate: func(cfg *Config) {
				cfg.Audit.Enabled = true
				cfg.Audit.RetentionDays = 0
			},
			wantErr: "retention_days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Setenv("AGRIMIND_HEALTH_SWEEP_SCHEDULE", "@every 30s")
	t.Setenv("AGRIMIND_EXECUTOR_DEFAULT_MAX_ATTEMPTS", "5")
	t.Setenv("AGRIMIND_FANOUT_DEADLINE", "10s")
	t.Setenv("AGRIMIND_METRICS_ENABLED", "true")
	t.Setenv("AGRIMIND_CREDENTIAL_CRED_B", "sk-from-env")

	cfg, err := LoadConfigWithEnvOverrides(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Health.SweepSchedule != "@every 30s" {
		t.Errorf("SweepSchedule = %q, want env value", cfg.Health.SweepSchedule)
	}
	if cfg.Executor.DefaultMaxAttempts != 5 {
		t.Errorf("DefaultMaxAttempts = %d, want 5", cfg.Executor.DefaultMaxAttempts)
	}
	if cfg.Fanout.Deadline != 10*time.Second {
		t.Errorf("Fanout.Deadline = %v, want 10s", cfg.Fanout.Deadline)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want env override")
	}

	// cred-a keeps its file value, cred-b picks up the env secret.
	if cfg.Credentials[0].Key != "sk-test-a" {
		t.Errorf("cred-a key = %q, want the file value kept", cfg.Credentials[0].Key)
	}
	if cfg.Credentials[1].Key != "sk-from-env" {
		t.Errorf("cred-b key = %q, want sk-from-env", cfg.Credentials[1].Key)
	}
}

func TestCredentialEnvSuffix(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"cred-a", "CRED_A"},
		{"openrouter.main", "OPENROUTER_MAIN"},
		{"simple", "SIMPLE"},
	}
	for _, tt := range tests {
		if got := credentialEnvSuffix(tt.id); got != tt.want {
			t.Errorf("credentialEnvSuffix(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
