// Package config defines and loads the router configuration: the
// credential list, the static endpoint table with rate ceilings and
// specialization tags, and the task-specialization table.
//
// Configuration is loaded from YAML, filled with defaults, validated, and
// optionally overridden by AGRIMIND_* environment variables. A file
// watcher supports hot-reloading the endpoint and task tables.
package config

import "time"

// Config is the root configuration for the router.
type Config struct {
	// Credentials is the rotation pool of access credentials.
	Credentials []CredentialConfig `yaml:"credentials"`

	// Endpoints is the static endpoint table.
	Endpoints []EndpointConfig `yaml:"endpoints"`

	// Tasks is the task-specialization table, keyed by task tag.
	Tasks map[string]TaskConfig `yaml:"tasks"`

	// Executor contains retry-loop settings.
	Executor ExecutorConfig `yaml:"executor"`

	// Health contains health-registry settings.
	Health HealthConfig `yaml:"health"`

	// Fanout contains fan-out aggregator settings.
	Fanout FanoutConfig `yaml:"fanout"`

	// Metrics contains prometheus metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`

	// Audit contains attempt audit-trail settings.
	Audit AuditConfig `yaml:"audit"`
}

// CredentialConfig describes one credential in the rotation pool.
type CredentialConfig struct {
	// ID is the credential identifier used throughout the router.
	ID string `yaml:"id"`

	// Key is the secret value handed to the call collaborator. Left empty
	// in the file, it is read from AGRIMIND_CREDENTIAL_<ID> (upper-cased,
	// dashes replaced by underscores).
	Key string `yaml:"key"`
}

// EndpointConfig describes one inference endpoint.
type EndpointConfig struct {
	// ID is the endpoint identifier (e.g., "openrouter/llama-3.3-70b").
	ID string `yaml:"id"`

	// Provider is the upstream provider name.
	Provider string `yaml:"provider"`

	// Specializations is the set of task tags the endpoint advertises.
	Specializations []string `yaml:"specializations"`

	// RequestsPerMinute is the per-minute rate ceiling (0 = unlimited).
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// RequestsPerDay is the per-day rate ceiling (0 = unlimited).
	RequestsPerDay int `yaml:"requests_per_day"`
}

// TaskConfig is one task-specialization table entry.
type TaskConfig struct {
	// Preferred is the ordered preferred-endpoint list.
	Preferred []string `yaml:"preferred"`

	// Fallback is the fallback-endpoint list.
	Fallback []string `yaml:"fallback"`

	// MaxRetries is the attempt ceiling for this task.
	MaxRetries int `yaml:"max_retries"`

	// ExpectedTokens is the expected output size hint.
	ExpectedTokens int `yaml:"expected_tokens"`
}

// ExecutorConfig contains retry-loop settings.
type ExecutorConfig struct {
	// DefaultMaxAttempts is the attempt ceiling for tasks without an
	// explicit max_retries.
	DefaultMaxAttempts int `yaml:"default_max_attempts"`
}

// HealthConfig contains health-registry settings.
type HealthConfig struct {
	// SweepSchedule is the cron schedule for the unblock/reactivate sweep.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// FanoutConfig contains fan-out aggregator settings.
type FanoutConfig struct {
	// Deadline bounds how long a fan-out call waits for branches.
	Deadline time.Duration `yaml:"deadline"`

	// MaxEndpoints is the default branch count when the caller passes 0.
	MaxEndpoints int `yaml:"max_endpoints"`

	// Synthesize controls whether multi-response fan-outs are merged by a
	// synthesis call.
	Synthesize bool `yaml:"synthesize"`
}

// MetricsConfig contains prometheus metrics settings.
type MetricsConfig struct {
	// Enabled controls whether metrics are registered.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric name subsystem.
	Subsystem string `yaml:"subsystem"`
}

// AuditConfig contains attempt audit-trail settings.
type AuditConfig struct {
	// Enabled controls whether attempts are recorded.
	Enabled bool `yaml:"enabled"`

	// DBPath is the sqlite database file path.
	DBPath string `yaml:"db_path"`

	// RetentionDays is how long attempt rows are kept.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron schedule for retention pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}
