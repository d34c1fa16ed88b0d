package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultMaxAttempts     = 3
	DefaultSweepSchedule   = "@every 2m"
	DefaultFanoutDeadline  = 90 * time.Second
	DefaultFanoutEndpoints = 3
	DefaultMetricsNS       = "agrimind"
	DefaultMetricsSub      = "router"
	DefaultRetentionDays   = 30
	DefaultPruneSchedule   = "0 3 * * *"
	DefaultAuditDBPath     = "router-audit.db"
)

// ApplyDefaults fills zero-valued fields with defaults. It is called by
// LoadConfig before validation.
func ApplyDefaults(cfg *Config) {
	if cfg.Tasks == nil {
		cfg.Tasks = make(map[string]TaskConfig)
	}
	if cfg.Executor.DefaultMaxAttempts == 0 {
		cfg.Executor.DefaultMaxAttempts = DefaultMaxAttempts
	}
	if cfg.Health.SweepSchedule == "" {
		cfg.Health.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.Fanout.Deadline == 0 {
		cfg.Fanout.Deadline = DefaultFanoutDeadline
	}
	if cfg.Fanout.MaxEndpoints == 0 {
		cfg.Fanout.MaxEndpoints = DefaultFanoutEndpoints
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNS
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSub
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultRetentionDays
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = DefaultPruneSchedule
	}
	if cfg.Audit.DBPath == "" {
		cfg.Audit.DBPath = DefaultAuditDBPath
	}
}
