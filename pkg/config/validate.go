package config

import "fmt"

// Validate checks the configuration for internal consistency. It returns
// the first problem found.
func Validate(cfg *Config) error {
	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint must be configured")
	}
	if len(cfg.Credentials) == 0 {
		return fmt.Errorf("at least one credential must be configured")
	}

	endpointIDs := make(map[string]bool, len(cfg.Endpoints))
	for i, ep := range cfg.Endpoints {
		if ep.ID == "" {
			return fmt.Errorf("endpoint %d: id must not be empty", i)
		}
		if endpointIDs[ep.ID] {
			return fmt.Errorf("endpoint %q: duplicate id", ep.ID)
		}
		endpointIDs[ep.ID] = true
		if ep.RequestsPerMinute < 0 {
			return fmt.Errorf("endpoint %q: requests_per_minute must not be negative", ep.ID)
		}
		if ep.RequestsPerDay < 0 {
			return fmt.Errorf("endpoint %q: requests_per_day must not be negative", ep.ID)
		}
	}

	credentialIDs := make(map[string]bool, len(cfg.Credentials))
	for i, c := range cfg.Credentials {
		if c.ID == "" {
			return fmt.Errorf("credential %d: id must not be empty", i)
		}
		if credentialIDs[c.ID] {
			return fmt.Errorf("credential %q: duplicate id", c.ID)
		}
		credentialIDs[c.ID] = true
		if endpointIDs[c.ID] {
			return fmt.Errorf("credential %q: id collides with an endpoint id", c.ID)
		}
	}

	for tag, task := range cfg.Tasks {
		if tag == "" {
			return fmt.Errorf("task table: empty task tag")
		}
		for _, id := range task.Preferred {
			if !endpointIDs[id] {
				return fmt.Errorf("task %q: preferred endpoint %q is not configured", tag, id)
			}
		}
		for _, id := range task.Fallback {
			if !endpointIDs[id] {
				return fmt.Errorf("task %q: fallback endpoint %q is not configured", tag, id)
			}
		}
		if task.MaxRetries < 0 {
			return fmt.Errorf("task %q: max_retries must not be negative", tag)
		}
	}

	if cfg.Executor.DefaultMaxAttempts < 1 {
		return fmt.Errorf("executor: default_max_attempts must be at least 1")
	}
	if cfg.Fanout.Deadline < 0 {
		return fmt.Errorf("fanout: deadline must not be negative")
	}
	if cfg.Fanout.MaxEndpoints < 1 {
		return fmt.Errorf("fanout: max_endpoints must be at least 1")
	}
	if cfg.Audit.Enabled && cfg.Audit.RetentionDays < 1 {
		return fmt.Errorf("audit: retention_days must be at least 1 when audit is enabled")
	}

	return nil
}
