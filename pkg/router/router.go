// Package router is the public entry point of the resilient
// inference-request router.
//
// A Router wires the health registry, rate-window tracker, selector, call
// executor, and fan-out aggregator around an injected call collaborator.
// Callers hand it chat-style messages and a task classification and get
// back text or a typed failure; they never see a raw transport error.
//
// The router is a library boundary, not a network service: the actual call
// to an inference endpoint, persistence of domain entities, and delivery
// of results are all external collaborators.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"agrimind/router/pkg/audit"
	"agrimind/router/pkg/config"
	"agrimind/router/pkg/executor"
	"agrimind/router/pkg/fanout"
	"agrimind/router/pkg/health"
	"agrimind/router/pkg/ratewindow"
	"agrimind/router/pkg/routing"
	"agrimind/router/pkg/scoring"
	"agrimind/router/pkg/telemetry/metrics"
)

// Options tune a single ExecuteRequest call.
type Options struct {
	// Priority is the task priority (low, medium, high). High favors
	// proven endpoints; low spreads load onto underused ones.
	Priority scoring.Priority

	// MaxRetries overrides the task table's attempt ceiling when > 0.
	MaxRetries int
}

// Router is the orchestration facade.
type Router struct {
	cfg      *config.Config
	cfgPath  string
	registry *health.Registry
	tracker  *ratewindow.Tracker
	selector *routing.Selector
	exec     *executor.Executor
	agg      *fanout.Aggregator
	sweeper  *health.Sweeper
	watcher  *config.Watcher
	metrics  *metrics.RouterMetrics
	audit    *audit.Recorder
	stats    *Stats
	logger   *slog.Logger
}

// Option configures a Router at construction.
type Option func(*routerOptions)

type routerOptions struct {
	clock        func() time.Time
	promRegistry *prometheus.Registry
	configPath   string
}

// WithClock injects the clock used by the registry, tracker, and
// selector. Tests use this to advance time explicitly.
func WithClock(now func() time.Time) Option {
	return func(o *routerOptions) { o.clock = now }
}

// WithPrometheusRegistry enables metrics, registered against the given
// registry. Ignored when cfg.Metrics.Enabled is false.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *routerOptions) { o.promRegistry = reg }
}

// WithConfigFile enables hot reloading of the endpoint and task tables
// from the given path while the router runs.
func WithConfigFile(path string) Option {
	return func(o *routerOptions) { o.configPath = path }
}

// New creates a router from configuration and the injected call
// collaborator.
func New(cfg *config.Config, call executor.CallFunc, opts ...Option) (*Router, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if call == nil {
		return nil, fmt.Errorf("call collaborator cannot be nil")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}

	registry := health.NewRegistry(o.clock)
	tracker := ratewindow.NewTracker()
	selector := routing.NewSelector(endpointsFrom(cfg), credentialIDs(cfg), tableFrom(cfg),
		registry, tracker, o.clock)
	exec := executor.New(selector, registry, tracker, call, o.clock)
	exec.SetDefaultMaxAttempts(cfg.Executor.DefaultMaxAttempts)

	r := &Router{
		cfg:      cfg,
		cfgPath:  o.configPath,
		registry: registry,
		tracker:  tracker,
		selector: selector,
		exec:     exec,
		agg:      fanout.NewAggregator(exec, selector, registry, cfg.Fanout.Deadline),
		sweeper:  health.NewSweeper(registry, cfg.Health.SweepSchedule),
		stats:    NewStats(),
		logger:   slog.Default().With("component", "router"),
	}

	if cfg.Metrics.Enabled && o.promRegistry != nil {
		r.metrics = metrics.New(cfg.Metrics.Namespace, cfg.Metrics.Subsystem, o.promRegistry)
	}
	if cfg.Audit.Enabled {
		rec, err := audit.Open(audit.Config{
			DBPath:        cfg.Audit.DBPath,
			RetentionDays: cfg.Audit.RetentionDays,
			PruneSchedule: cfg.Audit.PruneSchedule,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open audit trail: %w", err)
		}
		r.audit = rec
	}

	exec.SetObserver(r.observeAttempt)
	return r, nil
}

// observeAttempt fans one executor attempt out to stats, metrics, and the
// audit trail.
func (r *Router) observeAttempt(a executor.Attempt) {
	r.stats.recordAttempt(a.Kind)
	r.metrics.ObserveAttempt(a.EndpointID, a.Kind, a.Latency)
	r.audit.Record(a)

	for _, id := range []string{a.EndpointID, a.CredentialID} {
		if snap, ok := r.registry.Get(id); ok {
			r.metrics.UpdateEntity(id, snap.Kind.String(), r.registry.IsActive(id), snap.Reliability)
		}
	}
}

// Start launches the background tasks: the health sweep, audit retention,
// and (when configured) the config watcher. It returns once they are
// scheduled; they stop when the context is cancelled or Close is called.
func (r *Router) Start(ctx context.Context) error {
	if err := r.sweeper.Start(ctx); err != nil {
		return err
	}
	if r.audit != nil {
		if err := r.audit.StartRetention(ctx); err != nil {
			return err
		}
	}
	if r.cfgPath != "" {
		w, err := config.NewWatcher(r.cfgPath, 0)
		if err != nil {
			return err
		}
		r.watcher = w
		go func() {
			if err := w.Watch(ctx, r.reload); err != nil {
				r.logger.Error("config watcher stopped", "error", err)
			}
		}()
	}
	return nil
}

// reload re-reads the config file and swaps the endpoint and task tables.
// Health state for surviving ids is kept.
func (r *Router) reload() error {
	cfg, err := config.LoadConfigWithEnvOverrides(r.cfgPath)
	if err != nil {
		return err
	}
	r.selector.Update(endpointsFrom(cfg), credentialIDs(cfg), tableFrom(cfg))
	r.cfg = cfg
	return nil
}

// Close stops the background tasks and releases the audit trail.
func (r *Router) Close() error {
	r.sweeper.Stop()
	if r.watcher != nil {
		r.watcher.Stop()
	}
	return r.audit.Close()
}

// ExecuteRequest routes one request: classify by task tag, select the best
// endpoint+credential pair, and execute with bounded retries and failover.
// It returns the response text, or a typed *AllCandidatesExhaustedError
// when no candidate could serve the request.
func (r *Router) ExecuteRequest(ctx context.Context, taskTag string, messages []executor.Message, opts Options) (string, error) {
	r.stats.recordRequest(taskTag)

	outcome, err := r.exec.Execute(ctx, taskTag, messages, executor.Options{
		Priority:    opts.Priority,
		MaxAttempts: opts.MaxRetries,
	})
	if err != nil {
		r.stats.recordExhausted()
		r.metrics.ObserveRequest(taskTag, "exhausted")

		var exhausted *executor.AllCandidatesExhaustedError
		if errors.As(err, &exhausted) {
			return "", err
		}
		// Never leak a raw transport error past this boundary.
		return "", &executor.AllCandidatesExhaustedError{Task: taskTag, Cause: err}
	}

	r.stats.recordSuccess(outcome.EndpointID)
	r.metrics.ObserveRequest(taskTag, "ok")
	return outcome.Text, nil
}

// ExecuteFanOut issues the request to up to maxEndpoints endpoints
// concurrently and returns the deduplicated successful responses, highest
// confidence first. A maxEndpoints of 0 uses the configured default.
func (r *Router) ExecuteFanOut(ctx context.Context, messages []executor.Message, maxEndpoints, maxTokens int) ([]fanout.Branch, error) {
	r.stats.recordFanOut()
	if maxEndpoints <= 0 {
		maxEndpoints = r.cfg.Fanout.MaxEndpoints
	}

	branches, err := r.agg.FanOut(ctx, messages, maxEndpoints, maxTokens)
	if err != nil {
		r.metrics.ObserveFanoutBranch("failed")
		return nil, err
	}
	for range branches {
		r.metrics.ObserveFanoutBranch("ok")
	}
	return branches, nil
}

// ExecuteSynthesized fans the request out and merges the unique responses
// into a single answer. When synthesis is disabled or fails, the
// top-confidence response is returned; synthesis failure never surfaces.
func (r *Router) ExecuteSynthesized(ctx context.Context, messages []executor.Message, maxEndpoints, maxTokens int) (string, error) {
	branches, err := r.ExecuteFanOut(ctx, messages, maxEndpoints, maxTokens)
	if err != nil {
		return "", err
	}
	if !r.cfg.Fanout.Synthesize {
		return branches[0].Text, nil
	}
	return r.agg.Synthesize(ctx, messages, branches, maxTokens), nil
}

// Health returns a snapshot of every tracked entity's health record.
func (r *Router) Health() []health.Snapshot {
	return r.registry.SnapshotAll()
}

// Stats returns a snapshot of the facade counters.
func (r *Router) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}

// endpointsFrom converts config endpoints to routing endpoints.
func endpointsFrom(cfg *config.Config) []routing.Endpoint {
	out := make([]routing.Endpoint, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		out = append(out, routing.Endpoint{
			ID:                ep.ID,
			Provider:          ep.Provider,
			Specializations:   ep.Specializations,
			RequestsPerMinute: ep.RequestsPerMinute,
			RequestsPerDay:    ep.RequestsPerDay,
		})
	}
	return out
}

// credentialIDs extracts the credential id pool.
func credentialIDs(cfg *config.Config) []string {
	out := make([]string, 0, len(cfg.Credentials))
	for _, c := range cfg.Credentials {
		out = append(out, c.ID)
	}
	return out
}

// tableFrom converts the config task table to the routing form.
func tableFrom(cfg *config.Config) map[string]routing.TaskSpec {
	out := make(map[string]routing.TaskSpec, len(cfg.Tasks))
	for tag, t := range cfg.Tasks {
		out[tag] = routing.TaskSpec{
			Preferred:      t.Preferred,
			Fallback:       t.Fallback,
			MaxRetries:     t.MaxRetries,
			ExpectedTokens: t.ExpectedTokens,
		}
	}
	return out
}
