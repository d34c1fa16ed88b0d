// Package executor runs a single inference request against the best
// available endpoint+credential pair with bounded retries.
//
// The retry loop is an explicit state machine: SELECT an endpoint and
// credential, ATTEMPT the call, then classify the outcome as success, a
// retryable failure (loop back to SELECT, possibly with a different pair),
// or a terminal failure. Health state is updated before the next SELECT so
// each pick already reflects the freshest view.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"agrimind/router/pkg/health"
	"agrimind/router/pkg/ratewindow"
	"agrimind/router/pkg/routing"
)

// DefaultMaxAttempts is the retry ceiling used when neither the task table
// nor the caller specifies one.
const DefaultMaxAttempts = 3

// Executor performs call attempts with retry, backoff, and failover.
type Executor struct {
	selector *routing.Selector
	registry *health.Registry
	tracker  *ratewindow.Tracker
	call     CallFunc

	observer           AttemptObserver
	defaultMaxAttempts int
	now                func() time.Time
	sleep              func(ctx context.Context, d time.Duration) error
	logger             *slog.Logger
}

// New creates an executor. The call collaborator performs the actual
// network call; it must be non-nil. The now function supplies the clock;
// pass nil to use time.Now.
func New(selector *routing.Selector, registry *health.Registry, tracker *ratewindow.Tracker,
	call CallFunc, now func() time.Time) *Executor {

	if now == nil {
		now = time.Now
	}
	return &Executor{
		selector:           selector,
		registry:           registry,
		tracker:            tracker,
		call:               call,
		defaultMaxAttempts: DefaultMaxAttempts,
		now:                now,
		sleep:              sleepContext,
		logger:             slog.Default().With("component", "executor"),
	}
}

// SetDefaultMaxAttempts overrides the attempt ceiling used for tasks
// without an explicit max_retries. Values below 1 are ignored.
func (e *Executor) SetDefaultMaxAttempts(n int) {
	if n >= 1 {
		e.defaultMaxAttempts = n
	}
}

// SetObserver installs an attempt observer. Must be called before the
// executor is shared across goroutines.
func (e *Executor) SetObserver(obs AttemptObserver) {
	e.observer = obs
}

// SetSleep replaces the backoff sleep function. Tests use this to make
// backoff instantaneous.
func (e *Executor) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	e.sleep = sleep
}

// Execute runs the retry loop for one request and returns the first
// successful outcome, or an *AllCandidatesExhaustedError when the attempt
// budget or the candidate pool runs out.
//
// Retry policy by classified failure kind:
//
//   - rate-limited and auth/quota failures switch endpoint/credential
//     immediately, without waiting out the backoff
//   - model-unavailable excludes the endpoint for the remainder of this
//     call chain (it reflects a configuration mismatch, not flakiness)
//   - transient failures back off 2^attempt seconds before the next select
func (e *Executor) Execute(ctx context.Context, task string, messages []Message, opts Options) (*Outcome, error) {
	requestID := uuid.NewString()

	spec, _ := e.selector.Spec(task)
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = spec.MaxRetries
	}
	if maxAttempts <= 0 {
		maxAttempts = e.defaultMaxAttempts
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = spec.ExpectedTokens
	}

	exclude := make(map[string]bool)
	var (
		lastKind health.FailureKind
		lastErr  error
		attempts int
	)

loop:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		endpointID, ok := e.selectEndpoint(task, opts, attempt, exclude)
		if !ok {
			break
		}
		credentialID, ok := e.selector.SelectCredential(opts.Priority)
		if !ok {
			e.logger.Warn("no eligible credential", "task", task, "request_id", requestID)
			break
		}

		attempts = attempt
		outcome, kind, err := e.attempt(ctx, requestID, task, attempt, endpointID, credentialID, messages, maxTokens)
		if err == nil {
			outcome.Attempts = attempt
			return outcome, nil
		}
		lastKind, lastErr = kind, err

		switch kind {
		case health.FailureModelUnavailable:
			// Skip this endpoint for the rest of the chain; retrying a
			// permanently-unavailable model wastes the attempt budget.
			exclude[endpointID] = true

		case health.FailureRateLimited, health.FailureAuthOrQuota:
			// Switch pair immediately; the registry already blocked the
			// offender so the next select avoids it.

		default:
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			e.logger.Debug("transient failure, backing off",
				"task", task,
				"request_id", requestID,
				"attempt", attempt,
				"backoff", backoff,
			)
			if err := e.sleep(ctx, backoff); err != nil {
				lastErr = err
				break loop
			}
		}
	}

	return nil, &AllCandidatesExhaustedError{
		Task:     task,
		Attempts: attempts,
		LastKind: lastKind,
		Cause:    lastErr,
	}
}

// selectEndpoint picks the endpoint for one attempt, honoring the pinned
// endpoint on the first attempt when it is still eligible.
func (e *Executor) selectEndpoint(task string, opts Options, attempt int, exclude map[string]bool) (string, bool) {
	if attempt == 1 && opts.PinnedEndpoint != "" && !exclude[opts.PinnedEndpoint] &&
		e.registry.IsActive(opts.PinnedEndpoint) {
		return opts.PinnedEndpoint, true
	}
	return e.selector.Select(task, opts.Priority, exclude)
}

// attempt executes one call against a chosen pair and records the outcome
// in the health registry and rate window.
func (e *Executor) attempt(ctx context.Context, requestID, task string, number int,
	endpointID, credentialID string, messages []Message, maxTokens int) (*Outcome, health.FailureKind, error) {

	// Record before the call so concurrent callers see live occupancy.
	e.registry.RecordAttempt(endpointID)
	e.registry.RecordAttempt(credentialID)
	e.tracker.RecordUse(endpointID, e.now())

	start := e.now()
	result, err := e.call(ctx, endpointID, credentialID, Request{Messages: messages, MaxTokens: maxTokens})
	latency := e.now().Sub(start)

	record := Attempt{
		RequestID:    requestID,
		AttemptID:    uuid.NewString(),
		Task:         task,
		Number:       number,
		EndpointID:   endpointID,
		CredentialID: credentialID,
		Latency:      latency,
	}

	if err != nil {
		kind := Classify(err)
		e.registry.RecordFailure(endpointID, kind)
		if kind == health.FailureRateLimited || kind == health.FailureAuthOrQuota {
			// The credential, not just the endpoint, is implicated.
			e.registry.RecordFailure(credentialID, kind)
		}

		record.Kind = failureKindName(kind)
		record.Err = err
		e.notify(record)

		e.logger.Debug("attempt failed",
			"task", task,
			"request_id", requestID,
			"attempt", number,
			"endpoint", endpointID,
			"credential", credentialID,
			"kind", record.Kind,
			"error", err,
		)
		return nil, kind, err
	}

	e.registry.RecordSuccess(endpointID)
	e.registry.RecordSuccess(credentialID)

	record.Kind = kindSuccess
	record.Tokens = result.Tokens
	e.notify(record)

	return &Outcome{
		RequestID:    requestID,
		EndpointID:   endpointID,
		CredentialID: credentialID,
		Text:         result.Text,
		Tokens:       result.Tokens,
		Latency:      latency,
	}, health.FailureTransient, nil
}

// notify forwards an attempt record to the observer, if one is installed.
func (e *Executor) notify(a Attempt) {
	if e.observer != nil {
		e.observer(a)
	}
}

// sleepContext sleeps for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
