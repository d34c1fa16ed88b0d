package health

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// entity is the mutable health record for one endpoint or credential.
// All access goes through the registry mutex.
type entity struct {
	id   string
	kind EntityKind

	reliability         float64
	totalRequests       int64
	successes           int64
	failures            int64
	consecutiveFailures int

	blocked bool
	active  bool

	lastUsed      time.Time
	lastFailure   time.Time
	deactivatedAt time.Time
	dailyFreeze   time.Time // zero when no freeze is active
}

// Registry holds the health records for every endpoint and credential the
// router knows about. It is created once at process start and shared by
// reference with the selector, executor, and aggregator; there is no
// ambient global state.
type Registry struct {
	mu       sync.Mutex
	entities map[string]*entity
	now      func() time.Time
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. The now function supplies the
// clock; pass nil to use time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		entities: make(map[string]*entity),
		now:      now,
		logger:   slog.Default().With("component", "health.registry"),
	}
}

// Register adds an entity to the registry. New entities start active,
// unblocked, and at full reliability. Re-registering an existing id is a
// no-op so hot reloads keep accumulated health state for surviving ids.
func (r *Registry) Register(id string, kind EntityKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entities[id]; ok {
		return
	}
	r.entities[id] = &entity{
		id:          id,
		kind:        kind,
		reliability: reliabilityCeiling,
		active:      true,
	}
}

// Deregister removes an entity. Used when a configuration reload drops an
// endpoint or credential.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entities, id)
}

// RecordAttempt marks that a call attempt against the entity is starting.
// It is called before the external call executes so concurrent callers
// observe up-to-date usage.
func (r *Registry) RecordAttempt(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entities[id]
	if !ok {
		return
	}
	e.totalRequests++
	e.lastUsed = r.now()
}

// RecordSuccess records a successful attempt. It resets the
// consecutive-failure counter and, every 10th cumulative success, nudges
// the reliability score up by one point.
func (r *Registry) RecordSuccess(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entities[id]
	if !ok {
		return
	}
	e.successes++
	e.consecutiveFailures = 0

	if e.successes%successesPerNudge == 0 && e.reliability < reliabilityCeiling {
		e.reliability++
	}
}

// RecordFailure records a failed attempt with its classified kind and
// applies the blocking and circuit-breaker policy:
//
//   - FailureModelUnavailable never blocks; the caller skips the entity
//     for the rest of its call chain and the counters are untouched beyond
//     the failure total.
//   - FailureRateLimited and FailureAuthOrQuota block immediately;
//     FailureAuthOrQuota also starts a 24h daily-quota freeze.
//   - 3 consecutive failures block; 5 deactivate until the cool-down
//     elapses.
//   - Every 5th cumulative failure nudges reliability down by two points.
func (r *Registry) RecordFailure(id string, kind FailureKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entities[id]
	if !ok {
		return
	}
	now := r.now()
	e.failures++
	e.lastFailure = now

	if e.failures%failuresPerNudge == 0 && e.reliability > reliabilityFloor {
		e.reliability -= 2
		if e.reliability < reliabilityFloor {
			e.reliability = reliabilityFloor
		}
	}

	if kind == FailureModelUnavailable {
		// Configuration mismatch, not flakiness: no blocking, no breaker.
		return
	}

	e.consecutiveFailures++

	if kind == FailureRateLimited || kind == FailureAuthOrQuota {
		e.blocked = true
	}
	if kind == FailureAuthOrQuota {
		e.dailyFreeze = now.Add(dailyFreeze)
	}
	if e.consecutiveFailures >= blockAfterConsecutive {
		e.blocked = true
	}
	if e.consecutiveFailures >= deactivateAfterConsecutive && e.active {
		e.active = false
		e.deactivatedAt = now
		r.logger.Warn("entity deactivated by circuit breaker",
			"entity", id,
			"kind", e.kind.String(),
			"consecutive_failures", e.consecutiveFailures,
			"reactivate_after", reactivateAfter,
		)
	}
}

// IsActive reports whether the entity is currently eligible for selection:
// registered, not tripped by the circuit breaker, not blocked, and not
// under a daily-quota freeze.
func (r *Registry) IsActive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entities[id]
	if !ok {
		return false
	}
	return r.eligibleLocked(e)
}

// eligibleLocked applies the IsActive rule. Caller must hold the mutex.
func (r *Registry) eligibleLocked(e *entity) bool {
	if !e.active || e.blocked {
		return false
	}
	if !e.dailyFreeze.IsZero() && r.now().Before(e.dailyFreeze) {
		return false
	}
	return true
}

// Get returns a snapshot of a single entity. The second return value is
// false if the id is not registered.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entities[id]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshotLocked(e), true
}

// SnapshotAll returns snapshots for every registered entity, sorted by id
// for deterministic iteration.
func (r *Registry) SnapshotAll() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, r.snapshotLocked(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// snapshotLocked copies an entity record. Caller must hold the mutex.
func (r *Registry) snapshotLocked(e *entity) Snapshot {
	return Snapshot{
		ID:                  e.id,
		Kind:                e.kind,
		Reliability:         e.reliability,
		TotalRequests:       e.totalRequests,
		Successes:           e.successes,
		Failures:            e.failures,
		ConsecutiveFailures: e.consecutiveFailures,
		Blocked:             e.blocked,
		Active:              e.active,
		LastUsed:            e.lastUsed,
		LastFailure:         e.lastFailure,
		DailyFrozenUntil:    e.dailyFreeze,
	}
}

// Sweep clears expired blocks and reactivates entities whose circuit
// breaker cool-down has elapsed. It is invoked on a schedule by the
// Sweeper but exported so tests can drive it directly.
//
// Rules, per entity:
//
//   - Inactive entities whose deactivation is older than the cool-down are
//     reactivated with the consecutive-failure count reset to zero.
//   - Blocked entities are unblocked once their last failure is older than
//     the short cooldown, unless a daily-quota freeze is still active.
//   - Expired daily freezes are cleared.
//
// If every entity of a pool (endpoints, credentials) is blocked at once,
// the entity with the oldest last failure is force-cleared so the pool
// never reaches zero usable entities.
func (r *Registry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, e := range r.entities {
		if !e.active && now.Sub(e.deactivatedAt) >= reactivateAfter {
			e.active = true
			e.blocked = false
			e.consecutiveFailures = 0
			r.logger.Info("entity reactivated after cool-down",
				"entity", e.id,
				"kind", e.kind.String(),
			)
		}

		if !e.dailyFreeze.IsZero() && !now.Before(e.dailyFreeze) {
			e.dailyFreeze = time.Time{}
		}

		if e.blocked && e.dailyFreeze.IsZero() && now.Sub(e.lastFailure) >= shortCooldown {
			e.blocked = false
			r.logger.Debug("entity unblocked by sweep", "entity", e.id)
		}
	}

	r.forceClearIfDeadlockedLocked(KindEndpoint)
	r.forceClearIfDeadlockedLocked(KindCredential)
}

// forceClearIfDeadlockedLocked unblocks the oldest-failed entity of a pool
// when the entire pool is blocked. Caller must hold the mutex.
func (r *Registry) forceClearIfDeadlockedLocked(kind EntityKind) {
	var oldest *entity
	for _, e := range r.entities {
		if e.kind != kind || !e.active {
			continue
		}
		if !e.blocked {
			return // at least one usable entity, nothing to do
		}
		if oldest == nil || e.lastFailure.Before(oldest.lastFailure) {
			oldest = e
		}
	}
	if oldest == nil {
		return
	}
	oldest.blocked = false
	r.logger.Warn("force-cleared oldest blocked entity to avoid pool deadlock",
		"entity", oldest.id,
		"kind", kind.String(),
		"last_failure", oldest.lastFailure,
	)
}
