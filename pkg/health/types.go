package health

import "time"

// FailureKind classifies a failed call attempt. Classification happens at
// the boundary with the external call collaborator; everything downstream
// (registry, executor retry policy) only ever sees this closed set.
type FailureKind int

const (
	// FailureTransient is any failure not matched by a more specific kind.
	// Retried with exponential backoff.
	FailureTransient FailureKind = iota

	// FailureRateLimited indicates the provider rejected the call due to
	// rate limiting (HTTP 429 or equivalent). The entity is blocked
	// immediately and the caller switches to another candidate.
	FailureRateLimited

	// FailureAuthOrQuota indicates an authentication failure or exhausted
	// credit (HTTP 401, insufficient balance). Blocks immediately and sets
	// a daily-quota freeze on the entity.
	FailureAuthOrQuota

	// FailureModelUnavailable indicates the endpoint cannot serve the
	// requested model at all. The entity is skipped for the remainder of
	// the call chain but never blocked: the fault is a configuration
	// mismatch, not flakiness.
	FailureModelUnavailable
)

// String returns the kind name for logging and metrics labels.
func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	case FailureAuthOrQuota:
		return "auth_or_quota"
	case FailureModelUnavailable:
		return "model_unavailable"
	default:
		return "transient"
	}
}

// EntityKind distinguishes the two pools the registry manages. Force-clear
// on total blockage operates per pool, so a fully blocked credential pool
// cannot be "rescued" by an unblocked endpoint.
type EntityKind int

const (
	// KindEndpoint is an addressable inference target.
	KindEndpoint EntityKind = iota

	// KindCredential is a rotation unit used to authenticate calls.
	KindCredential
)

// String returns the kind name.
func (k EntityKind) String() string {
	if k == KindCredential {
		return "credential"
	}
	return "endpoint"
}

// Snapshot is a point-in-time copy of a single entity's health record.
// Snapshots are what the scorer reads; they are never written back.
type Snapshot struct {
	// ID is the entity identifier.
	ID string

	// Kind is the pool this entity belongs to.
	Kind EntityKind

	// Reliability is the current reliability score (20-100).
	Reliability float64

	// TotalRequests is the total number of attempts recorded.
	TotalRequests int64

	// Successes is the number of successful attempts.
	Successes int64

	// Failures is the number of failed attempts.
	Failures int64

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int

	// Blocked indicates the entity is temporarily excluded from selection.
	Blocked bool

	// Active is false while the circuit breaker holds the entity out of
	// the pool.
	Active bool

	// LastUsed is the time of the most recent attempt (zero if never used).
	LastUsed time.Time

	// LastFailure is the time of the most recent failure (zero if none).
	LastFailure time.Time

	// DailyFrozenUntil is the end of the daily-quota freeze (zero if no
	// freeze is active).
	DailyFrozenUntil time.Time
}

// Registry tuning thresholds. These mirror the behavior of the upstream
// providers closely enough that they are constants, not configuration.
const (
	// blockAfterConsecutive is the consecutive-failure count that sets the
	// blocked flag.
	blockAfterConsecutive = 3

	// deactivateAfterConsecutive is the consecutive-failure count that
	// trips the circuit breaker.
	deactivateAfterConsecutive = 5

	// reactivateAfter is how long a tripped entity stays inactive.
	reactivateAfter = time.Hour

	// shortCooldown is how long a blocked entity stays blocked after its
	// last failure before the sweep clears it.
	shortCooldown = 2 * time.Minute

	// dailyFreeze is how long a daily-quota freeze holds.
	dailyFreeze = 24 * time.Hour

	// reliabilityFloor and reliabilityCeiling bound the reliability score.
	reliabilityFloor   = 20
	reliabilityCeiling = 100

	// successesPerNudge and failuresPerNudge control how often cumulative
	// outcomes move the reliability score.
	successesPerNudge = 10
	failuresPerNudge  = 5
)
