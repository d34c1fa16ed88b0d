// Package scoring computes the desirability score used to rank candidate
// endpoints and credentials.
//
// Score is a pure function over a health snapshot and a rate-window
// occupancy; it holds no state and takes the current time as an argument,
// so ranking is fully deterministic under test.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"agrimind/router/pkg/health"
)

// Priority adjusts scoring to favor proven entities (high) or to spread
// load onto underused ones (low).
type Priority int

const (
	// PriorityMedium is the neutral default.
	PriorityMedium Priority = iota

	// PriorityHigh favors entities with proven reliability and punishes
	// current flakiness harder.
	PriorityHigh

	// PriorityLow triples the recency bonus to actively prefer underused
	// entities.
	PriorityLow
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "medium"
	}
}

// ParsePriority parses a priority name. Unknown or empty input returns
// PriorityMedium with an error for the caller to log.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "low":
		return PriorityLow, nil
	default:
		return PriorityMedium, fmt.Errorf("unknown priority %q", s)
	}
}

// Weights applied to the score terms.
const (
	occupancyWeight   = 20.0
	errorRateWeight   = 50.0
	consecutiveWeight = 15.0
	recencyWeight     = 10.0
)

// Score maps a candidate to a desirability score.
//
// Terms:
//
//   - base: reliability (20-100)
//   - availability: occupancy * 20
//   - error-rate penalty: failures/total * 50
//   - consecutive-failure penalty: consecutive * 15 (doubled at high
//     priority)
//   - recency bonus: min(1, hoursSinceLastUse/24) * 10, full bonus for
//     never-used entities (tripled at low priority)
//   - high priority additionally adds reliability * 0.5
//
// The result is floored at zero so relative ranking stays well-defined
// even when every candidate is degraded.
func Score(s health.Snapshot, occupancy float64, priority Priority, now time.Time) float64 {
	score := s.Reliability
	score += occupancy * occupancyWeight

	if s.TotalRequests > 0 {
		score -= float64(s.Failures) / float64(s.TotalRequests) * errorRateWeight
	}

	consecutivePenalty := float64(s.ConsecutiveFailures) * consecutiveWeight

	recency := 1.0
	if !s.LastUsed.IsZero() {
		recency = math.Min(1, now.Sub(s.LastUsed).Hours()/24)
		if recency < 0 {
			recency = 0
		}
	}
	recencyBonus := recency * recencyWeight

	switch priority {
	case PriorityHigh:
		score += s.Reliability * 0.5
		consecutivePenalty *= 2
	case PriorityLow:
		recencyBonus *= 3
	}

	score -= consecutivePenalty
	score += recencyBonus

	if score < 0 {
		return 0
	}
	return score
}
