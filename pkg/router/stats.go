package router

import (
	"sync"
	"time"
)

// Stats tracks facade-level counters. All updates go through the mutex;
// Snapshot returns a copy safe to hand to callers.
type Stats struct {
	mu sync.Mutex

	totalRequests  int64
	succeeded      int64
	exhausted      int64
	fanOutCalls    int64
	attemptsByKind map[string]int64
	requestsByTask map[string]int64
	winsByEndpoint map[string]int64
	lastReset      time.Time
}

// StatsSnapshot is a point-in-time copy of the router statistics.
type StatsSnapshot struct {
	// TotalRequests is the number of ExecuteRequest calls.
	TotalRequests int64

	// Succeeded is the number of requests that returned text.
	Succeeded int64

	// Exhausted is the number of requests that failed with all candidates
	// exhausted.
	Exhausted int64

	// FanOutCalls is the number of ExecuteFanOut calls.
	FanOutCalls int64

	// AttemptsByKind counts executor attempts by outcome kind.
	AttemptsByKind map[string]int64

	// RequestsByTask counts requests by task tag.
	RequestsByTask map[string]int64

	// WinsByEndpoint counts which endpoint served the winning attempt.
	WinsByEndpoint map[string]int64

	// LastResetTime is when statistics were last reset.
	LastResetTime time.Time
}

// NewStats creates empty statistics.
func NewStats() *Stats {
	return &Stats{
		attemptsByKind: make(map[string]int64),
		requestsByTask: make(map[string]int64),
		winsByEndpoint: make(map[string]int64),
		lastReset:      time.Now(),
	}
}

func (s *Stats) recordRequest(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.requestsByTask[task]++
}

func (s *Stats) recordSuccess(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded++
	s.winsByEndpoint[endpoint]++
}

func (s *Stats) recordExhausted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exhausted++
}

func (s *Stats) recordFanOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fanOutCalls++
}

func (s *Stats) recordAttempt(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptsByKind[kind]++
}

// Snapshot returns a copy of the current statistics.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatsSnapshot{
		TotalRequests:  s.totalRequests,
		Succeeded:      s.succeeded,
		Exhausted:      s.exhausted,
		FanOutCalls:    s.fanOutCalls,
		AttemptsByKind: copyCounts(s.attemptsByKind),
		RequestsByTask: copyCounts(s.requestsByTask),
		WinsByEndpoint: copyCounts(s.winsByEndpoint),
		LastResetTime:  s.lastReset,
	}
}

// Reset clears all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests = 0
	s.succeeded = 0
	s.exhausted = 0
	s.fanOutCalls = 0
	s.attemptsByKind = make(map[string]int64)
	s.requestsByTask = make(map[string]int64)
	s.winsByEndpoint = make(map[string]int64)
	s.lastReset = time.Now()
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
