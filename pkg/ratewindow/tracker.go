// Package ratewindow implements per-entity sliding-window usage tracking
// for admission decisions.
//
// The tracker keeps a queue of recent attempt timestamps per id and
// reports occupancy over a trailing one-minute window. It does not reject
// anything itself: the scorer consumes occupancy, and an entity at or over
// its ceiling simply scores as "zero availability."
package ratewindow

import (
	"sync"
	"time"
)

// Window is the trailing interval over which per-minute usage is counted.
const Window = time.Minute

// Tracker maintains sliding-window usage state per entity id.
//
// Tracker is safe for concurrent use. The timestamp queue for an id may
// transiently exceed its ceiling under bursty concurrent access; Occupancy
// clamps to zero rather than treating overflow as an error.
type Tracker struct {
	mu            sync.Mutex
	ceilings      map[string]int
	dailyCeilings map[string]int
	uses          map[string][]time.Time
	dailyCounts   map[string]int
	dailyAnchor   map[string]time.Time // start of the day being counted
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		ceilings:      make(map[string]int),
		dailyCeilings: make(map[string]int),
		uses:          make(map[string][]time.Time),
		dailyCounts:   make(map[string]int),
		dailyAnchor:   make(map[string]time.Time),
	}
}

// SetCeiling registers the per-minute ceiling for an id. A ceiling of zero
// or less means the id has no per-minute limit and always reports full
// availability.
func (t *Tracker) SetCeiling(id string, perMinute int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ceilings[id] = perMinute
}

// SetDailyCeiling registers the per-day ceiling for an id. A ceiling of
// zero or less means the id has no daily limit.
func (t *Tracker) SetDailyCeiling(id string, perDay int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dailyCeilings[id] = perDay
}

// RecordUse appends an attempt timestamp for the id and advances its daily
// count.
func (t *Tracker) RecordUse(id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.uses[id] = append(t.pruneLocked(id, now), now)
	t.rollDayLocked(id, now)
	t.dailyCounts[id]++
}

// Occupancy reports availability for the id in [0, 1]: 1.0 means fully
// available, 0.0 means at or over the per-minute ceiling. Entries older
// than the window are pruned before counting.
func (t *Tracker) Occupancy(id string, now time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.pruneLocked(id, now)
	t.uses[id] = recent

	ceiling := t.ceilings[id]
	if ceiling <= 0 {
		return 1.0
	}

	avail := 1.0 - float64(len(recent))/float64(ceiling)
	if avail < 0 {
		avail = 0
	}
	return avail
}

// DailyExhausted reports whether the id has used up its per-day ceiling
// for the current calendar day (UTC). Ids with no daily ceiling are never
// exhausted.
func (t *Tracker) DailyExhausted(id string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ceiling := t.dailyCeilings[id]
	if ceiling <= 0 {
		return false
	}
	t.rollDayLocked(id, now)
	return t.dailyCounts[id] >= ceiling
}

// rollDayLocked resets the daily count when the calendar day (UTC) has
// changed since the last recorded use. Caller must hold the mutex.
func (t *Tracker) rollDayLocked(id string, now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if anchor, ok := t.dailyAnchor[id]; !ok || !anchor.Equal(day) {
		t.dailyAnchor[id] = day
		t.dailyCounts[id] = 0
	}
}

// pruneLocked drops timestamps older than the window. Caller must hold the
// mutex.
func (t *Tracker) pruneLocked(id string, now time.Time) []time.Time {
	cutoff := now.Add(-Window)
	recent := t.uses[id]

	// Timestamps are appended in order, so find the first one still
	// inside the window and slice from there.
	i := 0
	for i < len(recent) && !recent[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return recent
	}
	return append([]time.Time(nil), recent[i:]...)
}
