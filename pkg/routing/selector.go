// Package routing selects the best available endpoint and credential for a
// task.
//
// The Selector combines the static task-specialization table with live
// state from the health registry and rate-window tracker: it builds the
// candidate list for a tag, filters out entities the registry reports as
// ineligible, and ranks the rest with the scorer.
package routing

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"agrimind/router/pkg/health"
	"agrimind/router/pkg/ratewindow"
	"agrimind/router/pkg/scoring"
)

// Selector produces ranked endpoint and credential choices. It is safe for
// concurrent use; the tables it holds are swapped wholesale on reload.
type Selector struct {
	mu          sync.RWMutex
	endpoints   map[string]Endpoint
	credentials []string
	table       map[string]TaskSpec

	registry *health.Registry
	tracker  *ratewindow.Tracker
	now      func() time.Time
	logger   *slog.Logger
}

// NewSelector creates a selector over the given tables and live state.
// The now function supplies the clock; pass nil to use time.Now.
func NewSelector(endpoints []Endpoint, credentials []string, table map[string]TaskSpec,
	registry *health.Registry, tracker *ratewindow.Tracker, now func() time.Time) *Selector {

	if now == nil {
		now = time.Now
	}
	s := &Selector{
		registry: registry,
		tracker:  tracker,
		now:      now,
		logger:   slog.Default().With("component", "routing.selector"),
	}
	s.Update(endpoints, credentials, table)
	return s
}

// Update swaps the endpoint, credential, and task tables. New entities are
// registered with the health registry and tracker; entities that vanished
// from the tables are deregistered. Health state for surviving ids is kept.
func (s *Selector) Update(endpoints []Endpoint, credentials []string, table map[string]TaskSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if table == nil {
		table = make(map[string]TaskSpec)
	}

	next := make(map[string]Endpoint, len(endpoints))
	for _, ep := range endpoints {
		next[ep.ID] = ep
		s.registry.Register(ep.ID, health.KindEndpoint)
		s.tracker.SetCeiling(ep.ID, ep.RequestsPerMinute)
		s.tracker.SetDailyCeiling(ep.ID, ep.RequestsPerDay)
	}
	for id := range s.endpoints {
		if _, ok := next[id]; !ok {
			s.registry.Deregister(id)
		}
	}

	nextCreds := make(map[string]bool, len(credentials))
	for _, id := range credentials {
		nextCreds[id] = true
		s.registry.Register(id, health.KindCredential)
	}
	for _, id := range s.credentials {
		if !nextCreds[id] {
			s.registry.Deregister(id)
		}
	}

	s.endpoints = next
	s.credentials = append([]string(nil), credentials...)
	s.table = table
}

// Spec returns the task-specialization entry for a tag. The second return
// value is false when the tag is unknown.
func (s *Selector) Spec(tag string) (TaskSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spec, ok := s.table[tag]
	return spec, ok
}

// Endpoint returns the static description of an endpoint.
func (s *Selector) Endpoint(id string) (Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.endpoints[id]
	return ep, ok
}

// candidateIDs builds the candidate list for a tag: the task table entry's
// preferred and fallback lists, or the general-purpose pool for unknown
// tags. Ids not present in the endpoint table are dropped.
func (s *Selector) candidateIDs(tag string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if spec, ok := s.table[tag]; ok {
		ids := spec.Candidates()
		out := ids[:0]
		for _, id := range ids {
			if _, known := s.endpoints[id]; known {
				out = append(out, id)
			}
		}
		return out
	}

	// Unknown tag: any endpoint advertising general-purpose capability.
	var out []string
	for id, ep := range s.endpoints {
		if ep.HasTag(TagGeneral) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ranked is a scored candidate, ephemeral to one selection call.
type ranked struct {
	id    string
	score float64
}

// rank filters out ineligible ids and sorts the rest by descending score.
func (s *Selector) rank(ids []string, priority scoring.Priority, exclude map[string]bool) []ranked {
	now := s.now()
	out := make([]ranked, 0, len(ids))
	for _, id := range ids {
		if exclude[id] {
			continue
		}
		if !s.registry.IsActive(id) {
			continue
		}
		if s.tracker.DailyExhausted(id, now) {
			continue
		}
		snap, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		occ := s.tracker.Occupancy(id, now)
		out = append(out, ranked{id: id, score: scoring.Score(snap, occ, priority, now)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// Select returns the highest-scoring eligible endpoint for a task tag.
// Ids in exclude are skipped (used to avoid endpoints already known to be
// unable to serve the current call chain). Returns false when the filtered
// candidate set is empty.
func (s *Selector) Select(tag string, priority scoring.Priority, exclude map[string]bool) (string, bool) {
	candidates := s.rank(s.candidateIDs(tag), priority, exclude)
	if len(candidates) == 0 {
		s.logger.Debug("no eligible endpoint",
			"task", tag,
			"priority", priority.String(),
		)
		return "", false
	}

	top := candidates[0]
	s.logger.Debug("endpoint selected",
		"task", tag,
		"endpoint", top.id,
		"score", top.score,
		"candidates", len(candidates),
	)
	return top.id, true
}

// SelectN returns up to n distinct eligible endpoints for a tag, best
// first. Used by fan-out dispatch.
func (s *Selector) SelectN(tag string, priority scoring.Priority, n int) []string {
	candidates := s.rank(s.candidateIDs(tag), priority, nil)
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]string, 0, n)
	for _, c := range candidates[:n] {
		out = append(out, c.id)
	}
	return out
}

// SelectCredential returns the highest-scoring eligible credential.
// Returns false when every credential is blocked or frozen.
func (s *Selector) SelectCredential(priority scoring.Priority) (string, bool) {
	s.mu.RLock()
	ids := append([]string(nil), s.credentials...)
	s.mu.RUnlock()

	candidates := s.rank(ids, priority, nil)
	if len(candidates) == 0 {
		s.logger.Debug("no eligible credential", "priority", priority.String())
		return "", false
	}
	return candidates[0].id, true
}
