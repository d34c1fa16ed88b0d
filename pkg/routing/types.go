package routing

// TagGeneral marks endpoints that advertise general-purpose capability.
// Unknown task tags fall back to the pool of endpoints carrying this tag.
const TagGeneral = "general"

// TagSynthesis is the task tag under which fan-out synthesis calls are
// routed. Synthesis goes through the normal selection policy; pinning it
// to one endpoint is done by listing a single preferred entry in the task
// table.
const TagSynthesis = "synthesis"

// Endpoint is the static description of an addressable inference target.
// Mutable health state lives in the health registry, keyed by ID.
type Endpoint struct {
	// ID is the endpoint identifier (e.g., "openrouter/llama-3.3-70b").
	ID string

	// Provider is the upstream provider name, used for logging and
	// audit grouping.
	Provider string

	// Specializations is the set of task tags this endpoint advertises.
	Specializations []string

	// RequestsPerMinute is the per-minute rate ceiling.
	RequestsPerMinute int

	// RequestsPerDay is the per-day rate ceiling, enforced upstream; the
	// router only avoids hammering a provider known to be exhausted.
	RequestsPerDay int
}

// HasTag reports whether the endpoint advertises the given specialization.
func (e Endpoint) HasTag(tag string) bool {
	for _, t := range e.Specializations {
		if t == tag {
			return true
		}
	}
	return false
}

// TaskSpec is one entry of the task-specialization table: the routing
// policy for a single task tag. Immutable after load.
type TaskSpec struct {
	// Preferred is the ordered list of endpoint ids tried first. Order
	// carries no score weight; correctness of selection comes entirely
	// from the scorer.
	Preferred []string

	// Fallback is the pool consulted alongside the preferred list.
	Fallback []string

	// MaxRetries is the attempt ceiling for this task (0 means use the
	// executor default).
	MaxRetries int

	// ExpectedTokens is the expected output size, used to size requests.
	ExpectedTokens int
}

// Candidates returns the union of the preferred and fallback lists,
// preferred first, without duplicates.
func (s TaskSpec) Candidates() []string {
	seen := make(map[string]bool, len(s.Preferred)+len(s.Fallback))
	out := make([]string, 0, len(s.Preferred)+len(s.Fallback))
	for _, id := range s.Preferred {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range s.Fallback {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
