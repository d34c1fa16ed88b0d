// Package fanout issues the same request to several endpoints
// concurrently and merges the results into one answer.
//
// All branches are awaited (up to an overall deadline) rather than racing
// to the first success, because later stragglers may carry a
// higher-confidence answer. Successful responses are deduplicated by a
// cheap normalized-prefix key; when more than one unique response
// survives, an optional synthesis call merges them.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agrimind/router/pkg/executor"
	"agrimind/router/pkg/health"
	"agrimind/router/pkg/routing"
	"agrimind/router/pkg/scoring"
)

// DefaultDeadline bounds how long FanOut waits for branches to settle.
const DefaultDeadline = 90 * time.Second

// Branch is the outcome of one fan-out branch.
type Branch struct {
	// EndpointID is the endpoint that produced this response.
	EndpointID string `json:"endpoint_id"`

	// Text is the response text.
	Text string `json:"text"`

	// Confidence is the endpoint's reliability score at response time,
	// scaled to [0.2, 1.0]. Used to order and deduplicate responses.
	Confidence float64 `json:"confidence"`

	// Tokens is the token count reported by the provider.
	Tokens int `json:"token_count"`
}

// Aggregator dispatches fan-out requests through the call executor.
type Aggregator struct {
	exec     *executor.Executor
	selector *routing.Selector
	registry *health.Registry
	deadline time.Duration
	logger   *slog.Logger
}

// NewAggregator creates an aggregator. A zero deadline selects
// DefaultDeadline.
func NewAggregator(exec *executor.Executor, selector *routing.Selector, registry *health.Registry,
	deadline time.Duration) *Aggregator {

	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Aggregator{
		exec:     exec,
		selector: selector,
		registry: registry,
		deadline: deadline,
		logger:   slog.Default().With("component", "fanout"),
	}
}

// FanOut issues the request to up to maxEndpoints distinct endpoints
// concurrently and returns the deduplicated successful responses, highest
// confidence first. Branches that have not settled by the deadline are
// abandoned: their goroutines finish on their own and the results are
// discarded.
//
// An error is returned only when no endpoint could be dispatched or no
// branch succeeded.
func (a *Aggregator) FanOut(ctx context.Context, messages []executor.Message, maxEndpoints, maxTokens int) ([]Branch, error) {
	if maxEndpoints <= 0 {
		maxEndpoints = 1
	}

	ids := a.selector.SelectN(routing.TagGeneral, scoring.PriorityMedium, maxEndpoints)
	if len(ids) == 0 {
		return nil, &executor.AllCandidatesExhaustedError{Task: routing.TagGeneral}
	}

	// Buffered to branch count so abandoned stragglers never block.
	results := make(chan branchResult, len(ids))
	for _, id := range ids {
		go a.runBranch(ctx, id, messages, maxTokens, results)
	}

	timer := time.NewTimer(a.deadline)
	defer timer.Stop()

	var settled []Branch
	expected := len(ids)

collect:
	for i := 0; i < expected; i++ {
		select {
		case r := <-results:
			if r.ok {
				settled = append(settled, r.branch)
			}
		case <-timer.C:
			a.logger.Warn("fan-out deadline reached, abandoning stragglers",
				"settled", i,
				"dispatched", expected,
			)
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	if len(settled) == 0 {
		return nil, &executor.AllCandidatesExhaustedError{Task: routing.TagGeneral, Attempts: expected}
	}

	unique := dedupe(settled)
	a.logger.Debug("fan-out complete",
		"dispatched", expected,
		"succeeded", len(settled),
		"unique", len(unique),
	)
	return unique, nil
}

// branchResult carries one settled branch back to the collector.
type branchResult struct {
	branch Branch
	ok     bool
}

// runBranch executes one branch pinned to an endpoint and reports the
// outcome.
func (a *Aggregator) runBranch(ctx context.Context, endpointID string, messages []executor.Message,
	maxTokens int, results chan<- branchResult) {

	out, err := a.exec.Execute(ctx, routing.TagGeneral, messages, executor.Options{
		PinnedEndpoint: endpointID,
		MaxTokens:      maxTokens,
	})
	if err != nil {
		a.logger.Debug("fan-out branch failed", "endpoint", endpointID, "error", err)
		results <- branchResult{}
		return
	}

	results <- branchResult{
		ok: true,
		branch: Branch{
			EndpointID: out.EndpointID,
			Text:       out.Text,
			Confidence: a.confidence(out.EndpointID),
			Tokens:     out.Tokens,
		},
	}
}

// confidence maps an endpoint's current reliability score to [0.2, 1.0].
func (a *Aggregator) confidence(endpointID string) float64 {
	snap, ok := a.registry.Get(endpointID)
	if !ok {
		return 0.5
	}
	return snap.Reliability / 100
}

// Synthesize merges the unique responses of a fan-out into a single
// answer via one more call routed under the synthesis task tag. If that
// call fails, the top-confidence original response is returned; synthesis
// failure never surfaces to the caller.
func (a *Aggregator) Synthesize(ctx context.Context, question []executor.Message, unique []Branch, maxTokens int) string {
	if len(unique) == 0 {
		return ""
	}
	if len(unique) == 1 {
		return unique[0].Text
	}

	out, err := a.exec.Execute(ctx, routing.TagSynthesis, synthesisMessages(question, unique), executor.Options{
		MaxTokens: maxTokens,
	})
	if err != nil {
		a.logger.Warn("synthesis failed, falling back to top response", "error", err)
		return unique[0].Text
	}
	return out.Text
}

// synthesisMessages builds the merge prompt: the original question, the
// top response as primary, and the rest as alternatives.
func synthesisMessages(question []executor.Message, unique []Branch) []executor.Message {
	var b strings.Builder
	b.WriteString("Merge the following candidate answers into a single, best answer.\n\n")
	fmt.Fprintf(&b, "Primary answer:\n%s\n", unique[0].Text)
	for i, alt := range unique[1:] {
		fmt.Fprintf(&b, "\nAlternative %d:\n%s\n", i+1, alt.Text)
	}
	b.WriteString("\nReturn only the merged answer.")

	msgs := make([]executor.Message, 0, len(question)+1)
	for _, m := range question {
		if m.Role == executor.RoleSystem {
			msgs = append(msgs, m)
		}
	}
	msgs = append(msgs, executor.Message{Role: executor.RoleUser, Content: b.String()})
	return msgs
}
