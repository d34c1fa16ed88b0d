package fanout_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"agrimind/router/internal/routertest"
	"agrimind/router/pkg/executor"
	"agrimind/router/pkg/fanout"
	"agrimind/router/pkg/health"
	"agrimind/router/pkg/ratewindow"
	"agrimind/router/pkg/routing"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

// newTestAggregator wires an aggregator over three general-purpose
// endpoints plus one synthesis endpoint.
func newTestAggregator(caller *routertest.MockCaller, deadline time.Duration) (*fanout.Aggregator, *health.Registry) {
	registry := health.NewRegistry(testClock)
	tracker := ratewindow.NewTracker()

	endpoints := []routing.Endpoint{
		{ID: "ep-1", Specializations: []string{routing.TagGeneral}},
		{ID: "ep-2", Specializations: []string{routing.TagGeneral}},
		{ID: "ep-3", Specializations: []string{routing.TagGeneral}},
		{ID: "ep-synth", Specializations: []string{routing.TagSynthesis}},
	}
	table := map[string]routing.TaskSpec{
		routing.TagSynthesis: {Preferred: []string{"ep-synth"}, MaxRetries: 1},
	}
	sel := routing.NewSelector(endpoints, []string{"cred-a"}, table, registry, tracker, testClock)

	exec := executor.New(sel, registry, tracker, caller.Call, testClock)
	exec.SetSleep(func(ctx context.Context, d time.Duration) error { return nil })
	return fanout.NewAggregator(exec, sel, registry, deadline), registry
}

func question() []executor.Message {
	return []executor.Message{{Role: executor.RoleUser, Content: "Will it rain tomorrow?"}}
}

func TestFanOut_DeduplicatesIdenticalPrefixes(t *testing.T) {
	caller := routertest.NewMockCaller()
	caller.SetResult("ep-1", &executor.Result{Text: "Rain is likely tomorrow afternoon.", Tokens: 8})
	caller.SetResult("ep-2", &executor.Result{Text: "rain is likely tomorrow afternoon", Tokens: 7})
	caller.SetResult("ep-3", &executor.Result{Text: "No rain is expected.", Tokens: 5})

	agg, _ := newTestAggregator(caller, time.Second)

	branches, err := agg.FanOut(context.Background(), question(), 3, 128)
	if err != nil {
		t.Fatalf("FanOut() error = %v", err)
	}
	if len(branches) != 2 {
		t.Fatalf("FanOut() returned %d branches, want 2 after dedup", len(branches))
	}

	seen := make(map[string]bool)
	for _, b := range branches {
		if seen[b.EndpointID] {
			t.Errorf("duplicate endpoint %q in results", b.EndpointID)
		}
		seen[b.EndpointID] = true
	}
}

func TestFanOut_KeepsHigherConfidenceDuplicate(t *testing.T) {
	caller := routertest.NewMockCaller()
	caller.SetResult("ep-1", &executor.Result{Text: "Rain is likely tomorrow.", Tokens: 8})
	caller.SetResult("ep-2", &executor.Result{Text: "rain is likely tomorrow", Tokens: 7})
	caller.SetResult("ep-3", &executor.Result{Text: "No rain is expected.", Tokens: 5})

	agg, registry := newTestAggregator(caller, time.Second)

	// Degrade ep-2's reliability without blocking it so its duplicate
	// carries lower confidence than ep-1's.
	for i := 0; i < 5; i++ {
		registry.RecordFailure("ep-2", health.FailureModelUnavailable)
	}

	branches, err := agg.FanOut(context.Background(), question(), 3, 128)
	if err != nil {
		t.Fatalf("FanOut() error = %v", err)
	}
	for _, b := range branches {
		if b.EndpointID == "ep-2" {
			t.Error("lower-confidence duplicate survived dedup")
		}
	}
}

func TestFanOut_SortedByConfidence(t *testing.T) {
	caller := routertest.NewMockCaller()
	caller.SetResult("ep-1", &executor.Result{Text: "Answer one.", Tokens: 3})
	caller.SetResult("ep-2", &executor.Result{Text: "Answer two, different.", Tokens: 4})
	caller.SetResult("ep-3", &executor.Result{Text: "Answer three, also different.", Tokens: 5})

	agg, _ := newTestAggregator(caller, time.Second)

	branches, err := agg.FanOut(context.Background(), question(), 3, 128)
	if err != nil {
		t.Fatalf("FanOut() error = %v", err)
	}
	for i := 1; i < len(branches); i++ {
		if branches[i].Confidence > branches[i-1].Confidence {
			t.Errorf("branches not sorted by descending confidence: %v then %v",
				branches[i-1].Confidence, branches[i].Confidence)
		}
	}
}

func TestFanOut_AbandonsStragglersAtDeadline(t *testing.T) {
	caller := routertest.NewMockCaller()
	caller.SetResult("ep-1", &executor.Result{Text: "Fast answer.", Tokens: 3})
	caller.SetResult("ep-2", &executor.Result{Text: "Another fast answer.", Tokens: 4})
	caller.Block("ep-3")
	defer caller.Release("ep-3")

	agg, _ := newTestAggregator(caller, 100*time.Millisecond)

	start := time.Now()
	branches, err := agg.FanOut(context.Background(), question(), 3, 128)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("FanOut() error = %v", err)
	}
	if len(branches) != 2 {
		t.Fatalf("FanOut() returned %d branches, want the 2 settled ones", len(branches))
	}
	if elapsed > time.Second {
		t.Errorf("FanOut() took %v, should have stopped waiting at the deadline", elapsed)
	}
}

func TestFanOut_AllBranchesFail(t *testing.T) {
	caller := routertest.NewMockCaller()
	failure := errors.New("upstream hiccup")
	caller.SetError("ep-1", failure)
	caller.SetError("ep-2", failure)
	caller.SetError("ep-3", failure)

	agg, _ := newTestAggregator(caller, time.Second)

	_, err := agg.FanOut(context.Background(), question(), 3, 128)

	var exhausted *executor.AllCandidatesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("FanOut() error = %v, want *AllCandidatesExhaustedError", err)
	}
}

func TestSynthesize_MergesUniqueResponses(t *testing.T) {
	caller := routertest.NewMockCaller()
	caller.SetResult("ep-synth", &executor.Result{Text: "Merged: light rain likely.", Tokens: 6})

	agg, _ := newTestAggregator(caller, time.Second)

	unique := []fanout.Branch{
		{EndpointID: "ep-1", Text: "Rain is likely.", Confidence: 0.9},
		{EndpointID: "ep-3", Text: "Light showers possible.", Confidence: 0.8},
	}

	got := agg.Synthesize(context.Background(), question(), unique, 128)
	if got != "Merged: light rain likely." {
		t.Errorf("Synthesize() = %q, want the synthesis endpoint's answer", got)
	}

	// The synthesis prompt embeds the primary and alternative answers.
	calls := caller.Calls()
	last := calls[len(calls)-1]
	prompt := last.Request.Messages[len(last.Request.Messages)-1].Content
	for _, fragment := range []string{"Rain is likely.", "Light showers possible."} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("synthesis prompt missing %q", fragment)
		}
	}
}

func TestSynthesize_FallsBackToTopResponse(t *testing.T) {
	caller := routertest.NewMockCaller()
	caller.SetError("ep-synth", errors.New("upstream hiccup"))

	agg, _ := newTestAggregator(caller, time.Second)

	unique := []fanout.Branch{
		{EndpointID: "ep-1", Text: "Rain is likely.", Confidence: 0.9},
		{EndpointID: "ep-3", Text: "Light showers possible.", Confidence: 0.8},
	}

	got := agg.Synthesize(context.Background(), question(), unique, 128)
	if got != "Rain is likely." {
		t.Errorf("Synthesize() = %q, want the top-confidence fallback", got)
	}
}

func TestSynthesize_SingleResponseSkipsTheCall(t *testing.T) {
	caller := routertest.NewMockCaller()
	agg, _ := newTestAggregator(caller, time.Second)

	got := agg.Synthesize(context.Background(), question(),
		[]fanout.Branch{{EndpointID: "ep-1", Text: "Only answer.", Confidence: 0.9}}, 128)

	if got != "Only answer." {
		t.Errorf("Synthesize() = %q, want the single response unchanged", got)
	}
	if len(caller.Calls()) != 0 {
		t.Error("a single unique response should not trigger a synthesis call")
	}
}
