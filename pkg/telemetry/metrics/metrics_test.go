package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRouterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("agrimind", "router", reg)

	m.ObserveAttempt("ep-1", "success", 120*time.Millisecond)
	m.ObserveAttempt("ep-1", "rate_limited", 40*time.Millisecond)
	m.ObserveRequest("chat", "ok")
	m.ObserveFanoutBranch("ok")
	m.UpdateEntity("ep-1", "endpoint", false, 76)

	if got := testutil.ToFloat64(m.attempts.WithLabelValues("ep-1", "success")); got != 1 {
		t.Errorf("attempts{ep-1,success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("chat", "ok")); got != 1 {
		t.Errorf("requests{chat,ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.entityActive.WithLabelValues("ep-1", "endpoint")); got != 0 {
		t.Errorf("entity_active{ep-1} = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.reliability.WithLabelValues("ep-1", "endpoint")); got != 76 {
		t.Errorf("entity_reliability{ep-1} = %v, want 76", got)
	}
}

func TestRouterMetrics_NilSafe(t *testing.T) {
	var m *RouterMetrics
	m.ObserveAttempt("ep-1", "success", time.Millisecond)
	m.UpdateEntity("ep-1", "endpoint", true, 100)
	m.ObserveRequest("chat", "ok")
	m.ObserveFanoutBranch("failed")
}
