package executor

import (
	"errors"
	"fmt"
	"testing"

	"agrimind/router/pkg/health"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want health.FailureKind
	}{
		{
			name: "status 429",
			err:  &CallError{EndpointID: "ep-1", StatusCode: 429, Message: "slow down"},
			want: health.FailureRateLimited,
		},
		{
			name: "status 401",
			err:  &CallError{EndpointID: "ep-1", StatusCode: 401, Message: "bad key"},
			want: health.FailureAuthOrQuota,
		},
		{
			name: "status 402",
			err:  &CallError{EndpointID: "ep-1", StatusCode: 402, Message: "payment required"},
			want: health.FailureAuthOrQuota,
		},
		{
			name: "status 404 means no such model",
			err:  &CallError{EndpointID: "ep-1", StatusCode: 404, Message: "unknown"},
			want: health.FailureModelUnavailable,
		},
		{
			name: "status 500 is transient",
			err:  &CallError{EndpointID: "ep-1", StatusCode: 500, Message: "boom"},
			want: health.FailureTransient,
		},
		{
			name: "wrapped call error",
			err:  fmt.Errorf("attempt failed: %w", &CallError{EndpointID: "ep-1", StatusCode: 429}),
			want: health.FailureRateLimited,
		},
		{
			name: "rate limit message without status",
			err:  errors.New("Rate limit exceeded, retry later"),
			want: health.FailureRateLimited,
		},
		{
			name: "too many requests message",
			err:  errors.New("too many requests"),
			want: health.FailureRateLimited,
		},
		{
			name: "invalid api key message",
			err:  errors.New("Invalid API key provided"),
			want: health.FailureAuthOrQuota,
		},
		{
			name: "insufficient credit message",
			err:  errors.New("insufficient credit balance"),
			want: health.FailureAuthOrQuota,
		},
		{
			name: "not a valid model message",
			err:  errors.New("gpt-9 is not a valid model ID"),
			want: health.FailureModelUnavailable,
		},
		{
			name: "no endpoints found message",
			err:  errors.New("No endpoints found for this model"),
			want: health.FailureModelUnavailable,
		},
		{
			name: "connection reset is transient",
			err:  errors.New("connection reset by peer"),
			want: health.FailureTransient,
		},
		{
			name: "nil error",
			err:  nil,
			want: health.FailureTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCallError_Error(t *testing.T) {
	withStatus := &CallError{EndpointID: "ep-1", StatusCode: 429, Message: "slow down"}
	if got := withStatus.Error(); got != `endpoint "ep-1" call failed (status 429): slow down` {
		t.Errorf("Error() = %q", got)
	}

	cause := errors.New("underlying")
	wrapped := &CallError{EndpointID: "ep-1", Message: "failed", Cause: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is did not reach the wrapped cause")
	}
}
