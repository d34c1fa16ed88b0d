package executor

import (
	"context"
	"time"

	"agrimind/router/pkg/health"
	"agrimind/router/pkg/scoring"
)

// Message represents a single chat-style message. The router passes
// messages through opaquely; it does not know or care what the text means.
type Message struct {
	// Role identifies the message sender (system, user, assistant).
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is the payload handed to the external call collaborator for one
// attempt.
type Request struct {
	// Messages is the conversation to complete.
	Messages []Message

	// MaxTokens is the output size budget, taken from the task table's
	// expected-token hint unless overridden per call.
	MaxTokens int
}

// Result is a successful response from the external call collaborator.
type Result struct {
	// Text is the generated response text.
	Text string

	// Tokens is the token count reported by the provider.
	Tokens int
}

// CallFunc performs the actual network call to an inference endpoint with
// the given credential. It is injected at construction; the router treats
// it as an opaque asynchronous operation returning text and a token count,
// or an error. The collaborator owns its own cancellation: the router
// stops waiting on deadline but never force-kills a call.
type CallFunc func(ctx context.Context, endpointID, credentialID string, req Request) (*Result, error)

// Outcome is the result of a successful Execute call.
type Outcome struct {
	// RequestID is the unique identifier assigned to this request.
	RequestID string

	// EndpointID is the endpoint that produced the response.
	EndpointID string

	// CredentialID is the credential the winning attempt used.
	CredentialID string

	// Text is the response text.
	Text string

	// Tokens is the token count reported by the provider.
	Tokens int

	// Attempts is how many attempts were made, including the winner.
	Attempts int

	// Latency is the duration of the winning attempt.
	Latency time.Duration
}

// Options tune a single Execute call.
type Options struct {
	// Priority adjusts candidate scoring (default medium).
	Priority scoring.Priority

	// MaxAttempts overrides the task table's retry ceiling when > 0.
	MaxAttempts int

	// MaxTokens overrides the task table's expected-token hint when > 0.
	MaxTokens int

	// PinnedEndpoint, when set, is tried on the first attempt if it is
	// eligible. Retries after a failure roam per the normal policy. Used
	// by fan-out to spread branches over distinct endpoints.
	PinnedEndpoint string
}

// Attempt describes one executor attempt for observers (metrics, audit).
// Kind is "success" for successful attempts, otherwise the classified
// failure kind name.
type Attempt struct {
	// RequestID ties all attempts of one Execute call together.
	RequestID string

	// AttemptID uniquely identifies this attempt.
	AttemptID string

	// Task is the task tag being executed.
	Task string

	// Number is the 1-based attempt number.
	Number int

	// EndpointID and CredentialID identify the pair that was tried.
	EndpointID   string
	CredentialID string

	// Kind is "success" or the failure kind name.
	Kind string

	// Err is the raw error for failed attempts (nil on success).
	Err error

	// Latency is the attempt duration.
	Latency time.Duration

	// Tokens is the token count for successful attempts.
	Tokens int
}

// AttemptObserver receives a record of every attempt the executor makes.
// Observers must not block; heavy work belongs on the observer's side.
type AttemptObserver func(Attempt)

// kindSuccess is the Attempt.Kind value for successful attempts.
const kindSuccess = "success"

// failureKindName maps a classified kind to its Attempt.Kind label.
func failureKindName(k health.FailureKind) string {
	return k.String()
}
