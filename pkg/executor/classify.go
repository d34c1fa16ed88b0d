package executor

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"agrimind/router/pkg/health"
)

// CallError is the structured error the external call collaborator should
// return when it can. StatusCode drives classification directly; message
// heuristics are the fallback for collaborators that only surface text.
type CallError struct {
	// EndpointID is the endpoint the call was addressed to.
	EndpointID string

	// StatusCode is the HTTP status code (0 if not applicable).
	StatusCode int

	// Message is the error message from the provider.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("endpoint %q call failed (status %d): %s", e.EndpointID, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("endpoint %q call failed: %s", e.EndpointID, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *CallError) Unwrap() error {
	return e.Cause
}

// Message fragments that identify failure kinds when no status code is
// available. Matched case-insensitively.
var (
	rateLimitFragments = []string{
		"rate limit",
		"rate-limited",
		"too many requests",
	}
	authQuotaFragments = []string{
		"unauthorized",
		"invalid api key",
		"authentication",
		"insufficient credit",
		"insufficient_quota",
		"quota exceeded",
	}
	modelUnavailableFragments = []string{
		"not a valid model",
		"no endpoints found",
		"model_not_found",
	}
)

// Classify maps an error from the external call collaborator to a
// FailureKind. It is the single place where provider errors are inspected;
// everything downstream only ever sees the closed FailureKind set.
//
// Classification order: explicit status code, then message heuristics,
// then FailureTransient.
func Classify(err error) health.FailureKind {
	if err == nil {
		return health.FailureTransient
	}

	var callErr *CallError
	if errors.As(err, &callErr) && callErr.StatusCode > 0 {
		switch callErr.StatusCode {
		case http.StatusTooManyRequests:
			return health.FailureRateLimited
		case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
			return health.FailureAuthOrQuota
		case http.StatusNotFound:
			return health.FailureModelUnavailable
		}
	}

	msg := strings.ToLower(err.Error())
	for _, f := range rateLimitFragments {
		if strings.Contains(msg, f) {
			return health.FailureRateLimited
		}
	}
	for _, f := range authQuotaFragments {
		if strings.Contains(msg, f) {
			return health.FailureAuthOrQuota
		}
	}
	for _, f := range modelUnavailableFragments {
		if strings.Contains(msg, f) {
			return health.FailureModelUnavailable
		}
	}
	return health.FailureTransient
}
