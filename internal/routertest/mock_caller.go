// Package routertest provides test doubles shared by the router packages.
package routertest

import (
	"context"
	"sync"

	"agrimind/router/pkg/executor"
)

// Call records the arguments of one invocation of the mock caller.
type Call struct {
	EndpointID   string
	CredentialID string
	Request      executor.Request
}

// MockCaller is a scriptable stand-in for the external call collaborator.
// Responses are configured per endpoint id; unconfigured endpoints return
// a default result.
type MockCaller struct {
	mu       sync.Mutex
	results  map[string]*executor.Result
	errs     map[string]error
	errOnce  map[string]int // remaining error count before success
	calls    []Call
	deflt    *executor.Result
	blocking map[string]chan struct{}
}

// NewMockCaller creates a mock caller that answers every endpoint with a
// default successful result.
func NewMockCaller() *MockCaller {
	return &MockCaller{
		results:  make(map[string]*executor.Result),
		errs:     make(map[string]error),
		errOnce:  make(map[string]int),
		deflt:    &executor.Result{Text: "mock response", Tokens: 5},
		blocking: make(map[string]chan struct{}),
	}
}

// SetResult configures the response for an endpoint.
func (m *MockCaller) SetResult(endpointID string, res *executor.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[endpointID] = res
}

// SetError configures an endpoint to always fail with err.
func (m *MockCaller) SetError(endpointID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[endpointID] = err
}

// FailN configures an endpoint to fail with err for the next n calls, then
// succeed.
func (m *MockCaller) FailN(endpointID string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[endpointID] = err
	m.errOnce[endpointID] = n
}

// Block makes calls to an endpoint hang until Release is called, or until
// the call context is cancelled. Used to simulate stragglers.
func (m *MockCaller) Block(endpointID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocking[endpointID] = make(chan struct{})
}

// Release unblocks a previously blocked endpoint.
func (m *MockCaller) Release(endpointID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.blocking[endpointID]; ok {
		close(ch)
		delete(m.blocking, endpointID)
	}
}

// Calls returns a copy of all recorded invocations.
func (m *MockCaller) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many calls were made to an endpoint.
func (m *MockCaller) CallCount(endpointID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.EndpointID == endpointID {
			n++
		}
	}
	return n
}

// Call implements executor.CallFunc.
func (m *MockCaller) Call(ctx context.Context, endpointID, credentialID string, req executor.Request) (*executor.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{EndpointID: endpointID, CredentialID: credentialID, Request: req})
	block := m.blocking[endpointID]
	err := m.errs[endpointID]
	if err != nil {
		if remaining, limited := m.errOnce[endpointID]; limited {
			if remaining <= 0 {
				err = nil
			} else {
				m.errOnce[endpointID] = remaining - 1
			}
		}
	}
	res, ok := m.results[endpointID]
	if !ok {
		res = m.deflt
	}
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
