package testing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aristath/lookout/internal/domain"
)

// AnalysisCall records one invocation of the mock analysis client.
type AnalysisCall struct {
	Facet   domain.Facet
	Payload domain.Payload
	At      time.Time
}

// MockAnalysisClient is a mock implementation of the orchestrator's
// AnalysisClient interface for testing.
type MockAnalysisClient struct {
	mu       sync.Mutex
	calls    []AnalysisCall
	response json.RawMessage
	err      error
	delay    time.Duration
	handler  func(ctx context.Context, call AnalysisCall, index int) (json.RawMessage, error)
}

// NewMockAnalysisClient creates a mock analysis client that returns an
// empty JSON object by default.
func NewMockAnalysisClient() *MockAnalysisClient {
	return &MockAnalysisClient{
		response: json.RawMessage(`{}`),
	}
}

// SetResponse sets the payload returned on success.
func (m *MockAnalysisClient) SetResponse(data json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = data
}

// SetError sets the error to return.
func (m *MockAnalysisClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes every call block for d before resolving.
func (m *MockAnalysisClient) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetHandler installs a per-call hook taking precedence over the fixed
// response/error. index is the zero-based call number.
func (m *MockAnalysisClient) SetHandler(fn func(ctx context.Context, call AnalysisCall, index int) (json.RawMessage, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Calls returns a copy of the recorded calls.
func (m *MockAnalysisClient) Calls() []AnalysisCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AnalysisCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls made so far.
func (m *MockAnalysisClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// FacetCall implements the orchestrator's AnalysisClient interface.
func (m *MockAnalysisClient) FacetCall(ctx context.Context, facet domain.Facet, payload domain.Payload) (json.RawMessage, error) {
	call := AnalysisCall{Facet: facet, Payload: payload, At: time.Now()}

	m.mu.Lock()
	index := len(m.calls)
	m.calls = append(m.calls, call)
	handler := m.handler
	response := m.response
	err := m.err
	delay := m.delay
	m.mu.Unlock()

	if handler != nil {
		return handler(ctx, call, index)
	}

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}
	return response, nil
}
