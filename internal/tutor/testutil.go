package tutor

import (
	"context"
	"sync"
)

// MockOracle is a scripted oracle client for testing. Responses are
// consumed in order; once exhausted it returns an empty completion.
type MockOracle struct {
	responses []string
	errors    []error
	calls     []MockOracleCall
	callIndex int
	mu        sync.Mutex
}

// MockOracleCall records the arguments of one Complete invocation.
type MockOracleCall struct {
	SystemInstruction string
	UserContent       string
	MaxTokens         int
}

// NewMockOracle creates an empty mock oracle.
func NewMockOracle() *MockOracle {
	return &MockOracle{
		responses: make([]string, 0),
		errors:    make([]error, 0),
		calls:     make([]MockOracleCall, 0),
	}
}

// Complete implements oracle.Client.
func (m *MockOracle) Complete(ctx context.Context, systemInstruction, userContent string, maxTokens int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockOracleCall{
		SystemInstruction: systemInstruction,
		UserContent:       userContent,
		MaxTokens:         maxTokens,
	})

	if m.callIndex >= len(m.responses) {
		return "", nil
	}

	resp := m.responses[m.callIndex]
	var err error
	if m.callIndex < len(m.errors) {
		err = m.errors[m.callIndex]
	}

	m.callIndex++
	return resp, err
}

// Name implements oracle.Client.
func (m *MockOracle) Name() string { return "mock" }

// AddResponse queues one completion (and optional error) to return.
func (m *MockOracle) AddResponse(resp string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses = append(m.responses, resp)
	m.errors = append(m.errors, err)
}

// GetCalls returns all recorded Complete invocations.
func (m *MockOracle) GetCalls() []MockOracleCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]MockOracleCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of Complete invocations.
func (m *MockOracle) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
