package intent

import (
	"context"
	"sync"
)

// Mock is a scripted Classifier for tests. Responses are returned in
// order; when they run out the last one repeats. Safe for concurrent
// use.
type Mock struct {
	mu        sync.Mutex
	responses []Result
	err       error
	calls     int
	messages  []string
}

// NewMock creates a Mock that returns the given results in sequence.
func NewMock(responses ...Result) *Mock {
	return &Mock{responses: responses}
}

// NewMockError creates a Mock whose Classify always fails with err.
func NewMockError(err error) *Mock {
	return &Mock{err: err}
}

// Classify implements Classifier.
func (m *Mock) Classify(_ context.Context, message string, _ []string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.messages = append(m.messages, message)

	if m.err != nil {
		return Result{}, m.err
	}
	if len(m.responses) == 0 {
		return Result{Intent: Unknown, Confidence: 0.5}, nil
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// Calls reports how many times Classify was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Messages returns the messages seen so far.
func (m *Mock) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.messages))
	copy(out, m.messages)
	return out
}
