package notify

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockGateway records sends for tests. It honors the idempotency
// contract: repeated sends of the same action ID return the first
// delivery without counting a second send.
type MockGateway struct {
	mu        sync.Mutex
	delivered map[string]Delivery
	order     []Action
	failWith  error
}

// NewMockGateway creates an empty MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{delivered: make(map[string]Delivery)}
}

// FailWith makes subsequent Send calls return err. Pass nil to clear.
func (m *MockGateway) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Send implements Gateway.
func (m *MockGateway) Send(_ context.Context, action Action) (Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return Delivery{}, m.failWith
	}
	if action.ID == "" {
		return Delivery{}, fmt.Errorf("action has no id")
	}
	if d, ok := m.delivered[action.ID]; ok {
		return d, nil
	}

	d := Delivery{
		ActionID:    action.ID,
		Recipients:  1,
		DeliveredAt: time.Now().UTC(),
	}
	m.delivered[action.ID] = d
	m.order = append(m.order, action)
	return d, nil
}

// Sent returns the distinct actions delivered, in order.
func (m *MockGateway) Sent() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Action, len(m.order))
	copy(out, m.order)
	return out
}

// SendCount reports the number of distinct deliveries.
func (m *MockGateway) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
