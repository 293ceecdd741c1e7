package mocks

import (
	"context"
	"sync"
)

// PublishCall records parameters passed to Publish
type PublishCall struct {
	Key   string
	Event any
}

// MockPublisher records published events
type MockPublisher struct {
	mu sync.Mutex

	Calls      []PublishCall
	PublishErr error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, PublishCall{Key: key, Event: event})
	return m.PublishErr
}

// Published returns a copy of the recorded calls
func (m *MockPublisher) Published() []PublishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishCall(nil), m.Calls...)
}
