package mocks

import (
	"context"
	"sync"

	"github.com/example/phone-storefront/internal/collection"
)

// ItemCall records one call made against MockItemStore
type ItemCall struct {
	Op        string
	UserID    string
	ProductID string
	Quantity  int
}

// MockItemStore is an in-memory collection.RemoteStore for testing
type MockItemStore struct {
	mu   sync.Mutex
	rows map[string][]collection.LineItem

	Calls []ItemCall

	// SelectErr is returned by SelectAllByUser when set
	SelectErr error
	// WriteErr is returned by the next FailWrites writes, or by all of them when FailWrites < 0
	WriteErr   error
	FailWrites int
	// WriteHook runs before every write; a non-nil error fails the write
	WriteHook func(ctx context.Context, call ItemCall) error
}

// NewMockItemStore creates a new MockItemStore
func NewMockItemStore() *MockItemStore {
	return &MockItemStore{rows: make(map[string][]collection.LineItem)}
}

// Seed replaces the stored rows for userID
func (m *MockItemStore) Seed(userID string, items ...collection.LineItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[userID] = append([]collection.LineItem(nil), items...)
}

// Rows returns the stored rows for userID
func (m *MockItemStore) Rows(userID string) []collection.LineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]collection.LineItem(nil), m.rows[userID]...)
}

// WriteCalls returns the recorded writes, excluding reads
func (m *MockItemStore) WriteCalls() []ItemCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ItemCall
	for _, c := range m.Calls {
		if c.Op != "select" {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockItemStore) SelectAllByUser(ctx context.Context, userID string) ([]collection.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, ItemCall{Op: "select", UserID: userID})
	if m.SelectErr != nil {
		return nil, m.SelectErr
	}
	return append([]collection.LineItem(nil), m.rows[userID]...), nil
}

func (m *MockItemStore) Upsert(ctx context.Context, userID string, item collection.LineItem) error {
	call := ItemCall{Op: "upsert", UserID: userID, ProductID: item.ProductID, Quantity: item.Quantity}
	return m.write(ctx, call, func() {
		rows := m.rows[userID]
		for i := range rows {
			if rows[i].ProductID == item.ProductID {
				rows[i] = item
				return
			}
		}
		m.rows[userID] = append(rows, item)
	})
}

func (m *MockItemStore) Update(ctx context.Context, userID, productID string, quantity int) error {
	call := ItemCall{Op: "update", UserID: userID, ProductID: productID, Quantity: quantity}
	return m.write(ctx, call, func() {
		rows := m.rows[userID]
		for i := range rows {
			if rows[i].ProductID == productID {
				rows[i].Quantity = quantity
			}
		}
	})
}

func (m *MockItemStore) DeleteOne(ctx context.Context, userID, productID string) error {
	call := ItemCall{Op: "delete", UserID: userID, ProductID: productID}
	return m.write(ctx, call, func() {
		rows := m.rows[userID]
		for i := range rows {
			if rows[i].ProductID == productID {
				m.rows[userID] = append(rows[:i], rows[i+1:]...)
				return
			}
		}
	})
}

func (m *MockItemStore) DeleteAllByUser(ctx context.Context, userID string) error {
	call := ItemCall{Op: "delete_all", UserID: userID}
	return m.write(ctx, call, func() {
		delete(m.rows, userID)
	})
}

func (m *MockItemStore) write(ctx context.Context, call ItemCall, apply func()) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	hook := m.WriteHook
	m.mu.Unlock()

	// Hooks may block, so they run outside the lock
	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil && m.FailWrites != 0 {
		if m.FailWrites > 0 {
			m.FailWrites--
		}
		return m.WriteErr
	}
	apply()
	return nil
}
