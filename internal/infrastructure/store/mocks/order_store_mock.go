package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/example/phone-storefront/internal/order"
)

// MockOrderStore is an in-memory order.Store for testing
type MockOrderStore struct {
	mu     sync.Mutex
	orders map[string]order.Order

	InsertCalls []*order.Order
	InsertErr   error
	ReadErr     error
}

// NewMockOrderStore creates a new MockOrderStore
func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{orders: make(map[string]order.Order)}
}

func (m *MockOrderStore) Insert(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InsertCalls = append(m.InsertCalls, o)
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.orders[o.ID] = *o
	return nil
}

func (m *MockOrderStore) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	var out []order.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockOrderStore) Get(ctx context.Context, orderID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return &o, nil
}

// Count returns the number of stored orders
func (m *MockOrderStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}
