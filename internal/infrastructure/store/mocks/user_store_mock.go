package mocks

import (
	"context"
	"sync"

	"github.com/example/phone-storefront/internal/identity"
)

// MockUserStore is an in-memory identity.UserStore for testing
type MockUserStore struct {
	mu      sync.Mutex
	byID    map[string]identity.Account
	byEmail map[string]string

	CreateErr error
	ReadErr   error
}

// NewMockUserStore creates a new MockUserStore
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{
		byID:    make(map[string]identity.Account),
		byEmail: make(map[string]string),
	}
}

func (m *MockUserStore) CreateUser(ctx context.Context, a *identity.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, taken := m.byEmail[a.Email]; taken {
		return identity.ErrEmailTaken
	}
	m.byID[a.ID] = *a
	m.byEmail[a.Email] = a.ID
	return nil
}

func (m *MockUserStore) UserByEmail(ctx context.Context, email string) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	id, ok := m.byEmail[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	a := m.byID[id]
	return &a, nil
}

func (m *MockUserStore) UserByID(ctx context.Context, id string) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return &a, nil
}
