package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/phone-storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

// MockCatalog is an in-memory catalog.Querier for testing
type MockCatalog struct {
	mu         sync.Mutex
	products   []catalog.Product
	categories []catalog.Category

	SearchCalls      []catalog.Query
	PriceBoundsCalls int
	Err              error
	// SearchDelay holds every Search call for the given duration or until its context ends
	SearchDelay time.Duration
}

// NewMockCatalog creates a MockCatalog holding products
func NewMockCatalog(products ...catalog.Product) *MockCatalog {
	return &MockCatalog{products: products}
}

func (m *MockCatalog) SetCategories(cats ...catalog.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = cats
}

// SetErr makes every call fail with err until cleared
func (m *MockCatalog) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

func (m *MockCatalog) SearchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SearchCalls)
}

func (m *MockCatalog) Search(ctx context.Context, q catalog.Query) ([]catalog.Product, error) {
	m.mu.Lock()
	m.SearchCalls = append(m.SearchCalls, q)
	delay, err := m.SearchDelay, m.Err
	products := append([]catalog.Product(nil), m.products...)
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	var out []catalog.Product
	for _, p := range products {
		if q.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Search)) {
			continue
		}
		if len(q.CategoryIDs) > 0 && !contains(q.CategoryIDs, p.CategoryID) {
			continue
		}
		if q.MinPrice.Valid && p.Price.LessThan(q.MinPrice.Decimal) {
			continue
		}
		if q.MaxPrice.Valid && p.Price.GreaterThan(q.MaxPrice.Decimal) {
			continue
		}
		out = append(out, p)
	}

	switch q.Sort {
	case catalog.SortPrice:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case catalog.SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out, nil
}

func (m *MockCatalog) PriceBounds(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PriceBoundsCalls++
	if m.Err != nil {
		return decimal.Zero, decimal.Zero, m.Err
	}
	if len(m.products) == 0 {
		return decimal.Zero, decimal.Zero, nil
	}
	lo, hi := m.products[0].Price, m.products[0].Price
	for _, p := range m.products[1:] {
		lo = decimal.Min(lo, p.Price)
		hi = decimal.Max(hi, p.Price)
	}
	return lo, hi, nil
}

func (m *MockCatalog) Categories(ctx context.Context) ([]catalog.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]catalog.Category(nil), m.categories...), nil
}

func (m *MockCatalog) Product(ctx context.Context, id string) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, p := range m.products {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, catalog.ErrProductNotFound
}

func (m *MockCatalog) Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]decimal.Decimal)
	for _, p := range m.products {
		if contains(ids, p.ID) {
			out[p.ID] = p.Price
		}
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
