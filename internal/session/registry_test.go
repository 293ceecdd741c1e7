package session

import (
	"context"
	"testing"
	"time"

	"github.com/example/phone-storefront/internal/catalog"
	"github.com/example/phone-storefront/internal/collection"
	"github.com/example/phone-storefront/internal/identity"
	"github.com/example/phone-storefront/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopPlacer struct{}

func (nopPlacer) Place(ctx context.Context, req order.PlaceRequest) (*order.Order, error) {
	return &order.Order{ID: "o1"}, nil
}

type emptyStore struct{}

func (emptyStore) SelectAllByUser(ctx context.Context, userID string) ([]collection.LineItem, error) {
	return nil, nil
}
func (emptyStore) Upsert(ctx context.Context, userID string, item collection.LineItem) error {
	return nil
}
func (emptyStore) Update(ctx context.Context, userID, productID string, quantity int) error {
	return nil
}
func (emptyStore) DeleteOne(ctx context.Context, userID, productID string) error { return nil }
func (emptyStore) DeleteAllByUser(ctx context.Context, userID string) error      { return nil }

func newTestRegistry() *Registry {
	logger := zap.NewNop()
	return NewRegistry(Deps{
		CartSyncer:     collection.NewSyncer(collection.KindCart, emptyStore{}, collection.SyncerConfig{}, logger),
		WishlistSyncer: collection.NewSyncer(collection.KindWishlist, emptyStore{}, collection.SyncerConfig{}, logger),
		Composer:       catalog.NewComposer(nil, time.Second, logger),
		Orders:         nopPlacer{},
		SearchDebounce: time.Hour,
		Logger:         logger,
	})
}

func TestRegistry_Resolve(t *testing.T) {
	r := newTestRegistry()

	s, created := r.Resolve("")
	require.True(t, created)
	assert.NotEmpty(t, s.ID)

	again, created := r.Resolve(s.ID)
	assert.False(t, created)
	assert.Same(t, s, again)

	other, created := r.Resolve("forged-id")
	assert.True(t, created)
	assert.NotEqual(t, "forged-id", other.ID)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Resolve("")
	b, _ := r.Resolve("")

	require.NoError(t, a.Cart.Add("p1", 1, collection.ProductSnapshot{Name: "Phone"}))

	assert.Equal(t, 1, a.Cart.Len())
	assert.Equal(t, 0, b.Cart.Len())
}

func TestRegistry_SignInDrivesBothCollections(t *testing.T) {
	r := newTestRegistry()
	s, _ := r.Resolve("")

	require.NoError(t, s.Identity.SignIn(context.Background(), identity.User{ID: "user-1"}))

	assert.Equal(t, "user-1", s.Cart.Owner())
	assert.Equal(t, "user-1", s.Wishlist.Owner())
}

func TestRegistry_Sweep(t *testing.T) {
	r := newTestRegistry()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	stale, _ := r.Resolve("")
	now = now.Add(20 * time.Minute)
	fresh, _ := r.Resolve("")
	now = now.Add(20 * time.Minute)

	evicted := r.Sweep(30 * time.Minute)

	assert.Equal(t, 1, evicted)
	_, created := r.Resolve(fresh.ID)
	assert.False(t, created)
	revived, created := r.Resolve(stale.ID)
	assert.True(t, created)
	assert.Equal(t, stale.ID, revived.ID, "swept id is reissued")
	assert.NotSame(t, stale, revived)
	assert.Equal(t, 0, revived.Cart.Len())
}

func TestRegistry_ResolveReissuesWellFormedID(t *testing.T) {
	r := newTestRegistry()
	id := "0b9d4b2a-6a51-4d8e-9a43-2f8f5f0c1e77"

	s, created := r.Resolve(id)
	require.True(t, created)
	assert.Equal(t, id, s.ID)

	again, created := r.Resolve(id)
	assert.False(t, created)
	assert.Same(t, s, again)

	for _, bad := range []string{"forged-id", "0B9D4B2A-6A51-4D8E-9A43-2F8F5F0C1E77", "{0b9d4b2a-6a51-4d8e-9a43-2f8f5f0c1e77}"} {
		other, created := r.Resolve(bad)
		assert.True(t, created)
		assert.NotEqual(t, bad, other.ID)
	}
}
