package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/phone-storefront/internal/collection"
	"github.com/example/phone-storefront/internal/infrastructure/store"
	"github.com/example/phone-storefront/internal/infrastructure/store/mocks"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBreakerItemStore_PassesThrough(t *testing.T) {
	inner := mocks.NewMockItemStore()
	b := store.NewBreakerItemStore(inner, store.BreakerConfig{Name: "cart"}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, b.Upsert(ctx, "u1", collection.LineItem{ProductID: "p1", Quantity: 1}))
	require.NoError(t, b.Update(ctx, "u1", "p1", 3))

	items, err := b.SelectAllByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)

	require.NoError(t, b.DeleteOne(ctx, "u1", "p1"))
	require.NoError(t, b.DeleteAllByUser(ctx, "u1"))
	assert.Len(t, inner.WriteCalls(), 4)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerItemStore_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := mocks.NewMockItemStore()
	inner.WriteErr = errors.New("connection refused")
	inner.FailWrites = -1
	b := store.NewBreakerItemStore(inner, store.BreakerConfig{
		Name:                "cart",
		ConsecutiveFailures: 3,
		OpenTimeout:         time.Minute,
	}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := b.DeleteOne(ctx, "u1", "p1")
		assert.ErrorIs(t, err, inner.WriteErr)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	// open circuit rejects without reaching the store
	err := b.DeleteOne(ctx, "u1", "p1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Len(t, inner.WriteCalls(), 3)
}

func TestBreakerItemStore_HalfOpenRecovers(t *testing.T) {
	inner := mocks.NewMockItemStore()
	inner.WriteErr = errors.New("connection refused")
	inner.FailWrites = 1
	b := store.NewBreakerItemStore(inner, store.BreakerConfig{
		Name:                "wishlist",
		ConsecutiveFailures: 1,
		OpenTimeout:         20 * time.Millisecond,
	}, zap.NewNop())
	ctx := context.Background()

	require.Error(t, b.DeleteOne(ctx, "u1", "p1"))
	assert.Equal(t, gobreaker.StateOpen, b.State())

	assert.Eventually(t, func() bool {
		return b.State() == gobreaker.StateHalfOpen
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.DeleteOne(ctx, "u1", "p1"))
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
