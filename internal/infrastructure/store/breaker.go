package store

import (
	"context"
	"time"

	"github.com/example/phone-storefront/internal/collection"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerItemStore fails fast while the wrapped item store keeps failing
type BreakerItemStore struct {
	next collection.RemoteStore
	cb   *gobreaker.CircuitBreaker[[]collection.LineItem]
}

// BreakerConfig tunes when the breaker opens and how long it stays open
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func NewBreakerItemStore(next collection.RemoteStore, cfg BreakerConfig, logger *zap.Logger) *BreakerItemStore {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	log := logger.Named("breaker")
	threshold := cfg.ConsecutiveFailures

	cb := gobreaker.NewCircuitBreaker[[]collection.LineItem](gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &BreakerItemStore{next: next, cb: cb}
}

// State returns the breaker's current state
func (b *BreakerItemStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerItemStore) SelectAllByUser(ctx context.Context, userID string) ([]collection.LineItem, error) {
	return b.cb.Execute(func() ([]collection.LineItem, error) {
		return b.next.SelectAllByUser(ctx, userID)
	})
}

func (b *BreakerItemStore) Upsert(ctx context.Context, userID string, item collection.LineItem) error {
	return b.write(func() error { return b.next.Upsert(ctx, userID, item) })
}

func (b *BreakerItemStore) Update(ctx context.Context, userID, productID string, quantity int) error {
	return b.write(func() error { return b.next.Update(ctx, userID, productID, quantity) })
}

func (b *BreakerItemStore) DeleteOne(ctx context.Context, userID, productID string) error {
	return b.write(func() error { return b.next.DeleteOne(ctx, userID, productID) })
}

func (b *BreakerItemStore) DeleteAllByUser(ctx context.Context, userID string) error {
	return b.write(func() error { return b.next.DeleteAllByUser(ctx, userID) })
}

func (b *BreakerItemStore) write(fn func() error) error {
	_, err := b.cb.Execute(func() ([]collection.LineItem, error) {
		return nil, fn()
	})
	return err
}
