// Package preferences keeps a session's display preferences in Redis.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/phone-storefront/internal/remote"
	"github.com/redis/go-redis/v9"
)

type Key string

const (
	KeyCurrency Key = "currency"
	KeyLanguage Key = "language"
)

// Keys lists every supported preference.
var Keys = []Key{KeyCurrency, KeyLanguage}

func (k Key) Valid() bool {
	return k == KeyCurrency || k == KeyLanguage
}

var (
	ErrUnknownKey = errors.New("unknown preference")
	ErrNotSet     = errors.New("preference not set")
)

const DefaultTTL = 30 * 24 * time.Hour

// Store persists preferences per session. Each read or write extends the TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func prefsKey(sessionID string) string {
	return fmt.Sprintf("prefs:%s", sessionID)
}

func (s *Store) Get(ctx context.Context, sessionID string, key Key) (string, error) {
	if !key.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	v, err := s.client.HGet(ctx, prefsKey(sessionID), string(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotSet
	}
	if err != nil {
		return "", remote.ReadError("hget "+prefsKey(sessionID), err)
	}
	s.touch(ctx, sessionID)
	return v, nil
}

func (s *Store) Set(ctx context.Context, sessionID string, key Key, value string) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, prefsKey(sessionID), string(key), value)
	pipe.Expire(ctx, prefsKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return remote.WriteError("hset "+prefsKey(sessionID), err)
	}
	return nil
}

// All returns every preference set for the session.
func (s *Store) All(ctx context.Context, sessionID string) (map[Key]string, error) {
	raw, err := s.client.HGetAll(ctx, prefsKey(sessionID)).Result()
	if err != nil {
		return nil, remote.ReadError("hgetall "+prefsKey(sessionID), err)
	}
	out := make(map[Key]string, len(raw))
	for k, v := range raw {
		if key := Key(k); key.Valid() {
			out[key] = v
		}
	}
	if len(out) > 0 {
		s.touch(ctx, sessionID)
	}
	return out, nil
}

func (s *Store) touch(ctx context.Context, sessionID string) {
	// Best effort; a failed refresh only shortens the TTL.
	_ = s.client.Expire(ctx, prefsKey(sessionID), s.ttl).Err()
}
