// Package remote holds the failure taxonomy shared by every component that
// talks to the hosted backend (item rows, orders, catalog, users).
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrWriteFailure = errors.New("remote write failed")
	ErrReadFailure  = errors.New("remote read failed")
)

// DefaultTimeout bounds a single remote call when no explicit timeout is configured.
const DefaultTimeout = 5 * time.Second

// WriteError wraps err so that errors.Is(err, ErrWriteFailure) holds.
func WriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrWriteFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrWriteFailure, op, err)
}

// ReadError wraps err so that errors.Is(err, ErrReadFailure) holds.
func ReadError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrReadFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrReadFailure, op, err)
}

// WithTimeout derives a context bounded by d, falling back to DefaultTimeout.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
