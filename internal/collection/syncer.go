package collection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/example/phone-storefront/internal/remote"
	"go.uber.org/zap"
)

// RemoteStore is the per-user row store backing one collection kind.
// Rows are keyed by (userID, productID).
type RemoteStore interface {
	SelectAllByUser(ctx context.Context, userID string) ([]LineItem, error)
	Upsert(ctx context.Context, userID string, item LineItem) error
	Update(ctx context.Context, userID, productID string, quantity int) error
	DeleteOne(ctx context.Context, userID, productID string) error
	DeleteAllByUser(ctx context.Context, userID string) error
}

type opKind int

const (
	opUpsert opKind = iota + 1
	opUpdate
	opDelete
	opDeleteAll
)

func (k opKind) String() string {
	switch k {
	case opUpsert:
		return "upsert"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	case opDeleteAll:
		return "delete_all"
	default:
		return "unknown"
	}
}

// syncKey addresses one remote row. An empty productID addresses every row of the user.
type syncKey struct {
	userID    string
	productID string
}

type intent struct {
	key  syncKey
	kind opKind
	item LineItem
}

// Failure describes a remote write that was abandoned after retries.
type Failure struct {
	Kind      Kind
	UserID    string
	ProductID string
	Op        string
	Attempts  int
	Err       error
}

// FailureReporter is told about abandoned writes. It must not block.
type FailureReporter func(Failure)

// SyncerConfig tunes remote mirroring.
type SyncerConfig struct {
	// Timeout bounds each remote call.
	Timeout time.Duration
	// MaxAttempts bounds tries per intent, including the first.
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c SyncerConfig) withDefaults() SyncerConfig {
	if c.Timeout <= 0 {
		c.Timeout = remote.DefaultTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	return c
}

// Syncer is the write-behind queue mirroring local collection changes to a
// RemoteStore. Intents are coalesced per (user, product) and drained one at a
// time in FIFO key order, so two writes to the same row never race. A key
// being retried holds every later key behind it for at most MaxAttempts
// backoffs; a clear must reach the store before row writes queued after it.
type Syncer struct {
	kind   Kind
	store  RemoteStore
	cfg    SyncerConfig
	logger *zap.Logger

	mu       sync.Mutex
	order    []syncKey
	pending  map[syncKey]*intent
	inflight *intent
	failed   map[syncKey]error
	reporter FailureReporter

	wake   chan struct{}
	procMu sync.Mutex
}

func NewSyncer(kind Kind, store RemoteStore, cfg SyncerConfig, logger *zap.Logger) *Syncer {
	return &Syncer{
		kind:    kind,
		store:   store,
		cfg:     cfg.withDefaults(),
		logger:  logger.Named(string(kind) + "-sync"),
		pending: make(map[syncKey]*intent),
		failed:  make(map[syncKey]error),
		wake:    make(chan struct{}, 1),
	}
}

// Kind returns the collection kind this syncer mirrors.
func (s *Syncer) Kind() Kind { return s.kind }

// OnFailure installs the reporter for abandoned writes.
func (s *Syncer) OnFailure(r FailureReporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporter = r
}

// Run drains the queue whenever work arrives until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	s.logger.Info("write-behind worker started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("write-behind worker stopped", zap.Int("pending", s.Pending()))
			return
		case <-s.wake:
			s.drain(ctx)
		}
	}
}

// Flush drains the queue on the calling goroutine.
func (s *Syncer) Flush(ctx context.Context) error {
	s.drain(ctx)
	return ctx.Err()
}

// Pending returns the number of queued or in-flight intents.
func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	if s.inflight != nil {
		n++
	}
	return n
}

// State reports the sync state of one remote row.
func (s *Syncer) State(userID, productID string) SyncState {
	key := syncKey{userID: userID, productID: productID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[key]; ok {
		return SyncPending
	}
	if s.inflight != nil && s.inflight.key == key {
		return SyncPending
	}
	if _, ok := s.failed[key]; ok {
		return SyncFailed
	}
	return SyncSynced
}

func (s *Syncer) enqueueUpsert(userID string, item LineItem) {
	s.enqueue(intent{key: syncKey{userID, item.ProductID}, kind: opUpsert, item: item})
}

func (s *Syncer) enqueueUpdate(userID string, item LineItem) {
	s.enqueue(intent{key: syncKey{userID, item.ProductID}, kind: opUpdate, item: item})
}

func (s *Syncer) enqueueDelete(userID, productID string) {
	s.enqueue(intent{key: syncKey{userID, productID}, kind: opDelete, item: LineItem{ProductID: productID}})
}

func (s *Syncer) enqueueDeleteAll(userID string) {
	s.enqueue(intent{key: syncKey{userID: userID}, kind: opDeleteAll})
}

func (s *Syncer) enqueue(in intent) {
	s.mu.Lock()
	if in.kind == opDeleteAll {
		s.dropUserLocked(in.key.userID)
	}
	_, wasFailed := s.failed[in.key]
	delete(s.failed, in.key)

	if prev, ok := s.pending[in.key]; ok {
		s.pending[in.key] = coalesce(prev, &in)
	} else {
		inflightUpsert := s.inflight != nil && s.inflight.key == in.key && s.inflight.kind == opUpsert
		if in.kind == opUpdate && (wasFailed || inflightUpsert) {
			// The remote row may not exist.
			in.kind = opUpsert
		}
		s.pending[in.key] = &in
		s.order = append(s.order, in.key)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dropUserLocked discards every queued per-row intent and failure for userID.
func (s *Syncer) dropUserLocked(userID string) {
	kept := s.order[:0]
	for _, k := range s.order {
		if k.userID == userID && k.productID != "" {
			delete(s.pending, k)
			continue
		}
		kept = append(kept, k)
	}
	s.order = kept
	for k := range s.failed {
		if k.userID == userID {
			delete(s.failed, k)
		}
	}
}

func coalesce(prev, next *intent) *intent {
	if next.kind == opUpdate && prev.kind == opUpsert {
		merged := *next
		merged.kind = opUpsert
		return &merged
	}
	return next
}

// overlay applies intents not yet confirmed by the remote store for userID on
// top of rows freshly read from it, so a reload never resurrects stale state.
func (s *Syncer) overlay(userID string, rows []LineItem) []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queued []*intent
	if s.inflight != nil && s.inflight.key.userID == userID {
		queued = append(queued, s.inflight)
	}
	for _, k := range s.order {
		if k.userID == userID {
			queued = append(queued, s.pending[k])
		}
	}

	for _, in := range queued {
		switch in.kind {
		case opDeleteAll:
			rows = nil
		case opDelete:
			if i := indexOf(rows, in.key.productID); i >= 0 {
				rows = append(rows[:i], rows[i+1:]...)
			}
		case opUpsert, opUpdate:
			if i := indexOf(rows, in.key.productID); i >= 0 {
				rows[i] = in.item
			} else {
				rows = append(rows, in.item)
			}
		}
	}
	return rows
}

func (s *Syncer) drain(ctx context.Context) {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	for ctx.Err() == nil {
		in, ok := s.next()
		if !ok {
			return
		}
		s.process(ctx, in)
	}
}

func (s *Syncer) next() (*intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return nil, false
	}
	key := s.order[0]
	s.order = s.order[1:]
	in := s.pending[key]
	delete(s.pending, key)
	s.inflight = in
	return in, true
}

func (s *Syncer) process(ctx context.Context, in *intent) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		callCtx, cancel := remote.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		return struct{}{}, s.apply(callCtx, in)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("remote write failed, retrying",
				zap.String("op", in.kind.String()),
				zap.String("user_id", in.key.userID),
				zap.String("product_id", in.key.productID),
				zap.Duration("retry_in", next),
				zap.Error(err))
		}),
	)

	s.mu.Lock()
	s.inflight = nil
	if err != nil && ctx.Err() != nil {
		// Shutting down: put the intent back unless something newer replaced it.
		if _, superseded := s.pending[in.key]; !superseded {
			s.pending[in.key] = in
			s.order = append([]syncKey{in.key}, s.order...)
		}
		s.mu.Unlock()
		return
	}
	_, superseded := s.pending[in.key]
	if err != nil && !superseded {
		s.failed[in.key] = err
	}
	reporter := s.reporter
	s.mu.Unlock()

	if err == nil {
		return
	}

	failure := Failure{
		Kind:      s.kind,
		UserID:    in.key.userID,
		ProductID: in.key.productID,
		Op:        in.kind.String(),
		Attempts:  attempts,
		Err:       remote.WriteError(in.kind.String(), err),
	}
	s.logger.Error("remote write abandoned",
		zap.String("op", failure.Op),
		zap.String("user_id", failure.UserID),
		zap.String("product_id", failure.ProductID),
		zap.Int("attempts", attempts),
		zap.Bool("superseded", superseded),
		zap.Error(err))
	if reporter != nil {
		reporter(failure)
	}
}

func (s *Syncer) apply(ctx context.Context, in *intent) error {
	switch in.kind {
	case opUpsert:
		return s.store.Upsert(ctx, in.key.userID, in.item)
	case opUpdate:
		return s.store.Update(ctx, in.key.userID, in.key.productID, in.item.Quantity)
	case opDelete:
		return s.store.DeleteOne(ctx, in.key.userID, in.key.productID)
	case opDeleteAll:
		return s.store.DeleteAllByUser(ctx, in.key.userID)
	default:
		return backoff.Permanent(errors.New("unknown sync operation"))
	}
}
