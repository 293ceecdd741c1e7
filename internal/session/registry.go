// Package session owns the per-browser-session state of the storefront.
package session

import (
	"sync"
	"time"

	"github.com/example/phone-storefront/internal/catalog"
	"github.com/example/phone-storefront/internal/checkout"
	"github.com/example/phone-storefront/internal/collection"
	"github.com/example/phone-storefront/internal/identity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session is everything one browser session holds.
type Session struct {
	ID       string
	Identity *identity.Tracker
	Cart     *collection.Cart
	Wishlist *collection.Wishlist
	Checkout *checkout.Checkout
	Live     *catalog.LiveSearch

	lastSeen time.Time
}

// Deps are the shared services every session is wired to.
type Deps struct {
	CartSyncer     *collection.Syncer
	WishlistSyncer *collection.Syncer
	Composer       *catalog.Composer
	Orders         checkout.Placer
	SearchDebounce time.Duration
	Logger         *zap.Logger
}

type Registry struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps,
		logger:   deps.Logger.Named("session"),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Resolve returns the session for id. Unknown or empty ids get a new session;
// created reports whether that happened. A well-formed id that is no longer
// live (swept, or lost in a restart) is reissued so state kept outside the
// process under that id, such as preferences, stays reachable. Anything else
// gets a fresh id.
func (r *Registry) Resolve(id string) (s *Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok && id != "" {
		s.lastSeen = r.now()
		return s, false
	}
	if !wellFormed(id) {
		id = uuid.New().String()
	}
	s = r.newSession(id)
	r.sessions[s.ID] = s
	r.logger.Debug("session created", zap.String("session_id", s.ID))
	return s, true
}

// wellFormed reports whether id is a canonical session id as issued by Resolve.
func wellFormed(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

func (r *Registry) newSession(id string) *Session {
	d := r.deps
	tracker := identity.NewTracker()
	cart := collection.NewCart(d.CartSyncer, d.Logger)
	wishlist := collection.NewWishlist(d.WishlistSyncer, d.Logger)
	cart.Bind(tracker)
	wishlist.Bind(tracker)

	return &Session{
		ID:       id,
		Identity: tracker,
		Cart:     cart,
		Wishlist: wishlist,
		Checkout: checkout.New(cart, tracker, d.Orders, d.Logger, checkout.WithPriceSource(d.Composer)),
		Live:     catalog.NewLiveSearch(d.Composer, d.SearchDebounce),
		lastSeen: r.now(),
	}
}

// Sweep drops sessions idle for longer than maxIdle and returns how many were dropped.
// Queued remote writes of dropped sessions still drain.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var evicted []*Session
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			evicted = append(evicted, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.Live.Close()
	}
	if len(evicted) > 0 {
		r.logger.Info("swept idle sessions", zap.Int("evicted", len(evicted)))
	}
	return len(evicted)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
