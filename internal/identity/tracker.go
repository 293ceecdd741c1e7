// Package identity tracks who a storefront session belongs to and tells the
// session's collections when that changes.
package identity

import (
	"context"
	"errors"
	"sync"
)

// User is the authenticated principal as seen by the storefront.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Transition is the kind of identity change.
type Transition int

const (
	SignedIn Transition = iota + 1
	SignedOut
)

func (t Transition) String() string {
	switch t {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Event describes one identity transition. User is the user signing in or out.
type Event struct {
	Kind Transition
	User User
}

// Listener reacts to a transition. Returned errors are reported to whoever
// triggered the transition; they do not undo it.
type Listener func(ctx context.Context, ev Event) error

// Tracker holds the identity of one session.
type Tracker struct {
	mu   sync.Mutex
	user *User
	// settled is set once every listener accepted the current user's sign-in
	settled   bool
	listeners []Listener
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Current returns the signed-in user, if any.
func (t *Tracker) Current() (User, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.user == nil {
		return User{}, false
	}
	return *t.user, true
}

// Subscribe registers l. Listeners run in subscription order.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// SignIn makes u the session's user. Signing in as a different user first
// signs the previous one out. Signing in again as the current user is a no-op
// once a sign-in has settled; until then it re-runs the sign-in listeners.
func (t *Tracker) SignIn(ctx context.Context, u User) error {
	t.mu.Lock()
	prev := t.user
	t.user = &u
	if prev != nil && prev.ID == u.ID {
		if t.settled {
			t.mu.Unlock()
			return nil
		}
		prev = nil
	}
	t.settled = false
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	var errs []error
	if prev != nil {
		errs = append(errs, notify(ctx, listeners, Event{Kind: SignedOut, User: *prev})...)
	}
	errs = append(errs, notify(ctx, listeners, Event{Kind: SignedIn, User: u})...)
	err := errors.Join(errs...)

	t.mu.Lock()
	if t.user != nil && t.user.ID == u.ID {
		t.settled = err == nil
	}
	t.mu.Unlock()
	return err
}

// Settled reports whether the current user's sign-in was accepted by every
// listener. Anonymous sessions are never settled.
func (t *Tracker) Settled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.user != nil && t.settled
}

// SignOut clears the session's user. It is a no-op for anonymous sessions.
func (t *Tracker) SignOut(ctx context.Context) error {
	t.mu.Lock()
	prev := t.user
	t.user = nil
	t.settled = false
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	if prev == nil {
		return nil
	}
	return errors.Join(notify(ctx, listeners, Event{Kind: SignedOut, User: *prev})...)
}

func notify(ctx context.Context, listeners []Listener, ev Event) []error {
	var errs []error
	for _, l := range listeners {
		if err := l(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
