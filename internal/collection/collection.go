// Package collection keeps a session's cart and wishlist in memory and mirrors
// every change made while signed in to the per-user remote row store.
package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/phone-storefront/internal/identity"
	"github.com/example/phone-storefront/internal/remote"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidProduct  = errors.New("product id is required")
	ErrItemNotFound    = errors.New("item not in collection")
)

// core is the state shared by Cart and Wishlist. The zero owner means anonymous.
type core struct {
	kind   Kind
	syncer *Syncer
	store  RemoteStore
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	owner string
	// previous is the last owner while signed out, until a load succeeds
	previous string
	items    []LineItem
}

func newCore(kind Kind, syncer *Syncer, logger *zap.Logger) core {
	if syncer.Kind() != kind {
		panic(fmt.Sprintf("collection: %s syncer used for %s", syncer.Kind(), kind))
	}
	return core{
		kind:   kind,
		syncer: syncer,
		store:  syncer.store,
		logger: logger.Named(string(kind)),
		now:    time.Now,
	}
}

func indexOf(items []LineItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Owner returns the signed-in user the collection mirrors to, or "".
func (c *core) Owner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// Remove deletes productID if present. Removing an absent product is a no-op
// locally but still mirrored, so a stale remote row is cleaned up.
func (c *core) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := indexOf(c.items, productID); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
	if c.owner != "" && productID != "" {
		c.syncer.enqueueDelete(c.owner, productID)
	}
}

// Clear empties the collection.
func (c *core) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	if c.owner != "" {
		c.syncer.enqueueDeleteAll(c.owner)
	}
}

func (c *core) Contains(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return indexOf(c.items, productID) >= 0
}

// Items returns a copy of the items in display order.
func (c *core) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *core) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *core) TotalQuantity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *core) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return subtotal(c.items)
}

func subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// SyncState reports whether the last change to productID reached the remote store.
func (c *core) SyncState(productID string) SyncState {
	owner := c.Owner()
	if owner == "" {
		return SyncLocalOnly
	}
	return c.syncer.State(owner, productID)
}

// View returns a snapshot suitable for rendering.
func (c *core) View() View {
	c.mu.Lock()
	owner := c.owner
	items := make([]LineItem, len(c.items))
	copy(items, c.items)
	c.mu.Unlock()

	v := View{
		Kind:     c.kind,
		Owner:    owner,
		Items:    make([]Entry, 0, len(items)),
		Subtotal: subtotal(items),
	}
	for _, it := range items {
		state := SyncLocalOnly
		if owner != "" {
			state = c.syncer.State(owner, it.ProductID)
		}
		v.Items = append(v.Items, Entry{LineItem: it, SyncState: state})
		v.TotalQuantity += it.Quantity
	}
	return v
}

// Load replaces the local items with the user's remote rows and starts
// mirroring to that user. Anonymous items are discarded, not merged. On
// failure the collection stays anonymous; items left over from a different
// previous user are dropped so they never surface under the new one.
func (c *core) Load(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	callCtx, cancel := remote.WithTimeout(ctx, c.syncer.cfg.Timeout)
	defer cancel()

	rows, err := c.store.SelectAllByUser(callCtx, userID)
	if err != nil {
		c.logger.Error("load failed", zap.String("user_id", userID), zap.Error(err))
		if c.previous != "" && c.previous != userID {
			c.items = nil
			c.previous = ""
		}
		return remote.ReadError("load "+string(c.kind), err)
	}

	items := c.normalize(rows)
	items = c.syncer.overlay(userID, items)

	if discarded := len(c.items); c.owner == "" && discarded > 0 {
		c.logger.Info("replacing anonymous items on sign-in",
			zap.String("user_id", userID), zap.Int("discarded", discarded))
	}
	c.items = items
	c.owner = userID
	c.previous = ""
	c.logger.Debug("loaded", zap.String("user_id", userID), zap.Int("items", len(items)))
	return nil
}

// normalize enforces one row per product and the wishlist's unit quantity.
func (c *core) normalize(rows []LineItem) []LineItem {
	items := make([]LineItem, 0, len(rows))
	for _, r := range rows {
		if r.ProductID == "" || indexOf(items, r.ProductID) >= 0 {
			continue
		}
		if c.kind == KindWishlist || r.Quantity < 1 {
			r.Quantity = 1
		}
		items = append(items, r)
	}
	return items
}

// SignOut stops mirroring. Local items stay in place.
func (c *core) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner != "" {
		c.logger.Debug("signed out", zap.String("user_id", c.owner))
		c.previous = c.owner
	}
	c.owner = ""
}

// Bind follows t: signing in loads the user's items, signing out stops mirroring.
func (c *core) Bind(t *identity.Tracker) {
	t.Subscribe(func(ctx context.Context, ev identity.Event) error {
		switch ev.Kind {
		case identity.SignedIn:
			return c.Load(ctx, ev.User.ID)
		case identity.SignedOut:
			c.SignOut()
		}
		return nil
	})
}

// Cart is an ordered collection of products with quantities.
type Cart struct {
	core
}

func NewCart(syncer *Syncer, logger *zap.Logger) *Cart {
	return &Cart{core: newCore(KindCart, syncer, logger)}
}

// Add puts quantity units of productID in the cart, merging with an existing line.
func (c *Cart) Add(productID string, quantity int, snap ProductSnapshot) error {
	if productID == "" {
		return ErrInvalidProduct
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var item LineItem
	if i := indexOf(c.items, productID); i >= 0 {
		c.items[i].Quantity += quantity
		item = c.items[i]
	} else {
		item = LineItem{ProductID: productID, Quantity: quantity, Snapshot: snap, AddedAt: c.now().UTC()}
		c.items = append(c.items, item)
	}
	if c.owner != "" {
		c.syncer.enqueueUpsert(c.owner, item)
	}
	return nil
}

// UpdateQuantity sets the quantity of an existing line.
func (c *Cart) UpdateQuantity(productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := indexOf(c.items, productID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, productID)
	}
	c.items[i].Quantity = quantity
	if c.owner != "" {
		c.syncer.enqueueUpdate(c.owner, c.items[i])
	}
	return nil
}

// Wishlist is an ordered set of products.
type Wishlist struct {
	core
}

func NewWishlist(syncer *Syncer, logger *zap.Logger) *Wishlist {
	return &Wishlist{core: newCore(KindWishlist, syncer, logger)}
}

// Add puts productID on the wishlist. Adding a product already present does nothing.
func (w *Wishlist) Add(productID string, snap ProductSnapshot) error {
	if productID == "" {
		return ErrInvalidProduct
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if indexOf(w.items, productID) >= 0 {
		return nil
	}
	item := LineItem{ProductID: productID, Quantity: 1, Snapshot: snap, AddedAt: w.now().UTC()}
	w.items = append(w.items, item)
	if w.owner != "" {
		w.syncer.enqueueUpsert(w.owner, item)
	}
	return nil
}
