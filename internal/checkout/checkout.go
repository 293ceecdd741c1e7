// Package checkout drives a session through cart review, shipping, payment
// and confirmation, and turns the cart into an order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/example/phone-storefront/internal/collection"
	"github.com/example/phone-storefront/internal/identity"
	"github.com/example/phone-storefront/internal/order"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Step int

const (
	StepCart Step = iota
	StepShipping
	StepPayment
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepConfirmation:
		return "confirmation"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrAuthenticationRequired    = errors.New("sign in to place an order")
	ErrIncompleteShippingDetails = errors.New("shipping details are incomplete")
	ErrCheckoutComplete          = errors.New("checkout already complete")
	ErrInvalidPaymentMethod      = order.ErrInvalidPaymentMethod
)

// ValidationError lists the shipping fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s: %s", ErrIncompleteShippingDetails, strings.Join(names, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrIncompleteShippingDetails }

func validateShipping(d order.ShippingDetails) error {
	missing := d.MissingFields()
	if len(missing) == 0 {
		return nil
	}
	fields := make(map[string]string, len(missing))
	for _, f := range missing {
		fields[f] = "required"
	}
	return &ValidationError{Fields: fields}
}

// Cart is the part of the session cart checkout needs.
type Cart interface {
	Items() []collection.LineItem
	Clear()
}

type Identity interface {
	Current() (identity.User, bool)
}

type Placer interface {
	Place(ctx context.Context, req order.PlaceRequest) (*order.Order, error)
}

// PriceSource reports live catalog prices by product id.
type PriceSource interface {
	Prices(ctx context.Context, productIDs []string) (map[string]decimal.Decimal, error)
}

// PriceChange is a cart line whose snapshot price no longer matches the catalog.
type PriceChange struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Snapshot  decimal.Decimal `json:"snapshot_price"`
	Current   decimal.Decimal `json:"current_price"`
}

// Outcome is the result of one Advance.
type Outcome struct {
	Step         Step          `json:"step"`
	EmptyCart    bool          `json:"empty_cart,omitempty"`
	Order        *order.Order  `json:"order,omitempty"`
	OrderNumber  string        `json:"order_number,omitempty"`
	PriceChanges []PriceChange `json:"price_changes,omitempty"`
}

// State is a copy of the flow for rendering.
type State struct {
	Step           Step                  `json:"step"`
	Shipping       order.ShippingDetails `json:"shipping"`
	ShippingMethod order.ShippingMethod  `json:"shipping_method"`
	PaymentMethod  order.PaymentMethod   `json:"payment_method,omitempty"`
	OrderNumber    string                `json:"order_number,omitempty"`
	Order          *order.Order          `json:"order,omitempty"`
}

type Option func(*Checkout)

// WithPriceSource re-checks snapshot prices when payment is submitted.
func WithPriceSource(ps PriceSource) Option {
	return func(c *Checkout) { c.prices = ps }
}

// Checkout is one session's checkout flow.
type Checkout struct {
	cart     Cart
	identity Identity
	placer   Placer
	prices   PriceSource
	logger   *zap.Logger

	mu             sync.Mutex
	step           Step
	shipping       order.ShippingDetails
	shippingMethod order.ShippingMethod
	paymentMethod  order.PaymentMethod
	placed         *order.Order
}

func New(cart Cart, ident Identity, placer Placer, logger *zap.Logger, opts ...Option) *Checkout {
	c := &Checkout{
		cart:           cart,
		identity:       ident,
		placer:         placer,
		logger:         logger.Named("checkout"),
		shippingMethod: order.ShippingStandard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checkout) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Step:           c.step,
		Shipping:       c.shipping,
		ShippingMethod: c.shippingMethod,
		PaymentMethod:  c.paymentMethod,
		Order:          c.placed,
	}
	if c.placed != nil {
		s.OrderNumber = c.placed.Number()
	}
	return s
}

func (c *Checkout) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Checkout) SetShipping(d order.ShippingDetails) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step == StepConfirmation {
		return ErrCheckoutComplete
	}
	c.shipping = d
	return nil
}

func (c *Checkout) SetShippingMethod(m order.ShippingMethod) error {
	if _, err := m.Cost(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step == StepConfirmation {
		return ErrCheckoutComplete
	}
	c.shippingMethod = m
	return nil
}

// SetPaymentMethod records the chosen method. It is validated when payment is submitted.
func (c *Checkout) SetPaymentMethod(m order.PaymentMethod) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step == StepConfirmation {
		return ErrCheckoutComplete
	}
	c.paymentMethod = m
	return nil
}

// Advance validates the current step and moves forward. On the payment step it places the order.
func (c *Checkout) Advance(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.step {
	case StepCart:
		if len(c.cart.Items()) == 0 {
			return Outcome{Step: StepCart, EmptyCart: true}, nil
		}
		c.step = StepShipping
	case StepShipping:
		if err := validateShipping(c.shipping); err != nil {
			return Outcome{Step: c.step}, err
		}
		c.step = StepPayment
	case StepPayment:
		return c.placeOrder(ctx)
	case StepConfirmation:
		return Outcome{Step: c.step}, ErrCheckoutComplete
	}
	return Outcome{Step: c.step}, nil
}

func (c *Checkout) placeOrder(ctx context.Context) (Outcome, error) {
	out := Outcome{Step: StepPayment}

	user, ok := c.identity.Current()
	if !ok {
		return out, ErrAuthenticationRequired
	}
	if err := validateShipping(c.shipping); err != nil {
		return out, err
	}
	if !c.paymentMethod.Valid() {
		return out, ErrInvalidPaymentMethod
	}

	lines := c.cart.Items()
	if len(lines) == 0 {
		c.step = StepCart
		return Outcome{Step: StepCart, EmptyCart: true}, nil
	}
	items := make([]order.Item, len(lines))
	for i, l := range lines {
		items[i] = order.Item{
			ProductID: l.ProductID,
			Name:      l.Snapshot.Name,
			UnitPrice: l.Snapshot.Price,
			Quantity:  l.Quantity,
		}
	}
	out.PriceChanges = c.priceChanges(ctx, lines)

	o, err := c.placer.Place(ctx, order.PlaceRequest{
		UserID:         user.ID,
		Items:          items,
		Shipping:       c.shipping,
		ShippingMethod: c.shippingMethod,
		PaymentMethod:  c.paymentMethod,
	})
	if err != nil {
		c.logger.Warn("order placement failed", zap.String("user_id", user.ID), zap.Error(err))
		return out, fmt.Errorf("place order: %w", err)
	}

	c.cart.Clear()
	c.placed = o
	c.step = StepConfirmation
	c.logger.Info("checkout complete", zap.String("order_number", o.Number()), zap.String("user_id", user.ID))
	return Outcome{
		Step:         StepConfirmation,
		Order:        o,
		OrderNumber:  o.Number(),
		PriceChanges: out.PriceChanges,
	}, nil
}

// priceChanges compares snapshot prices with the catalog. Lookup failures are
// logged and reported as no changes.
func (c *Checkout) priceChanges(ctx context.Context, lines []collection.LineItem) []PriceChange {
	if c.prices == nil {
		return nil
	}
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	current, err := c.prices.Prices(ctx, ids)
	if err != nil {
		c.logger.Warn("price check failed", zap.Error(err))
		return nil
	}
	var changes []PriceChange
	for _, l := range lines {
		p, ok := current[l.ProductID]
		if !ok || p.Equal(l.Snapshot.Price) {
			continue
		}
		changes = append(changes, PriceChange{
			ProductID: l.ProductID,
			Name:      l.Snapshot.Name,
			Snapshot:  l.Snapshot.Price,
			Current:   p,
		})
	}
	return changes
}

// Back returns to the previous step. It does nothing on the cart step.
func (c *Checkout) Back() (Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.step {
	case StepConfirmation:
		return c.step, ErrCheckoutComplete
	case StepShipping, StepPayment:
		c.step--
	}
	return c.step, nil
}

// ContinueShopping starts a fresh flow.
func (c *Checkout) ContinueShopping() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = StepCart
	c.shipping = order.ShippingDetails{}
	c.shippingMethod = order.ShippingStandard
	c.paymentMethod = ""
	c.placed = nil
}
