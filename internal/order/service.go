package order

import (
	"context"
	"errors"
	"time"

	"github.com/example/phone-storefront/internal/events"
	"github.com/example/phone-storefront/internal/remote"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const EventOrderPlaced = "OrderPlaced"

// OrderPlaced is published once an order has been stored.
type OrderPlaced struct {
	OrderID      string          `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	UserID       string          `json:"user_id"`
	Items        []Item          `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Total        decimal.Decimal `json:"total"`
	PlacedAt     time.Time       `json:"placed_at"`
}

// Store persists orders. Get returns ErrOrderNotFound for unknown ids.
type Store interface {
	Insert(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	Get(ctx context.Context, orderID string) (*Order, error)
}

// Publisher sends an event keyed by key.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type PlaceRequest struct {
	UserID         string
	Items          []Item
	Shipping       ShippingDetails
	ShippingMethod ShippingMethod
	PaymentMethod  PaymentMethod
}

type Service struct {
	store     Store
	publisher Publisher
	timeout   time.Duration
	logger    *zap.Logger
}

// NewService creates an order service. publisher may be nil.
func NewService(store Store, publisher Publisher, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger.Named("order"),
	}
}

// Place stores a new pending order and announces it.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	if req.UserID == "" {
		return nil, ErrUserRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if req.ShippingMethod == "" {
		req.ShippingMethod = ShippingStandard
	}
	totals, err := CalculateTotals(req.Items, req.ShippingMethod)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		Items:          append([]Item(nil), req.Items...),
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		ShippingCost:   totals.ShippingCost,
		TotalAmount:    totals.Total,
		Shipping:       req.Shipping.Trimmed(),
		Payment:        PaymentDetails{Method: req.PaymentMethod, Status: PaymentPending},
		ShippingMethod: req.ShippingMethod,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	callCtx, cancel := remote.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Insert(callCtx, o); err != nil {
		s.logger.Error("insert failed", zap.String("user_id", o.UserID), zap.Error(err))
		return nil, remote.WriteError("insert order", err)
	}
	s.logger.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("total", o.TotalAmount.StringFixed(2)))

	s.publish(ctx, o)
	return o, nil
}

// publish is best-effort; the order already exists.
func (s *Service) publish(ctx context.Context, o *Order) {
	if s.publisher == nil {
		return
	}
	env, err := events.New(o.ID, AggregateType, EventOrderPlaced, OrderPlaced{
		OrderID:      o.ID,
		OrderNumber:  o.Number(),
		UserID:       o.UserID,
		Items:        o.Items,
		Subtotal:     o.Subtotal,
		Tax:          o.Tax,
		ShippingCost: o.ShippingCost,
		Total:        o.TotalAmount,
		PlacedAt:     o.CreatedAt,
	})
	if err == nil {
		callCtx, cancel := remote.WithTimeout(ctx, s.timeout)
		defer cancel()
		err = s.publisher.Publish(callCtx, o.ID, env)
	}
	if err != nil {
		s.logger.Warn("publish OrderPlaced failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	callCtx, cancel := remote.WithTimeout(ctx, s.timeout)
	defer cancel()
	orders, err := s.store.ListByUser(callCtx, userID)
	if err != nil {
		return nil, remote.ReadError("list orders", err)
	}
	return orders, nil
}

// Get returns one of the user's orders. Orders owned by someone else are reported as not found.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	callCtx, cancel := remote.WithTimeout(ctx, s.timeout)
	defer cancel()
	o, err := s.store.Get(callCtx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, remote.ReadError("get order", err)
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}
