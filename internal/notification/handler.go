// Package notification reacts to storefront events with customer emails.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/phone-storefront/internal/email"
	"github.com/example/phone-storefront/internal/events"
	"github.com/example/phone-storefront/internal/identity"
	"github.com/example/phone-storefront/internal/order"
	"go.uber.org/zap"
)

// Mailer sends the order confirmation email
type Mailer interface {
	SendOrderConfirmation(to string, c email.Confirmation) error
}

// UserLookup resolves the recipient of an order
type UserLookup interface {
	UserByID(ctx context.Context, id string) (*identity.Account, error)
}

// Handler processes events for sending notifications
type Handler struct {
	mailer Mailer
	users  UserLookup
	logger *zap.Logger
}

// NewHandler creates a new notification handler
func NewHandler(mailer Mailer, users UserLookup, logger *zap.Logger) *Handler {
	return &Handler{
		mailer: mailer,
		users:  users,
		logger: logger.Named("notifier"),
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		h.logger.Warn("failed to unmarshal event", zap.ByteString("key", key), zap.Error(err))
		return err
	}

	// Only OrderPlaced produces mail
	if env.EventType == order.EventOrderPlaced {
		return h.handleOrderPlaced(ctx, env)
	}
	return nil
}

func (h *Handler) handleOrderPlaced(ctx context.Context, env events.Envelope) error {
	var e order.OrderPlaced
	if err := env.Decode(&e); err != nil {
		h.logger.Warn("failed to decode OrderPlaced", zap.String("event_id", env.ID), zap.Error(err))
		return err
	}

	log := h.logger.With(zap.String("order_id", e.OrderID), zap.String("user_id", e.UserID))
	log.Info("processing OrderPlaced")

	user, err := h.users.UserByID(ctx, e.UserID)
	if errors.Is(err, identity.ErrUserNotFound) {
		log.Warn("user not found, skipping confirmation")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user %s: %w", e.UserID, err)
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, it := range e.Items {
		items[i] = email.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}

	number := e.OrderNumber
	if number == "" {
		number = order.Number(e.OrderID)
	}

	if err := h.mailer.SendOrderConfirmation(user.Email, email.Confirmation{
		CustomerName: user.Name,
		OrderNumber:  number,
		Items:        items,
		Subtotal:     e.Subtotal,
		Tax:          e.Tax,
		ShippingCost: e.ShippingCost,
		Total:        e.Total,
	}); err != nil {
		log.Error("failed to send confirmation", zap.String("to", user.Email), zap.Error(err))
		return err
	}

	log.Info("order confirmation sent", zap.String("to", user.Email))
	return nil
}
