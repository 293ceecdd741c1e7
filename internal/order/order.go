// Package order models a placed order and the arithmetic that produces its totals.
package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCard || m == PaymentCash
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrEmptyOrder            = errors.New("order must have at least one item")
	ErrUserRequired          = errors.New("order requires an authenticated user")
	ErrInvalidPaymentMethod  = errors.New("payment method must be card or cash")
	ErrInvalidShippingMethod = errors.New("shipping method must be standard or express")
)

// TaxRate is applied to the item subtotal.
var TaxRate = decimal.RequireFromString("0.08")

var shippingCosts = map[ShippingMethod]decimal.Decimal{
	ShippingStandard: decimal.NewFromInt(10),
	ShippingExpress:  decimal.NewFromInt(25),
}

// Cost returns the flat shipping fee for m.
func (m ShippingMethod) Cost() (decimal.Decimal, error) {
	cost, ok := shippingCosts[m]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidShippingMethod, m)
	}
	return cost, nil
}

// ShippingDetails is where the order goes. Every field is required.
type ShippingDetails struct {
	FullName    string `json:"full_name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (d ShippingDetails) Trimmed() ShippingDetails {
	return ShippingDetails{
		FullName:    strings.TrimSpace(d.FullName),
		AddressLine: strings.TrimSpace(d.AddressLine),
		City:        strings.TrimSpace(d.City),
		PostalCode:  strings.TrimSpace(d.PostalCode),
		Country:     strings.TrimSpace(d.Country),
	}
}

// MissingFields lists the JSON names of blank fields in form order.
func (d ShippingDetails) MissingFields() []string {
	t := d.Trimmed()
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"full_name", t.FullName},
		{"address_line", t.AddressLine},
		{"city", t.City},
		{"postal_code", t.PostalCode},
		{"country", t.Country},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

type PaymentDetails struct {
	Method PaymentMethod `json:"method"`
	Status PaymentStatus `json:"status"`
}

// Item is an immutable copy of one purchased line.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Total        decimal.Decimal `json:"total"`
}

// CalculateTotals prices items for shipping method m.
func CalculateTotals(items []Item, m ShippingMethod) (Totals, error) {
	shipping, err := m.Cost()
	if err != nil {
		return Totals{}, err
	}
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	tax := subtotal.Mul(TaxRate).Round(2)
	return Totals{
		Subtotal:     subtotal,
		Tax:          tax,
		ShippingCost: shipping,
		Total:        subtotal.Add(tax).Add(shipping),
	}, nil
}

type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Items          []Item          `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Shipping       ShippingDetails `json:"shipping_details"`
	Payment        PaymentDetails  `json:"payment_details"`
	ShippingMethod ShippingMethod  `json:"shipping_method"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Number is the customer-facing order reference.
func (o *Order) Number() string {
	return Number(o.ID)
}

func Number(id string) string {
	return "ORD-" + id
}
