package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name     string
		items    []Item
		method   ShippingMethod
		subtotal string
		tax      string
		shipping string
		total    string
	}{
		{
			name: "two lines standard shipping",
			items: []Item{
				{ProductID: "a", UnitPrice: dec("100"), Quantity: 2},
				{ProductID: "b", UnitPrice: dec("50"), Quantity: 1},
			},
			method:   ShippingStandard,
			subtotal: "250", tax: "20", shipping: "10", total: "280",
		},
		{
			name:     "express shipping",
			items:    []Item{{ProductID: "a", UnitPrice: dec("100"), Quantity: 1}},
			method:   ShippingExpress,
			subtotal: "100", tax: "8", shipping: "25", total: "133",
		},
		{
			name:     "flagship phone",
			items:    []Item{{ProductID: "x", UnitPrice: dec("500000"), Quantity: 1}},
			method:   ShippingStandard,
			subtotal: "500000", tax: "40000", shipping: "10", total: "540010",
		},
		{
			name:     "tax rounds to cents",
			items:    []Item{{ProductID: "c", UnitPrice: dec("19.99"), Quantity: 3}},
			method:   ShippingStandard,
			subtotal: "59.97", tax: "4.8", shipping: "10", total: "74.77",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := CalculateTotals(tt.items, tt.method)
			require.NoError(t, err)
			assert.True(t, dec(tt.subtotal).Equal(totals.Subtotal), "subtotal %s", totals.Subtotal)
			assert.True(t, dec(tt.tax).Equal(totals.Tax), "tax %s", totals.Tax)
			assert.True(t, dec(tt.shipping).Equal(totals.ShippingCost), "shipping %s", totals.ShippingCost)
			assert.True(t, dec(tt.total).Equal(totals.Total), "total %s", totals.Total)
		})
	}
}

func TestCalculateTotals_UnknownShippingMethod(t *testing.T) {
	_, err := CalculateTotals(nil, ShippingMethod("drone"))
	assert.ErrorIs(t, err, ErrInvalidShippingMethod)
}

func TestShippingDetails_MissingFields(t *testing.T) {
	d := ShippingDetails{FullName: "  Ada  ", AddressLine: " ", City: "London", Country: "UK"}

	assert.Equal(t, []string{"address_line", "postal_code"}, d.MissingFields())
	assert.Equal(t, "Ada", d.Trimmed().FullName)
	assert.Empty(t, ShippingDetails{"a", "b", "c", "d", "e"}.MissingFields())
}

func TestPaymentMethod_Valid(t *testing.T) {
	assert.True(t, PaymentCard.Valid())
	assert.True(t, PaymentCash.Valid())
	assert.False(t, PaymentMethod("bitcoin").Valid())
	assert.False(t, PaymentMethod("").Valid())
}

func TestOrder_Number(t *testing.T) {
	o := &Order{ID: "123e4567"}
	assert.Equal(t, "ORD-123e4567", o.Number())
}
