package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Confirmation is everything the order confirmation email shows
type Confirmation struct {
	CustomerName string
	OrderNumber  string
	Items        []OrderItem
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
}

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(c Confirmation) string {
	var itemsHTML strings.Builder
	for _, item := range c.Items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">$%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">$%s</td>
			</tr>`,
			html.EscapeString(name),
			item.Quantity,
			formatMoney(item.UnitPrice),
			formatMoney(lineTotal),
		))
	}

	greeting := "Hi,"
	if c.CustomerName != "" {
		greeting = fmt.Sprintf("Hi %s,", html.EscapeString(c.CustomerName))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #1f2937; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Thanks for your order</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">%s</p>
		<p>We've received your order and will let you know when it ships.</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">Item</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">Qty</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Price</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Line total</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<table style="width: 100%%; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<tr><td style="color: #666;">Subtotal</td><td style="text-align: right;">$%s</td></tr>
			<tr><td style="color: #666;">Tax</td><td style="text-align: right;">$%s</td></tr>
			<tr><td style="color: #666;">Shipping</td><td style="text-align: right;">$%s</td></tr>
			<tr><td style="font-weight: bold;">Total</td><td style="text-align: right; font-size: 20px; font-weight: bold;">$%s</td></tr>
		</table>

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This is an automated message. Contact support if you have any questions about your order.
		</p>
	</div>
</body>
</html>`, greeting, html.EscapeString(c.OrderNumber), itemsHTML.String(),
		formatMoney(c.Subtotal), formatMoney(c.Tax), formatMoney(c.ShippingCost), formatMoney(c.Total))
}

// formatMoney renders d with two decimals and comma thousands separators
func formatMoney(d decimal.Decimal) string {
	str := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(str, "-") {
		sign, str = "-", str[1:]
	}
	whole, frac, _ := strings.Cut(str, ".")
	if len(whole) <= 3 {
		return sign + whole + "." + frac
	}

	var result strings.Builder
	remainder := len(whole) % 3
	if remainder > 0 {
		result.WriteString(whole[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < len(whole); i += 3 {
		result.WriteString(whole[i : i+3])
		if i+3 < len(whole) {
			result.WriteString(",")
		}
	}
	return sign + result.String() + "." + frac
}
