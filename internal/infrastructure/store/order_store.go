package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/phone-storefront/internal/order"
	"github.com/lib/pq"
)

// PostgresOrderStore implements order.Store
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

// Insert writes the order and its items in one transaction
func (s *PostgresOrderStore) Insert(ctx context.Context, o *order.Order) error {
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping details: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, subtotal, tax, shipping_cost, total_amount, shipping_details,
			shipping_method, payment_method, payment_status, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.UserID, o.Subtotal, o.Tax, o.ShippingCost, o.TotalAmount, shipping,
		o.ShippingMethod, o.Payment.Method, o.Payment.Status, o.Status, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, i, it.ProductID, it.Name, it.UnitPrice, it.Quantity)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, subtotal, tax, shipping_cost, total_amount, shipping_details,
	shipping_method, payment_method, payment_status, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o        order.Order
		shipping []byte
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Subtotal, &o.Tax, &o.ShippingCost, &o.TotalAmount, &shipping,
		&o.ShippingMethod, &o.Payment.Method, &o.Payment.Status, &o.Status, &o.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping details: %w", err)
	}
	return &o, nil
}

func (s *PostgresOrderStore) Get(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := s.items(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListByUser returns the user's orders, newest first
func (s *PostgresOrderStore) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []order.Order
		ids    []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := s.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (s *PostgresOrderStore) items(ctx context.Context, orderIDs []string) (map[string][]order.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, unit_price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]order.Item, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}
