package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/phone-storefront/internal/collection"
)

// itemTables maps a collection kind to its row table
var itemTables = map[collection.Kind]string{
	collection.KindCart:     "cart_items",
	collection.KindWishlist: "wishlist_items",
}

// PostgresItemStore implements collection.RemoteStore over one item table
type PostgresItemStore struct {
	db    *sql.DB
	table string
}

// NewPostgresItemStore creates the row store for kind
func NewPostgresItemStore(db *sql.DB, kind collection.Kind) *PostgresItemStore {
	table, ok := itemTables[kind]
	if !ok {
		panic(fmt.Sprintf("store: no item table for %q", kind))
	}
	return &PostgresItemStore{db: db, table: table}
}

func (s *PostgresItemStore) SelectAllByUser(ctx context.Context, userID string) ([]collection.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, quantity, name, price, image_url, brand, added_at
		FROM `+s.table+`
		WHERE user_id = $1
		ORDER BY added_at, product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.table, err)
	}
	defer rows.Close()

	var items []collection.LineItem
	for rows.Next() {
		var it collection.LineItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.Snapshot.Name, &it.Snapshot.Price,
			&it.Snapshot.ImageURL, &it.Snapshot.Brand, &it.AddedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Upsert writes the full row. The original added_at is kept on conflict.
func (s *PostgresItemStore) Upsert(ctx context.Context, userID string, item collection.LineItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+s.table+` (user_id, product_id, quantity, name, price, image_url, brand, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			image_url = EXCLUDED.image_url,
			brand = EXCLUDED.brand`,
		userID, item.ProductID, item.Quantity, item.Snapshot.Name, item.Snapshot.Price,
		item.Snapshot.ImageURL, item.Snapshot.Brand, item.AddedAt)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", s.table, err)
	}
	return nil
}

// Update changes the quantity of an existing row. A missing row is not an error.
func (s *PostgresItemStore) Update(ctx context.Context, userID, productID string, quantity int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE `+s.table+` SET quantity = $3 WHERE user_id = $1 AND product_id = $2`,
		userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("update %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresItemStore) DeleteOne(ctx context.Context, userID, productID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM `+s.table+` WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresItemStore) DeleteAllByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete all %s: %w", s.table, err)
	}
	return nil
}
