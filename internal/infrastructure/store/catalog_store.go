package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/phone-storefront/internal/catalog"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresCatalog implements catalog.Querier over the products and categories tables
type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

const productColumns = `id, name, brand, description, price, image_url, COALESCE(category_id, ''), rating, stock, created_at`

var orderBy = map[catalog.Sort]string{
	catalog.SortNewest: "created_at DESC, id",
	catalog.SortPrice:  "price ASC, id",
	catalog.SortRating: "rating DESC, id",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildSearch renders q as a parameterized SELECT
func buildSearch(q catalog.Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Search != "" {
		where = append(where, "name ILIKE '%' || "+arg(likeEscaper.Replace(q.Search))+" || '%'")
	}
	if len(q.CategoryIDs) > 0 {
		where = append(where, "category_id = ANY("+arg(pq.Array(q.CategoryIDs))+")")
	}
	if q.MinPrice.Valid {
		where = append(where, "price >= "+arg(q.MinPrice.Decimal))
	}
	if q.MaxPrice.Valid {
		where = append(where, "price <= "+arg(q.MaxPrice.Decimal))
	}

	order, ok := orderBy[q.Sort]
	if !ok {
		order = orderBy[catalog.SortNewest]
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + productColumns + " FROM products")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY " + order)
	return sb.String(), args
}

func scanProduct(row rowScanner) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Description, &p.Price, &p.ImageURL,
		&p.CategoryID, &p.Rating, &p.Stock, &p.CreatedAt)
	return p, err
}

func (c *PostgresCatalog) Search(ctx context.Context, q catalog.Query) ([]catalog.Product, error) {
	query, args := buildSearch(q)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	products := []catalog.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (c *PostgresCatalog) PriceBounds(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	var lo, hi decimal.Decimal
	err := c.db.QueryRowContext(ctx, `SELECT COALESCE(MIN(price), 0), COALESCE(MAX(price), 0) FROM products`).Scan(&lo, &hi)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("price bounds: %w", err)
	}
	return lo, hi, nil
}

func (c *PostgresCatalog) Categories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	cats := []catalog.Category{}
	for rows.Next() {
		var cat catalog.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

func (c *PostgresCatalog) Product(ctx context.Context, id string) (*catalog.Product, error) {
	p, err := scanProduct(c.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (c *PostgresCatalog) Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, price FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("product prices: %w", err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal, len(ids))
	for rows.Next() {
		var (
			id    string
			price decimal.Decimal
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out[id] = price
	}
	return out, rows.Err()
}
