package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/example/phone-storefront/internal/catalog"
	"github.com/example/phone-storefront/internal/collection"
	"github.com/example/phone-storefront/internal/identity"
	"github.com/example/phone-storefront/internal/infrastructure/store"
	"github.com/example/phone-storefront/internal/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := store.ConnectPostgres(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, store.Migrate(db))
	// second run is a no-op
	require.NoError(t, store.Migrate(db))
	return db
}

func seedCatalog(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO categories (id, name, slug) VALUES
			('c-android', 'Android', 'android'),
			('c-ios', 'iOS', 'ios');
		INSERT INTO products (id, name, brand, price, category_id, rating, stock, created_at) VALUES
			('p1', 'Pixel 9', 'Google', 799.00, 'c-android', 4.6, 10, '2026-01-01T00:00:00Z'),
			('p2', 'Galaxy S25', 'Samsung', 899.00, 'c-android', 4.4, 5, '2026-02-01T00:00:00Z'),
			('p3', 'iPhone 16', 'Apple', 999.00, 'c-ios', 4.8, 7, '2026-03-01T00:00:00Z'),
			('p4', 'Pixel 8a', 'Google', 499.00, 'c-android', 4.1, 0, '2025-06-01T00:00:00Z')`)
	require.NoError(t, err)
}

func productIDs(products []catalog.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}

// ============================================
// Item store
// ============================================

func TestPostgresItemStore_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := store.NewPostgresItemStore(db, collection.KindCart)

	first := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Upsert(ctx, "u1", collection.LineItem{
		ProductID: "p2", Quantity: 1,
		Snapshot: collection.ProductSnapshot{Name: "Galaxy S25", Price: decimal.RequireFromString("899.00")},
		AddedAt:  first,
	}))
	require.NoError(t, s.Upsert(ctx, "u1", collection.LineItem{
		ProductID: "p1", Quantity: 2,
		Snapshot: collection.ProductSnapshot{Name: "Pixel 9", Price: decimal.RequireFromString("799.00"), Brand: "Google"},
		AddedAt:  first.Add(time.Minute),
	}))
	require.NoError(t, s.Upsert(ctx, "u2", collection.LineItem{
		ProductID: "p1", Quantity: 1,
		Snapshot: collection.ProductSnapshot{Name: "Pixel 9", Price: decimal.RequireFromString("799.00")},
		AddedAt:  first,
	}))

	// re-upsert keeps the original added_at and therefore the order
	require.NoError(t, s.Upsert(ctx, "u1", collection.LineItem{
		ProductID: "p2", Quantity: 4,
		Snapshot: collection.ProductSnapshot{Name: "Galaxy S25", Price: decimal.RequireFromString("899.00")},
		AddedAt:  first.Add(time.Hour),
	}))
	require.NoError(t, s.Update(ctx, "u1", "p1", 3))
	require.NoError(t, s.Update(ctx, "u1", "missing", 3))

	items, err := s.SelectAllByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p2", items[0].ProductID)
	assert.Equal(t, 4, items[0].Quantity)
	assert.True(t, first.Equal(items[0].AddedAt))
	assert.Equal(t, "p1", items[1].ProductID)
	assert.Equal(t, 3, items[1].Quantity)
	assert.Equal(t, "Google", items[1].Snapshot.Brand)
	assert.True(t, decimal.RequireFromString("799").Equal(items[1].Snapshot.Price))

	require.NoError(t, s.DeleteOne(ctx, "u1", "p2"))
	items, err = s.SelectAllByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, s.DeleteAllByUser(ctx, "u1"))
	items, err = s.SelectAllByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	other, err := s.SelectAllByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestPostgresItemStore_WishlistTableIsSeparate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cart := store.NewPostgresItemStore(db, collection.KindCart)
	wishlist := store.NewPostgresItemStore(db, collection.KindWishlist)

	require.NoError(t, wishlist.Upsert(ctx, "u1", collection.LineItem{
		ProductID: "p3", Quantity: 1,
		Snapshot: collection.ProductSnapshot{Name: "iPhone 16", Price: decimal.RequireFromString("999")},
		AddedAt:  time.Now(),
	}))

	cartItems, err := cart.SelectAllByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cartItems)

	wished, err := wishlist.SelectAllByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, wished, 1)
}

// ============================================
// Order store
// ============================================

func TestPostgresOrderStore_InsertGetList(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := store.NewPostgresOrderStore(db)

	older := &order.Order{
		ID:     uuid.NewString(),
		UserID: "u1",
		Items: []order.Item{
			{ProductID: "p1", Name: "Pixel 9", UnitPrice: decimal.RequireFromString("799"), Quantity: 1},
		},
		Subtotal:       decimal.RequireFromString("799"),
		Tax:            decimal.RequireFromString("63.92"),
		ShippingCost:   decimal.NewFromInt(10),
		TotalAmount:    decimal.RequireFromString("872.92"),
		Shipping:       order.ShippingDetails{FullName: "Ada", AddressLine: "1 Main", City: "Town", PostalCode: "123", Country: "NL"},
		Payment:        order.PaymentDetails{Method: order.PaymentCard, Status: order.PaymentPending},
		ShippingMethod: order.ShippingStandard,
		Status:         order.StatusPending,
		CreatedAt:      time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := *older
	newer.ID = uuid.NewString()
	newer.Items = []order.Item{
		{ProductID: "p3", Name: "iPhone 16", UnitPrice: decimal.RequireFromString("999"), Quantity: 1},
		{ProductID: "p1", Name: "Pixel 9", UnitPrice: decimal.RequireFromString("799"), Quantity: 2},
	}
	newer.CreatedAt = older.CreatedAt.Add(24 * time.Hour)

	require.NoError(t, s.Insert(ctx, older))
	require.NoError(t, s.Insert(ctx, &newer))

	got, err := s.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, older.Shipping, got.Shipping)
	assert.Equal(t, order.PaymentCard, got.Payment.Method)
	assert.True(t, older.TotalAmount.Equal(got.TotalAmount))
	require.Len(t, got.Items, 1)

	list, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	require.Len(t, list[0].Items, 2)
	assert.Equal(t, "p3", list[0].Items[0].ProductID)
	assert.Equal(t, "p1", list[0].Items[1].ProductID)

	none, err := s.ListByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

// ============================================
// User store
// ============================================

func TestPostgresUserStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := store.NewPostgresUserStore(db)

	a := &identity.Account{
		ID:           uuid.NewString(),
		Email:        "ada@example.com",
		Name:         "Ada",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.CreateUser(ctx, a))

	dup := *a
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), identity.ErrEmailTaken)

	byEmail, err := s.UserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byEmail.ID)

	byID, err := s.UserByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", byID.Name)

	_, err = s.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

// ============================================
// Catalog
// ============================================

func TestPostgresCatalog_Search(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()
	c := store.NewPostgresCatalog(db)

	tests := []struct {
		name string
		q    catalog.Query
		want []string
	}{
		{
			name: "everything newest first",
			q:    catalog.Query{Sort: catalog.SortNewest},
			want: []string{"p3", "p2", "p1", "p4"},
		},
		{
			name: "case-insensitive name search",
			q:    catalog.Query{Search: "pixel", Sort: catalog.SortPrice},
			want: []string{"p4", "p1"},
		},
		{
			name: "category filter by rating",
			q:    catalog.Query{CategoryIDs: []string{"c-android"}, Sort: catalog.SortRating},
			want: []string{"p1", "p2", "p4"},
		},
		{
			name: "inclusive price range",
			q: catalog.Query{
				MinPrice: decimal.NewNullDecimal(decimal.NewFromInt(799)),
				MaxPrice: decimal.NewNullDecimal(decimal.NewFromInt(899)),
				Sort:     catalog.SortPrice,
			},
			want: []string{"p1", "p2"},
		},
		{
			name: "no match",
			q:    catalog.Query{Search: "nokia"},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := c.Search(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, productIDs(products))
		})
	}
}

func TestPostgresCatalog_Lookups(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)
	ctx := context.Background()
	c := store.NewPostgresCatalog(db)

	lo, hi, err := c.PriceBounds(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(499).Equal(lo))
	assert.True(t, decimal.NewFromInt(999).Equal(hi))

	cats, err := c.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "android", cats[0].Slug)

	p, err := c.Product(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, "Apple", p.Brand)
	assert.Equal(t, "c-ios", p.CategoryID)

	_, err = c.Product(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	prices, err := c.Prices(ctx, []string{"p1", "p4", "missing"})
	require.NoError(t, err)
	assert.Len(t, prices, 2)
	assert.True(t, decimal.NewFromInt(499).Equal(prices["p4"]))
}
