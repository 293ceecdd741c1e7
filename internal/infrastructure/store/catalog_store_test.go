package store

import (
	"testing"

	"github.com/example/phone-storefront/internal/catalog"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuildSearch_NoFilters(t *testing.T) {
	query, args := buildSearch(catalog.Query{})

	assert.Equal(t, "SELECT "+productColumns+" FROM products ORDER BY created_at DESC, id", query)
	assert.Empty(t, args)
}

func TestBuildSearch_AllFilters(t *testing.T) {
	query, args := buildSearch(catalog.Query{
		Search:      "pixel",
		CategoryIDs: []string{"c1", "c2"},
		MinPrice:    decimal.NewNullDecimal(decimal.NewFromInt(100)),
		MaxPrice:    decimal.NewNullDecimal(decimal.NewFromInt(900)),
		Sort:        catalog.SortPrice,
	})

	assert.Contains(t, query, "name ILIKE '%' || $1 || '%'")
	assert.Contains(t, query, "category_id = ANY($2)")
	assert.Contains(t, query, "price >= $3")
	assert.Contains(t, query, "price <= $4")
	assert.Contains(t, query, " AND ")
	assert.Contains(t, query, "ORDER BY price ASC, id")

	if assert.Len(t, args, 4) {
		assert.Equal(t, "pixel", args[0])
		assert.Equal(t, pq.Array([]string{"c1", "c2"}), args[1])
		assert.True(t, decimal.NewFromInt(100).Equal(args[2].(decimal.Decimal)))
		assert.True(t, decimal.NewFromInt(900).Equal(args[3].(decimal.Decimal)))
	}
}

func TestBuildSearch_OnlyMaxPrice(t *testing.T) {
	query, args := buildSearch(catalog.Query{
		MaxPrice: decimal.NewNullDecimal(decimal.NewFromInt(300)),
		Sort:     catalog.SortRating,
	})

	assert.Contains(t, query, "WHERE price <= $1")
	assert.NotContains(t, query, ">=")
	assert.Contains(t, query, "ORDER BY rating DESC, id")
	assert.Len(t, args, 1)
}

func TestBuildSearch_EscapesLikeWildcards(t *testing.T) {
	_, args := buildSearch(catalog.Query{Search: `50%_off\`})

	assert.Equal(t, []any{`50\%\_off\\`}, args)
}

func TestBuildSearch_UnknownSortFallsBackToNewest(t *testing.T) {
	query, _ := buildSearch(catalog.Query{Sort: "bogus"})

	assert.Contains(t, query, "ORDER BY created_at DESC, id")
}
