package collection

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes the two collections a session owns.
type Kind string

const (
	KindCart     Kind = "cart"
	KindWishlist Kind = "wishlist"
)

// ProductSnapshot is the denormalized copy of a product's display fields taken
// when the item was added. It is never refreshed from the live catalog.
type ProductSnapshot struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url,omitempty"`
	Brand    string          `json:"brand,omitempty"`
}

// LineItem is one product in a cart or wishlist.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Snapshot  ProductSnapshot `json:"snapshot"`
	AddedAt   time.Time       `json:"added_at"`
}

// LineTotal returns unit price times quantity.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.Snapshot.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SyncState reports how far an item's last local change has travelled.
type SyncState string

const (
	SyncLocalOnly SyncState = "local"
	SyncPending   SyncState = "pending"
	SyncSynced    SyncState = "synced"
	SyncFailed    SyncState = "failed"
)

// Entry pairs a line item with its sync state for display.
type Entry struct {
	LineItem
	SyncState SyncState `json:"sync_state"`
}

// View is a point-in-time copy of a collection.
type View struct {
	Kind          Kind            `json:"kind"`
	Owner         string          `json:"owner,omitempty"`
	Items         []Entry         `json:"items"`
	TotalQuantity int             `json:"total_quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}
