// Package catalog turns shopper filters into catalog queries and reports the
// outcome as a tagged result the page can render directly.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/example/phone-storefront/internal/collection"
	"github.com/example/phone-storefront/internal/remote"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	CategoryID  string          `json:"category_id,omitempty"`
	Rating      float64         `json:"rating"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Snapshot copies the fields a cart or wishlist line keeps.
func (p Product) Snapshot() collection.ProductSnapshot {
	return collection.ProductSnapshot{
		Name:     p.Name,
		Price:    p.Price,
		ImageURL: p.ImageURL,
		Brand:    p.Brand,
	}
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Query is a filter with its price bounds resolved.
type Query struct {
	Search      string
	CategoryIDs []string
	MinPrice    decimal.NullDecimal
	MaxPrice    decimal.NullDecimal
	Sort        Sort
}

// Querier is the remote catalog.
type Querier interface {
	Search(ctx context.Context, q Query) ([]Product, error)
	PriceBounds(ctx context.Context) (min, max decimal.Decimal, err error)
	Categories(ctx context.Context) ([]Category, error)
	Product(ctx context.Context, id string) (*Product, error)
	Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

type State string

const (
	StateLoading   State = "loading"
	StateError     State = "error"
	StateEmpty     State = "empty"
	StatePopulated State = "populated"
)

// Result is one catalog query outcome. Empty is not an error.
type Result struct {
	State    State     `json:"state"`
	Products []Product `json:"products"`
	Err      error     `json:"-"`
	Message  string    `json:"error,omitempty"`
}

func errorResult(err error) Result {
	return Result{State: StateError, Products: []Product{}, Err: err, Message: err.Error()}
}

type Composer struct {
	querier Querier
	timeout time.Duration
	logger  *zap.Logger
	group   singleflight.Group
}

func NewComposer(q Querier, timeout time.Duration, logger *zap.Logger) *Composer {
	return &Composer{querier: q, timeout: timeout, logger: logger.Named("catalog")}
}

// Query runs f against the catalog. Identical concurrent queries share one remote call.
func (c *Composer) Query(ctx context.Context, f Filter) Result {
	if err := f.Validate(); err != nil {
		return errorResult(err)
	}
	f = f.normalized()

	// The shared call outlives any one caller; each caller waits on its own context.
	ch := c.group.DoChan(f.Key(), func() (any, error) {
		callCtx, cancel := remote.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		q, err := c.resolve(callCtx, f)
		if err != nil {
			return nil, err
		}
		products, err := c.querier.Search(callCtx, q)
		if err != nil {
			return nil, remote.ReadError("search products", err)
		}
		return products, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return errorResult(ctx.Err())
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		c.logger.Warn("catalog query failed", zap.String("filter", f.Key()), zap.Error(err))
		return errorResult(err)
	}
	products := v.([]Product)
	c.logger.Debug("catalog query", zap.String("filter", f.Key()), zap.Int("results", len(products)), zap.Bool("shared", shared))
	if len(products) == 0 {
		return Result{State: StateEmpty, Products: []Product{}}
	}
	return Result{State: StatePopulated, Products: append([]Product(nil), products...)}
}

// resolve fills a missing price bound from the catalog's own range.
func (c *Composer) resolve(ctx context.Context, f Filter) (Query, error) {
	q := Query{Search: f.Search, CategoryIDs: f.CategoryIDs, Sort: f.Sort}
	if f.MinPrice == nil && f.MaxPrice == nil {
		return q, nil
	}
	if f.MinPrice != nil && f.MaxPrice != nil {
		q.MinPrice = decimal.NewNullDecimal(*f.MinPrice)
		q.MaxPrice = decimal.NewNullDecimal(*f.MaxPrice)
		return q, nil
	}
	lo, hi, err := c.querier.PriceBounds(ctx)
	if err != nil {
		return Query{}, remote.ReadError("price bounds", err)
	}
	if f.MinPrice != nil {
		lo = *f.MinPrice
	}
	if f.MaxPrice != nil {
		hi = *f.MaxPrice
	}
	q.MinPrice = decimal.NewNullDecimal(lo)
	q.MaxPrice = decimal.NewNullDecimal(hi)
	return q, nil
}

func (c *Composer) PriceBounds(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	callCtx, cancel := remote.WithTimeout(ctx, c.timeout)
	defer cancel()
	lo, hi, err := c.querier.PriceBounds(callCtx)
	if err != nil {
		return decimal.Zero, decimal.Zero, remote.ReadError("price bounds", err)
	}
	return lo, hi, nil
}

func (c *Composer) Categories(ctx context.Context) ([]Category, error) {
	callCtx, cancel := remote.WithTimeout(ctx, c.timeout)
	defer cancel()
	cats, err := c.querier.Categories(callCtx)
	if err != nil {
		return nil, remote.ReadError("categories", err)
	}
	return cats, nil
}

func (c *Composer) Product(ctx context.Context, id string) (*Product, error) {
	callCtx, cancel := remote.WithTimeout(ctx, c.timeout)
	defer cancel()
	p, err := c.querier.Product(callCtx, id)
	if errors.Is(err, ErrProductNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, remote.ReadError("product", err)
	}
	return p, nil
}

// Prices returns live prices for ids. Unknown ids are absent from the map.
func (c *Composer) Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	callCtx, cancel := remote.WithTimeout(ctx, c.timeout)
	defer cancel()
	prices, err := c.querier.Prices(callCtx, ids)
	if err != nil {
		return nil, remote.ReadError("prices", err)
	}
	return prices, nil
}
