package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type Sort string

const (
	SortNewest Sort = "newest"
	SortPrice  Sort = "price"
	SortRating Sort = "rating"
)

func (s Sort) Valid() bool {
	switch s {
	case SortNewest, SortPrice, SortRating:
		return true
	}
	return false
}

var (
	ErrInvalidSort       = errors.New("sort must be newest, price or rating")
	ErrInvalidPriceRange = errors.New("minimum price exceeds maximum price")
	ErrInvalidPrice      = errors.New("price must be a non-negative number")
)

// URL query parameter names.
const (
	ParamSearch   = "q"
	ParamCategory = "category"
	ParamMinPrice = "min_price"
	ParamMaxPrice = "max_price"
	ParamSort     = "sort"
)

// Filter is what the shopper asked for. Nil bounds mean the catalog's own range.
type Filter struct {
	Search      string           `json:"q,omitempty"`
	CategoryIDs []string         `json:"category,omitempty"`
	MinPrice    *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice    *decimal.Decimal `json:"max_price,omitempty"`
	Sort        Sort             `json:"sort,omitempty"`
}

// ParseFilter reads a filter from URL query values.
func ParseFilter(v url.Values) (Filter, error) {
	f := Filter{
		Search: strings.TrimSpace(v.Get(ParamSearch)),
		Sort:   Sort(v.Get(ParamSort)),
	}
	for _, c := range v[ParamCategory] {
		if c = strings.TrimSpace(c); c != "" {
			f.CategoryIDs = append(f.CategoryIDs, c)
		}
	}
	var err error
	if f.MinPrice, err = parsePrice(v.Get(ParamMinPrice)); err != nil {
		return Filter{}, fmt.Errorf("%s: %w", ParamMinPrice, err)
	}
	if f.MaxPrice, err = parsePrice(v.Get(ParamMaxPrice)); err != nil {
		return Filter{}, fmt.Errorf("%s: %w", ParamMaxPrice, err)
	}
	f = f.normalized()
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func parsePrice(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil, ErrInvalidPrice
	}
	return &d, nil
}

func (f Filter) normalized() Filter {
	if f.Sort == "" {
		f.Sort = SortNewest
	}
	return f
}

func (f Filter) Validate() error {
	f = f.normalized()
	if !f.Sort.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSort, f.Sort)
	}
	if (f.MinPrice != nil && f.MinPrice.IsNegative()) || (f.MaxPrice != nil && f.MaxPrice.IsNegative()) {
		return ErrInvalidPrice
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return ErrInvalidPriceRange
	}
	return nil
}

// Values renders f as URL query values. The default sort is left out.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Search != "" {
		v.Set(ParamSearch, f.Search)
	}
	for _, c := range f.CategoryIDs {
		v.Add(ParamCategory, c)
	}
	if f.MinPrice != nil {
		v.Set(ParamMinPrice, f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		v.Set(ParamMaxPrice, f.MaxPrice.String())
	}
	if f.Sort != "" && f.Sort != SortNewest {
		v.Set(ParamSort, string(f.Sort))
	}
	return v
}

// Key identifies filters that produce the same results.
func (f Filter) Key() string {
	f = f.normalized()
	cats := append([]string(nil), f.CategoryIDs...)
	sort.Strings(cats)
	f.CategoryIDs = cats
	return f.Values().Encode()
}
