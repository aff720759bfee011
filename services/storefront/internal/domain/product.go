package domain

import "sort"

// Product is a catalog entry as the storefront sees it. A nil Stock means the
// product is not stock-limited.
type Product struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Price           int64            `json:"price"`
	Stock           *int             `json:"stock"`
	CategoryID      *int64           `json:"category_id"`
	IsActive        bool             `json:"is_active"`
	ShippingOptions []ShippingOption `json:"shipping_options"`
	Description     string           `json:"description,omitempty"`
	DescriptionText string           `json:"description_text,omitempty"`
	ImageURL        string           `json:"image_url,omitempty"`
}

// SoldOut reports whether the product has a known stock of zero or less.
func (p Product) SoldOut() bool {
	return p.Stock != nil && *p.Stock <= 0
}

// Bound returns the purchase limit derived from the product's stock.
func (p Product) Bound() Bound {
	if p.Stock == nil {
		return Unbounded()
	}
	return UpTo(*p.Stock)
}

// Category groups products for browsing.
type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

// SortCategories orders categories by sort order, then id.
func SortCategories(cats []Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].SortOrder != cats[j].SortOrder {
			return cats[i].SortOrder < cats[j].SortOrder
		}
		return cats[i].ID < cats[j].ID
	})
}

// Catalog is a read-only snapshot of known products keyed by id. Methods never
// mutate the receiver; With returns a new snapshot.
type Catalog map[int64]Product

// NewCatalog builds a snapshot from a product list.
func NewCatalog(products ...Product) Catalog {
	c := make(Catalog, len(products))
	for _, p := range products {
		c[p.ID] = p
	}
	return c
}

// Lookup returns the product with the given id.
func (c Catalog) Lookup(id int64) (Product, bool) {
	p, ok := c[id]
	return p, ok
}

// With returns a copy of the snapshot with p added or replaced.
func (c Catalog) With(products ...Product) Catalog {
	out := make(Catalog, len(c)+len(products))
	for id, p := range c {
		out[id] = p
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out
}

// Active returns the active products sorted by id.
func (c Catalog) Active() []Product {
	out := make([]Product, 0, len(c))
	for _, p := range c {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
