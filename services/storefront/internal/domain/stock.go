package domain

// Availability classifies what the storefront knows about a line's stock.
type Availability string

const (
	AvailabilityKnown     Availability = "known"
	AvailabilityUnlimited Availability = "unlimited"
	AvailabilitySoldOut   Availability = "sold_out"
	AvailabilityUnknown   Availability = "unknown"
)

// BoundFor derives the purchase limit for productID from the latest catalog
// snapshot. A product missing from the snapshot fails closed: the limit is the
// quantity already in the cart, so it can shrink but never grow.
func BoundFor(catalog Catalog, productID int64, inCart int) (Bound, Availability) {
	p, ok := catalog.Lookup(productID)
	switch {
	case !ok:
		return UpTo(inCart), AvailabilityUnknown
	case p.Stock == nil:
		return Unbounded(), AvailabilityUnlimited
	case p.SoldOut():
		return UpTo(0), AvailabilitySoldOut
	default:
		return UpTo(*p.Stock), AvailabilityKnown
	}
}

// LineView is a cart line annotated against the catalog.
type LineView struct {
	CartLine
	LineTotal    int64        `json:"line_total"`
	Availability Availability `json:"availability"`
	Stock        *int         `json:"stock,omitempty"`
	Remaining    *int         `json:"remaining,omitempty"`
	AtLimit      bool         `json:"at_limit"`
	OverStock    bool         `json:"over_stock"`
	CanIncrement bool         `json:"can_increment"`
}

// ReconcileLines annotates each line with its availability in catalog.
func ReconcileLines(lines []CartLine, catalog Catalog) []LineView {
	out := make([]LineView, 0, len(lines))
	for _, l := range lines {
		bound, avail := BoundFor(catalog, l.ProductID, l.Quantity)
		v := LineView{CartLine: l, LineTotal: l.Total(), Availability: avail}

		if limit, ok := bound.Limit(); ok {
			v.AtLimit = l.Quantity >= limit
			if avail == AvailabilityKnown || avail == AvailabilitySoldOut {
				stock := limit
				remaining := limit - l.Quantity
				if remaining < 0 {
					remaining = 0
				}
				v.Stock = &stock
				v.Remaining = &remaining
				v.OverStock = l.Quantity > limit
			}
		}
		v.CanIncrement = avail != AvailabilityUnknown && !v.AtLimit
		out = append(out, v)
	}
	return out
}

// StockShortfall is a line whose quantity exceeds known stock.
type StockShortfall struct {
	ProductID int64
	Name      string
	Stock     int
	Requested int
}

// Shortfalls lists lines that ask for more than known stock. Lines with
// unlimited or unknown stock are never reported.
func Shortfalls(lines []CartLine, catalog Catalog) []StockShortfall {
	var out []StockShortfall
	for _, l := range lines {
		p, ok := catalog.Lookup(l.ProductID)
		if !ok || p.Stock == nil {
			continue
		}
		stock := *p.Stock
		if stock < 0 {
			stock = 0
		}
		if l.Quantity > stock {
			out = append(out, StockShortfall{
				ProductID: l.ProductID,
				Name:      l.Name,
				Stock:     stock,
				Requested: l.Quantity,
			})
		}
	}
	return out
}
