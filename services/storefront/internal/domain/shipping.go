package domain

import (
	"fmt"

	"github.com/akaushop/storefront/pkg/validator"
)

// ShippingMethod is a fulfillment channel accepted by the shop backend.
type ShippingMethod string

const (
	ShippingPost      ShippingMethod = "post"
	ShippingCVS711    ShippingMethod = "cvs_711"
	ShippingCVSFamily ShippingMethod = "cvs_family"
	ShippingCourier   ShippingMethod = "courier"
)

// canonicalMethods is the display and selection order of shipping methods.
var canonicalMethods = [...]ShippingMethod{
	ShippingPost,
	ShippingCVS711,
	ShippingCVSFamily,
	ShippingCourier,
}

var methodLabels = map[ShippingMethod]string{
	ShippingPost:      "Postal mail",
	ShippingCVS711:    "7-ELEVEN pickup",
	ShippingCVSFamily: "FamilyMart pickup",
	ShippingCourier:   "Home courier",
}

func init() {
	validator.RegisterValidation("shipping_method", func(value string) bool {
		_, ok := ParseShippingMethod(value)
		return ok
	})
}

// AllShippingMethods returns every method in canonical order.
func AllShippingMethods() []ShippingMethod {
	out := make([]ShippingMethod, len(canonicalMethods))
	copy(out, canonicalMethods[:])
	return out
}

// ParseShippingMethod maps a wire value onto the closed method set.
func ParseShippingMethod(s string) (ShippingMethod, bool) {
	m := ShippingMethod(s)
	_, ok := methodLabels[m]
	return m, ok
}

// Label returns the human readable name of the method.
func (m ShippingMethod) Label() string {
	if l, ok := methodLabels[m]; ok {
		return l
	}
	return string(m)
}

// IsCVS reports whether the method is a convenience-store pickup.
func (m ShippingMethod) IsCVS() bool {
	return m == ShippingCVS711 || m == ShippingCVSFamily
}

// UsesPostAddress reports whether the method ships to a street address.
func (m ShippingMethod) UsesPostAddress() bool {
	return m == ShippingPost || m == ShippingCourier
}

// ShippingOption is one method a product can be shipped with.
type ShippingOption struct {
	Method     ShippingMethod `json:"method" validate:"required,shipping_method"`
	Fee        int64          `json:"fee" validate:"gte=0"`
	RegionNote string         `json:"region_note,omitempty" validate:"max=200"`
}

// ResolutionStatus describes how conclusive a shipping resolution is.
type ResolutionStatus string

const (
	// ResolutionOpen means the cart is empty and nothing constrains the choice.
	ResolutionOpen ResolutionStatus = "open"
	// ResolutionResolved means at least one method is shared by every line.
	ResolutionResolved ResolutionStatus = "resolved"
	// ResolutionUnknown means some line's product is not loaded yet.
	ResolutionUnknown ResolutionStatus = "unknown"
	// ResolutionNone means the loaded products share no method.
	ResolutionNone ResolutionStatus = "none"
)

// MethodQuote is an available method with its order-level fee.
type MethodQuote struct {
	Method     ShippingMethod `json:"method"`
	Label      string         `json:"label"`
	Fee        int64          `json:"fee"`
	RegionNote string         `json:"region_note,omitempty"`
}

// ShippingResolution is the outcome of intersecting every line's methods.
type ShippingResolution struct {
	Status  ResolutionStatus `json:"status"`
	Options []MethodQuote    `json:"options"`
}

// ResolveShipping computes the methods every cart line supports and the fee
// for each. The fee of a method is the highest fee any line charges for it.
func ResolveShipping(lines []CartLine, catalog Catalog) ShippingResolution {
	if len(lines) == 0 {
		methods := AllShippingMethods()
		opts := make([]MethodQuote, 0, len(methods))
		for _, m := range methods {
			opts = append(opts, MethodQuote{Method: m, Label: m.Label()})
		}
		return ShippingResolution{Status: ResolutionOpen, Options: opts}
	}

	type acc struct {
		count int
		fee   int64
		note  string
	}
	seen := make(map[ShippingMethod]*acc, len(canonicalMethods))

	for _, line := range lines {
		p, ok := catalog.Lookup(line.ProductID)
		if !ok {
			return ShippingResolution{Status: ResolutionUnknown, Options: []MethodQuote{}}
		}
		// A product may list a method twice; count it once per line.
		lineMethods := make(map[ShippingMethod]struct{}, len(p.ShippingOptions))
		for _, opt := range p.ShippingOptions {
			a := seen[opt.Method]
			if a == nil {
				a = &acc{}
				seen[opt.Method] = a
			}
			if _, dup := lineMethods[opt.Method]; !dup {
				lineMethods[opt.Method] = struct{}{}
				a.count++
			}
			if opt.Fee > a.fee {
				a.fee = opt.Fee
			}
			if a.note == "" {
				a.note = opt.RegionNote
			}
		}
	}

	opts := make([]MethodQuote, 0, len(canonicalMethods))
	for _, m := range canonicalMethods {
		a := seen[m]
		if a == nil || a.count != len(lines) {
			continue
		}
		q := MethodQuote{Method: m, Label: m.Label(), Fee: a.fee}
		if m == ShippingCourier {
			q.RegionNote = a.note
		}
		opts = append(opts, q)
	}
	if len(opts) == 0 {
		return ShippingResolution{Status: ResolutionNone, Options: opts}
	}
	return ShippingResolution{Status: ResolutionResolved, Options: opts}
}

// Methods returns the available methods in canonical order.
func (r ShippingResolution) Methods() []ShippingMethod {
	out := make([]ShippingMethod, 0, len(r.Options))
	for _, o := range r.Options {
		out = append(out, o.Method)
	}
	return out
}

// Allows reports whether m is currently available.
func (r ShippingResolution) Allows(m ShippingMethod) bool {
	_, ok := r.Fee(m)
	return ok
}

// Fee returns the order-level fee for m.
func (r ShippingResolution) Fee(m ShippingMethod) (int64, bool) {
	for _, o := range r.Options {
		if o.Method == m {
			return o.Fee, true
		}
	}
	return 0, false
}

// Selection is the outcome of re-checking the chosen method after the cart or
// catalog changed.
type Selection struct {
	Method  ShippingMethod `json:"method,omitempty"`
	Changed bool           `json:"changed"`
	Blocked bool           `json:"blocked"`
	Notice  string         `json:"notice,omitempty"`
}

// Reselect keeps current when it is still available, otherwise falls back to
// the first available method. An unknown resolution never forces a switch.
// A switch is announced only when current was confirmed, meaning the buyer
// picked it or a resolved cart allowed it; any other default is replaced
// silently.
func Reselect(current ShippingMethod, confirmed bool, res ShippingResolution) Selection {
	switch res.Status {
	case ResolutionUnknown:
		return Selection{Method: current}
	case ResolutionNone:
		return Selection{
			Method:  current,
			Blocked: true,
			Notice:  "No shipping method supports every item in your cart. Remove or replace items to continue.",
		}
	}

	if current != "" && res.Allows(current) {
		return Selection{Method: current}
	}

	next := res.Options[0].Method
	sel := Selection{Method: next, Changed: next != current}
	if current != "" && confirmed {
		sel.Notice = fmt.Sprintf("%s is no longer available for your cart; switched to %s.",
			current.Label(), next.Label())
	}
	return sel
}
