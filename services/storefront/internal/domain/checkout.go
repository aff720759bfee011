package domain

import (
	"fmt"
	"strings"

	"github.com/akaushop/storefront/pkg/validator"
)

// Draft is the in-progress checkout form.
type Draft struct {
	CustomerName         string         `json:"customer_name"`
	CustomerEmail        string         `json:"customer_email"`
	CustomerPhone        string         `json:"customer_phone"`
	RecipientSameAsBuyer bool           `json:"recipient_same_as_buyer"`
	RecipientName        string         `json:"recipient_name"`
	RecipientPhone       string         `json:"recipient_phone"`
	ShippingMethod       ShippingMethod `json:"shipping_method"`
	PostAddress          string         `json:"post_address"`
	CVSCity              string         `json:"cvs_city"`
	CVSDistrict          string         `json:"cvs_district"`
	CVSStoreName         string         `json:"cvs_store_name"`
	CVSStoreID           string         `json:"cvs_store_id"`
}

// DraftPatch carries the fields a client wants to change. Nil fields are kept.
type DraftPatch struct {
	CustomerName         *string `json:"customer_name" validate:"omitempty,max=100"`
	CustomerEmail        *string `json:"customer_email" validate:"omitempty,max=254"`
	CustomerPhone        *string `json:"customer_phone" validate:"omitempty,max=30"`
	RecipientSameAsBuyer *bool   `json:"recipient_same_as_buyer"`
	RecipientName        *string `json:"recipient_name" validate:"omitempty,max=100"`
	RecipientPhone       *string `json:"recipient_phone" validate:"omitempty,max=30"`
	PostAddress          *string `json:"post_address" validate:"omitempty,max=300"`
	CVSCity              *string `json:"cvs_city" validate:"omitempty,max=50"`
	CVSDistrict          *string `json:"cvs_district" validate:"omitempty,max=50"`
	CVSStoreName         *string `json:"cvs_store_name" validate:"omitempty,max=100"`
	CVSStoreID           *string `json:"cvs_store_id" validate:"omitempty,max=50"`
}

// Apply returns d with the patch applied. Moving to a different CVS city
// clears the district unless the patch sets one too.
func (d Draft) Apply(p DraftPatch) Draft {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&d.CustomerName, p.CustomerName)
	set(&d.CustomerEmail, p.CustomerEmail)
	set(&d.CustomerPhone, p.CustomerPhone)
	set(&d.RecipientName, p.RecipientName)
	set(&d.RecipientPhone, p.RecipientPhone)
	set(&d.PostAddress, p.PostAddress)
	set(&d.CVSStoreName, p.CVSStoreName)
	set(&d.CVSStoreID, p.CVSStoreID)
	if p.RecipientSameAsBuyer != nil {
		d.RecipientSameAsBuyer = *p.RecipientSameAsBuyer
	}
	if p.CVSCity != nil && strings.TrimSpace(*p.CVSCity) != strings.TrimSpace(d.CVSCity) {
		d.CVSCity = *p.CVSCity
		d.CVSDistrict = ""
	}
	set(&d.CVSDistrict, p.CVSDistrict)
	return d
}

// Normalized returns d with whitespace trimmed and recipient defaults applied.
func (d Draft) Normalized() Draft {
	for _, f := range []*string{
		&d.CustomerName, &d.CustomerEmail, &d.CustomerPhone,
		&d.RecipientName, &d.RecipientPhone, &d.PostAddress,
		&d.CVSCity, &d.CVSDistrict, &d.CVSStoreName, &d.CVSStoreID,
	} {
		*f = strings.TrimSpace(*f)
	}
	if d.RecipientSameAsBuyer {
		d.RecipientName = d.CustomerName
		d.RecipientPhone = d.CustomerPhone
	}
	if d.RecipientPhone == "" {
		d.RecipientPhone = d.CustomerPhone
	}
	return d
}

// ValidationRule names the checkout rule that rejected a draft.
type ValidationRule string

const (
	RuleCartEmpty         ValidationRule = "cart_empty"
	RuleNoCommonShipping  ValidationRule = "no_common_shipping"
	RuleMethodUnavailable ValidationRule = "method_unavailable"
	RuleCustomerName      ValidationRule = "customer_name"
	RuleCustomerContact   ValidationRule = "customer_contact"
	RuleRecipientName     ValidationRule = "recipient_name"
	RuleDestination       ValidationRule = "destination"
	RuleStockExceeded     ValidationRule = "stock_exceeded"
)

// ValidationError is the first failing checkout rule. Field is the form field
// that should receive focus.
type ValidationError struct {
	Rule    ValidationRule `json:"rule"`
	Field   string         `json:"field"`
	Message string         `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// CheckoutState is everything the validator looks at besides the draft.
type CheckoutState struct {
	Lines        []CartLine
	Catalog      Catalog
	Shipping     ShippingResolution
	RequirePhone bool
}

// Validate runs the checkout rules in priority order and returns the first
// failure, or nil.
func (d Draft) Validate(st CheckoutState) *ValidationError {
	d = d.Normalized()
	fail := func(rule ValidationRule, field, msg string) *ValidationError {
		return &ValidationError{Rule: rule, Field: field, Message: msg}
	}

	if len(st.Lines) == 0 {
		return fail(RuleCartEmpty, "cart", "Your cart is empty.")
	}

	switch st.Shipping.Status {
	case ResolutionUnknown:
		return fail(RuleNoCommonShipping, "shipping_method",
			"Shipping options are still loading for some items. Please try again in a moment.")
	case ResolutionNone:
		return fail(RuleNoCommonShipping, "shipping_method",
			"No shipping method supports every item in your cart. Remove or replace items to continue.")
	}

	if d.ShippingMethod == "" || !st.Shipping.Allows(d.ShippingMethod) {
		return fail(RuleMethodUnavailable, "shipping_method", "Please choose an available shipping method.")
	}

	if d.CustomerName == "" {
		return fail(RuleCustomerName, "customer_name", "Please enter your name.")
	}

	if d.CustomerEmail == "" {
		return fail(RuleCustomerContact, "customer_email", "Please enter your email.")
	}
	if validator.Var(d.CustomerEmail, "email") != nil {
		return fail(RuleCustomerContact, "customer_email", "Please enter a valid email address.")
	}
	if st.RequirePhone && d.CustomerPhone == "" {
		return fail(RuleCustomerContact, "customer_phone", "Please enter a contact phone number.")
	}

	if d.RecipientName == "" {
		return fail(RuleRecipientName, "recipient_name", "Please enter the recipient's name.")
	}

	switch {
	case d.ShippingMethod.UsesPostAddress():
		if d.PostAddress == "" {
			return fail(RuleDestination, "post_address", "Please enter the delivery address.")
		}
	case d.ShippingMethod.IsCVS():
		if d.CVSCity == "" {
			return fail(RuleDestination, "cvs_city", "Please choose the pickup city.")
		}
		if d.CVSDistrict == "" {
			return fail(RuleDestination, "cvs_district", "Please enter the pickup district.")
		}
		if d.CVSStoreName == "" {
			return fail(RuleDestination, "cvs_store_name", "Please enter the pickup store name.")
		}
	}

	if short := Shortfalls(st.Lines, st.Catalog); len(short) > 0 {
		s := short[0]
		return fail(RuleStockExceeded, "items",
			fmt.Sprintf("%q has only %d in stock but your cart holds %d. Reduce the quantity to continue.",
				s.Name, s.Stock, s.Requested))
	}

	return nil
}

// OrderItem is one line of an order request.
type OrderItem struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

// OrderRequest is the body of POST /orders. Destination fields that do not
// belong to the chosen method are always sent as null.
type OrderRequest struct {
	CustomerName        string         `json:"customer_name"`
	CustomerEmail       string         `json:"customer_email"`
	CustomerPhone       *string        `json:"customer_phone,omitempty"`
	ShippingMethod      ShippingMethod `json:"shipping_method"`
	ShippingAddress     string         `json:"shipping_address"`
	RecipientName       string         `json:"recipient_name"`
	RecipientPhone      string         `json:"recipient_phone"`
	ShippingPostAddress *string        `json:"shipping_post_address"`
	CVSStoreID          *string        `json:"cvs_store_id"`
	CVSStoreName        *string        `json:"cvs_store_name"`
	Items               []OrderItem    `json:"items"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// BuildOrderRequest serialises a validated draft and the cart lines.
func BuildOrderRequest(d Draft, lines []CartLine) OrderRequest {
	d = d.Normalized()
	req := OrderRequest{
		CustomerName:   d.CustomerName,
		CustomerEmail:  d.CustomerEmail,
		CustomerPhone:  optional(d.CustomerPhone),
		ShippingMethod: d.ShippingMethod,
		RecipientName:  d.RecipientName,
		RecipientPhone: d.RecipientPhone,
	}

	switch {
	case d.ShippingMethod.UsesPostAddress():
		req.ShippingAddress = d.PostAddress
		req.ShippingPostAddress = optional(d.PostAddress)
	case d.ShippingMethod.IsCVS():
		req.ShippingAddress = d.CVSCity + d.CVSDistrict
		req.CVSStoreName = optional(d.CVSStoreName)
		req.CVSStoreID = optional(d.CVSStoreID)
	}

	index := make(map[int64]int, len(lines))
	req.Items = make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			req.Items[i].Qty += l.Quantity
			continue
		}
		index[l.ProductID] = len(req.Items)
		req.Items = append(req.Items, OrderItem{ProductID: l.ProductID, Qty: l.Quantity})
	}
	return req
}

// Quote is the price breakdown shown before submitting.
type Quote struct {
	Subtotal       int64          `json:"subtotal"`
	ShippingMethod ShippingMethod `json:"shipping_method,omitempty"`
	ShippingFee    int64          `json:"shipping_fee"`
	Total          int64          `json:"total"`
}

// NewQuote prices lines with the fee of method under res. An unavailable
// method contributes no fee.
func NewQuote(lines []CartLine, res ShippingResolution, method ShippingMethod) Quote {
	q := Quote{Subtotal: Subtotal(lines)}
	if fee, ok := res.Fee(method); ok {
		q.ShippingMethod = method
		q.ShippingFee = fee
	}
	q.Total = q.Subtotal + q.ShippingFee
	return q
}

// OrderResult is what the backend returns for a created order.
type OrderResult struct {
	OrderID     int64 `json:"order_id"`
	TotalAmount int64 `json:"total_amount"`
}
