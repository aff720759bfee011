package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAdminSessionInvalid is returned when there is no usable admin session.
var ErrAdminSessionInvalid = errors.New("admin session invalid")

// AdminSession is an unlocked admin console. The zero value is signed out.
type AdminSession struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAdminSession starts a session at now that lasts ttl. When the token is a
// JWT carrying an earlier exp claim, that claim wins. The signature is not
// checked here; the shop backend remains the verifier.
func NewAdminSession(token string, now time.Time, ttl time.Duration) AdminSession {
	expires := now.Add(ttl)
	if exp, ok := tokenExpiry(token); ok && exp.Before(expires) {
		expires = exp
	}
	return AdminSession{Token: token, ExpiresAt: expires}
}

func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Valid reports whether the session can be used at now.
func (s AdminSession) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDone      OrderStatus = "done"
	OrderCancelled OrderStatus = "cancelled"
)

var orderStatusLabels = map[OrderStatus]string{
	OrderPending:   "Pending",
	OrderPaid:      "Paid",
	OrderShipped:   "Shipped",
	OrderDone:      "Completed",
	OrderCancelled: "Cancelled",
}

// ParseOrderStatus validates a status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := orderStatusLabels[st]; !ok {
		return "", fmt.Errorf("invalid order status %q", s)
	}
	return st, nil
}

// Label returns the display name; unknown statuses are shown as-is.
func (s OrderStatus) Label() string {
	if l, ok := orderStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// AdminOrder is an order as listed in the admin console.
type AdminOrder struct {
	ID                  int64          `json:"id"`
	Status              OrderStatus    `json:"status"`
	StatusLabel         string         `json:"status_label"`
	CustomerName        string         `json:"customer_name"`
	CustomerEmail       string         `json:"customer_email"`
	ShippingMethod      ShippingMethod `json:"shipping_method"`
	ShippingLabel       string         `json:"shipping_label"`
	ShippingAddress     string         `json:"shipping_address,omitempty"`
	RecipientName       string         `json:"recipient_name"`
	RecipientPhone      string         `json:"recipient_phone"`
	ShippingPostAddress *string        `json:"shipping_post_address"`
	CVSBrand            *string        `json:"cvs_brand"`
	CVSStoreID          *string        `json:"cvs_store_id"`
	CVSStoreName        *string        `json:"cvs_store_name"`
	TotalAmount         int64          `json:"total_amount"`
}

// WithLabels fills the display labels from the status and method.
func (o AdminOrder) WithLabels() AdminOrder {
	if o.Status == "" {
		o.Status = OrderPending
	}
	o.StatusLabel = o.Status.Label()
	o.ShippingLabel = o.ShippingMethod.Label()
	return o
}

// AdminOrderItem is one line of an order in the admin console.
type AdminOrderItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

// AdminOrderDetail is an order with its lines.
type AdminOrderDetail struct {
	Order AdminOrder       `json:"order"`
	Items []AdminOrderItem `json:"items"`
}

// ProductInput is the admin payload for creating a product.
type ProductInput struct {
	Name            string           `json:"name" validate:"required,min=1,max=200"`
	CategoryID      *int64           `json:"category_id" validate:"omitempty,gt=0"`
	Stock           int              `json:"stock_qty" validate:"gte=0,lte=999999"`
	Price           int64            `json:"price" validate:"gte=0,lte=99999999"`
	Description     string           `json:"description" validate:"max=1000"`
	DescriptionText string           `json:"description_text" validate:"max=4000"`
	ImageURL        string           `json:"image_url" validate:"max=500"`
	IsActive        bool             `json:"is_active"`
	ShippingOptions []ShippingOption `json:"shipping_options" validate:"dive"`
}

// ProductPatch is the admin payload for a partial product update.
type ProductPatch struct {
	Name            *string           `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	CategoryID      *int64            `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	Stock           *int              `json:"stock_qty,omitempty" validate:"omitempty,gte=0,lte=999999"`
	Price           *int64            `json:"price,omitempty" validate:"omitempty,gte=0,lte=99999999"`
	Description     *string           `json:"description,omitempty" validate:"omitempty,max=1000"`
	DescriptionText *string           `json:"description_text,omitempty" validate:"omitempty,max=4000"`
	ImageURL        *string           `json:"image_url,omitempty" validate:"omitempty,max=500"`
	IsActive        *bool             `json:"is_active,omitempty"`
	ShippingOptions *[]ShippingOption `json:"shipping_options,omitempty" validate:"omitempty,dive"`
}

// ErrDuplicateShippingMethod is returned when a product lists a method twice.
var ErrDuplicateShippingMethod = errors.New("duplicate shipping method")

// CheckShippingOptions rejects option lists naming the same method twice.
func CheckShippingOptions(opts []ShippingOption) error {
	seen := make(map[ShippingMethod]struct{}, len(opts))
	for _, o := range opts {
		if _, dup := seen[o.Method]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateShippingMethod, o.Method)
		}
		seen[o.Method] = struct{}{}
	}
	return nil
}

// CategoryInput is the admin payload for creating or renaming a category.
type CategoryInput struct {
	Name      string `json:"name" validate:"required,min=1,max=50"`
	SortOrder int    `json:"sort_order"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

// CategoryPatch is the admin payload for a partial category update.
type CategoryPatch struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=50"`
	SortOrder *int    `json:"sort_order,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// AdminCategory is a category as the admin console sees it.
type AdminCategory struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	IsActive  bool   `json:"is_active"`
}
