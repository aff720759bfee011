package domain

import (
	"errors"
	"math"
)

var (
	// ErrSoldOut is returned when an item is added with a purchase limit of zero.
	ErrSoldOut = errors.New("product is sold out")
	// ErrLineNotFound is returned for operations on a product that is not in the cart.
	ErrLineNotFound = errors.New("cart line not found")
)

// Bound is the upper limit on a line's quantity. The zero value is unbounded.
type Bound struct {
	limit   int
	bounded bool
}

// Unbounded returns a bound with no upper limit.
func Unbounded() Bound { return Bound{} }

// UpTo returns a bound of max(0, n).
func UpTo(n int) Bound {
	if n < 0 {
		n = 0
	}
	return Bound{limit: n, bounded: true}
}

// Limit returns the upper limit and whether one applies.
func (b Bound) Limit() (int, bool) { return b.limit, b.bounded }

func (b Bound) upper() int {
	if !b.bounded {
		return math.MaxInt
	}
	return b.limit
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CartItem is what a caller asks to put in the cart. Name and price are
// captured at add time and kept even if the catalog later changes.
type CartItem struct {
	ProductID int64
	Name      string
	UnitPrice int64
	Quantity  int
}

// CartLine is one product in the cart. Quantity is always at least one.
type CartLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// Total returns unit price times quantity.
func (l CartLine) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Mutation reports what a cart operation did to one line.
type Mutation struct {
	ProductID int64
	Before    int
	After     int
	// Clamped is set when the requested quantity exceeded the bound.
	Clamped bool
}

// Changed reports whether the line's quantity moved.
func (m Mutation) Changed() bool { return m.Before != m.After }

// Removed reports whether the line left the cart.
func (m Mutation) Removed() bool { return m.Before > 0 && m.After == 0 }

// Cart holds lines keyed by product id in insertion order. It is not safe for
// concurrent use; the owning session serialises access.
type Cart struct {
	lines []CartLine
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

func (c *Cart) indexOf(productID int64) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add puts item in the cart or raises the existing line, clamping the result
// to [1, bound]. A zero bound is rejected with ErrSoldOut.
func (c *Cart) Add(item CartItem, bound Bound) (Mutation, error) {
	m := Mutation{ProductID: item.ProductID}
	if limit, ok := bound.Limit(); ok && limit <= 0 {
		if i := c.indexOf(item.ProductID); i >= 0 {
			m.Before, m.After = c.lines[i].Quantity, c.lines[i].Quantity
		}
		return m, ErrSoldOut
	}

	want := item.Quantity
	if want < 1 {
		want = 1
	}

	if i := c.indexOf(item.ProductID); i >= 0 {
		m.Before = c.lines[i].Quantity
		requested := m.Before + want
		m.After = clamp(requested, 1, bound.upper())
		m.Clamped = m.After < requested
		c.lines[i].Quantity = m.After
		return m, nil
	}

	m.After = clamp(want, 1, bound.upper())
	m.Clamped = m.After < want
	c.lines = append(c.lines, CartLine{
		ProductID: item.ProductID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		Quantity:  m.After,
	})
	return m, nil
}

// Increment raises a line by one, clamped to [1, bound]. A line already above
// a lowered bound is pulled down to it. A zero bound leaves the line alone;
// removing sold-out lines is the caller's decision.
func (c *Cart) Increment(productID int64, bound Bound) Mutation {
	m := Mutation{ProductID: productID}
	i := c.indexOf(productID)
	if i < 0 {
		return m
	}
	m.Before = c.lines[i].Quantity
	m.After = m.Before
	if limit, ok := bound.Limit(); ok && limit <= 0 {
		m.Clamped = true
		return m
	}
	m.After = clamp(m.Before+1, 1, bound.upper())
	m.Clamped = m.After <= m.Before
	c.lines[i].Quantity = m.After
	return m
}

// Decrement lowers a line by one and removes it when it reaches zero.
func (c *Cart) Decrement(productID int64) Mutation {
	m := Mutation{ProductID: productID}
	i := c.indexOf(productID)
	if i < 0 {
		return m
	}
	m.Before = c.lines[i].Quantity
	m.After = m.Before - 1
	if m.After <= 0 {
		m.After = 0
		c.remove(i)
		return m
	}
	c.lines[i].Quantity = m.After
	return m
}

// SetQuantity sets an existing line to quantity clamped to [0, bound]. A
// result of zero removes the line.
func (c *Cart) SetQuantity(productID int64, quantity int, bound Bound) (Mutation, error) {
	m := Mutation{ProductID: productID}
	i := c.indexOf(productID)
	if i < 0 {
		return m, ErrLineNotFound
	}
	m.Before = c.lines[i].Quantity
	m.After = clamp(quantity, 0, bound.upper())
	m.Clamped = m.After < quantity
	if m.After <= 0 {
		m.After = 0
		c.remove(i)
		return m, nil
	}
	c.lines[i].Quantity = m.After
	return m, nil
}

// Remove deletes a line regardless of its quantity.
func (c *Cart) Remove(productID int64) Mutation {
	m := Mutation{ProductID: productID}
	if i := c.indexOf(productID); i >= 0 {
		m.Before = c.lines[i].Quantity
		c.remove(i)
	}
	return m
}

func (c *Cart) remove(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.lines = nil
}

// Settle takes submitted lines out of the cart after their order went
// through. A line raised since the snapshot keeps the difference.
func (c *Cart) Settle(submitted []CartLine) {
	for _, sl := range submitted {
		i := c.indexOf(sl.ProductID)
		if i < 0 {
			continue
		}
		if c.lines[i].Quantity <= sl.Quantity {
			c.remove(i)
			continue
		}
		c.lines[i].Quantity -= sl.Quantity
	}
}

// Line returns the line for productID.
func (c *Cart) Line(productID int64) (CartLine, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.lines[i], true
	}
	return CartLine{}, false
}

// Quantity returns the quantity held for productID, or zero.
func (c *Cart) Quantity(productID int64) int {
	l, _ := c.Line(productID)
	return l.Quantity
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of distinct products.
func (c *Cart) Len() int { return len(c.lines) }

// Subtotal returns the sum of line totals.
func (c *Cart) Subtotal() int64 {
	return Subtotal(c.lines)
}

// TotalItems returns the sum of quantities.
func (c *Cart) TotalItems() int {
	var n int
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Subtotal returns the sum of line totals for a snapshot of lines.
func Subtotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Total()
	}
	return total
}
