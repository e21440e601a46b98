// Package cart holds the pending order contents of a session before checkout.
//
// A line's quantity always stays within [1, stock] where stock is the
// product snapshot taken when the line was last added to.
package cart

import (
	"errors"
	"sync"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrExceedsStock    = errors.New("quantity exceeds available stock")
	ErrLineNotFound    = errors.New("product is not in the cart")
)

// Line is one (product, quantity) pairing
type Line struct {
	Product  domain.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// Subtotal is price × quantity
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered collection of lines, unique per product id
type Cart struct {
	mu         sync.RWMutex
	lines      []Line
	submitting bool
}

// New returns an empty cart
func New() *Cart {
	return &Cart{}
}

func (c *Cart) indexOf(productID string) int {
	for i, line := range c.lines {
		if line.Product.ID == productID {
			return i
		}
	}
	return -1
}

// AddToCart appends a line for product or increments the existing one.
// quantity is raised to 1 when lower and the resulting line is capped at
// product.Stock. The returned line is the state after the change.
func (c *Cart) AddToCart(product domain.Product, quantity int) (Line, error) {
	if !product.InStock() {
		return Line{}, ErrOutOfStock
	}
	if quantity < 1 {
		quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(product.ID); i >= 0 {
		line := &c.lines[i]
		line.Product = product
		line.Quantity = min(line.Quantity+quantity, product.Stock)
		return *line, nil
	}

	line := Line{Product: product, Quantity: min(quantity, product.Stock)}
	c.lines = append(c.lines, line)
	return line, nil
}

// UpdateQuantity sets a line's quantity. Out of range values leave the line untouched.
func (c *Cart) UpdateQuantity(productID string, quantity int) (Line, error) {
	if quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(productID)
	if i < 0 {
		return Line{}, ErrLineNotFound
	}
	if quantity > c.lines[i].Product.Stock {
		return c.lines[i], ErrExceedsStock
	}

	c.lines[i].Quantity = quantity
	return c.lines[i], nil
}

// RemoveFromCart deletes a line, reporting whether it existed
func (c *Cart) RemoveFromCart(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

// ClearCart empties every line
func (c *Cart) ClearCart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// RemoveOrdered takes submitted lines out of the cart. Each matching line
// loses the submitted quantity and is dropped when nothing is left, so lines
// added or raised while the order was in flight survive.
func (c *Cart) RemoveOrdered(submitted []Line) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sent := range submitted {
		i := c.indexOf(sent.Product.ID)
		if i < 0 {
			continue
		}
		if c.lines[i].Quantity > sent.Quantity {
			c.lines[i].Quantity -= sent.Quantity
			continue
		}
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// Lines returns a copy of the lines in insertion order
func (c *Cart) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines) == 0
}

// TotalItems is the sum of all line quantities
func (c *Cart) TotalItems() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := 0
	for _, line := range c.lines {
		total += line.Quantity
	}
	return total
}

// TotalPrice is the exact sum of price × quantity over all lines
func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// BeginCheckout marks the cart as being submitted. It returns false when a
// submission is already in flight.
func (c *Cart) BeginCheckout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitting {
		return false
	}
	c.submitting = true
	return true
}

// EndCheckout clears the in-flight mark set by BeginCheckout
func (c *Cart) EndCheckout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
}
