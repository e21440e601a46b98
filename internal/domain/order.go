package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus describes fulfillment progress
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every selectable status, in display order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusInProgress,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// legacy labels written by earlier iterations of the backend
var statusAliases = map[string]OrderStatus{
	"pending":     OrderStatusPending,
	"in_progress": OrderStatusInProgress,
	"in-progress": OrderStatusInProgress,
	"en_cours":    OrderStatusInProgress,
	"processing":  OrderStatusInProgress,
	"delivered":   OrderStatusDelivered,
	"livree":      OrderStatusDelivered,
	"completed":   OrderStatusDelivered,
	"cancelled":   OrderStatusCancelled,
	"canceled":    OrderStatusCancelled,
	"annulee":     OrderStatusCancelled,
}

// ParseOrderStatus normalizes a status string, reporting whether it is known
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return status, ok
}

// StatusWireNames maps canonical statuses to the values a backend expects.
// Keys may be any accepted spelling; values are sent verbatim.
func StatusWireNames(raw map[string]string) (map[OrderStatus]string, error) {
	names := make(map[OrderStatus]string, len(raw))
	for key, value := range raw {
		status, ok := ParseOrderStatus(key)
		if !ok {
			return nil, fmt.Errorf("unknown order status %q", key)
		}
		if value = strings.TrimSpace(value); value == "" {
			return nil, fmt.Errorf("empty wire name for order status %q", key)
		}
		names[status] = value
	}
	return names, nil
}

// UnmarshalJSON maps legacy labels onto the canonical statuses. Unknown
// values are kept verbatim so they can still be displayed.
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if status, ok := ParseOrderStatus(raw); ok {
		*s = status
		return nil
	}
	*s = OrderStatus(raw)
	return nil
}

// Valid reports whether s is one of the canonical statuses
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label returns the human readable status name
func (s OrderStatus) Label() string {
	normalized, ok := ParseOrderStatus(string(s))
	if !ok {
		return string(s)
	}
	switch normalized {
	case OrderStatusPending:
		return "Pending"
	case OrderStatusInProgress:
		return "In progress"
	case OrderStatusDelivered:
		return "Delivered"
	default:
		return "Cancelled"
	}
}

// OrderItem is one purchased product line; Price is the unit price agreed at purchase
type OrderItem struct {
	ID        string          `json:"id,omitempty"`
	OrderID   string          `json:"orderId,omitempty"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Subtotal is quantity × unit price
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a placed order
type Order struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Total      decimal.Decimal `json:"total"`
	Status     OrderStatus     `json:"status"`
	Address    string          `json:"address,omitempty"`
	Phone      string          `json:"phone,omitempty"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	OrderItems []OrderItem     `json:"orderItems"`
}

// ComputedTotal sums the order items at their captured prices
func (o Order) ComputedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.OrderItems {
		total = total.Add(item.Subtotal())
	}
	return total
}

// TotalConsistent reports whether the stated total matches the items
func (o Order) TotalConsistent() bool {
	return o.Total.Equal(o.ComputedTotal())
}

// OrderItemInput is one line of an order creation request
type OrderItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderInput is the order creation payload sent to the backend
type CreateOrderInput struct {
	UserID  string           `json:"userId"`
	Items   []OrderItemInput `json:"items"`
	Address string           `json:"address"`
	Phone   string           `json:"phone"`
	Note    string           `json:"note,omitempty"`
}

// OrderPatch carries a partial order update
type OrderPatch struct {
	Status OrderStatus `json:"status,omitempty"`
}
