package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"storefront/internal/apiclient"
	"storefront/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidStatus = errors.New("unknown order status")
)

// StatusOption is one entry of the status selector
type StatusOption struct {
	Value domain.OrderStatus `json:"value"`
	Label string             `json:"label"`
}

// StatusOptions lists every selectable status with its label
func StatusOptions() []StatusOption {
	options := make([]StatusOption, len(domain.OrderStatuses))
	for i, status := range domain.OrderStatuses {
		options[i] = StatusOption{Value: status, Label: status.Label()}
	}
	return options
}

// OrderLine is an order item resolved against the catalog
type OrderLine struct {
	domain.OrderItem
	ProductName string          `json:"productName"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// OrderDetail is everything the order page displays
type OrderDetail struct {
	Order           *domain.Order   `json:"order"`
	StatusLabel     string          `json:"statusLabel"`
	Lines           []OrderLine     `json:"lines"`
	ComputedTotal   decimal.Decimal `json:"computedTotal"`
	TotalConsistent bool            `json:"totalConsistent"`
	CanEditStatus   bool            `json:"canEditStatus"`
	StatusOptions   []StatusOption  `json:"statusOptions,omitempty"`
}

// OrderService defines the order views and admin actions of a session
type OrderService interface {
	List(ctx context.Context, sess *Session, search string) ([]domain.Order, error)
	Detail(ctx context.Context, sess *Session, id string) (*OrderDetail, error)
	UpdateStatus(ctx context.Context, sess *Session, id, status string) (*OrderDetail, error)
	Delete(ctx context.Context, sess *Session, id string) error
}

type orderService struct {
	logger    *zap.Logger
	wireNames map[domain.OrderStatus]string
}

// OrderServiceOption customizes NewOrderService
type OrderServiceOption func(*orderService)

// WithStatusWireNames sends the mapped value instead of the canonical status
// when patching an order, for backends that only know legacy labels.
func WithStatusWireNames(names map[domain.OrderStatus]string) OrderServiceOption {
	return func(s *orderService) {
		s.wireNames = names
	}
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(logger *zap.Logger, opts ...OrderServiceOption) OrderService {
	s := &orderService{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every order to admins and only their own to clients, newest
// first, optionally narrowed by a case-insensitive match on id or status.
func (s *orderService) List(ctx context.Context, sess *Session, search string) ([]domain.Order, error) {
	user := sess.User()
	if err := Authorize(user).Err(); err != nil {
		return nil, err
	}

	orders, err := sess.Client.GetOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	visible := orders[:0]
	for _, order := range orders {
		if !IsAdmin(user) && order.UserID != user.ID {
			continue
		}
		if !matchesOrder(order, search) {
			continue
		}
		visible = append(visible, order)
	}

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})

	return visible, nil
}

func matchesOrder(order domain.Order, search string) bool {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(order.ID), term) ||
		strings.Contains(strings.ToLower(string(order.Status)), term) ||
		strings.Contains(strings.ToLower(order.Status.Label()), term)
}

// Detail loads one order and names its items from the product listing.
// Clients cannot see orders placed by someone else.
func (s *orderService) Detail(ctx context.Context, sess *Session, id string) (*OrderDetail, error) {
	user := sess.User()
	if err := Authorize(user).Err(); err != nil {
		return nil, err
	}

	order, err := s.fetch(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if !IsAdmin(user) && order.UserID != user.ID {
		return nil, ErrOrderNotFound
	}

	names := make(map[string]string)
	products, err := sess.Client.GetProducts(ctx)
	if err != nil {
		// Items fall back to their product ids
		s.logger.Warn("Product lookup failed for order detail", zap.String("order_id", id), zap.Error(err))
	}
	for _, p := range products {
		names[p.ID] = p.Name
	}

	return newOrderDetail(order, names, IsAdmin(user)), nil
}

func newOrderDetail(order *domain.Order, names map[string]string, admin bool) *OrderDetail {
	lines := make([]OrderLine, len(order.OrderItems))
	for i, item := range order.OrderItems {
		name, ok := names[item.ProductID]
		if !ok {
			name = item.ProductID
		}
		lines[i] = OrderLine{OrderItem: item, ProductName: name, Subtotal: item.Subtotal()}
	}

	detail := &OrderDetail{
		Order:           order,
		StatusLabel:     order.Status.Label(),
		Lines:           lines,
		ComputedTotal:   order.ComputedTotal(),
		TotalConsistent: order.TotalConsistent(),
		CanEditStatus:   admin,
	}
	if admin {
		detail.StatusOptions = StatusOptions()
	}
	return detail
}

// UpdateStatus patches the order's status and returns the re-fetched order,
// or the PATCH response when the re-fetch fails.
// Any status in the enumeration may be chosen from any other; the backend
// owns transition rules.
func (s *orderService) UpdateStatus(ctx context.Context, sess *Session, id, status string) (*OrderDetail, error) {
	if err := sess.Authorize(domain.RoleAdmin).Err(); err != nil {
		return nil, err
	}

	next, ok := domain.ParseOrderStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	wire := next
	if name, ok := s.wireNames[next]; ok {
		wire = domain.OrderStatus(name)
	}

	patched, err := sess.Client.PatchOrder(ctx, id, domain.OrderPatch{Status: wire})
	if err != nil {
		if apiclient.IsStatus(err, http.StatusNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", id),
		zap.String("status", string(next)),
		zap.String("by", sess.User().ID),
	)

	detail, err := s.Detail(ctx, sess, id)
	if err != nil {
		// The update went through; fall back to the PATCH response
		s.logger.Warn("Order refresh after status update failed", zap.String("order_id", id), zap.Error(err))
		return newOrderDetail(patched, map[string]string{}, true), nil
	}
	return detail, nil
}

// Delete removes an order
func (s *orderService) Delete(ctx context.Context, sess *Session, id string) error {
	if err := sess.Authorize(domain.RoleAdmin).Err(); err != nil {
		return err
	}

	if err := sess.Client.DeleteOrder(ctx, id); err != nil {
		if apiclient.IsStatus(err, http.StatusNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to delete order: %w", err)
	}

	s.logger.Info("Order deleted", zap.String("order_id", id), zap.String("by", sess.User().ID))
	return nil
}

func (s *orderService) fetch(ctx context.Context, sess *Session, id string) (*domain.Order, error) {
	order, err := sess.Client.GetOrder(ctx, id)
	if err != nil {
		if apiclient.IsStatus(err, http.StatusNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}
