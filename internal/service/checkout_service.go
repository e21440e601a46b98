package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/validation"

	"go.uber.org/zap"
)

// OrdersPath is where the browser is sent after a successful checkout
const OrdersPath = "/orders"

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrCheckoutFailed     = errors.New("unable to create the order, please try again")
)

// ValidationError lists the request fields that failed validation
type ValidationError struct {
	Fields []validation.FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "invalid fields: " + strings.Join(names, ", ")
}

func newValidationError(err error) error {
	if fields := validation.Fields(err); len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return err
}

// CheckoutRequest carries the delivery details entered at checkout
type CheckoutRequest struct {
	Address string `json:"address" validate:"required,notblank"`
	Phone   string `json:"phone" validate:"required,notblank"`
	Note    string `json:"note"`
}

// CheckoutResult is returned once the order has been accepted
type CheckoutResult struct {
	Order    *domain.Order `json:"order"`
	Message  string        `json:"message"`
	Redirect string        `json:"redirect"`
}

// CheckoutService turns a session's cart into an order
type CheckoutService interface {
	Checkout(ctx context.Context, sess *Session, req CheckoutRequest) (*CheckoutResult, error)
}

type checkoutService struct {
	logger *zap.Logger
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(logger *zap.Logger) CheckoutService {
	return &checkoutService{logger: logger}
}

// Checkout validates the cart and delivery details, then creates the order
// for the freshly fetched profile. The cart is cleared only when the order
// was accepted.
func (s *checkoutService) Checkout(ctx context.Context, sess *Session, req CheckoutRequest) (*CheckoutResult, error) {
	if !sess.Cart.BeginCheckout() {
		return nil, ErrCheckoutInProgress
	}
	defer sess.Cart.EndCheckout()

	lines := sess.Cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	if err := validation.Struct(req); err != nil {
		return nil, newValidationError(err)
	}

	profile, err := sess.Client.GetProfile(ctx)
	if err != nil {
		s.logger.Warn("Checkout profile lookup failed", zap.String("session_id", sess.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	items := make([]domain.OrderItemInput, len(lines))
	for i, line := range lines {
		items[i] = domain.OrderItemInput{ProductID: line.Product.ID, Quantity: line.Quantity}
	}

	order, err := sess.Client.CreateOrder(ctx, domain.CreateOrderInput{
		UserID:  profile.ID,
		Items:   items,
		Address: strings.TrimSpace(req.Address),
		Phone:   strings.TrimSpace(req.Phone),
		Note:    strings.TrimSpace(req.Note),
	})
	if err != nil {
		s.logger.Warn("Order creation failed",
			zap.String("session_id", sess.ID),
			zap.Int("lines", len(items)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	sess.Cart.RemoveOrdered(lines)

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", profile.ID),
		zap.String("total", order.Total.String()),
	)

	return &CheckoutResult{
		Order:    order,
		Message:  fmt.Sprintf("Your order #%s has been created.", order.ID),
		Redirect: OrdersPath,
	}, nil
}
