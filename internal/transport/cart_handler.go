package transport

import (
	"net/http"

	"storefront/internal/cart"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AddItemRequest adds a product to the cart
type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required,notblank"`
	Quantity  int    `json:"quantity"`
}

// UpdateItemRequest sets the quantity of a cart line
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

// CartLine is a cart line with its subtotal
type CartLine struct {
	cart.Line
	Subtotal decimal.Decimal `json:"subtotal"`
}

// CartView is the cart page payload
type CartView struct {
	Lines      []CartLine      `json:"lines"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func newCartView(c *cart.Cart) CartView {
	lines := c.Lines()
	view := CartView{
		Lines:      make([]CartLine, len(lines)),
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
	for i, line := range lines {
		view.Lines[i] = CartLine{Line: line, Subtotal: line.Subtotal()}
	}
	return view
}

// CartHandler handles HTTP requests for the cart and checkout
type CartHandler struct {
	catalog  service.CatalogService
	checkout service.CheckoutService
	logger   *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(catalog service.CatalogService, checkout service.CheckoutService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		catalog:  catalog,
		checkout: checkout,
		logger:   logger,
	}
}

// RegisterRoutes registers the cart and checkout routes, open to clients only
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireClient(h.logger))

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", h.View)
			r.Delete("/", h.Clear)
			r.Post("/items", h.AddItem)
			r.Put("/items/{productID}", h.UpdateItem)
			r.Delete("/items/{productID}", h.RemoveItem)
		})

		r.Post("/api/checkout", h.Checkout)
	})
}

func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newCartView(sess.Cart))
}

// AddItem snapshots the product from the backend and adds it to the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	var req AddItemRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	product, err := h.catalog.Get(r.Context(), sess, req.ProductID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	if _, err := sess.Cart.AddToCart(*product, req.Quantity); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newCartView(sess.Cart))
}

// UpdateItem sets a line's quantity. Rejected quantities leave the line unchanged.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := sess.Cart.UpdateQuantity(chi.URLParam(r, "productID"), req.Quantity); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newCartView(sess.Cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	if !sess.Cart.RemoveFromCart(chi.URLParam(r, "productID")) {
		respondWithServiceError(w, r, h.logger, cart.ErrLineNotFound)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newCartView(sess.Cart))
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	sess.Cart.ClearCart()
	middleware.RespondWithJSON(w, http.StatusOK, newCartView(sess.Cart))
}

// Checkout places an order for the cart contents
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	var req service.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.checkout.Checkout(r.Context(), sess, req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, result)
}
