package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UpdateStatusRequest carries the new status of an order. Legacy labels
// such as "en_cours" are accepted.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,notblank"`
}

// OrderHandler handles HTTP requests for orders
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.logger))
			r.Get("/", h.List)
			r.Get("/{id}", h.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Patch("/{id}/status", h.UpdateStatus)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List returns the orders visible to the session, newest first
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	orders, err := h.orders.List(r.Context(), sess, r.URL.Query().Get("q"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	detail, err := h.orders.Detail(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, detail)
}

// UpdateStatus changes an order's status and returns the refreshed detail
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	detail, err := h.orders.UpdateStatus(r.Context(), sess, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, detail)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.orders.Delete(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
