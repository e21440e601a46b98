package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductHandler handles HTTP requests for the catalog
type ProductHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/products", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.logger))
			r.Get("/", h.List)
			r.Get("/{id}", h.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List returns the catalog, filtered by the q query parameter
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	products, err := h.catalog.List(r.Context(), sess, r.URL.Query().Get("q"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	product, err := h.catalog.Get(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	var req domain.ProductInput
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.catalog.Create(r.Context(), sess, req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update replaces a product
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	var req domain.ProductInput
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.catalog.Update(r.Context(), sess, chi.URLParam(r, "id"), req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.catalog.Delete(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
