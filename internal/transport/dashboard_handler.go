package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DashboardHandler serves the admin overview
type DashboardHandler struct {
	dashboard service.DashboardService
	logger    *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(dashboard service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		logger:    logger,
	}
}

func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireAdmin(h.logger)).Get("/api/dashboard", h.Overview)
}

func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	overview, err := h.dashboard.Overview(r.Context(), sess)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, overview)
}
