package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionResponse describes who is signed in on this browser
type SessionResponse struct {
	User          *domain.User `json:"user"`
	Loading       bool         `json:"loading"`
	Authenticated bool         `json:"authenticated"`
}

// LoginResponse is returned on a successful login
type LoginResponse struct {
	User     *domain.User `json:"user"`
	Redirect string       `json:"redirect"`
}

// AuthHandler handles HTTP requests for sign in and sign out
type AuthHandler struct {
	sessions service.SessionService
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(sessions service.SessionService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes registers the session and auth routes. limiter throttles
// credential submissions.
func (h *AuthHandler) RegisterRoutes(r chi.Router, limiter func(http.Handler) http.Handler) {
	r.Get("/api/session", h.Session)

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter)
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
		})
		r.Post("/logout", h.Logout)
	})
}

// Session reports the current auth state
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	user := sess.User()
	middleware.RespondWithJSON(w, http.StatusOK, SessionResponse{
		User:          user,
		Loading:       sess.Auth.Loading(),
		Authenticated: user != nil,
	})
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	var req domain.Credentials
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	user, err := h.sessions.Login(r.Context(), sess, req)
	if err != nil {
		h.logger.Debug("Login failed", zap.String("session_id", sess.ID), zap.Error(err))
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{User: user, Redirect: "/"})
}

// Register handles account creation. The new user still has to sign in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	var req domain.Registration
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	user, err := h.sessions.Register(r.Context(), sess, req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("User registered", zap.String("user_id", user.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, user)
}

// Logout forgets the session's credentials
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sessions.Logout(r.Context(), sess); err != nil {
		h.logger.Error("Logout failed", zap.String("session_id", sess.ID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message":  "logged out successfully",
		"redirect": middleware.LoginPath,
	})
}
