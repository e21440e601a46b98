package middleware

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/service"

	"go.uber.org/zap"
)

// Navigation targets handed back to the browser when a gate denies access
const (
	LoginPath    = "/login"
	NotFoundPath = "/not-found"
)

// RequireRole gates a route on the session's user. Anonymous sessions get a
// 401 pointing at the login page. Users lacking every listed role get a 404
// pointing at the not-found page. With no roles any signed in user passes.
func RequireRole(logger *zap.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := GetSession(r.Context())
			if !ok {
				logger.Error("Session not found in context")
				RespondWithError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			switch sess.Authorize(roles...) {
			case service.AccessAllowed:
				next.ServeHTTP(w, r)
			case service.AccessUnauthorized:
				logger.Warn("User role not authorized",
					zap.String("session_id", sess.ID),
					zap.String("role", string(sess.User().Role)),
					zap.String("path", r.URL.Path),
				)
				RespondWithRedirect(w, http.StatusNotFound, "not found", NotFoundPath)
			default:
				RespondWithRedirect(w, http.StatusUnauthorized, "authentication required", LoginPath)
			}
		})
	}
}

// RequireAuth admits any signed in user
func RequireAuth(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole(logger)
}

// RequireAdmin middleware ensures the user has admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole(logger, domain.RoleAdmin)
}

// RequireClient middleware ensures the user has client role
func RequireClient(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole(logger, domain.RoleClient)
}
