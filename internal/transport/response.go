package transport

import (
	"errors"
	"net/http"

	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"go.uber.org/zap"
)

// MessageResponse is returned by actions with nothing else to report
type MessageResponse struct {
	Message string `json:"message"`
}

// currentSession returns the session loaded by middleware.LoadSession
func currentSession(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*service.Session, bool) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		logger.Error("Session not found in context", zap.String("path", r.URL.Path))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	return sess, true
}

// decodeJSON decodes a request body, answering 400 itself on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := middleware.DecodeJSON(r, v); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeAndValidate is decodeJSON followed by struct validation
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}, logger *zap.Logger) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondWithServiceError maps service, cart and backend errors onto HTTP responses
func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var validationErr *service.ValidationError
	var apiErr *apiclient.APIError

	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		middleware.RespondWithRedirect(w, http.StatusUnauthorized, "authentication required", middleware.LoginPath)
	case errors.Is(err, service.ErrForbidden):
		middleware.RespondWithRedirect(w, http.StatusNotFound, "not found", middleware.NotFoundPath)
	case errors.As(err, &validationErr):
		middleware.RespondWithValidationErrors(w, validationErr.Fields)
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, cart.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCheckoutInProgress),
		errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, cart.ErrExceedsStock):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrLoginFailed) && apiclient.IsStatus(err, http.StatusUnauthorized):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, service.ErrCheckoutFailed):
		logger.Warn("Checkout failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, service.ErrCheckoutFailed.Error())
	case errors.As(err, &apiErr):
		logger.Warn("Backend request failed",
			zap.String("path", r.URL.Path),
			zap.Int("backend_status", apiErr.StatusCode),
		)
		respondWithBackendError(w, apiErr)
	default:
		logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondWithBackendError forwards client errors the backend reported and
// hides everything else behind a 502
func respondWithBackendError(w http.ResponseWriter, apiErr *apiclient.APIError) {
	switch apiErr.StatusCode {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		middleware.RespondWithError(w, apiErr.StatusCode, apiErr.Error())
	case http.StatusUnauthorized:
		middleware.RespondWithRedirect(w, http.StatusUnauthorized, "session expired", middleware.LoginPath)
	case http.StatusForbidden, http.StatusNotFound:
		middleware.RespondWithRedirect(w, http.StatusNotFound, "not found", middleware.NotFoundPath)
	default:
		middleware.RespondWithError(w, http.StatusBadGateway, apiErr.Error())
	}
}
