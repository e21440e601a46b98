package middleware

import (
	"encoding/json"
	"mime"
	"net/http"

	"storefront/internal/validation"

	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies decoded by DecodeJSON
const maxBodyBytes = 1 << 20

// ValidationError represents a field validation error
type ValidationError = validation.FieldError

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validation.Struct(v)
}

// RequireJSON rejects request bodies that are not declared as JSON
func RequireJSON(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
				mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				if err != nil || mediaType != "application/json" {
					logger.Debug("Unsupported request content type",
						zap.String("content_type", r.Header.Get("Content-Type")),
						zap.String("path", r.URL.Path),
					)
					RespondWithError(w, http.StatusUnsupportedMediaType, "request body must be application/json")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DecodeJSON decodes a JSON request body of at most 1 MiB
func DecodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := DecodeJSON(r, v); err != nil {
		return err
	}
	return ValidateRequest(v)
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []ValidationError {
	return validation.Fields(err)
}
