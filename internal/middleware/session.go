package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	SessionIDKey contextKey = "session_id"
	SessionKey   contextKey = "session"
)

const sessionIssuer = "storefront"

var ErrInvalidSessionToken = errors.New("invalid session token")

// SessionConfig describes the session cookie
type SessionConfig struct {
	CookieName string
	Secret     string
	TTL        time.Duration
	Secure     bool
}

// SessionClaims is the payload of the session cookie
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// IssueSessionToken signs a session id into a cookie value
func IssueSessionToken(secret, sessionID string, ttl time.Duration, now time.Time) (string, error) {
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSessionToken verifies a cookie value and returns its claims
func ParseSessionToken(secret, value string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(value, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSessionToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidSessionToken
	}
	return claims, nil
}

// SessionMiddleware identifies the browser by a signed session cookie. A
// missing, expired or tampered cookie starts a new session. The cookie is
// re-issued once half of its lifetime has passed.
func SessionMiddleware(cfg SessionConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()

			var sessionID string
			refresh := true

			if cookie, err := r.Cookie(cfg.CookieName); err == nil {
				claims, err := ParseSessionToken(cfg.Secret, cookie.Value)
				if err != nil {
					logger.Debug("Session cookie rejected", zap.Error(err))
				} else {
					sessionID = claims.SessionID
					refresh = claims.ExpiresAt.Sub(now) < cfg.TTL/2
				}
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				logger.Debug("New session", zap.String("session_id", sessionID))
			}

			if refresh {
				value, err := IssueSessionToken(cfg.Secret, sessionID, cfg.TTL, now)
				if err != nil {
					logger.Error("Failed to sign session cookie", zap.Error(err))
					RespondWithError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    value,
					Path:     "/",
					Expires:  now.Add(cfg.TTL),
					MaxAge:   int(cfg.TTL.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadSession resolves the live session for the request's session id
func LoadSession(sessions service.SessionService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, ok := GetSessionID(r.Context())
			if !ok {
				logger.Error("Session id missing from context")
				RespondWithError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			sess, err := sessions.Session(r.Context(), sessionID)
			if err != nil {
				logger.Error("Failed to load session", zap.String("session_id", sessionID), zap.Error(err))
				RespondWithError(w, http.StatusServiceUnavailable, "session storage unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionID extracts the session id from request context
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionIDKey).(string)
	return id, ok && id != ""
}

// GetSession extracts the live session from request context
func GetSession(ctx context.Context) (*service.Session, bool) {
	sess, ok := ctx.Value(SessionKey).(*service.Session)
	return sess, ok && sess != nil
}
