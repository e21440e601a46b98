package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Storage keys holding the bearer token and the cached user profile
const (
	TokenKey = "auth_token"
	UserKey  = "auth_user"
)

// maxErrorBody caps how much of a failed response is read for logging
const maxErrorBody = 4 << 10

// APIError is returned for every non-2xx response from the backend
type APIError struct {
	StatusCode int
	StatusText string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %d %s", e.StatusCode, e.StatusText)
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// NewHTTPClient returns a traced HTTP client for backend calls. A zero timeout
// leaves requests bounded only by their context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   timeout,
	}
}

// Client talks to the storefront REST backend on behalf of one session
type Client struct {
	baseURL    string
	httpClient *http.Client
	storage    repository.Storage
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// New creates a Client and restores a previously stored bearer token
func New(ctx context.Context, baseURL string, httpClient *http.Client, storage repository.Storage, logger *zap.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		storage:    storage,
		logger:     logger,
	}

	token, err := storage.Get(ctx, TokenKey)
	if err != nil && !errors.Is(err, repository.ErrKeyNotFound) {
		return nil, fmt.Errorf("failed to restore token: %w", err)
	}
	c.token = token

	return c, nil
}

// IsAuthenticated reports whether a bearer token is currently held
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// TokenExpiry reads the exp claim of a JWT bearer token without verifying its
// signature. ok is false when no token is held, it is not a JWT, or it has no exp.
func (c *Client) TokenExpiry() (expiry time.Time, ok bool) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == "" {
		return time.Time{}, false
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// request performs one JSON call. out may be nil when the body is irrelevant.
func (c *Client) request(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("Backend request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", text),
		)
		return &APIError{StatusCode: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode %s %s response: %w", method, endpoint, err)
	}
	return nil
}
