package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// Register creates an account
func (c *Client) Register(ctx context.Context, data domain.Registration) (*domain.User, error) {
	var user domain.User
	if err := c.request(ctx, http.MethodPost, "/auth/register", data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login obtains a bearer token and persists it together with the user profile
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	var result domain.AuthResult
	if err := c.request(ctx, http.MethodPost, "/auth/login", creds, &result); err != nil {
		return nil, err
	}

	userJSON, err := json.Marshal(result.User)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user profile: %w", err)
	}

	// The token is only held once both keys are stored
	if err := c.storage.Set(ctx, TokenKey, result.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}
	if err := c.storage.Set(ctx, UserKey, string(userJSON)); err != nil {
		if derr := c.storage.Delete(ctx, TokenKey); derr != nil {
			c.logger.Warn("Failed to roll back stored token", zap.Error(derr))
		}
		return nil, fmt.Errorf("failed to persist user profile: %w", err)
	}

	c.mu.Lock()
	c.token = result.AccessToken
	c.mu.Unlock()

	c.logger.Debug("User logged in", zap.String("user_id", result.User.ID))
	return &result, nil
}

// GetProfile fetches the profile of the token holder
func (c *Client) GetProfile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.request(ctx, http.MethodGet, "/auth/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserFromStorage returns the cached profile written at login, if any
func (c *Client) UserFromStorage(ctx context.Context) (*domain.User, error) {
	raw, err := c.storage.Get(ctx, UserKey)
	if err != nil {
		if errors.Is(err, repository.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode cached user profile: %w", err)
	}
	return &user, nil
}

// Logout forgets the token and the cached profile. It never calls the backend.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	if err := c.storage.Delete(ctx, TokenKey, UserKey); err != nil {
		return fmt.Errorf("failed to clear stored credentials: %w", err)
	}
	return nil
}
