package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// rehydrateTimeout bounds the profile lookup made when a session is first seen
const rehydrateTimeout = 10 * time.Second

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("insufficient permissions")
	ErrLoginFailed      = errors.New("login failed")
)

// Access is the outcome of a role check
type Access int

const (
	AccessUnauthenticated Access = iota
	AccessUnauthorized
	AccessAllowed
)

func (a Access) String() string {
	switch a {
	case AccessAllowed:
		return "allowed"
	case AccessUnauthorized:
		return "unauthorized"
	default:
		return "unauthenticated"
	}
}

// Err maps a denied access onto ErrNotAuthenticated or ErrForbidden
func (a Access) Err() error {
	switch a {
	case AccessAllowed:
		return nil
	case AccessUnauthorized:
		return ErrForbidden
	default:
		return ErrNotAuthenticated
	}
}

// Authorize is the single capability check behind every gated route and
// action. With no roles any signed in user is allowed.
func Authorize(user *domain.User, roles ...domain.Role) Access {
	if user == nil {
		return AccessUnauthenticated
	}
	if len(roles) == 0 {
		return AccessAllowed
	}
	for _, role := range roles {
		if user.Role == role {
			return AccessAllowed
		}
	}
	return AccessUnauthorized
}

func IsAdmin(user *domain.User) bool {
	return Authorize(user, domain.RoleAdmin) == AccessAllowed
}

func IsClient(user *domain.User) bool {
	return Authorize(user, domain.RoleClient) == AccessAllowed
}

// AuthState holds the signed in user of one session
type AuthState struct {
	mu      sync.RWMutex
	user    *domain.User
	loading bool
}

func newAuthState() *AuthState {
	return &AuthState{loading: true}
}

func (a *AuthState) User() *domain.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user
}

func (a *AuthState) SetUser(user *domain.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = user
}

// Loading is true only while the session is being rehydrated
func (a *AuthState) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loading
}

func (a *AuthState) setLoading(loading bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loading = loading
}

// Session is the state the storefront keeps for one browser
type Session struct {
	ID     string
	Client *apiclient.Client
	Auth   *AuthState
	Cart   *cart.Cart

	rehydrate sync.Once
	lastSeen  atomic.Int64
}

// User is shorthand for s.Auth.User()
func (s *Session) User() *domain.User {
	return s.Auth.User()
}

// Authorize checks the session's user against roles
func (s *Session) Authorize(roles ...domain.Role) Access {
	return Authorize(s.Auth.User(), roles...)
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// StorageNamespace is the key prefix holding a session's durable client state
func StorageNamespace(sessionID string) string {
	return "session:" + sessionID + ":"
}

// SessionService owns every live browser session
type SessionService interface {
	Session(ctx context.Context, id string) (*Session, error)
	Login(ctx context.Context, sess *Session, creds domain.Credentials) (*domain.User, error)
	Register(ctx context.Context, sess *Session, data domain.Registration) (*domain.User, error)
	Logout(ctx context.Context, sess *Session) error
	Sweep(now time.Time) int
	Run(ctx context.Context, interval time.Duration)
	Len() int
}

// SessionOptions configures NewSessionService
type SessionOptions struct {
	BaseURL     string
	HTTPClient  *http.Client
	Storage     repository.Storage
	IdleTimeout time.Duration
	MaxLive     int // zero means unbounded
}

type sessionService struct {
	opts   SessionOptions
	carts  *cart.Registry
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionService creates a new instance of SessionService
func NewSessionService(opts SessionOptions, carts *cart.Registry, logger *zap.Logger) SessionService {
	return &sessionService{
		opts:     opts,
		carts:    carts,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Session returns the live session for id, creating and rehydrating it on first use
func (s *sessionService) Session(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok {
		storage := repository.Namespace(s.opts.Storage, StorageNamespace(id))
		client, err := apiclient.New(ctx, s.opts.BaseURL, s.opts.HTTPClient, storage, s.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open session %s: %w", id, err)
		}

		s.mu.Lock()
		if existing, raced := s.sessions[id]; raced {
			sess = existing
		} else {
			if s.opts.MaxLive > 0 && len(s.sessions) >= s.opts.MaxLive {
				s.evictLeastRecentLocked()
			}
			sess = &Session{ID: id, Client: client, Auth: newAuthState(), Cart: s.carts.Get(id)}
			sess.touch(s.now())
			s.sessions[id] = sess
		}
		s.mu.Unlock()
	}

	sess.touch(s.now())
	sess.rehydrate.Do(func() {
		// A client disconnect must not be mistaken for a rejected token
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rehydrateTimeout)
		defer cancel()
		s.rehydrateSession(rctx, sess)
	})

	return sess, nil
}

// rehydrateSession validates a stored token by fetching the profile. Any
// failure is treated as an implicit logout.
func (s *sessionService) rehydrateSession(ctx context.Context, sess *Session) {
	defer sess.Auth.setLoading(false)

	if !sess.Client.IsAuthenticated() {
		return
	}

	if expiry, ok := sess.Client.TokenExpiry(); ok && !expiry.After(s.now()) {
		s.logger.Debug("Stored token expired", zap.String("session_id", sess.ID), zap.Time("expiry", expiry))
		s.discard(ctx, sess)
		return
	}

	user, err := sess.Client.GetProfile(ctx)
	if err != nil {
		s.logger.Info("Stored token rejected", zap.String("session_id", sess.ID), zap.Error(err))
		s.discard(ctx, sess)
		return
	}

	sess.Auth.SetUser(user)
	s.logger.Debug("Session rehydrated",
		zap.String("session_id", sess.ID),
		zap.String("user_id", user.ID),
	)
}

func (s *sessionService) discard(ctx context.Context, sess *Session) {
	if err := sess.Client.Logout(ctx); err != nil {
		s.logger.Error("Failed to discard stored credentials", zap.String("session_id", sess.ID), zap.Error(err))
	}
	sess.Auth.SetUser(nil)
}

// Login authenticates against the backend and loads a fresh profile
func (s *sessionService) Login(ctx context.Context, sess *Session, creds domain.Credentials) (*domain.User, error) {
	if _, err := sess.Client.Login(ctx, creds); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	user, err := sess.Client.GetProfile(ctx)
	if err != nil {
		s.discard(ctx, sess)
		return nil, fmt.Errorf("%w: failed to load profile: %w", ErrLoginFailed, err)
	}

	sess.Auth.SetUser(user)
	s.logger.Info("User logged in",
		zap.String("session_id", sess.ID),
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return user, nil
}

// Register creates an account without signing in
func (s *sessionService) Register(ctx context.Context, sess *Session, data domain.Registration) (*domain.User, error) {
	user, err := sess.Client.Register(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	return user, nil
}

// Logout clears the stored credentials and the in-memory user. The cart is kept.
func (s *sessionService) Logout(ctx context.Context, sess *Session) error {
	if err := sess.Client.Logout(ctx); err != nil {
		return err
	}
	sess.Auth.SetUser(nil)
	s.logger.Info("User logged out", zap.String("session_id", sess.ID))
	return nil
}

// Sweep evicts sessions idle for longer than the configured timeout and
// returns how many were removed. Stored credentials outlive eviction.
func (s *sessionService) Sweep(now time.Time) int {
	if s.opts.IdleTimeout <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.opts.IdleTimeout {
			delete(s.sessions, id)
			s.carts.Drop(id)
			evicted++
		}
	}
	return evicted
}

// evictLeastRecentLocked drops the session seen longest ago to make room
// for a new one. Its stored credentials survive, its cart does not.
// Callers hold s.mu.
func (s *sessionService) evictLeastRecentLocked() {
	var (
		oldestID string
		oldest   int64
	)
	for id, sess := range s.sessions {
		if seen := sess.lastSeen.Load(); oldestID == "" || seen < oldest {
			oldestID, oldest = id, seen
		}
	}
	if oldestID == "" {
		return
	}

	delete(s.sessions, oldestID)
	s.carts.Drop(oldestID)
	s.logger.Warn("Session limit reached, evicted least recent session",
		zap.String("session_id", oldestID),
		zap.Int("limit", s.opts.MaxLive),
	)
}

// Run sweeps idle sessions every interval until ctx is done
func (s *sessionService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if evicted := s.Sweep(now); evicted > 0 {
				s.logger.Debug("Evicted idle sessions", zap.Int("count", evicted), zap.Int("remaining", s.Len()))
			}
		}
	}
}

func (s *sessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
