package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/domain"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/telemetry"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// migrationsDir holds the goose migrations for the postgres storage driver
const migrationsDir = "migrations"

var ErrMissingSessionSecret = errors.New("SESSION_SECRET is required in production")

type Server struct {
	*http.Server
	config   *config.Config
	logger   *zap.Logger
	db       *sql.DB
	redis    *redis.Client
	sessions service.SessionService
	stop     context.CancelFunc
}

func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		config: cfg,
		logger: logger,
	}

	secret := cfg.Session.Secret
	if secret == "" {
		if !cfg.IsDevelopment() {
			return nil, ErrMissingSessionSecret
		}
		// Sessions will not survive a restart
		secret = uuid.NewString()
		logger.Warn("SESSION_SECRET not set, using a random secret")
	}

	statusNames, err := domain.StatusWireNames(cfg.Backend.StatusNames)
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_STATUS_NAMES: %w", err)
	}

	storage, err := s.openStorage(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	if cfg.RateLimit.Enabled && s.redis == nil {
		if s.redis, err = openRedis(ctx, cfg.Redis); err != nil {
			s.Close()
			return nil, err
		}
	}

	// Initialize services
	s.sessions = service.NewSessionService(service.SessionOptions{
		BaseURL:     cfg.Backend.BaseURL,
		HTTPClient:  apiclient.NewHTTPClient(cfg.Backend.Timeout),
		Storage:     storage,
		IdleTimeout: cfg.Session.IdleTimeout,
		MaxLive:     cfg.Session.MaxLive,
	}, cart.NewRegistry(), logger)
	catalogService := service.NewCatalogService(logger)

	// Initialize handlers
	authHandler := transport.NewAuthHandler(s.sessions, logger)
	productHandler := transport.NewProductHandler(catalogService, logger)
	cartHandler := transport.NewCartHandler(catalogService, service.NewCheckoutService(logger), logger)
	orderHandler := transport.NewOrderHandler(service.NewOrderService(logger, service.WithStatusWireNames(statusNames)), logger)
	dashboardHandler := transport.NewDashboardHandler(service.NewDashboardService(logger), logger)

	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(telemetry.Middleware(cfg.Tracing.ServiceName))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	router.Get("/health", s.health)

	router.Group(func(r chi.Router) {
		r.Use(custommiddleware.SessionMiddleware(custommiddleware.SessionConfig{
			CookieName: cfg.Session.CookieName,
			Secret:     secret,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.SecureCookie,
		}, logger))
		r.Use(custommiddleware.LoadSession(s.sessions, logger))
		r.Use(telemetry.SessionAttributes)
		r.Use(custommiddleware.LoggingMiddleware(logger))
		r.Use(custommiddleware.RequireJSON(logger))

		authHandler.RegisterRoutes(r, s.authLimiter())
		productHandler.RegisterRoutes(r)
		cartHandler.RegisterRoutes(r)
		orderHandler.RegisterRoutes(r)
		dashboardHandler.RegisterRoutes(r)
	})

	sweepCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = stop
	go s.sessions.Run(sweepCtx, cfg.Session.SweepInterval)

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

// openStorage connects the configured client storage driver
func (s *Server) openStorage(ctx context.Context) (repository.Storage, error) {
	cfg := s.config

	switch cfg.Storage.Driver {
	case config.StorageMemory, "":
		s.logger.Warn("Using in-memory client storage, sign-ins are lost on restart")
		return repository.NewMemoryStorage(), nil

	case config.StorageRedis:
		client, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.redis = client
		return repository.NewRedisStorage(client, cfg.Storage.TTL), nil

	case config.StoragePostgres:
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db
		if err := database.RunMigrations(db, migrationsDir, s.logger); err != nil {
			return nil, err
		}
		return repository.NewPostgresStorage(db), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// authLimiter throttles credential submissions when rate limiting is enabled
func (s *Server) authLimiter() func(http.Handler) http.Handler {
	if !s.config.RateLimit.Enabled || s.redis == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return custommiddleware.RateLimitMiddleware(s.redis, custommiddleware.RateLimitConfig{
		RequestsPerWindow: s.config.RateLimit.RequestsPerWindow,
		Window:            s.config.RateLimit.Window,
		KeyPrefix:         "ratelimit:auth",
	}, s.logger)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	report := map[string]interface{}{
		"status":   "ok",
		"storage":  s.config.Storage.Driver,
		"sessions": s.sessions.Len(),
	}

	if s.db != nil {
		dbHealth := database.Health(r.Context(), s.db)
		report["database"] = dbHealth
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			report["redis"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			report["redis"] = "up"
		}
	}
	if status != http.StatusOK {
		report["status"] = "degraded"
	}

	custommiddleware.RespondWithJSON(w, status, report)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.stop != nil {
		s.stop()
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
