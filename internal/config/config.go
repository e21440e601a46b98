package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers for the per-session client storage
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Session   SessionConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// BackendConfig points at the remote REST API the storefront consumes
type BackendConfig struct {
	BaseURL     string
	Timeout     time.Duration     // zero means no client-side timeout
	StatusNames map[string]string // order status -> value sent on PATCH
}

type SessionConfig struct {
	Secret        string
	CookieName    string
	TTL           time.Duration
	SecureCookie  bool
	IdleTimeout   time.Duration // in-memory session state is evicted after this
	SweepInterval time.Duration
	MaxLive       int // cap on in-memory sessions, zero means unbounded
}

type StorageConfig struct {
	Driver string
	TTL    time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	Window            time.Duration
}

type TracingConfig struct {
	Exporter     string // none, stdout or otlp
	OTLPEndpoint string
	ServiceName  string
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

func Load() *Config {
	// Values already present in the environment win over .env
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: no .env file loaded: %v", err)
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	viper.SetDefault("BACKEND_BASE_URL", "http://localhost:3000")
	viper.SetDefault("BACKEND_TIMEOUT", "0s")
	viper.SetDefault("BACKEND_STATUS_NAMES", "")
	viper.SetDefault("SESSION_COOKIE_NAME", "storefront_session")
	viper.SetDefault("SESSION_TTL", "168h")
	viper.SetDefault("SESSION_SECURE_COOKIE", false)
	viper.SetDefault("SESSION_IDLE_TIMEOUT", "2h")
	viper.SetDefault("SESSION_SWEEP_INTERVAL", "5m")
	viper.SetDefault("SESSION_MAX_LIVE", 10000)
	viper.SetDefault("STORAGE_DRIVER", StorageMemory)
	viper.SetDefault("STORAGE_TTL", "168h")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")
	viper.SetDefault("TRACING_EXPORTER", "none")
	viper.SetDefault("TRACING_SERVICE_NAME", "storefront")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Backend: BackendConfig{
			BaseURL:     strings.TrimRight(viper.GetString("BACKEND_BASE_URL"), "/"),
			Timeout:     viper.GetDuration("BACKEND_TIMEOUT"),
			StatusNames: splitPairs(viper.GetString("BACKEND_STATUS_NAMES")),
		},
		Session: SessionConfig{
			Secret:        viper.GetString("SESSION_SECRET"),
			CookieName:    viper.GetString("SESSION_COOKIE_NAME"),
			TTL:           viper.GetDuration("SESSION_TTL"),
			SecureCookie:  viper.GetBool("SESSION_SECURE_COOKIE"),
			IdleTimeout:   viper.GetDuration("SESSION_IDLE_TIMEOUT"),
			SweepInterval: viper.GetDuration("SESSION_SWEEP_INTERVAL"),
			MaxLive:       viper.GetInt("SESSION_MAX_LIVE"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(viper.GetString("STORAGE_DRIVER")),
			TTL:    viper.GetDuration("STORAGE_TTL"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           viper.GetBool("RATE_LIMIT_ENABLED"),
			RequestsPerWindow: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:            viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Tracing: TracingConfig{
			Exporter:     strings.ToLower(viper.GetString("TRACING_EXPORTER")),
			OTLPEndpoint: viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  viper.GetString("TRACING_SERVICE_NAME"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitPairs parses "a=b,c=d" lists. Entries without "=" are skipped.
func splitPairs(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range splitList(raw) {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}
