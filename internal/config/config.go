package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		ENV    string
		Locale string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	// Backend is the remote store (hosted Postgres by default).
	// An empty DSN means the backend is not configured and the gateway
	// starts in fallback mode.
	Backend struct {
		Driver     string
		DSN        string
		SessionTTL time.Duration
		// AutoConfirm issues a session at sign-up instead of waiting for
		// the email confirmation token.
		AutoConfirm bool
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Cache struct {
		Driver string
		TTL    time.Duration
	}

	Breaker struct {
		OpenThreshold      int
		PermanentThreshold int
		Cooldown           time.Duration
		FailureWindow      time.Duration
	}

	Timeouts struct {
		Default time.Duration
		Quick   time.Duration
		Auth    time.Duration
	}

	Fallback struct {
		Force     bool
		StorePath string
	}

	GRPC struct {
		Host string
		Port string
	}

	HTTP struct {
		Addr string
	}

	Scheduler struct {
		ProbeInterval   time.Duration
		JanitorInterval time.Duration
	}
}

// New builds the config from the environment. A .env file in the working
// directory is loaded first when present; real env vars win over it.
func New() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "development")
	cfg.App.Locale = getEnvDefault("APP_LOCALE", "pt-BR")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "edublin_gateway")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Backend
	cfg.Backend.Driver = strings.ToLower(getEnvDefault("BACKEND_DRIVER", "postgres"))
	cfg.Backend.DSN = os.Getenv("BACKEND_DSN")
	if cfg.Backend.DSN == "" && os.Getenv("BACKEND_HOST") != "" {
		cfg.Backend.DSN = buildDSN(
			cfg.Backend.Driver,
			os.Getenv("BACKEND_HOST"),
			os.Getenv("BACKEND_PORT"),
			getEnvDefault("BACKEND_USER", "postgres"),
			os.Getenv("BACKEND_PASSWORD"),
			getEnvDefault("BACKEND_NAME", "edublin"),
		)
	}
	cfg.Backend.SessionTTL = getDurationDefault("BACKEND_SESSION_TTL", time.Hour)
	cfg.Backend.AutoConfirm = isTruthy(getEnvDefault("BACKEND_AUTO_CONFIRM", "true"))

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// Session cache
	cfg.Cache.Driver = strings.ToLower(getEnvDefault("CACHE_DRIVER", "memory"))
	cfg.Cache.TTL = getDurationDefault("CACHE_TTL", 10*time.Second)

	// Circuit breaker
	cfg.Breaker.OpenThreshold = getIntDefault("BREAKER_OPEN_THRESHOLD", 2)
	cfg.Breaker.PermanentThreshold = getIntDefault("BREAKER_PERMANENT_THRESHOLD", 5)
	cfg.Breaker.Cooldown = getDurationDefault("BREAKER_COOLDOWN", 60*time.Second)
	cfg.Breaker.FailureWindow = getDurationDefault("BREAKER_FAILURE_WINDOW", 0)

	// Remote call budgets
	cfg.Timeouts.Default = getDurationDefault("TIMEOUT_DEFAULT", 5*time.Second)
	cfg.Timeouts.Quick = getDurationDefault("TIMEOUT_QUICK", 2*time.Second)
	cfg.Timeouts.Auth = getDurationDefault("TIMEOUT_AUTH", 2*time.Second)

	// Fallback / demo mode
	cfg.Fallback.Force = isTruthy(os.Getenv("FORCE_FALLBACK"))
	cfg.Fallback.StorePath = getEnvDefault("FALLBACK_STORE_PATH", "")

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// Ops HTTP (health, status, metrics)
	cfg.HTTP.Addr = getEnvDefault("HTTP_ADDR", "127.0.0.1:8081")

	cfg.Scheduler.ProbeInterval = getDurationDefault("PROBE_INTERVAL", 30*time.Second)
	cfg.Scheduler.JanitorInterval = getDurationDefault("SESSION_JANITOR_INTERVAL", 10*time.Minute)

	return cfg
}

// BackendConfigured reports whether remote credentials are present.
func (c *Config) BackendConfigured() bool {
	return strings.TrimSpace(c.Backend.DSN) != ""
}

func buildDSN(driver, host, port, user, password, name string) string {
	switch driver {
	case "mysql":
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			user, password, host, port, name,
		)
	default:
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=require TimeZone=UTC",
			host, port, user, password, name,
		)
	}
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getIntDefault(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getDurationDefault accepts Go durations ("1500ms", "2s") or a bare
// number of milliseconds.
func getDurationDefault(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
