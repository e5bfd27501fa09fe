package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverFile     = "file"
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration

	BackendURL     string
	BackendTimeout time.Duration

	StoreDriver    string
	StoreFile      string
	StoreSecret    string
	StoreNamespace string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	TokenExpiryBuffer time.Duration
	RefreshInterval   time.Duration
	RefreshWindow     time.Duration
	VerifyMaxRetries  int

	EventsHeartbeat   time.Duration
	EventsMaxDuration time.Duration
	ProxyMaxBodyBytes int64

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
	LogLevel         string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8787"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 0),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),

		BackendURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("BACKEND_URL")), "/"),
		BackendTimeout: getDuration("BACKEND_TIMEOUT", 10*time.Second),

		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDriverFile)),
		StoreFile:      getEnv("STORE_FILE", "./state/credentials.json"),
		StoreSecret:    strings.TrimSpace(os.Getenv("STORE_SECRET")),
		StoreNamespace: getEnv("STORE_NAMESPACE", "default"),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 4)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 1)),

		TokenExpiryBuffer: getDuration("TOKEN_EXPIRY_BUFFER", 5*time.Minute),
		RefreshInterval:   getDuration("REFRESH_INTERVAL", 60*time.Second),
		RefreshWindow:     getDuration("REFRESH_WINDOW", 5*time.Minute),
		VerifyMaxRetries:  getInt("VERIFY_MAX_RETRIES", 3),

		EventsHeartbeat:   getDuration("EVENTS_HEARTBEAT", 15*time.Second),
		EventsMaxDuration: getDuration("EVENTS_MAX_DURATION", time.Hour),
		ProxyMaxBodyBytes: int64(getInt("PROXY_MAX_BODY_BYTES", 1<<20)),

		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:     getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 10),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}

	if u, err := url.Parse(c.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}

	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverFile:
		if strings.TrimSpace(c.StoreFile) == "" {
			return fmt.Errorf("STORE_FILE cannot be empty")
		}
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
		if c.DBMaxConns < c.DBMinConns {
			return fmt.Errorf("DB_MAX_CONNS must be >= DB_MIN_CONNS")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of file, memory, postgres")
	}

	if c.TokenExpiryBuffer < 0 {
		return fmt.Errorf("TOKEN_EXPIRY_BUFFER cannot be negative")
	}

	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}

	if c.RefreshWindow <= 0 {
		return fmt.Errorf("REFRESH_WINDOW must be positive")
	}

	if c.VerifyMaxRetries < 0 {
		return fmt.Errorf("VERIFY_MAX_RETRIES cannot be negative")
	}

	if c.EventsHeartbeat <= 0 || c.EventsMaxDuration <= c.EventsHeartbeat {
		return fmt.Errorf("EVENTS_MAX_DURATION must exceed a positive EVENTS_HEARTBEAT")
	}

	if c.ProxyMaxBodyBytes <= 0 {
		return fmt.Errorf("PROXY_MAX_BODY_BYTES must be positive")
	}

	return nil
}

func (c *Config) Addr() string {
	return ":" + c.ServerPort
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
