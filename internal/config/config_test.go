package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://api.example.com/api/")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("REFRESH_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/api", cfg.BackendURL)
	assert.Equal(t, "8787", cfg.ServerPort)
	assert.Equal(t, StoreDriverFile, cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.TokenExpiryBuffer)
	assert.Equal(t, 60*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 3, cfg.VerifyMaxRetries)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://localhost:3001/api")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("REFRESH_WINDOW", "2m")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("VERIFY_MAX_RETRIES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 2*time.Minute, cfg.RefreshWindow)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 3, cfg.VerifyMaxRetries)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ServerPort:      "8787",
			RequestTimeout:  time.Second,
			BackendURL:      "http://localhost:3001/api",
			BackendTimeout:  time.Second,
			StoreDriver:     StoreDriverMemory,
			RefreshInterval: time.Minute,
			RefreshWindow:   time.Minute,

			EventsHeartbeat:   time.Second,
			EventsMaxDuration: time.Minute,
			ProxyMaxBodyBytes: 1024,
		}
	}

	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"missing backend":       func(c *Config) { c.BackendURL = "" },
		"relative backend":      func(c *Config) { c.BackendURL = "/api" },
		"unknown driver":        func(c *Config) { c.StoreDriver = "redis" },
		"postgres without dsn":  func(c *Config) { c.StoreDriver = StoreDriverPostgres },
		"file without path":     func(c *Config) { c.StoreDriver = StoreDriverFile },
		"zero refresh interval": func(c *Config) { c.RefreshInterval = 0 },
		"negative buffer":       func(c *Config) { c.TokenExpiryBuffer = -time.Second },
		"heartbeat too long":    func(c *Config) { c.EventsHeartbeat = time.Hour },
		"zero proxy body":       func(c *Config) { c.ProxyMaxBodyBytes = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
