package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "/health/", cfg.Server.HealthPath)
	assert.Equal(t, "200/hour", cfg.RateLimit.Default)
	assert.Equal(t, "5/minute", cfg.RateLimit.Paths["/api/v1/auth/login/"])
	assert.Equal(t, "1.1", cfg.Versioning.Default)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, StoreMemory, cfg.CounterStore())
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadMissingRequiredFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"), true)
	require.Error(t, err)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9000"
  debug: true
  shutdown_timeout: 3s
ratelimit:
  default: "50/hour"
  paths:
    /api/v1/appointments/: "10/minute"
redis:
  url: redis://localhost:6379/0
`)
	t.Setenv("DIYET_SERVER__ADDR", ":9100")
	t.Setenv("DIYET_LOGGING__LEVEL", "debug")

	cfg, err := LoadFrom(path, true)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr, "env overrides file")
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "50/hour", cfg.RateLimit.Default)
	assert.Equal(t, "10/minute", cfg.RateLimit.Paths["/api/v1/appointments/"])
	assert.Equal(t, "5/minute", cfg.RateLimit.Paths["/api/v1/auth/login/"], "defaults merge with file paths")
	assert.Equal(t, StoreRedis, cfg.CounterStore())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"unknown environment", func(c *Config) { c.Server.Environment = "staging" }},
		{"bad trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.1"} }},
		{"health path without slash", func(c *Config) { c.Server.HealthPath = "health" }},
		{"unknown store", func(c *Config) { c.RateLimit.Store = "etcd" }},
		{"redis store without url", func(c *Config) { c.RateLimit.Store = StoreRedis }},
		{"postgres store without url", func(c *Config) { c.RateLimit.Store = StorePostgres }},
		{"debug in production", func(c *Config) {
			c.Server.Environment = EnvProduction
			c.Server.Debug = true
		}},
		{"bad version date", func(c *Config) {
			c.Versioning.Versions = []VersionConfig{{Version: "1.0", Status: "current", ReleaseDate: "01/01/2024"}}
		}},
		{"bad version status", func(c *Config) {
			c.Versioning.Versions = []VersionConfig{{Version: "1.0", Status: "beta", ReleaseDate: "2024-01-01"}}
		}},
		{"bad acks", func(c *Config) { c.Kafka.Acks = "2" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		cfg := Default()
		assert.NoError(t, cfg.Validate())
	})
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "ratelimit.store", envKey("DIYET_RATELIMIT__STORE"))
	assert.Equal(t, "server.health_path", envKey("DIYET_SERVER__HEALTH_PATH"))
}
