// Package config loads process configuration from an optional YAML file and
// DIYET_-prefixed environment variables, in that order, over built-in defaults.
//
// Nested keys use a double underscore in the environment:
//
//	DIYET_REDIS__URL=redis://localhost:6379/0
//	DIYET_RATELIMIT__STORE=memory
//	DIYET_SERVER__DEBUG=true
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix      = "DIYET_"
	envConfigFile  = "DIYET_CONFIG_FILE"
	defaultCfgFile = "config.yaml"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Rate-limit store backends.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Redis      RedisConfig      `koanf:"redis"`
	Database   DatabaseConfig   `koanf:"database"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Versioning VersioningConfig `koanf:"versioning"`
	Auth       AuthConfig       `koanf:"auth"`
	Kafka      KafkaConfig      `koanf:"kafka"`
	Tracing    TracingConfig    `koanf:"tracing"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr        string `koanf:"addr" validate:"required"`
	Environment string `koanf:"environment" validate:"oneof=development production test"`
	// Debug surfaces internal error detail to clients and drops the CSP header.
	Debug             bool          `koanf:"debug"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	TrustedProxies    []string      `koanf:"trusted_proxies" validate:"dive,cidr"`
	AdminToken        string        `koanf:"admin_token"`
	HealthPath        string        `koanf:"health_path" validate:"required,startswith=/"`
	// MaxLoggedBody caps how much of a request body the ingress logger reads.
	MaxLoggedBody int64 `koanf:"max_logged_body" validate:"gte=0"`
	// MaxBodyBytes caps request bodies; larger bodies are answered with 413. Zero disables the cap.
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// RedisConfig configures the shared counter store and health cache probe.
// An empty URL leaves Redis unconfigured.
type RedisConfig struct {
	URL           string        `koanf:"url"`
	PoolSize      int           `koanf:"pool_size" validate:"gte=0"`
	MinIdleConns  int           `koanf:"min_idle_conns" validate:"gte=0"`
	DialTimeout   time.Duration `koanf:"dial_timeout"`
	ReadTimeout   time.Duration `koanf:"read_timeout"`
	WriteTimeout  time.Duration `koanf:"write_timeout"`
	StatsInterval time.Duration `koanf:"stats_interval"`
}

// DatabaseConfig configures the Postgres pool. An empty URL leaves it unconfigured.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	Migrate         bool          `koanf:"migrate"`
}

type RateLimitConfig struct {
	Enabled bool `koanf:"enabled"`
	// Store selects the counter backend. Empty picks redis when configured, else memory.
	Store          string            `koanf:"store" validate:"omitempty,oneof=redis postgres memory"`
	Default        string            `koanf:"default" validate:"required"`
	Paths          map[string]string `koanf:"paths"`
	ExemptPrefixes []string          `koanf:"exempt_prefixes"`
	SweepInterval  time.Duration     `koanf:"sweep_interval"`
	// BreakerFailures consecutive store errors open the circuit for BreakerCooldown.
	BreakerFailures int           `koanf:"breaker_failures" validate:"gte=0"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" validate:"gte=0"`
}

type VersioningConfig struct {
	Default string `koanf:"default" validate:"required"`
	// Versions replaces the built-in version table when non-empty.
	Versions []VersionConfig `koanf:"versions" validate:"dive"`
}

// VersionConfig describes one API version. Dates are YYYY-MM-DD.
type VersionConfig struct {
	Version             string   `koanf:"version" validate:"required"`
	Status              string   `koanf:"status" validate:"oneof=current supported deprecated sunset"`
	ReleaseDate         string   `koanf:"release_date" validate:"required,datetime=2006-01-02"`
	SunsetDate          string   `koanf:"sunset_date" validate:"omitempty,datetime=2006-01-02"`
	Features            []string `koanf:"features"`
	BreakingChanges     []string `koanf:"breaking_changes"`
	DeprecatedEndpoints []string `koanf:"deprecated_endpoints"`
}

type AuthConfig struct {
	// JWTSigningKey verifies bearer tokens. Empty disables principal resolution.
	JWTSigningKey string `koanf:"jwt_signing_key"`
	Issuer        string `koanf:"issuer"`
}

// KafkaConfig configures governance event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers         []string      `koanf:"brokers"`
	Topic           string        `koanf:"topic"`
	ClientID        string        `koanf:"client_id"`
	Acks            string        `koanf:"acks" validate:"oneof=0 1 all"`
	Retries         int           `koanf:"retries" validate:"gte=0"`
	DeliveryTimeout time.Duration `koanf:"delivery_timeout"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8000",
			Environment:       EnvDevelopment,
			ShutdownTimeout:   10 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			HealthPath:        "/health/",
			MaxLoggedBody:     64 << 10,
			MaxBodyBytes:      10 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Redis: RedisConfig{
			PoolSize:      10,
			MinIdleConns:  2,
			DialTimeout:   5 * time.Second,
			ReadTimeout:   3 * time.Second,
			WriteTimeout:  3 * time.Second,
			StatsInterval: 15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Default: "200/hour",
			Paths: map[string]string{
				"/api/v1/auth/login/":    "5/minute",
				"/api/v1/auth/register/": "3/minute",
				"/notifications/api/":    "120/hour",
			},
			ExemptPrefixes:  []string{"/admin/", "/static/", "/media/", "/metrics"},
			SweepInterval:   time.Minute,
			BreakerFailures: 5,
			BreakerCooldown: 5 * time.Second,
		},
		Versioning: VersioningConfig{
			Default: "1.1",
		},
		Kafka: KafkaConfig{
			Topic:           "governance-events",
			ClientID:        "diyetlenio",
			Acks:            "all",
			Retries:         3,
			DeliveryTimeout: 30 * time.Second,
		},
		Tracing: TracingConfig{
			ServiceName: "diyetlenio",
		},
	}
}

// Load reads configuration from the YAML file named by DIYET_CONFIG_FILE
// (default config.yaml, optional) and then the environment.
func Load() (*Config, error) {
	path := os.Getenv(envConfigFile)
	required := path != ""
	if path == "" {
		path = defaultCfgFile
	}
	return LoadFrom(path, required)
}

// LoadFrom loads configuration from path. A missing file is an error only when required.
func LoadFrom(path string, required bool) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if required || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps DIYET_RATELIMIT__STORE to ratelimit.store.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.RateLimit.Store == StoreRedis && c.Redis.URL == "" {
		return fmt.Errorf("invalid config: ratelimit.store=redis requires redis.url")
	}
	if c.RateLimit.Store == StorePostgres && c.Database.URL == "" {
		return fmt.Errorf("invalid config: ratelimit.store=postgres requires database.url")
	}
	if c.Server.Environment == EnvProduction && c.Server.Debug {
		return fmt.Errorf("invalid config: debug mode is not allowed in production")
	}
	return nil
}

// CounterStore resolves which rate-limit backend to use.
func (c *Config) CounterStore() string {
	if c.RateLimit.Store != "" {
		return c.RateLimit.Store
	}
	if c.Redis.URL != "" {
		return StoreRedis
	}
	return StoreMemory
}

// KafkaEnabled reports whether governance events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
