package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"diyetlenio/internal/events"
	jwttoken "diyetlenio/internal/jwt_token"
	"diyetlenio/internal/platform/config"
	"diyetlenio/internal/platform/database"
	"diyetlenio/internal/platform/health"
	"diyetlenio/internal/platform/kafka/producer"
	platformmetrics "diyetlenio/internal/platform/metrics"
	platformredis "diyetlenio/internal/platform/redis"
	ratelimitconfig "diyetlenio/internal/ratelimit/config"
	ratelimithandler "diyetlenio/internal/ratelimit/handler"
	ratelimitmetrics "diyetlenio/internal/ratelimit/metrics"
	ratelimitmw "diyetlenio/internal/ratelimit/middleware"
	"diyetlenio/internal/ratelimit/ports"
	"diyetlenio/internal/ratelimit/service/requestlimit"
	"diyetlenio/internal/ratelimit/store/window"
	"diyetlenio/internal/ratelimit/workers/cleanup"
	httptransport "diyetlenio/internal/transport/http"
	"diyetlenio/internal/transport/httputil"
	"diyetlenio/internal/versioning"
	versionhandler "diyetlenio/internal/versioning/handler"
	"diyetlenio/migrations"
	"diyetlenio/pkg/platform/circuit"
	"diyetlenio/pkg/platform/middleware/metadata"
	"diyetlenio/pkg/platform/middleware/request"
)

// app is the assembled process: the HTTP handler, background workers and
// the resources to release on exit.
type app struct {
	Handler http.Handler
	Workers []func(context.Context) error
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.Config, reg *prometheus.Registry, log *slog.Logger) (*app, error) {
	a := &app{}
	healthHandler := health.New(cfg.Server.Environment)

	redisClient, err := platformredis.Open(cfg.Redis, reg)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		a.closers = append(a.closers, func() { logCloseErr(log, "redis", redisClient) })
		healthHandler.RegisterCheck(health.CheckCache, redisClient.Probe)
		a.Workers = append(a.Workers, func(ctx context.Context) error {
			return redisClient.RunPoolStats(ctx, cfg.Redis.StatsInterval)
		})
	}

	pool, err := database.Open(database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	if pool != nil {
		a.closers = append(a.closers, func() { logCloseErr(log, "database", pool) })
		healthHandler.RegisterCheck(health.CheckDatabase, pool.Health)
		if cfg.Database.Migrate {
			if err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
				a.Close()
				return nil, err
			}
		}
	}

	publisher, err := newPublisher(cfg, log, healthHandler, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	counters := httputil.NewErrorCounters(reg)
	translator := httputil.NewTranslator(log, counters,
		httputil.WithDebug(cfg.Server.Debug),
		httputil.WithErrorPublisher(publisher),
	)

	versions, err := versioning.FromConfig(cfg.Versioning)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("version registry: %w", err)
	}

	proxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := httptransport.Dependencies{
		Config: httptransport.Config{
			HealthPath:    cfg.Server.HealthPath,
			AdminToken:    cfg.Server.AdminToken,
			Debug:         cfg.Server.Debug,
			MaxLoggedBody: cfg.Server.MaxLoggedBody,
			MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		},
		Logger:         log,
		Translator:     translator,
		Versions:       versions,
		Health:         healthHandler,
		Metadata:       metadata.NewMiddleware(proxies),
		RequestMetrics: request.NewMetrics(reg),
		Metrics:        platformmetrics.Handler(reg),
		Modules:        []httptransport.Module{versionhandler.New(versions)},
		AdminModules:   []httptransport.AdminModule{httptransport.NewErrorsHandler(counters, log)},
	}
	if cfg.Auth.JWTSigningKey != "" {
		deps.Tokens = jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)
	} else {
		log.Warn("no jwt signing key configured, every request is anonymous")
	}

	if cfg.RateLimit.Enabled {
		limiter, err := newRateLimiter(cfg, reg, log, redisClient, pool, a)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.RateLimit = ratelimitmw.New(limiter, log,
			ratelimitmw.WithErrorRecorder(counters),
			ratelimitmw.WithPublisher(publisher),
		)
		deps.AdminModules = append(deps.AdminModules, ratelimithandler.New(limiter, log))
	} else {
		log.Warn("rate limiting disabled")
	}

	a.Handler = httptransport.NewRouter(deps)
	return a, nil
}

// newRateLimiter builds the counter store named by configuration and the
// admission service over it. Stores without native expiry get a sweeper.
func newRateLimiter(cfg *config.Config, reg prometheus.Registerer, log *slog.Logger, redisClient *platformredis.Client, pool *database.Pool, a *app) (*requestlimit.Service, error) {
	policy, err := ratelimitconfig.NewPolicy(cfg.RateLimit.Default, cfg.RateLimit.Paths, cfg.RateLimit.ExemptPrefixes)
	if err != nil {
		return nil, fmt.Errorf("rate limit policy: %w", err)
	}
	m := ratelimitmetrics.New(reg)

	var (
		store   ports.CounterStore
		expirer cleanup.ExpiredWindowStore
	)
	switch cfg.CounterStore() {
	case config.StoreRedis:
		store = withBreaker(window.NewRedisStore(redisClient.Client), "redis", cfg, log)
	case config.StorePostgres:
		pg := window.NewPostgresStore(pool.DB())
		store, expirer = withBreaker(pg, "postgres", cfg, log), pg
	default:
		mem := window.NewInMemoryStore()
		store, expirer = mem, mem
	}
	if expirer != nil {
		sweeper := cleanup.New(expirer,
			cleanup.WithLogger(log),
			cleanup.WithInterval(cfg.RateLimit.SweepInterval),
			cleanup.WithMetrics(m),
		)
		a.Workers = append(a.Workers, sweeper.Start)
	}

	svc, err := requestlimit.New(store,
		requestlimit.WithPolicy(policy),
		requestlimit.WithLogger(log),
		requestlimit.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	log.Info("rate limiting enabled", "store", cfg.CounterStore(), "default", policy.Default().String())
	return svc, nil
}

// withBreaker guards a networked counter store so an outage fails open
// without waiting on the backend for every request.
func withBreaker(store ports.CounterStore, name string, cfg *config.Config, log *slog.Logger) ports.CounterStore {
	b := circuit.New("ratelimit-"+name,
		circuit.WithFailureThreshold(cfg.RateLimit.BreakerFailures),
		circuit.WithCooldown(cfg.RateLimit.BreakerCooldown),
	)
	return window.NewBreakerStore(store, b, log)
}

func newPublisher(cfg *config.Config, log *slog.Logger, h *health.Handler, a *app) (events.Publisher, error) {
	if !cfg.KafkaEnabled() {
		return events.NoopPublisher{}, nil
	}
	p, err := producer.New(producer.Config{
		Brokers:         cfg.Kafka.Brokers,
		ClientID:        cfg.Kafka.ClientID,
		Acks:            cfg.Kafka.Acks,
		Retries:         cfg.Kafka.Retries,
		DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
		CloseTimeout:    5 * time.Second,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	a.closers = append(a.closers, func() { logCloseErr(log, "kafka", p) })
	h.RegisterCheck("kafka", func(ctx context.Context) error {
		if !p.Healthy(ctx) {
			return fmt.Errorf("no reachable broker")
		}
		return nil
	})
	log.Info("governance events enabled", "topic", cfg.Kafka.Topic)
	return events.NewKafkaPublisher(p, cfg.Kafka.Topic, log), nil
}
