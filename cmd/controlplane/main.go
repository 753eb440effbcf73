// Command controlplane serves the circuit breaker, rate limiter and feature
// flag guards over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/controlplane/modules/api"
	"github.com/dmitrymomot/controlplane/pkg/audit"
	"github.com/dmitrymomot/controlplane/pkg/breaker"
	"github.com/dmitrymomot/controlplane/pkg/clientip"
	"github.com/dmitrymomot/controlplane/pkg/feature"
	"github.com/dmitrymomot/controlplane/pkg/httpserver"
	"github.com/dmitrymomot/controlplane/pkg/logger"
	"github.com/dmitrymomot/controlplane/pkg/metrics"
	"github.com/dmitrymomot/controlplane/pkg/pg"
	"github.com/dmitrymomot/controlplane/pkg/ratelimiter"
	"github.com/dmitrymomot/controlplane/pkg/rbac"
	"github.com/dmitrymomot/controlplane/pkg/redis"
	"github.com/dmitrymomot/controlplane/pkg/requestid"
	"github.com/dmitrymomot/controlplane/svc/enterprise"
)

const readinessTimeout = 2 * time.Second

var errUnknownAuditSink = errors.New("unknown audit sink")

func main() {
	cfg, err := loadSettings()
	if err != nil {
		slog.Error("failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	log := logger.New(
		logger.WithEnvironment(cfg.app.Env, cfg.app.Name),
		logger.WithLevel(logger.ParseLevel(cfg.app.LogLevel)),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			requestid.CorrelationLoggerExtractor(),
			clientip.LoggerExtractor(),
			enterprise.LoggerExtractor(),
		),
	)
	logger.SetAsDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("controlplane stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg settings, log *slog.Logger) error {
	prom := metrics.NewPrometheus(metrics.WithNamespace("controlplane"), metrics.WithLogger(log))

	var (
		checks    []httpserver.Check
		stopHooks []func()
	)

	auditStorage, reader, handle, err := openAuditStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	if handle.check != nil {
		checks = append(checks, *handle.check)
	}

	writer := audit.NewAsyncWriter(auditStorage, cfg.audit, audit.WithAsyncLogger(log))
	stopHooks = append(stopHooks, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := writer.Close(ctx); err != nil {
			log.Warn("audit writer did not drain", logger.Error(err))
		}
		if handle.close != nil {
			handle.close()
		}
	})

	auditLog := audit.NewLogger(writer,
		audit.WithUserIDExtractor(enterprise.LookupUserID),
		audit.WithRequestIDExtractor(requestid.Lookup),
		audit.WithIPExtractor(clientip.Lookup),
	)

	downstream := enterprise.SimulatedDownstream(cfg.app.DemoFailureRate, nil)
	if cfg.redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.redis)
		if err != nil {
			return err
		}
		downstream = enterprise.Downstream(redis.Downstream(client, cfg.redis.PingTimeout))
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
		stopHooks = append(stopHooks, func() { _ = client.Close() })
		log.InfoContext(ctx, "breaker demo guards redis", logger.Component("controlplane"))
	}

	guards, err := newGuards(cfg, log, prom, auditLog)
	if err != nil {
		return err
	}

	authz, err := rbac.NewAuthorizer(ctx, cfg.rbac.Source())
	if err != nil {
		return err
	}

	opts := []enterprise.Option{
		enterprise.WithAuditLogger(auditLog),
		enterprise.WithDownstream(downstream),
		enterprise.WithMetrics(prom),
		enterprise.WithLogger(log),
	}
	if reader != nil {
		opts = append(opts, enterprise.WithAuditReader(reader))
	}
	svc, err := enterprise.NewService(guards.Guards, authz, opts...)
	if err != nil {
		return err
	}

	stopHooks = append(stopHooks, guards.store.Close)

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		clientip.MiddlewareWith(cfg.clientip.Resolver()),
		middleware.Recoverer,
		httpserver.SecurityHeaders,
		metrics.Middleware(prom),
	)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, readinessTimeout, checks...))
	r.Method(http.MethodGet, "/metrics", prom.Handler())

	r.Mount("/api", api.Router(api.RouterOptions{
		Enterprise: svc,
		Middlewares: []func(http.Handler) http.Handler{
			middleware.Timeout(cfg.http.RequestTimeout),
			ratelimiter.Middleware(guards.Limiter, ratelimiter.ByIP()),
		},
	}))

	server := httpserver.NewFromConfig(cfg.http,
		httpserver.WithLogger(log),
		httpserver.WithStopHook(func() {
			for _, h := range stopHooks {
				h()
			}
		}),
	)
	return server.Run(ctx, r)
}

type storageHandle struct {
	check *httpserver.Check
	close func()
}

// openAuditStorage picks Postgres when configured, otherwise the AUDIT_SINK
// in-process storage. The reader is nil when the storage cannot be queried.
func openAuditStorage(ctx context.Context, cfg settings, log *slog.Logger) (audit.BatchStorage, *audit.Reader, storageHandle, error) {
	if cfg.pg.Enabled() {
		pool, err := pg.Connect(ctx, cfg.pg)
		if err != nil {
			return nil, nil, storageHandle{}, err
		}
		if err := pg.Migrate(ctx, pool, audit.Migrations(), cfg.pg, log); err != nil {
			pool.Close()
			return nil, nil, storageHandle{}, err
		}
		storage := audit.NewPostgresStorage(pool)
		return storage, audit.NewReader(storage), storageHandle{
			check: &httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
			close: pool.Close,
		}, nil
	}

	switch cfg.app.AuditSink {
	case auditSinkLog:
		return audit.NewSlogStorage(log), nil, storageHandle{}, nil
	case auditSinkMemory, "":
		storage := audit.NewMemoryStorage()
		return storage, audit.NewReader(storage), storageHandle{}, nil
	default:
		return nil, nil, storageHandle{}, fmt.Errorf("%w: %q", errUnknownAuditSink, cfg.app.AuditSink)
	}
}

type appGuards struct {
	enterprise.Guards
	store *ratelimiter.MemoryStore
}

// newGuards builds the single instance of each guard shared by every route.
func newGuards(cfg settings, log *slog.Logger, sink metrics.Sink, auditLog audit.Logger) (appGuards, error) {
	seed := feature.Defaults()
	if cfg.app.FeatureFlagsFile != "" {
		var err error
		if seed, err = feature.LoadFile(cfg.app.FeatureFlagsFile); err != nil {
			return appGuards{}, err
		}
	}
	flagStore, err := feature.NewMemoryStore(seed)
	if err != nil {
		return appGuards{}, err
	}
	flags, err := feature.NewEngine(flagStore,
		feature.WithAuditLogger(auditLog),
		feature.WithMetrics(sink),
		feature.WithLogger(log),
		feature.WithUserIDExtractor(enterprise.UserID),
		feature.WithAttributesExtractor(enterprise.Attributes),
	)
	if err != nil {
		return appGuards{}, err
	}

	cb := breaker.New(cfg.breaker,
		breaker.WithName("enterprise"),
		breaker.WithLogger(log),
		breaker.WithMetrics(sink),
	)

	store := ratelimiter.NewMemoryStore(ratelimiter.WithStoreConfig(cfg.store))
	limiter, err := ratelimiter.NewBucket(store, cfg.limit,
		ratelimiter.WithName("api"),
		ratelimiter.WithMetrics(sink),
		ratelimiter.WithLogger(log),
	)
	if err != nil {
		store.Close()
		return appGuards{}, err
	}

	return appGuards{
		Guards: enterprise.Guards{Breaker: cb, Flags: flags, Limiter: limiter},
		store:  store,
	}, nil
}
