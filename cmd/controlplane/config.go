package main

import (
	"errors"

	"github.com/dmitrymomot/controlplane/pkg/audit"
	"github.com/dmitrymomot/controlplane/pkg/breaker"
	"github.com/dmitrymomot/controlplane/pkg/clientip"
	"github.com/dmitrymomot/controlplane/pkg/config"
	"github.com/dmitrymomot/controlplane/pkg/httpserver"
	"github.com/dmitrymomot/controlplane/pkg/pg"
	"github.com/dmitrymomot/controlplane/pkg/ratelimiter"
	"github.com/dmitrymomot/controlplane/pkg/rbac"
	"github.com/dmitrymomot/controlplane/pkg/redis"
)

// Audit sinks used when Postgres is not configured.
const (
	auditSinkMemory = "memory"
	auditSinkLog    = "log"
)

type appConfig struct {
	Name             string  `env:"APP_NAME" envDefault:"controlplane"`
	Env              string  `env:"APP_ENV" envDefault:"development"`
	LogLevel         string  `env:"LOG_LEVEL" envDefault:"info"`
	FeatureFlagsFile string  `env:"FEATURE_FLAGS_FILE"`
	AuditSink        string  `env:"AUDIT_SINK" envDefault:"memory"`
	DemoFailureRate  float64 `env:"DEMO_FAILURE_RATE" envDefault:"0.3"`
}

type settings struct {
	app      appConfig
	http     httpserver.Config
	clientip clientip.Config
	breaker  breaker.Config
	limit    ratelimiter.Config
	store    ratelimiter.StoreConfig
	audit    audit.AsyncOptions
	pg       pg.Config
	redis    redis.Config
	rbac     rbac.Config
}

func loadSettings() (settings, error) {
	var s settings
	err := errors.Join(
		config.Load(&s.app),
		config.Load(&s.http),
		config.Load(&s.clientip),
		config.Load(&s.breaker),
		config.Load(&s.limit),
		config.Load(&s.store),
		config.Load(&s.audit),
		config.Load(&s.pg),
		config.Load(&s.redis),
		config.Load(&s.rbac),
	)
	return s, err
}
