package enterprise_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/controlplane/pkg/audit"
	"github.com/dmitrymomot/controlplane/pkg/breaker"
	"github.com/dmitrymomot/controlplane/pkg/feature"
	"github.com/dmitrymomot/controlplane/pkg/ratelimiter"
	"github.com/dmitrymomot/controlplane/pkg/rbac"
	"github.com/dmitrymomot/controlplane/svc/enterprise"
)

var errDown = errors.New("connection refused")

type fixture struct {
	handler http.Handler
	guards  enterprise.Guards
	events  *audit.MemoryStorage
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	downstream enterprise.Downstream
	noReader   bool
}

func withDownstream(d enterprise.Downstream) fixtureOption {
	return func(c *fixtureConfig) { c.downstream = d }
}

func withoutReader() fixtureOption {
	return func(c *fixtureConfig) { c.noReader = true }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{downstream: func(context.Context) error { return nil }}
	for _, opt := range opts {
		opt(&cfg)
	}

	events := audit.NewMemoryStorage()
	auditLog := audit.NewLogger(events, audit.WithUserIDExtractor(enterprise.LookupUserID))

	store, err := feature.NewMemoryStore(feature.Defaults())
	require.NoError(t, err)
	engine, err := feature.NewEngine(store,
		feature.WithAuditLogger(auditLog),
		feature.WithUserIDExtractor(enterprise.UserID),
		feature.WithAttributesExtractor(enterprise.Attributes),
	)
	require.NoError(t, err)

	limiterStore := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(limiterStore.Close)
	limiter, err := ratelimiter.NewBucket(limiterStore, ratelimiter.DefaultConfig())
	require.NoError(t, err)

	guards := enterprise.Guards{
		Breaker: breaker.New(breaker.Config{FailureThreshold: 2, RecoveryTimeout: time.Hour, HalfOpenMaxCalls: 1},
			breaker.WithName("demo")),
		Flags:   engine,
		Limiter: limiter,
	}

	authz, err := rbac.NewAuthorizer(context.Background(), rbac.NewMemorySource(rbac.DefaultRoles()))
	require.NoError(t, err)

	svcOpts := []enterprise.Option{
		enterprise.WithAuditLogger(auditLog),
		enterprise.WithDownstream(cfg.downstream),
	}
	if !cfg.noReader {
		svcOpts = append(svcOpts, enterprise.WithAuditReader(audit.NewReader(events)))
	}

	svc, err := enterprise.NewService(guards, authz, svcOpts...)
	require.NoError(t, err)

	return &fixture{handler: svc.Handle(), guards: guards, events: events}
}

type envelope struct {
	Code  string          `json:"code"`
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *struct {
		Code    string              `json:"code"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

func (f *fixture) do(t *testing.T, method, target, user, roles, body string) (int, envelope) {
	t.Helper()

	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.RemoteAddr = "192.0.2.10:4000"
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		r.Header.Set(enterprise.HeaderUserID, user)
	}
	if roles != "" {
		r.Header.Set(enterprise.HeaderUserRoles, roles)
	}

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func errorCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestNewService_Validation(t *testing.T) {
	t.Parallel()

	authz, err := rbac.NewAuthorizer(context.Background(), rbac.NewMemorySource(nil))
	require.NoError(t, err)

	_, err = enterprise.NewService(enterprise.Guards{}, authz)
	require.ErrorIs(t, err, enterprise.ErrMissingGuard)
	assert.Contains(t, err.Error(), "circuit breaker is nil")
	assert.Contains(t, err.Error(), "rate limiter is nil")

	f := newFixture(t)
	_, err = enterprise.NewService(f.guards, nil)
	require.ErrorIs(t, err, enterprise.ErrMissingAuthorizer)
}

func TestFlags_Authorization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	status, env := f.do(t, http.MethodGet, "/feature-flags", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(env))

	status, env = f.do(t, http.MethodGet, "/feature-flags", "u-1", "premium", "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", errorCode(env))

	status, _ = f.do(t, http.MethodPut, "/feature-flags/x", "u-1", "viewer", `{"enabled":true}`)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = f.do(t, http.MethodGet, "/feature-flags", "u-1", "viewer", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "feature_flags", env.Code)
	assert.Equal(t, float64(3), env.Meta["total"])

	var flags []feature.Flag
	require.NoError(t, json.Unmarshal(env.Data, &flags))
	names := make([]string, 0, len(flags))
	for _, fl := range flags {
		names = append(names, fl.Name)
	}
	assert.Equal(t, []string{feature.FlagAdvancedAnalytics, feature.FlagBetaFeatures, feature.FlagUserRegistration}, names)

	status, env = f.do(t, http.MethodGet, "/feature-flags?tag=beta", "u-1", "viewer", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), env.Meta["total"])

	listed, err := f.events.Query(context.Background(), audit.Criteria{Action: enterprise.ActionListFlags})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "u-1", listed[0].UserID)
}

func TestFlags_CRUD(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const op, roles = "op-1", "operator"

	status, env := f.do(t, http.MethodPut, "/feature-flags/new_checkout", op, roles,
		`{"description":"new checkout","enabled":true,"rollout_percentage":25,"conditions":{"region":["eu"]},"tags":["payments"]}`)
	require.Equal(t, http.StatusOK, status, errorCode(env))
	assert.Equal(t, "feature_flag_saved", env.Code)

	var saved feature.Flag
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Equal(t, "new_checkout", saved.Name)
	assert.InDelta(t, 25, saved.RolloutPercentage, 0.0001)
	assert.Equal(t, map[string][]string{"region": {"eu"}}, saved.Conditions)
	assert.False(t, saved.CreatedAt.IsZero())

	status, env = f.do(t, http.MethodGet, "/feature-flags/new_checkout", op, roles, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "feature_flag", env.Code)

	status, env = f.do(t, http.MethodPut, "/feature-flags/new_checkout", op, roles, `{"rollout_percentage":150}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_flag", errorCode(env))

	status, env = f.do(t, http.MethodPut, "/feature-flags/new_checkout", op, roles, `{"name":"other"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_error", errorCode(env))
	assert.Contains(t, env.Error.Details, "name")

	status, env = f.do(t, http.MethodPut, "/feature-flags/new_checkout", op, roles, `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", errorCode(env))

	status, env = f.do(t, http.MethodPost, "/feature-flags/new_checkout/toggle", op, roles, "")
	require.Equal(t, http.StatusOK, status)
	var toggled feature.Flag
	require.NoError(t, json.Unmarshal(env.Data, &toggled))
	assert.False(t, toggled.Enabled)

	status, env = f.do(t, http.MethodPut, "/feature-flags/new_checkout/rollout", op, roles, `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_error", errorCode(env))

	status, env = f.do(t, http.MethodPut, "/feature-flags/new_checkout/rollout", op, roles, `{"percentage":75}`)
	require.Equal(t, http.StatusOK, status)
	var rolled feature.Flag
	require.NoError(t, json.Unmarshal(env.Data, &rolled))
	assert.InDelta(t, 75, rolled.RolloutPercentage, 0.0001)

	status, _ = f.do(t, http.MethodDelete, "/feature-flags/new_checkout", op, roles, "")
	assert.Equal(t, http.StatusNoContent, status)

	status, env = f.do(t, http.MethodGet, "/feature-flags/new_checkout", op, roles, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "flag_not_found", errorCode(env))

	status, env = f.do(t, http.MethodPost, "/feature-flags/new_checkout/toggle", op, roles, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "flag_not_found", errorCode(env))

	for _, action := range []string{feature.ActionSet, feature.ActionToggle, feature.ActionRollout, feature.ActionDelete} {
		n, err := f.events.Count(context.Background(), audit.Criteria{Action: action, UserID: op})
		require.NoError(t, err)
		assert.Positive(t, n, action)
	}
}

func TestFlags_Check(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	status, _ := f.do(t, http.MethodGet, "/feature-flags/beta_features/check", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	check := func(user, roles, flag string) enterprise.FlagCheck {
		t.Helper()
		status, env := f.do(t, http.MethodGet, "/feature-flags/"+flag+"/check", user, roles, "")
		require.Equal(t, http.StatusOK, status)
		var res enterprise.FlagCheck
		require.NoError(t, json.Unmarshal(env.Data, &res))
		return res
	}

	res := check("u-1", "premium", feature.FlagBetaFeatures)
	assert.False(t, res.Enabled, "beta_features is disabled by default")
	assert.Equal(t, enterprise.TierPremium, res.UserTier)

	_, err := f.guards.Flags.ToggleFlag(context.Background(), feature.FlagBetaFeatures)
	require.NoError(t, err)
	_, err = f.guards.Flags.SetRollout(context.Background(), feature.FlagBetaFeatures, 100)
	require.NoError(t, err)

	assert.True(t, check("u-1", "premium", feature.FlagBetaFeatures).Enabled)
	basic := check("u-2", "", feature.FlagBetaFeatures)
	assert.False(t, basic.Enabled, "basic tier is outside the condition")
	assert.Equal(t, enterprise.TierBasic, basic.UserTier)

	missing := check("u-1", "premium", "does_not_exist")
	assert.False(t, missing.Enabled)
	assert.Equal(t, "does_not_exist", missing.FlagName)

	first := check("u-42", "", feature.FlagAdvancedAnalytics).Enabled
	for range 5 {
		assert.Equal(t, first, check("u-42", "", feature.FlagAdvancedAnalytics).Enabled, "identified rollout is stable")
	}
}

func TestFeatures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	status, env := f.do(t, http.MethodGet, "/features", "u-1", "premium", "")
	require.Equal(t, http.StatusOK, status)

	var set enterprise.FeatureSet
	require.NoError(t, json.Unmarshal(env.Data, &set))
	assert.Equal(t, "u-1", set.UserID)
	assert.Len(t, set.Features, 3)
	assert.True(t, set.Features[feature.FlagUserRegistration])
	assert.False(t, set.Features[feature.FlagBetaFeatures])
}

func TestCircuitBreaker_DemoOpensCircuit(t *testing.T) {
	t.Parallel()

	calls := 0
	f := newFixture(t, withDownstream(func(context.Context) error {
		calls++
		return errDown
	}))

	type demoResult struct {
		Status       string `json:"status"`
		Reason       string `json:"reason"`
		CircuitState string `json:"circuit_state"`
		FailureCount uint32 `json:"failure_count"`
	}
	demo := func() demoResult {
		t.Helper()
		status, env := f.do(t, http.MethodGet, "/circuit-breaker/demo", "", "", "")
		require.Equal(t, http.StatusOK, status)
		var res demoResult
		require.NoError(t, json.Unmarshal(env.Data, &res))
		return res
	}

	first := demo()
	assert.Equal(t, "failed", first.Status)
	assert.Equal(t, "downstream_failed", first.Reason)
	assert.Equal(t, "closed", first.CircuitState)
	assert.Equal(t, uint32(1), first.FailureCount)

	second := demo()
	assert.Equal(t, "downstream_failed", second.Reason)
	assert.Equal(t, "open", second.CircuitState)

	third := demo()
	assert.Equal(t, "circuit_open", third.Reason)
	assert.Equal(t, 2, calls, "open circuit does not invoke the downstream")

	status, env := f.do(t, http.MethodGet, "/circuit-breaker", "", "", "")
	require.Equal(t, http.StatusOK, status)
	var view map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "open", view["state"])
	assert.Equal(t, "demo", view["name"])
	assert.Equal(t, float64(2), view["failure_threshold"])
	assert.Equal(t, float64(3600), view["recovery_timeout_seconds"])
	assert.NotEmpty(t, view["last_failure_at"])
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withDownstream(func(context.Context) error { return errDown }))
	for range 2 {
		f.do(t, http.MethodGet, "/circuit-breaker/demo", "", "", "")
	}
	require.Equal(t, breaker.StateOpen, f.guards.Breaker.State())

	status, _ := f.do(t, http.MethodPost, "/circuit-breaker/reset", "u-1", "viewer", "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, breaker.StateOpen, f.guards.Breaker.State())

	status, env := f.do(t, http.MethodPost, "/circuit-breaker/reset", "admin-1", "admin", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "circuit_breaker_reset", env.Code)
	assert.Equal(t, breaker.StateClosed, f.guards.Breaker.State())
	assert.Zero(t, f.guards.Breaker.FailureCount())

	events, err := f.events.Query(context.Background(), audit.Criteria{Action: enterprise.ActionBreakerReset})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "admin-1", events[0].UserID)
	assert.Equal(t, "demo", events[0].ResourceID)
	assert.Equal(t, "open", events[0].Metadata["previous_state"])
}

func TestRateLimit_StatusAndReset(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	for range 3 {
		_, err := f.guards.Limiter.Check(ctx, "ip:192.0.2.10")
		require.NoError(t, err)
	}

	status, env := f.do(t, http.MethodGet, "/rate-limit", "", "", "")
	require.Equal(t, http.StatusOK, status)
	var rl enterprise.RateLimitStatus
	require.NoError(t, json.Unmarshal(env.Data, &rl))
	assert.Equal(t, "ip:192.0.2.10", rl.Key)
	assert.Equal(t, 100, rl.Limit)
	assert.Equal(t, 97, rl.Remaining)

	status, _ = f.do(t, http.MethodDelete, "/rate-limit/ip:192.0.2.10", "u-1", "auditor", "")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = f.do(t, http.MethodDelete, "/rate-limit/ip:192.0.2.10", "op-1", "operator", "")
	assert.Equal(t, http.StatusNoContent, status)

	res, err := f.guards.Limiter.Status(ctx, "ip:192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, 100, res.Remaining)

	n, err := f.events.Count(ctx, audit.Criteria{Action: enterprise.ActionRateLimitReset})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAuditTrail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.guards.Flags.ToggleFlag(
		enterprise.WithIdentity(context.Background(), enterprise.Identity{UserID: "target"}),
		feature.FlagAdvancedAnalytics,
	)
	require.NoError(t, err)

	status, _ := f.do(t, http.MethodGet, "/audit/users/target", "op-1", "operator", "")
	assert.Equal(t, http.StatusForbidden, status)

	status, env := f.do(t, http.MethodGet, "/audit/users/target", "aud-1", "auditor", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "audit_trail", env.Code)
	assert.Equal(t, float64(1), env.Meta["total"])
	assert.Equal(t, float64(100), env.Meta["limit"])

	var events []audit.Event
	require.NoError(t, json.Unmarshal(env.Data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, feature.ActionToggle, events[0].Action)

	status, env = f.do(t, http.MethodGet, "/audit/users/nobody?limit=5000", "aud-1", "auditor", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1000), env.Meta["limit"])
	assert.JSONEq(t, `[]`, string(env.Data))

	status, env = f.do(t, http.MethodGet, "/audit/users/target?offset=-1", "aud-1", "auditor", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", errorCode(env))

	viewed, err := f.events.Count(context.Background(), audit.Criteria{Action: enterprise.ActionViewAuditTrail, UserID: "aud-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), viewed)
}

func TestAuditTrail_NotConfigured(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withoutReader())

	status, env := f.do(t, http.MethodGet, "/audit/users/target", "admin-1", "admin", "")
	assert.Equal(t, http.StatusNotImplemented, status)
	assert.Equal(t, "not_implemented", errorCode(env))
}
