package enterprise

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/dmitrymomot/controlplane/pkg/feature"
	"github.com/dmitrymomot/controlplane/pkg/rbac"
)

// Headers set by the upstream gateway after it authenticated the caller.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRoles = "X-User-Roles"
)

// Tier values exposed to flag conditions under the "user_tier" attribute.
const (
	AttrUserTier = "user_tier"
	TierPremium  = "premium"
	TierBasic    = "basic"
	RolePremium  = "premium"
)

const maxUserIDLength = 128

// Identity is the authenticated caller as asserted by the gateway.
type Identity struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
}

// HasRole reports whether the caller holds role.
func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// Tier is "premium" for callers with the premium role, "basic" otherwise.
func (i Identity) Tier() string {
	if i.HasRole(RolePremium) {
		return TierPremium
	}
	return TierBasic
}

type identityCtxKey struct{}

// WithIdentity stores id in ctx together with its roles for rbac checks.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = rbac.WithRoles(ctx, id.Roles)
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext returns the caller stored by HeaderIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// UserID returns the caller id or "" for anonymous requests.
// It matches feature.UserIDExtractor.
func UserID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// LookupUserID matches audit.Extractor.
func LookupUserID(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}

// Attributes returns the flag evaluation attributes of the caller, or nil
// for anonymous requests so that conditional flags fail closed.
// It matches feature.AttributesExtractor.
func Attributes(ctx context.Context) feature.Attributes {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil
	}
	return feature.Attributes{AttrUserTier: id.Tier()}
}

// LoggerExtractor adds "user_id" to log records of identified requests.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IdentityFromContext(ctx); ok {
			return slog.String("user_id", id.UserID), true
		}
		return slog.Attr{}, false
	}
}

// HeaderIdentity reads the caller from X-User-ID and X-User-Roles.
// Roles may be separated by commas or spaces and are lower-cased.
// Requests without a valid user id continue anonymously.
func HeaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" || len(userID) > maxUserIDLength {
			next.ServeHTTP(w, r)
			return
		}

		id := Identity{
			UserID: userID,
			Roles:  parseRoles(r.Header.Values(HeaderUserRoles)),
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func parseRoles(values []string) []string {
	var roles []string
	for _, v := range values {
		for _, role := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			role = strings.ToLower(role)
			if !slices.Contains(roles, role) {
				roles = append(roles, role)
			}
		}
	}
	return roles
}
