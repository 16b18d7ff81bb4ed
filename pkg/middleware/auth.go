package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/contextkeys"
	"github.com/intellium/patentguard/pkg/httputil"
	"github.com/intellium/patentguard/pkg/observability"
)

// PrincipalResolver turns a bearer token into a stored user. *auth.Service
// implements it.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, bearerToken string) (*auth.User, error)
}

// AuthMiddleware resolves the request principal from the Authorization header
type AuthMiddleware struct {
	resolver PrincipalResolver
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver PrincipalResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// RequireAuth rejects requests without a valid bearer token with a 401.
// gates run after the principal is resolved and before the rejection, so a
// gate such as the rate limiter also sees anonymous and bad-token requests.
func (m *AuthMiddleware) RequireAuth(next http.Handler, gates ...func(http.Handler) http.Handler) http.Handler {
	h := RequirePrincipal(next)
	for i := len(gates) - 1; i >= 0; i-- {
		h = gates[i](h)
	}
	return m.OptionalAuth(h)
}

// OptionalAuth attaches the principal when the token resolves and serves
// the request anonymously otherwise. A store outage is still a 500.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := httputil.BearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.resolver.ResolvePrincipal(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrStoreUnavailable) {
				httputil.WriteAPIError(w, r, err)
				return
			}
			observability.FromContext(r.Context()).WithError(err).Debug("Optional authentication skipped")
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, withPrincipal(r, user))
	})
}

// RequirePrincipal rejects requests that reach it without a resolved
// principal. It must run after OptionalAuth.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.PrincipalFromContext(r.Context()) == nil {
			httputil.WriteUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withPrincipal(r *http.Request, user *auth.User) *http.Request {
	ctx := auth.WithAuthContext(r.Context(), &auth.AuthContext{User: user})
	ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(user.ID, 10))
	return r.WithContext(ctx)
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	return auth.AuthContextFromContext(r.Context())
}

// RequireSuperuser rejects principals without the superuser flag with a 403.
// It must run after RequireAuth or OptionalAuth.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil {
			httputil.WriteUnauthorized(w, r)
			return
		}
		if !authCtx.IsSuperuser() {
			httputil.WriteHTTPError(w, r, http.StatusForbidden, "The user doesn't have enough privileges")
			return
		}
		next.ServeHTTP(w, r)
	})
}
