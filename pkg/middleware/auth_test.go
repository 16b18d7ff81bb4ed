package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/contextkeys"
	"github.com/intellium/patentguard/pkg/storage"
)

type stubResolver struct {
	users map[string]*auth.User
	err   error
	calls int
}

func (s *stubResolver) ResolvePrincipal(_ context.Context, token string) (*auth.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, auth.ErrUnauthorized
}

func newStubResolver() *stubResolver {
	return &stubResolver{users: map[string]*auth.User{
		"good-token":  {ID: 7, Email: "alice@example.com", IsActive: true},
		"admin-token": {ID: 1, Email: "admin@example.com", IsActive: true, IsSuperuser: true},
	}}
}

// principalEcho writes the resolved user id, or "anonymous"
func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.PrincipalFromContext(r.Context())
		if user == nil {
			fmt.Fprint(w, "anonymous")
			return
		}
		fmt.Fprintf(w, "%d:%s", user.ID, contextkeys.GetUserID(r.Context()))
	})
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid token", "Bearer good-token", http.StatusOK, "7:7"},
		{"lowercase scheme", "bearer good-token", http.StatusOK, "7:7"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good-token", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer bogus", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(newStubResolver())
			r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			m.RequireAuth(principalEcho()).ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String())
			} else {
				assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
				assert.Contains(t, w.Body.String(), "Could not validate credentials")
			}
		})
	}
}

func TestRequireAuth_StoreUnavailable(t *testing.T) {
	resolver := &stubResolver{err: fmt.Errorf("find user: %w: %w", auth.ErrStoreUnavailable, storage.ErrUnavailable)}
	m := NewAuthMiddleware(resolver)

	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	m.RequireAuth(principalEcho()).ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "DATABASE_ERROR")
}

func TestRequireAuth_NoTokenSkipsResolver(t *testing.T) {
	resolver := newStubResolver()
	m := NewAuthMiddleware(resolver)

	w := httptest.NewRecorder()
	m.RequireAuth(principalEcho()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, resolver.calls)
}

func TestOptionalAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		body   string
	}{
		{"valid token", "Bearer good-token", "7:7"},
		{"missing header", "", "anonymous"},
		{"unknown token", "Bearer bogus", "anonymous"},
		{"wrong scheme", "Token good-token", "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(newStubResolver())
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			m.OptionalAuth(principalEcho()).ServeHTTP(w, r)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestOptionalAuth_StoreUnavailable(t *testing.T) {
	resolver := &stubResolver{err: fmt.Errorf("find user: %w: %w", auth.ErrStoreUnavailable, storage.ErrUnavailable)}
	m := NewAuthMiddleware(resolver)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	m.OptionalAuth(principalEcho()).ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "DATABASE_ERROR")
}

func TestRequireAuth_GatesSeeRejectedRequests(t *testing.T) {
	m := NewAuthMiddleware(newStubResolver())

	var seen []string
	gate := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := auth.PrincipalFromContext(r.Context()); user != nil {
				seen = append(seen, user.Email)
			} else {
				seen = append(seen, "anonymous")
			}
			next.ServeHTTP(w, r)
		})
	}
	h := m.RequireAuth(principalEcho(), gate)

	for header, status := range map[string]int{
		"Bearer good-token": http.StatusOK,
		"Bearer bogus":      http.StatusUnauthorized,
		"":                  http.StatusUnauthorized,
	} {
		r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, status, w.Code, header)
	}

	assert.ElementsMatch(t, []string{"alice@example.com", "anonymous", "anonymous"}, seen)
}

func TestRequirePrincipal(t *testing.T) {
	m := NewAuthMiddleware(newStubResolver())
	h := m.OptionalAuth(RequirePrincipal(principalEcho()))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer good-token", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"unknown token", "Bearer bogus", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestGetAuthContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetAuthContext(r))

	user := &auth.User{ID: 3}
	r = r.WithContext(auth.WithAuthContext(r.Context(), &auth.AuthContext{User: user}))
	authCtx := GetAuthContext(r)
	require.NotNil(t, authCtx)
	assert.Same(t, user, authCtx.User)
}

func TestRequireSuperuser(t *testing.T) {
	m := NewAuthMiddleware(newStubResolver())
	h := m.RequireAuth(RequireSuperuser(principalEcho()))

	for token, status := range map[string]int{
		"admin-token": http.StatusOK,
		"good-token":  http.StatusForbidden,
	} {
		r := httptest.NewRequest(http.MethodGet, "/admin", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, status, w.Code, token)
	}

	w := httptest.NewRecorder()
	RequireSuperuser(principalEcho()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
