package auth

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_JSONOmitsPasswordHash(t *testing.T) {
	u := &User{ID: 1, Email: "a@example.com", PasswordHash: "$2a$secret", IsActive: true}

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "password")
}

func TestUser_Public(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := &User{ID: 9, Email: "a@example.com", PasswordHash: "h", FullName: "A", IsActive: true, IsSuperuser: true, CreatedAt: created}

	p := u.Public()
	assert.Equal(t, PublicUser{ID: 9, Email: "a@example.com", FullName: "A", IsActive: true, IsSuperuser: true, CreatedAt: created}, p)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.ElementsMatch(t, []string{"id", "email", "full_name", "is_active", "is_superuser", "created_at"}, keys(fields))
}

func TestAuthContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, AuthContextFromContext(ctx))
	assert.Nil(t, PrincipalFromContext(ctx))

	u := &User{ID: 1, IsSuperuser: true}
	ctx = WithAuthContext(ctx, &AuthContext{User: u})
	assert.Same(t, u, PrincipalFromContext(ctx))
	assert.True(t, AuthContextFromContext(ctx).IsSuperuser())

	var nilCtx *AuthContext
	assert.False(t, nilCtx.IsSuperuser())
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
