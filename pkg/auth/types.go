package auth

import (
	"context"
	"time"

	"github.com/intellium/patentguard/pkg/contextkeys"
)

// User is a credential store record. The password hash never leaves the
// process: it is excluded from JSON and from PublicUser.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the only outward representation of a user
type PublicUser struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

// Public strips the user down to its outward representation
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt,
	}
}

// UserStore is the credential store consumed by Service. Implementations
// live under pkg/storage and return the storage package sentinel errors.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	// Insert persists u and returns the stored record with ID and
	// timestamps filled in. Fails with storage.ErrDuplicate when the email
	// is taken.
	Insert(ctx context.Context, u *User) (*User, error)
	Ping(ctx context.Context) error
	Close() error
}

// RegisterRequest carries the registration input
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginResult is returned by Login and Refresh
type LoginResult struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	User         PublicUser `json:"user"`
}

// TokenTypeBearer is the OAuth2 token_type returned to clients
const TokenTypeBearer = "bearer"

// AuthContext holds the principal resolved for one request
type AuthContext struct {
	User *User
}

// IsSuperuser reports whether the principal holds the privileged role
func (ac *AuthContext) IsSuperuser() bool {
	return ac != nil && ac.User != nil && ac.User.IsSuperuser
}

// WithAuthContext stores the principal in ctx
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return contextkeys.WithAuth(ctx, ac)
}

// AuthContextFromContext returns the request's auth context, or nil when the
// request is anonymous
func AuthContextFromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	return ac
}

// PrincipalFromContext returns the authenticated user, or nil when the
// request is anonymous
func PrincipalFromContext(ctx context.Context) *User {
	if ac := AuthContextFromContext(ctx); ac != nil {
		return ac.User
	}
	return nil
}
