package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/intellium/patentguard/pkg/observability"
)

// TokenKind distinguishes short-lived access tokens from refresh tokens
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

// refreshTag is the value of the "type" claim carried by refresh tokens
const refreshTag = "refresh"

// Default lifetimes
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the JWT payload. Access tokens leave Type empty.
type Claims struct {
	Type string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenCodec
type TokenConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

// TokenCodec issues and decodes HS256 bearer tokens
type TokenCodec struct {
	cfg     TokenConfig
	now     func() time.Time
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewTokenCodec creates a codec. The secret must be non-empty.
func NewTokenCodec(cfg TokenConfig, logger *observability.Logger, metrics *observability.Metrics) (*TokenCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Leeway < 0 {
		return nil, fmt.Errorf("token leeway must not be negative: %s", cfg.Leeway)
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	return &TokenCodec{
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.WithField("component", "token_codec"),
		metrics: metrics,
	}, nil
}

// WithClock replaces the time source. Used by tests.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// TTL returns the default lifetime of kind
func (c *TokenCodec) TTL(kind TokenKind) time.Duration {
	if kind == RefreshToken {
		return c.cfg.RefreshTTL
	}
	return c.cfg.AccessTTL
}

// Issue signs a token for subject. A non-positive ttl selects the kind default.
func (c *TokenCodec) Issue(subject string, kind TokenKind, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject must not be empty")
	}
	if ttl <= 0 {
		ttl = c.TTL(kind)
	}

	now := c.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if kind == RefreshToken {
		claims.Type = refreshTag
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	c.metrics.RecordTokenIssued(kind.String())
	return signed, nil
}

// Decode verifies token and returns its claims. Every failure yields
// ErrInvalidToken; the reason is only logged.
func (c *TokenCodec) Decode(token string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(c.cfg.Leeway),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, c.reject(kind, err.Error())
	}
	if !parsed.Valid {
		return nil, c.reject(kind, "token not valid")
	}
	if claims.Subject == "" {
		return nil, c.reject(kind, "missing subject")
	}

	switch kind {
	case RefreshToken:
		if claims.Type != refreshTag {
			return nil, c.reject(kind, "not a refresh token")
		}
	default:
		if claims.Type == refreshTag {
			return nil, c.reject(kind, "refresh token used as access token")
		}
	}

	return claims, nil
}

func (c *TokenCodec) reject(kind TokenKind, reason string) error {
	c.logger.WithFields(map[string]interface{}{
		"kind":   kind.String(),
		"reason": reason,
	}).Debug("Token rejected")
	return ErrInvalidToken
}
