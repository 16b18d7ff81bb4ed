package auth

import (
	"fmt"
	"time"

	"github.com/intellium/patentguard/pkg/observability"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the bcrypt input limit
const MaxPasswordBytes = 72

// dummyPassword is hashed once per hasher so Login can spend the same bcrypt
// work on unknown emails as on real ones.
const dummyPassword = "patentguard-timing-equalizer"

// PasswordHasher hashes and verifies passwords with bcrypt
type PasswordHasher struct {
	cost      int
	dummyHash []byte
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
// A zero cost selects bcrypt.DefaultCost.
func NewPasswordHasher(cost int, logger *observability.Logger, metrics *observability.Metrics) (*PasswordHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &PasswordHasher{
		cost:      cost,
		dummyHash: dummy,
		logger:    logger.WithField("component", "password_hasher"),
		metrics:   metrics,
	}, nil
}

// Cost returns the configured bcrypt cost
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt hash of plaintext
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	start := time.Now()
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	h.metrics.ObservePasswordHash("hash", time.Since(start))
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	h.logger.Debug("Password hashed successfully")
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. It never fails loudly: a
// malformed hash is logged and treated as a mismatch.
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	h.metrics.ObservePasswordHash("verify", time.Since(start))

	switch {
	case err == nil:
		return true
	case err == bcrypt.ErrMismatchedHashAndPassword:
		return false
	default:
		h.logger.WithError(err).Error("Password verification failed")
		return false
	}
}

// VerifyDummy burns one verification against a fixed hash. Always false.
func (h *PasswordHasher) VerifyDummy(plaintext string) bool {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(plaintext))
	return false
}
