// Package memory is an in-process UserStore used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/storage"
)

// Store keeps users in maps guarded by one mutex. Email uniqueness is
// checked and claimed under the same lock as the insert.
type Store struct {
	mu      sync.RWMutex
	byID    map[int64]*auth.User
	byEmail map[string]int64
	nextID  int64
	now     func() time.Time
}

var _ auth.UserStore = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		byID:    make(map[int64]*auth.User),
		byEmail: make(map[string]int64),
		now:     time.Now,
	}
}

// FindByEmail returns a copy of the user with exactly this email
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.Unavailable("find user by email", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u := *s.byID[id]
	return &u, nil
}

// FindByID returns a copy of the user with this id
func (s *Store) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.Unavailable("find user by id", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// Insert stores a copy of u with a fresh id and timestamps
func (s *Store) Insert(ctx context.Context, u *auth.User) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.Unavailable("insert user", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.Email]; taken {
		return nil, fmt.Errorf("insert user %q: %w", u.Email, storage.ErrDuplicate)
	}

	s.nextID++
	now := s.now().UTC()
	stored := *u
	stored.ID = s.nextID
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.byID[stored.ID] = &stored
	s.byEmail[stored.Email] = stored.ID

	out := stored
	return &out, nil
}

// SetActive flips the active flag. Used by admin tooling and tests.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = s.now().UTC()
	return nil
}

// Len returns the number of stored users
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
