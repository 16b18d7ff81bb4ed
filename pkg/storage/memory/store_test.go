package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/intellium/patentguard/pkg/auth"
	"github.com/intellium/patentguard/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InsertAndFind(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.Insert(ctx, &auth.User{Email: "a@example.com", PasswordHash: "h", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	byEmail, err := s.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byID, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", byID.Email)
}

func TestStore_NotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.FindByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.FindByID(ctx, 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_EmailIsExactMatch(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Insert(ctx, &auth.User{Email: "a@example.com"})
	require.NoError(t, err)

	_, err = s.FindByEmail(ctx, "A@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_DuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Insert(ctx, &auth.User{Email: "a@example.com"})
	require.NoError(t, err)

	_, err = s.Insert(ctx, &auth.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
	assert.Equal(t, 1, s.Len())
}

func TestStore_ConcurrentDuplicateInsert(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	var ok, dup int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Insert(ctx, &auth.User{Email: "race@example.com"})
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case assert.ErrorIs(t, err, storage.ErrDuplicate):
				atomic.AddInt32(&dup, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(19), dup)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.Insert(ctx, &auth.User{Email: "a@example.com", FullName: "A"})
	require.NoError(t, err)
	u.FullName = "mutated"

	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.FullName)
}

func TestStore_SetActive(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.Insert(ctx, &auth.User{Email: "a@example.com", IsActive: true})
	require.NoError(t, err)

	require.NoError(t, s.SetActive(ctx, u.ID, false))
	got, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, s.SetActive(ctx, 42, true), storage.ErrNotFound)
}

func TestStore_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FindByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Error(t, s.Ping(ctx))
}

func TestStore_IDsAreSequential(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		u, err := s.Insert(ctx, &auth.User{Email: fmt.Sprintf("u%d@example.com", i)})
		require.NoError(t, err)
		assert.Equal(t, int64(i), u.ID)
	}
}
