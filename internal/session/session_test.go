package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/secrets/internal/errs"
	"github.com/and161185/secrets/internal/model"
	"github.com/and161185/secrets/internal/repository/memory"
)

func newAccount(t *testing.T, repo *memory.AccountRepo, name string) *model.Account {
	t.Helper()
	a := &model.Account{
		ID:       uuid.Must(uuid.NewV4()),
		Username: name,
		PwdHash:  []byte("h"),
		SaltAuth: []byte("s"),
	}
	require.NoError(t, repo.Insert(context.Background(), a))
	return a
}

func TestManager_EstablishResolveDestroy(t *testing.T) {
	t.Parallel()
	repo := memory.NewAccountRepo()
	a := newAccount(t, repo, "alice")
	m := NewManager(NewMemoryStore(), repo, time.Hour)
	ctx := context.Background()

	tok, err := m.Establish(ctx, a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	got, err := m.Resolve(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	require.NoError(t, m.Destroy(ctx, tok))
	_, err = m.Resolve(ctx, tok)
	require.ErrorIs(t, err, errs.ErrUnauthenticated)

	// destroying twice is fine
	require.NoError(t, m.Destroy(ctx, tok))
}

func TestManager_TokensAreDistinctAndNotStored(t *testing.T) {
	t.Parallel()
	repo := memory.NewAccountRepo()
	a := newAccount(t, repo, "bob")
	store := NewMemoryStore()
	m := NewManager(store, repo, time.Hour)

	t1, err := m.Establish(context.Background(), a.ID)
	require.NoError(t, err)
	t2, err := m.Establish(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotEqual(t, t1, t2)

	store.mu.Lock()
	_, raw := store.entries[t1]
	store.mu.Unlock()
	require.False(t, raw)
	require.Equal(t, 2, store.Len())
}

func TestManager_ResolveRejects(t *testing.T) {
	t.Parallel()
	repo := memory.NewAccountRepo()
	m := NewManager(NewMemoryStore(), repo, time.Hour)
	ctx := context.Background()

	_, err := m.Resolve(ctx, "")
	require.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = m.Resolve(ctx, "never-issued")
	require.ErrorIs(t, err, errs.ErrUnauthenticated)

	// session pointing at an account that no longer exists
	tok, err := m.Establish(ctx, uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	_, err = m.Resolve(ctx, tok)
	require.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = m.Establish(ctx, uuid.Nil)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestManager_IdleExpirySlides(t *testing.T) {
	t.Parallel()
	repo := memory.NewAccountRepo()
	a := newAccount(t, repo, "carol")
	store := NewMemoryStore()
	base := time.Now()
	now := base
	store.now = func() time.Time { return now }
	m := NewManager(store, repo, 10*time.Minute)
	ctx := context.Background()

	tok, err := m.Establish(ctx, a.ID)
	require.NoError(t, err)

	now = base.Add(8 * time.Minute)
	_, err = m.Resolve(ctx, tok)
	require.NoError(t, err)

	// 16 minutes after creation but only 8 after last use
	now = base.Add(16 * time.Minute)
	_, err = m.Resolve(ctx, tok)
	require.NoError(t, err)

	now = base.Add(27 * time.Minute)
	_, err = m.Resolve(ctx, tok)
	require.ErrorIs(t, err, errs.ErrUnauthenticated)
}

type brokenStore struct{ MemoryStore }

func (*brokenStore) Get(context.Context, string, time.Duration) (uuid.UUID, error) {
	return uuid.Nil, errors.New("connection refused")
}

func (*brokenStore) Put(context.Context, string, uuid.UUID, time.Duration) error {
	return errors.New("connection refused")
}

func TestManager_StoreFaults(t *testing.T) {
	t.Parallel()
	m := NewManager(&brokenStore{}, memory.NewAccountRepo(), 0)
	require.Equal(t, DefaultIdleTTL, m.IdleTTL())

	_, err := m.Establish(context.Background(), uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrStoreUnavailable)

	_, err = m.Resolve(context.Background(), "tok")
	require.ErrorIs(t, err, errs.ErrStoreUnavailable)
}
