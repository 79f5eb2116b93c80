package session

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Purge(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	base := time.Now()
	now := base
	s.now = func() time.Time { return now }
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	require.NoError(t, s.Put(ctx, "a", id, time.Minute))
	require.NoError(t, s.Put(ctx, "b", id, time.Hour))

	now = base.Add(2 * time.Minute)
	require.Equal(t, 1, s.Purge())
	require.Equal(t, 1, s.Len())

	_, err := s.Get(ctx, "a", time.Minute)
	require.ErrorIs(t, err, ErrMissing)
	got, err := s.Get(ctx, "b", time.Hour)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestMemoryStore_JanitorStops(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Janitor(ctx, time.Millisecond)
		close(done)
	}()
	require.NoError(t, s.Put(context.Background(), "x", uuid.Must(uuid.NewV4()), time.Nanosecond))
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
