package session

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
)

type memEntry struct {
	accountID uuid.UUID
	expires   time.Time
}

// MemoryStore keeps sessions in process memory. Expired entries are invisible
// to Get immediately and removed for good by Janitor.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memEntry{}, now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, key string, accountID uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memEntry{accountID: accountID, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string, ttl time.Duration) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	now := s.now()
	if !ok || !now.Before(e.expires) {
		delete(s.entries, key)
		return uuid.Nil, ErrMissing
	}
	e.expires = now.Add(ttl)
	s.entries[key] = e
	return e.accountID, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Purge drops expired entries and returns how many were removed.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Len is the number of entries, expired ones included until purged.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Janitor purges every interval until ctx is done.
func (s *MemoryStore) Janitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Purge()
		}
	}
}
