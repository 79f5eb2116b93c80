// Package session maps opaque bearer tokens, carried in a cookie, to account
// ids with a sliding idle lifetime.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/secrets/internal/crypto"
	"github.com/and161185/secrets/internal/errs"
	"github.com/and161185/secrets/internal/model"
)

// DefaultIdleTTL is used when the manager is built with a non-positive TTL.
const DefaultIdleTTL = 24 * time.Hour

const tokenBytes = 32

// ErrMissing is returned by stores for unknown or expired keys.
var ErrMissing = errors.New("session: missing")

// Store persists session key -> account id. Keys are already hashed.
type Store interface {
	Put(ctx context.Context, key string, accountID uuid.UUID, ttl time.Duration) error
	// Get returns the account id and pushes the expiry ttl into the future.
	Get(ctx context.Context, key string, ttl time.Duration) (uuid.UUID, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// AccountFinder is the part of the account store sessions need.
type AccountFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
}

// Manager establishes, resolves and destroys sessions.
type Manager struct {
	store    Store
	accounts AccountFinder
	ttl      time.Duration
}

// NewManager builds a Manager on top of store.
func NewManager(store Store, accounts AccountFinder, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Manager{store: store, accounts: accounts, ttl: idleTTL}
}

// IdleTTL reports the idle lifetime, also used as the cookie max-age.
func (m *Manager) IdleTTL() time.Duration { return m.ttl }

// Establish creates a session for accountID and returns its token.
func (m *Manager) Establish(ctx context.Context, accountID uuid.UUID) (string, error) {
	if accountID == uuid.Nil {
		return "", fmt.Errorf("establish: %w: empty account id", errs.ErrValidation)
	}
	token, err := crypto.RandToken(tokenBytes)
	if err != nil {
		return "", err
	}
	if err := m.store.Put(ctx, storeKey(token), accountID, m.ttl); err != nil {
		return "", fmt.Errorf("establish: %w: %w", errs.ErrStoreUnavailable, err)
	}
	return token, nil
}

// Resolve returns the account behind token. Any token that does not lead to a
// live account yields errs.ErrUnauthenticated.
func (m *Manager) Resolve(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		return nil, errs.ErrUnauthenticated
	}
	key := storeKey(token)
	id, err := m.store.Get(ctx, key, m.ttl)
	switch {
	case errors.Is(err, ErrMissing):
		return nil, errs.ErrUnauthenticated
	case err != nil:
		return nil, fmt.Errorf("resolve: %w: %w", errs.ErrStoreUnavailable, err)
	}

	a, err := m.accounts.FindByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		// account is gone, the session with it
		_ = m.store.Delete(ctx, key)
		return nil, errs.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Destroy invalidates token. Unknown tokens are not an error.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, storeKey(token)); err != nil {
		return fmt.Errorf("destroy: %w: %w", errs.ErrStoreUnavailable, err)
	}
	return nil
}

// Ping reports whether the backing store is reachable.
func (m *Manager) Ping(ctx context.Context) error { return m.store.Ping(ctx) }

func storeKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
