// Package memory is a process-local AccountRepository for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/and161185/secrets/internal/errs"
	"github.com/and161185/secrets/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AccountRepo keeps accounts in maps guarded by one mutex, which makes
// FindOrCreateFederated a single critical section.
type AccountRepo struct {
	mu          sync.RWMutex
	byID        map[uuid.UUID]*model.Account
	byUsername  map[string]uuid.UUID
	byFederated map[string]uuid.UUID
	now         func() time.Time
}

// NewAccountRepo returns an empty repository.
func NewAccountRepo() *AccountRepo {
	return &AccountRepo{
		byID:        map[uuid.UUID]*model.Account{},
		byUsername:  map[string]uuid.UUID{},
		byFederated: map[string]uuid.UUID{},
		now:         time.Now,
	}
}

func clone(a *model.Account) *model.Account {
	c := *a
	c.PwdHash = append([]byte(nil), a.PwdHash...)
	c.SaltAuth = append([]byte(nil), a.SaltAuth...)
	return &c
}

func (r *AccountRepo) lookup(ctx context.Context, id uuid.UUID, ok bool) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNotFound
	}
	a, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return clone(a), nil
}

// FindByID returns a copy of the account with the given id.
func (r *AccountRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(ctx, id, true)
}

// FindByUsername returns a copy of the account with the given username.
func (r *AccountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[username]
	return r.lookup(ctx, id, ok && username != "")
}

// FindByFederatedID returns a copy of the account linked to federatedID.
func (r *AccountRepo) FindByFederatedID(ctx context.Context, federatedID string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byFederated[federatedID]
	return r.lookup(ctx, id, ok && federatedID != "")
}

func (r *AccountRepo) checkUnique(a *model.Account) error {
	if a.Username != "" {
		if owner, ok := r.byUsername[a.Username]; ok && owner != a.ID {
			return errs.ErrDuplicateUsername
		}
	}
	if a.FederatedID != "" {
		if owner, ok := r.byFederated[a.FederatedID]; ok && owner != a.ID {
			return fmt.Errorf("federated id %q already linked: %w", a.FederatedID, errs.ErrValidation)
		}
	}
	return nil
}

func (r *AccountRepo) index(a *model.Account) {
	if a.Username != "" {
		r.byUsername[a.Username] = a.ID
	}
	if a.FederatedID != "" {
		r.byFederated[a.FederatedID] = a.ID
	}
}

// Insert stores a copy of a.
func (r *AccountRepo) Insert(ctx context.Context, a *model.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.ID == uuid.Nil || (!a.HasPassword() && a.FederatedID == "") {
		return fmt.Errorf("insert account: %w: id and one auth means required", errs.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; ok {
		return fmt.Errorf("insert account %s: %w: id exists", a.ID, errs.ErrValidation)
	}
	if err := r.checkUnique(a); err != nil {
		return err
	}
	now := r.now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.byID[a.ID] = clone(a)
	r.index(a)
	return nil
}

// SetSecret replaces the stored secret of account id.
func (r *AccountRepo) SetSecret(ctx context.Context, id uuid.UUID, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	a.Secret = secret
	a.UpdatedAt = r.now()
	return nil
}

// Update replaces the stored account, re-indexing changed keys.
func (r *AccountRepo) Update(ctx context.Context, a *model.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.byID[a.ID]
	if !ok {
		return errs.ErrNotFound
	}
	if err := r.checkUnique(a); err != nil {
		return err
	}
	if old.Username != a.Username {
		delete(r.byUsername, old.Username)
	}
	if old.FederatedID != a.FederatedID {
		delete(r.byFederated, old.FederatedID)
	}
	a.CreatedAt = old.CreatedAt
	a.UpdatedAt = r.now()
	r.byID[a.ID] = clone(a)
	r.index(a)
	return nil
}

// FindOrCreateFederated looks up and, when needed, inserts under one lock.
func (r *AccountRepo) FindOrCreateFederated(ctx context.Context, federatedID, displayName string) (*model.Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if federatedID == "" {
		return nil, false, fmt.Errorf("find or create: %w: empty federated id", errs.ErrValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byFederated[federatedID]; ok {
		a := r.byID[id]
		if displayName != "" && a.DisplayName != displayName {
			a.DisplayName = displayName
		}
		return clone(a), false, nil
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, false, err
	}
	now := r.now()
	a := &model.Account{ID: id, FederatedID: federatedID, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
	r.byID[id] = a
	r.index(a)
	return clone(a), true, nil
}

// ListWithSecrets returns accounts with a secret, most recently updated first.
func (r *AccountRepo) ListWithSecrets(ctx context.Context) ([]model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Account
	for _, a := range r.byID {
		if a.Secret != "" {
			out = append(out, *clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Ping always succeeds; it mirrors the Postgres health hook.
func (r *AccountRepo) Ping(context.Context) error { return nil }
