// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/secrets/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AccountRepository provides access to user accounts.
//
// Lookups return errs.ErrNotFound when no record matches. A taken username
// yields errs.ErrDuplicateUsername. Every other failure wraps errs.ErrStoreUnavailable.
type AccountRepository interface {
	// FindByID loads an account by ID.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// FindByUsername loads an account by its local username.
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	// FindByFederatedID loads an account by provider subject id.
	FindByFederatedID(ctx context.Context, federatedID string) (*model.Account, error)
	// Insert stores a new account. ID must already be set.
	Insert(ctx context.Context, a *model.Account) error
	// Update overwrites the mutable fields of an existing account.
	Update(ctx context.Context, a *model.Account) error
	// SetSecret replaces only the secret of account id, leaving other columns as stored.
	SetSecret(ctx context.Context, id uuid.UUID, secret string) error
	// FindOrCreateFederated atomically returns the account linked to
	// federatedID, creating it when absent. created reports which happened.
	FindOrCreateFederated(ctx context.Context, federatedID, displayName string) (a *model.Account, created bool, err error)
	// ListWithSecrets returns all accounts with a non-empty secret, newest first.
	ListWithSecrets(ctx context.Context) ([]model.Account, error)
}
