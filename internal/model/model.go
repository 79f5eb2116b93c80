// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Account is one registered user. Either PwdHash or FederatedID is always set.
type Account struct {
	ID          uuid.UUID // PK, generated
	Username    string    // unique when non-empty
	PwdHash     []byte    // Argon2id(password, SaltAuth); empty for federated-only accounts
	SaltAuth    []byte    // per-account auth salt
	FederatedID string    // provider subject id, unique when non-empty
	DisplayName string
	Secret      string // overwritten on each submission
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPassword reports whether a local credential was ever set.
func (a *Account) HasPassword() bool { return len(a.PwdHash) > 0 && len(a.SaltAuth) > 0 }

// Name returns the label shown next to the account's secret.
func (a *Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// Identity is what the identity provider asserted about a user.
type Identity struct {
	Subject string // stable provider subject id
	Name    string // display name, may be empty
}
