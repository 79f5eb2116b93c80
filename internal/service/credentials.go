// Package service contains the authentication services: local credentials
// and federated identity linking.
package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	pkgcrypto "github.com/and161185/secrets/internal/crypto"
	"github.com/and161185/secrets/internal/errs"
	"github.com/and161185/secrets/internal/limiter"
	"github.com/and161185/secrets/internal/model"
	"github.com/and161185/secrets/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// Input bounds for local credentials, counted in characters.
const (
	MaxUsernameLen = 64
	MaxPasswordLen = 256
)

// CredentialService registers and verifies local username/password accounts.
type CredentialService interface {
	// Register creates a new account with a salted password hash.
	Register(ctx context.Context, username, password string) (*model.Account, error)
	// Verify authenticates a login attempt coming from remoteAddr.
	Verify(ctx context.Context, username, password, remoteAddr string) (*model.Account, error)
}

type CredentialServiceImpl struct {
	accounts repository.AccountRepository
	lim      limiter.Limiter
}

// NewCredentialService constructs CredentialService with required dependencies.
func NewCredentialService(accounts repository.AccountRepository, lim limiter.Limiter) *CredentialServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	return &CredentialServiceImpl{accounts: accounts, lim: lim}
}

func validateCredentials(username, password string) error {
	switch {
	case username == "" || password == "":
		return fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	case utf8.RuneCountInString(username) > MaxUsernameLen:
		return fmt.Errorf("%w: username too long", errs.ErrValidation)
	case utf8.RuneCountInString(password) > MaxPasswordLen:
		return fmt.Errorf("%w: password too long", errs.ErrValidation)
	}
	return nil
}

// Register creates a new account; a taken username yields errs.ErrDuplicateUsername.
func (s *CredentialServiceImpl) Register(ctx context.Context, username, password string) (*model.Account, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	hash, salt, err := pkgcrypto.NewCredential([]byte(password))
	if err != nil {
		return nil, err
	}

	a := &model.Account{
		ID:          uid,
		Username:    username,
		PwdHash:     hash,
		SaltAuth:    salt,
		DisplayName: username,
	}
	if err := s.accounts.Insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Verify authenticates with rate limiting by (username, client address).
// Unknown users, wrong passwords and federated-only accounts all fail with
// errs.ErrInvalidCredentials.
func (s *CredentialServiceImpl) Verify(ctx context.Context, username, password, remoteAddr string) (*model.Account, error) {
	if username == "" || password == "" {
		return nil, errs.ErrInvalidCredentials
	}
	ipHash := limiter.HashIP(remoteAddr)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return nil, fmt.Errorf("limiter: %w: %w", errs.ErrStoreUnavailable, err)
	}
	if !allowed {
		return nil, errs.ErrRateLimited
	}

	a, err := s.accounts.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		pkgcrypto.BurnPassword([]byte(password))
		return nil, s.fail(ctx, username, ipHash)
	case err != nil:
		return nil, err
	case !a.HasPassword():
		pkgcrypto.BurnPassword([]byte(password))
		return nil, s.fail(ctx, username, ipHash)
	case !pkgcrypto.VerifyPassword([]byte(password), a.SaltAuth, a.PwdHash):
		return nil, s.fail(ctx, username, ipHash)
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, username, ipHash)
	return a, nil
}

// fail records the failure and picks the caller-facing error.
func (s *CredentialServiceImpl) fail(ctx context.Context, username string, ipHash []byte) error {
	if blocked, _, err := s.lim.Failure(ctx, username, ipHash); err == nil && blocked {
		return errs.ErrRateLimited
	}
	return errs.ErrInvalidCredentials
}

var _ CredentialService = (*CredentialServiceImpl)(nil)
