// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/http layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = errors.New("duplicate username")

	// ErrInvalidCredentials indicates a failed local login. It never says
	// whether the user exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrStoreUnavailable wraps any account or session storage I/O failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrProviderHandshakeFailed indicates the OAuth2 exchange was denied or failed.
	ErrProviderHandshakeFailed = errors.New("provider handshake failed")

	// ErrUnauthenticated means no valid session; a control-flow signal, not a fault.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrValidation indicates malformed user input.
	ErrValidation = errors.New("validation")
)
