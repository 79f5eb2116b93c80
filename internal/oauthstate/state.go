// Package oauthstate issues and checks the CSRF "state" parameter of the
// OAuth2 authorization code flow.
package oauthstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/secrets/internal/crypto"
)

// DefaultTTL bounds how long a user may stay on the provider's consent page.
const DefaultTTL = 10 * time.Minute

const issuer = "secrets"

var (
	// ErrInvalidState is returned for a malformed, forged or expired state.
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrNonceMismatch means the state was not issued to this browser.
	ErrNonceMismatch = errors.New("oauth state nonce mismatch")
)

// Signer binds a random nonce into an HS256 token used as the state value.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner returns a Signer; ttl <= 0 means DefaultTTL.
func NewSigner(key []byte, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{key: key, ttl: ttl, now: time.Now}
}

// Issue returns the state string and the nonce it carries. The caller keeps
// the nonce on the browser side (a cookie) to compare on callback.
func (s *Signer) Issue() (state, nonce string, err error) {
	nonce, err = crypto.RandToken(16)
	if err != nil {
		return "", "", err
	}
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		ID:        nonce,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	state, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", "", fmt.Errorf("sign state: %w", err)
	}
	return state, nonce, nil
}

// Verify checks the signature and expiry of state and that it carries nonce.
func (s *Signer) Verify(state, nonce string) error {
	if state == "" || nonce == "" {
		return ErrInvalidState
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if claims.ID != nonce {
		return ErrNonceMismatch
	}
	return nil
}
