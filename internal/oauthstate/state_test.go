package oauthstate

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestIssueVerify(t *testing.T) {
	t.Parallel()
	s := NewSigner([]byte("k"), 0)

	state, nonce, err := s.Issue()
	require.NoError(t, err)
	require.NotEmpty(t, nonce)
	require.NoError(t, s.Verify(state, nonce))

	require.ErrorIs(t, s.Verify(state, "other"), ErrNonceMismatch)
	require.ErrorIs(t, s.Verify("", nonce), ErrInvalidState)
	require.ErrorIs(t, s.Verify(state, ""), ErrInvalidState)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()
	s := NewSigner([]byte("k"), time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }

	state, nonce, err := s.Issue()
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	require.ErrorIs(t, s.Verify(state, nonce), ErrInvalidState)
}

func TestVerify_WrongKey(t *testing.T) {
	t.Parallel()
	state, nonce, err := NewSigner([]byte("k1"), 0).Issue()
	require.NoError(t, err)
	require.ErrorIs(t, NewSigner([]byte("k2"), 0).Verify(state, nonce), ErrInvalidState)
}

func TestVerify_RejectsOtherAlg(t *testing.T) {
	t.Parallel()
	s := NewSigner([]byte("k"), 0)
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		ID:        "n",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	require.ErrorIs(t, s.Verify(tok, "n"), ErrInvalidState)
}
