// Package crypto implements server-side password hashing and random tokens.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32

	// SaltLen is the per-account salt size.
	SaltLen = 16
)

// dummySalt is hashed against when the user is unknown so both paths cost the same.
var dummySalt = make([]byte, SaltLen)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// RandToken returns n random bytes encoded as unpadded base64url.
func RandToken(n int) (string, error) {
	b, err := RandBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewCredential draws a fresh salt and hashes password with it.
func NewCredential(password []byte) (hash, salt []byte, err error) {
	salt, err = RandBytes(SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return HashPassword(password, salt), salt, nil
}

// HashPassword returns Argon2id hash of password using the provided salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword verifies password against expected Argon2id hash and salt.
func VerifyPassword(password, salt, expected []byte) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// BurnPassword spends one hash computation and always reports false.
func BurnPassword(password []byte) bool {
	_ = HashPassword(password, dummySalt)
	return false
}
