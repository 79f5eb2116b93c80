// Package limiter throttles local login attempts per (username, client address).
package limiter

import (
	"context"
	"crypto/sha256"
	"net"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, username string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
}

// Settings tunes the lockout policy.
type Settings struct {
	Window   time.Duration // failures older than this start a fresh count
	MaxFails int           // failures within Window that trigger a block
	BlockFor time.Duration
}

// DefaultSettings locks a pair for 15 minutes after 5 failures in 15 minutes.
var DefaultSettings = Settings{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// HashIP returns a stable hash of the client host so raw addresses are never stored.
// The port of a host:port remote address is dropped.
func HashIP(remoteAddr string) []byte {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	sum := sha256.Sum256([]byte(host))
	return sum[:]
}

// Nop never blocks. Used with the in-memory account store.
type Nop struct{}

func (Nop) Allow(context.Context, string, []byte) (bool, time.Duration, error) { return true, 0, nil }
func (Nop) Success(context.Context, string, []byte) error                      { return nil }
func (Nop) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}
