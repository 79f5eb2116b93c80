package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG is a PostgreSQL-backed limiter with a sliding failure window and lockout.
type PG struct {
	pool pgxQuerier
	set  Settings
	now  func() time.Time
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter; *pgxpool.Pool satisfies q.
func NewPG(q pgxQuerier, set Settings) *PG {
	if set.MaxFails <= 0 {
		set = DefaultSettings
	}
	return &PG{pool: q, set: set, now: time.Now}
}

const (
	qAllow = `SELECT blocked_until FROM login_attempts WHERE username=$1 AND ip_hash=$2`

	qSuccess = `
INSERT INTO login_attempts (username, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,0,'epoch',now())
ON CONFLICT (username, ip_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=now()`

	qFailure = `
INSERT INTO login_attempts (username, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,$2,1,'epoch',now())
ON CONFLICT (username, ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN now() - login_attempts.updated_at > $3::interval THEN 1 ELSE login_attempts.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`

	qBlock = `UPDATE login_attempts SET blocked_until=$3 WHERE username=$1 AND ip_hash=$2`
)

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	var blockedUntil time.Time
	err := l.pool.QueryRow(ctx, qAllow, username, ipHash).Scan(&blockedUntil)
	switch {
	case err == nil:
		if wait := blockedUntil.Sub(l.now()); wait > 0 {
			return false, wait, nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success resets counters for (username, ip).
func (l *PG) Success(ctx context.Context, username string, ipHash []byte) error {
	_, err := l.pool.Exec(ctx, qSuccess, username, ipHash)
	return err
}

// Failure records a failed attempt; may set a block until a future time.
func (l *PG) Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	var fails int
	if err := l.pool.QueryRow(ctx, qFailure, username, ipHash, l.set.Window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.set.MaxFails {
		return false, 0, nil
	}
	if _, err := l.pool.Exec(ctx, qBlock, username, ipHash, l.now().Add(l.set.BlockFor)); err != nil {
		return false, 0, err
	}
	return true, l.set.BlockFor, nil
}
