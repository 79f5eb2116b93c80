package postgres

import (
	"context"
	"time"

	"github.com/and161185/secrets/internal/errs"
	"github.com/and161185/secrets/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// usernameConstraint is named in migrations/00001_accounts.sql.
const usernameConstraint = "accounts_username_key"

const accountCols = `id, COALESCE(username, ''), COALESCE(pwd_hash, ''::bytea), COALESCE(salt_auth, ''::bytea),
COALESCE(federated_id, ''), display_name, COALESCE(secret, ''), created_at, updated_at`

const (
	qFindByID          = `SELECT ` + accountCols + ` FROM accounts WHERE id=$1`
	qFindByUsername    = `SELECT ` + accountCols + ` FROM accounts WHERE username=$1`
	qFindByFederatedID = `SELECT ` + accountCols + ` FROM accounts WHERE federated_id=$1`

	qInsert = `
INSERT INTO accounts (id, username, pwd_hash, salt_auth, federated_id, display_name, secret)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at`

	qUpdate = `
UPDATE accounts
SET username=$2, pwd_hash=$3, salt_auth=$4, federated_id=$5, display_name=$6, secret=$7, updated_at=now()
WHERE id=$1
RETURNING updated_at`

	qSetSecret = `UPDATE accounts SET secret=$2, updated_at=now() WHERE id=$1 RETURNING updated_at`

	// xmax is zero only for a row version written by this INSERT.
	qFindOrCreateFederated = `
INSERT INTO accounts (id, federated_id, display_name)
VALUES ($1, $2, $3)
ON CONFLICT (federated_id) DO UPDATE
SET display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE accounts.display_name END
RETURNING ` + accountCols + `, (xmax = 0) AS created`

	qListWithSecrets = `SELECT ` + accountCols + ` FROM accounts
WHERE secret IS NOT NULL AND secret <> ''
ORDER BY updated_at DESC`
)

func scanAccount(row pgx.Row, extra ...any) (*model.Account, error) {
	var a model.Account
	dest := []any{&a.ID, &a.Username, &a.PwdHash, &a.SaltAuth, &a.FederatedID, &a.DisplayName, &a.Secret, &a.CreatedAt, &a.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByID selects an account by ID.
func (r *AccountRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	a, err := scanAccount(r.db.Pool.QueryRow(ctx, qFindByID, id))
	if err != nil {
		return nil, storeErr("find account by id", err)
	}
	return a, nil
}

// FindByUsername selects an account by username.
func (r *AccountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	a, err := scanAccount(r.db.Pool.QueryRow(ctx, qFindByUsername, username))
	if err != nil {
		return nil, storeErr("find account by username", err)
	}
	return a, nil
}

// FindByFederatedID selects an account by provider subject id.
func (r *AccountRepo) FindByFederatedID(ctx context.Context, federatedID string) (*model.Account, error) {
	a, err := scanAccount(r.db.Pool.QueryRow(ctx, qFindByFederatedID, federatedID))
	if err != nil {
		return nil, storeErr("find account by federated id", err)
	}
	return a, nil
}

// Insert adds a new account row and fills the timestamps.
func (r *AccountRepo) Insert(ctx context.Context, a *model.Account) error {
	err := r.db.Pool.QueryRow(ctx, qInsert,
		a.ID, nullString(a.Username), nullBytes(a.PwdHash), nullBytes(a.SaltAuth),
		nullString(a.FederatedID), a.DisplayName, nullString(a.Secret),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err, usernameConstraint) {
		return errs.ErrDuplicateUsername
	}
	return storeErr("insert account", err)
}

// Update overwrites the mutable columns of an account.
func (r *AccountRepo) Update(ctx context.Context, a *model.Account) error {
	err := r.db.Pool.QueryRow(ctx, qUpdate,
		a.ID, nullString(a.Username), nullBytes(a.PwdHash), nullBytes(a.SaltAuth),
		nullString(a.FederatedID), a.DisplayName, nullString(a.Secret),
	).Scan(&a.UpdatedAt)
	if isUniqueViolation(err, usernameConstraint) {
		return errs.ErrDuplicateUsername
	}
	return storeErr("update account", err)
}

// SetSecret writes the secret column alone so a concurrent profile refresh is not reverted.
func (r *AccountRepo) SetSecret(ctx context.Context, id uuid.UUID, secret string) error {
	var updated time.Time
	err := r.db.Pool.QueryRow(ctx, qSetSecret, id, nullString(secret)).Scan(&updated)
	return storeErr("set secret", err)
}

// FindOrCreateFederated upserts on federated_id so concurrent callbacks
// for one subject converge on a single row.
func (r *AccountRepo) FindOrCreateFederated(ctx context.Context, federatedID, displayName string) (*model.Account, bool, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, false, err
	}
	var created bool
	a, err := scanAccount(r.db.Pool.QueryRow(ctx, qFindOrCreateFederated, id, federatedID, displayName), &created)
	if err != nil {
		return nil, false, storeErr("find or create federated account", err)
	}
	return a, created, nil
}

// ListWithSecrets returns accounts that have posted a secret.
func (r *AccountRepo) ListWithSecrets(ctx context.Context) ([]model.Account, error) {
	rows, err := r.db.Pool.Query(ctx, qListWithSecrets)
	if err != nil {
		return nil, storeErr("list secrets", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storeErr("list secrets", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list secrets", err)
	}
	return out, nil
}
