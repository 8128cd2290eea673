package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type CredentialRepo struct {
	db *sql.DB
}

func NewCredentialRepo(db *sql.DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

const accountColumns = `id, email, password_hash, version, created_at, updated_at`

func scanAccount(row *sql.Row) (accountRow, error) {
	var r accountRow
	err := row.Scan(
		&r.ID,
		&r.Email,
		&r.PasswordHash,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (r *CredentialRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.Account{}, domain.ErrMissingField("email")
	}

	const q = `
SELECT ` + accountColumns + `
FROM accounts
WHERE email = $1
LIMIT 1;
`
	row, err := scanAccount(r.db.QueryRowContext(ctx, q, email))
	if err != nil {
		if isNoRows(err) {
			return domain.Account{}, domain.ErrAccountNotFound()
		}
		return domain.Account{}, unavailable(err)
	}
	return row.toDomain(), nil
}

func (r *CredentialRepo) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	a.Email = domain.NormalizeEmail(a.Email)
	switch {
	case a.ID == "":
		return domain.Account{}, domain.ErrMissingField("id")
	case a.Email == "":
		return domain.Account{}, domain.ErrMissingField("email")
	case a.PasswordHash == "":
		return domain.Account{}, domain.ErrMissingField("password_hash")
	}
	if a.Version == 0 {
		a.Version = 1
	}

	const q = `
INSERT INTO accounts (id, email, password_hash, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
RETURNING ` + accountColumns + `;
`
	row, err := scanAccount(r.db.QueryRowContext(ctx, q, a.ID, a.Email, a.PasswordHash, a.Version, a.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, domain.ErrDuplicateAccount()
		}
		if isMalformedID(err) {
			return domain.Account{}, domain.ErrInvalidField("id", "not a uuid")
		}
		return domain.Account{}, unavailable(err)
	}
	return row.toDomain(), nil
}

// UpdateHash writes only if the stored version still equals expectedVersion.
func (r *CredentialRepo) UpdateHash(ctx context.Context, accountID, hash string, expectedVersion int64) (domain.Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.Account{}, domain.ErrMissingField("account_id")
	}
	if hash == "" {
		return domain.Account{}, domain.ErrMissingField("password_hash")
	}

	const q = `
UPDATE accounts
SET password_hash = $2,
    version = version + 1,
    updated_at = NOW()
WHERE id = $1 AND version = $3
RETURNING ` + accountColumns + `;
`
	row, err := scanAccount(r.db.QueryRowContext(ctx, q, accountID, hash, expectedVersion))
	if err == nil {
		return row.toDomain(), nil
	}
	if isMalformedID(err) {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	if !isNoRows(err) {
		return domain.Account{}, unavailable(err)
	}

	exists, err := r.exists(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	if !exists {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	return domain.Account{}, domain.ErrVersionConflict("account")
}

// Delete removes the account and, through the foreign key, its profile.
func (r *CredentialRepo) Delete(ctx context.Context, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.ErrMissingField("account_id")
	}

	const q = `DELETE FROM accounts WHERE id = $1;`
	if _, err := r.db.ExecContext(ctx, q, accountID); err != nil {
		if isMalformedID(err) {
			// nothing to delete
			return nil
		}
		return unavailable(err)
	}
	return nil
}

func (r *CredentialRepo) exists(ctx context.Context, accountID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1);`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, accountID).Scan(&ok); err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}
