package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) Get(ctx context.Context, accountID string) (domain.Profile, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.Profile{}, domain.ErrMissingField("account_id")
	}

	const q = `
SELECT account_id, email, display_name, role, is_active, created_at, last_login_at, updated_at, version
FROM profiles
WHERE account_id = $1
LIMIT 1;
`
	var p profileRow
	err := r.db.QueryRowContext(ctx, q, accountID).Scan(
		&p.AccountID,
		&p.Email,
		&p.DisplayName,
		&p.Role,
		&p.IsActive,
		&p.CreatedAt,
		&p.LastLoginAt,
		&p.UpdatedAt,
		&p.Version,
	)
	if err != nil {
		if notFound(err) {
			return domain.Profile{}, domain.ErrAccountNotFound()
		}
		return domain.Profile{}, unavailable(err)
	}
	return p.toDomain(), nil
}

// Put creates or replaces the whole profile.
func (r *ProfileRepo) Put(ctx context.Context, p domain.Profile) error {
	if strings.TrimSpace(p.AccountID) == "" {
		return domain.ErrMissingField("account_id")
	}
	if p.Role == "" {
		p.Role = domain.RoleUser
	}
	if !p.Role.Valid() {
		return domain.ErrUnknownRole(p.Role)
	}
	if p.Version == 0 {
		p.Version = 1
	}

	const q = `
INSERT INTO profiles (account_id, email, display_name, role, is_active, created_at, last_login_at, updated_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (account_id) DO UPDATE
SET email = EXCLUDED.email,
    display_name = EXCLUDED.display_name,
    role = EXCLUDED.role,
    is_active = EXCLUDED.is_active,
    created_at = EXCLUDED.created_at,
    last_login_at = EXCLUDED.last_login_at,
    updated_at = EXCLUDED.updated_at,
    version = EXCLUDED.version;
`
	_, err := r.db.ExecContext(ctx, q,
		p.AccountID, p.Email, p.DisplayName, string(p.Role), p.IsActive,
		p.CreatedAt, p.LastLoginAt, p.UpdatedAt, p.Version,
	)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Patch applies the non-nil fields if the stored version equals expectedVersion.
func (r *ProfileRepo) Patch(ctx context.Context, accountID string, patch domain.ProfilePatch, expectedVersion int64) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.ErrMissingField("account_id")
	}
	if patch.IsEmpty() {
		return domain.ErrEmptyUpdate()
	}

	const q = `
UPDATE profiles
SET display_name = COALESCE($3, display_name),
    last_login_at = COALESCE($4, last_login_at),
    updated_at = COALESCE($5, updated_at),
    version = version + 1
WHERE account_id = $1 AND version = $2;
`
	res, err := r.db.ExecContext(ctx, q, accountID, expectedVersion, patch.DisplayName, patch.LastLoginAt, patch.UpdatedAt)
	if err != nil {
		if isMalformedID(err) {
			return domain.ErrAccountNotFound()
		}
		return unavailable(err)
	}
	return r.checkAffected(ctx, res, accountID)
}

// SetActive flips the activation flag. It is an administrative action.
func (r *ProfileRepo) SetActive(ctx context.Context, accountID string, active bool) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return domain.ErrMissingField("account_id")
	}

	const q = `
UPDATE profiles
SET is_active = $2,
    version = version + 1
WHERE account_id = $1;
`
	res, err := r.db.ExecContext(ctx, q, accountID, active)
	if err != nil {
		if isMalformedID(err) {
			return domain.ErrAccountNotFound()
		}
		return unavailable(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrAccountNotFound()
	}
	return nil
}

// checkAffected tells a missing profile apart from a lost version race.
func (r *ProfileRepo) checkAffected(ctx context.Context, res sql.Result, accountID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n > 0 {
		return nil
	}

	const q = `SELECT EXISTS (SELECT 1 FROM profiles WHERE account_id = $1);`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, accountID).Scan(&exists); err != nil {
		return unavailable(err)
	}
	if !exists {
		return domain.ErrAccountNotFound()
	}
	return domain.ErrVersionConflict("profile")
}
