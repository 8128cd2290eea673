package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const (
	uniqueViolation = "23505"
	invalidTextRepr = "22P02"
)

func isUniqueViolation(err error) bool {
	return hasCode(err, uniqueViolation)
}

// isMalformedID reports a key that cannot be cast to the UUID column type.
// Such an id can never match a row.
func isMalformedID(err error) bool {
	return hasCode(err, invalidTextRepr)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// notFound reports whether err means no row can exist for the given id.
func notFound(err error) bool {
	return isNoRows(err) || isMalformedID(err)
}

func unavailable(err error) error {
	return domain.ErrStorageUnavailable("postgres", err)
}
