package database

import (
	"errors"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/apperror"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrStoreNotReady means the backing schema is missing: migrations have not
// been applied yet. It is a deployment condition, not a data error.
var ErrStoreNotReady = apperror.New(apperror.CodeStoreNotReady, "attendance store is not ready")

// SQLSTATE codes that indicate missing schema objects.
const (
	sqlStateUndefinedTable  = "42P01"
	sqlStateUndefinedColumn = "42703"
	sqlStateInvalidSchema   = "3F000"
	sqlStateUniqueViolation = "23505"
)

// MapError converts driver errors into typed storage errors.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUndefinedTable, sqlStateUndefinedColumn, sqlStateInvalidSchema:
			return apperror.Wrap(apperror.CodeStoreNotReady, ErrStoreNotReady.Message, errors.Join(ErrStoreNotReady, err))
		}
	}
	return err
}

// IsUniqueViolation reports a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}

// IsNotReady reports whether err carries ErrStoreNotReady.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrStoreNotReady)
}
