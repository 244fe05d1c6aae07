package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the repositories act on.
const (
	CodeUniqueViolation        = "23505"
	CodeCardinalityViolation   = "21000" // ON CONFLICT hit the same row twice in one statement
	CodeStringDataTruncation   = "22001"
	CodeForeignKeyViolation    = "23503"
	CodeNumericValueOutOfRange = "22003"
)

// PgErrorCode returns the SQLSTATE of err, or "" if err is not a PostgreSQL error.
func PgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsKeyConflict reports whether err is a natural-key conflict: a unique
// violation, or an upsert statement that would touch the same row twice.
func IsKeyConflict(err error) bool {
	switch PgErrorCode(err) {
	case CodeUniqueViolation, CodeCardinalityViolation:
		return true
	}
	return false
}
