package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oceangate/oceangate/internal/shared"
)

// SQLSTATE codes the repositories react to.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeCheckViolation       = "23514"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// SQLState returns the SQLSTATE of a postgres error, or "".
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	return SQLState(err) == CodeUniqueViolation
}

// ConstraintName returns the violated constraint, if any.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// MapError converts concurrency and integrity failures into the shared taxonomy.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	switch SQLState(err) {
	case CodeSerializationFailure, CodeDeadlockDetected:
		return shared.Public("Concurrent update, try again", shared.ErrConflict, err)
	case CodeForeignKeyViolation:
		if errors.Is(err, shared.ErrValidation) {
			return err
		}
		return shared.Public("Record is still referenced by other records", shared.ErrValidation, err)
	case CodeCheckViolation:
		return shared.Public("Value out of range", shared.ErrValidation, err)
	}
	return err
}
