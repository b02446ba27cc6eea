package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pgUniqueViolationCode = "23505"

// ConflictError is the storage-layer signal that a unique key already exists.
// Callers treat it as a concurrency event, not a failure.
type ConflictError struct {
	Constraint string
	cause      error
}

func (e *ConflictError) Error() string {
	if e.Constraint != "" {
		return "unique constraint violated: " + e.Constraint
	}
	return "unique constraint violated"
}

func (e *ConflictError) Unwrap() error {
	return e.cause
}

// AsConflict converts a driver-level unique violation into a typed
// ConflictError, keeping storage-engine specifics out of domain code.
// Non-conflict errors pass through unchanged.
func AsConflict(err error) error {
	if err == nil {
		return nil
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) && pgxErr.Code == pgUniqueViolationCode {
		return &ConflictError{Constraint: pgxErr.ConstraintName, cause: err}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolationCode {
		return &ConflictError{Constraint: pqErr.Constraint, cause: err}
	}

	// sqlite (tests) and gorm's own translation
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value") {
		return &ConflictError{cause: err}
	}

	return err
}

// IsConflict reports whether the error chain contains a unique violation.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return true
	}
	return AsConflict(err) != err
}
