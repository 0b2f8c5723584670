package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ErrConflict marks a write rejected by a uniqueness constraint.
// Callers racing to create the same row match on it and re-read instead of failing.
var ErrConflict = errors.New("unique constraint conflict")

// uniqueViolationCode is the SQLSTATE for unique_violation
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err comes from a uniqueness constraint,
// whichever Postgres driver produced it.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}
	return false
}

// IsConflict reports whether err is (or wraps) ErrConflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func translateWriteError(msg string, err error) error {
	if IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %v", msg, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// ErrNotFound is returned by operations that must address an existing row,
// such as counter reads. Point lookups return (nil, nil) instead.
var ErrNotFound = errors.New("record not found")
