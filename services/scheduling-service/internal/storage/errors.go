package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

const (
	codeExclusionViolation = "23P01"
	codeUniqueViolation    = "23505"
	codeLockNotAvailable   = "55P03"
	codeInvalidText        = "22P02"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsConflict reports an exclusion constraint violation (overlapping slots).
func IsConflict(err error) bool { return pgCode(err) == codeExclusionViolation }

func IsUniqueViolation(err error) bool { return pgCode(err) == codeUniqueViolation }

// IsLockTimeout reports that lock_timeout expired while waiting for a row lock.
func IsLockTimeout(err error) bool { return pgCode(err) == codeLockNotAvailable }

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || pgCode(err) == codeInvalidText
}

// translate maps driver errors onto the model taxonomy. Anything else is
// returned unchanged for the caller to wrap.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case IsNotFound(err):
		return model.ErrNotFound
	case IsLockTimeout(err):
		return model.ErrLockTimeout
	case IsConflict(err):
		return &model.OverlapError{}
	case IsUniqueViolation(err):
		return model.ErrAlreadyReserved
	default:
		return err
	}
}
