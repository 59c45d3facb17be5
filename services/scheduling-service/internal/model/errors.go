package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyReserved   = errors.New("already reserved")
	ErrPermission        = errors.New("permission denied")
	ErrLockTimeout       = errors.New("slot is busy, try again")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
)

// ValidationError rejects malformed input before persistence.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// OverlapError names the slot a new range collides with. Conflicting is
// zero when only the database constraint saw the collision.
type OverlapError struct {
	Conflicting WeeklySlot
}

func (e *OverlapError) Error() string {
	c := e.Conflicting
	if c.ID == "" {
		return "overlaps an existing slot"
	}
	return fmt.Sprintf("overlaps existing slot %s %s-%s", c.Weekday, c.Start, c.End)
}

// Retryable reports errors the caller may retry after a short wait.
func Retryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// Classified reports whether err belongs to the taxonomy above.
func Classified(err error) bool {
	var verr *ValidationError
	var oerr *OverlapError
	return errors.As(err, &verr) || errors.As(err, &oerr) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyReserved) ||
		errors.Is(err, ErrPermission) || errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, ErrInvalidTransition)
}

// Wrap annotates unclassified errors with op and passes classified ones
// through untouched so their messages reach the caller verbatim.
func Wrap(op string, err error) error {
	if err == nil || Classified(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
