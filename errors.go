package editlock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLocked is matched by *LockedError; contention is an expected outcome, not a failure.
	ErrLocked = errors.New("document version is locked")

	// ErrNotFound is returned when a lease, session or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable wraps lease store failures. Callers may retry.
	ErrUnavailable = errors.New("lease store unavailable")

	// ErrInvalidTransition is returned when a lifecycle change is not in the transition table.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidArgument is returned for malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// LockedError describes the lease that blocked an acquisition.
type LockedError struct {
	Holder    string
	ExpiresAt time.Time
	LeaseKey  string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("document version is being edited by %s until %s", e.Holder, e.ExpiresAt.Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrLocked) match.
func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

// unavailable translates a store error into ErrUnavailable. Context errors and
// errors already in the taxonomy pass through.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: failed to %s: %w", ErrUnavailable, op, err)
}
