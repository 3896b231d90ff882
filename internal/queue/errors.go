package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition reports a status change not permitted by the
	// transition tables. The row is left untouched.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound reports a missing session or song.
	ErrNotFound = errors.New("not found")
)

func invalidTransition(from, to any) error {
	return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, from, to)
}
