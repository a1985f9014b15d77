package domain

import (
	"errors"
	"strings"
)

// Sentinel errors for the application.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrNoSeatsAvailable = errors.New("no seats available")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("resource already exists")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationDetail returns the text after "validation failed: " from the
// innermost error built as fmt.Errorf("%w: detail", ErrValidation), without
// any operation prefixes added by callers further up.
func ValidationDetail(err error) string {
	prefix := ErrValidation.Error() + ": "
	for e := err; e != nil; e = errors.Unwrap(e) {
		if detail, ok := strings.CutPrefix(e.Error(), prefix); ok {
			return detail
		}
	}
	return "invalid input"
}
