package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Service-level sentinel errors. Handlers map these to HTTP statuses.
var (
	// ErrNotFound means the requested student or log entry does not exist.
	// Callers treat it as a normal empty result, not a crash.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable means the document store could not be reached.
	ErrUnavailable = errors.New("database unavailable")
)

// ValidationError carries per-field messages for a manually supplied value
// that is outside the legal range. This is distinct from clamping: clamping
// is a calculated adjustment, validation failure is a rejected user input.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, "; "))
}
