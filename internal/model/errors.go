package model

import (
	"errors"
	"fmt"
)

// ErrDemoLocked rejects mutation of the reserved demo administrator. It is a
// soft failure: callers surface a notice and carry on with the request.
var ErrDemoLocked = errors.New("demo administrator is locked")

// NotFoundError reports a lookup of an administrator id that has no row.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("administrator %d not found", e.ID)
}

// ValidationError carries per-field validation messages for a rejected
// creation request. No writes happen when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d field(s)", len(e.Fields))
}
