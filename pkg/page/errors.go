package page

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotRegistered is returned when a page name is not in the registry.
var ErrNotRegistered = errors.New("page not registered")

// StructureError reports a malformed page or mapping declaration.
type StructureError struct {
	Kind   string // "page" or "mapping"
	Name   string
	Reason string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, e.Reason)
}

// NotFoundError is returned when a page expected on screen is not there in
// time.
type NotFoundError struct {
	Page    string
	Timeout time.Duration
	Err     error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("page %q not found on screen after %s", e.Page, e.Timeout)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Err }
