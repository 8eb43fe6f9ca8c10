package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a required session or capability
	// input is missing or malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedBrowser is returned when a local run asks for a browser
	// without a local driver.
	ErrUnsupportedBrowser = errors.New("unsupported browser")
)

// InvalidArgumentf wraps ErrInvalidArgument with a formatted message.
func InvalidArgumentf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, a...))
}

// NoticeKind classifies a non-fatal correction.
type NoticeKind string

const (
	// NoticeDowngrade means a requested setting was forced to another value.
	NoticeDowngrade NoticeKind = "downgrade"
	// NoticeUnsupported means a requested feature has no rule for the target and was skipped.
	NoticeUnsupported NoticeKind = "unsupported"
)

// Notice records a non-fatal correction made during resolution.
type Notice struct {
	Kind   NoticeKind
	Field  string
	From   any
	To     any
	Reason string
}

func (n Notice) String() string {
	if n.Kind == NoticeDowngrade {
		return fmt.Sprintf("%s: %v -> %v: %s", n.Field, n.From, n.To, n.Reason)
	}
	return fmt.Sprintf("%s: %s", n.Field, n.Reason)
}
