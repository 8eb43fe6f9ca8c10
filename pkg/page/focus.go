package page

import (
	"context"
	"errors"
	"time"

	"github.com/entrhq/pagerunner/pkg/wait"
)

// Focusable is a page that can tell whether it is on screen.
type Focusable interface {
	Page
	IsOnFocus(ctx context.Context) (bool, error)
}

// WaitForFocus waits until p is on screen. It returns a *NotFoundError when
// the page is not there within timeout.
func WaitForFocus(ctx context.Context, p Focusable, timeout time.Duration) error {
	return WaitForFocusWith(ctx, p, wait.Options{Timeout: timeout})
}

// WaitForFocusWith is WaitForFocus with explicit timeout and poll interval.
func WaitForFocusWith(ctx context.Context, p Focusable, opts wait.Options) error {
	if opts.Message == "" {
		opts.Message = "page " + p.Name()
	}
	err := wait.Until(ctx, opts, p.IsOnFocus)
	var te *wait.TimeoutError
	if errors.As(err, &te) {
		return &NotFoundError{Page: p.Name(), Timeout: te.Timeout, Err: err}
	}
	return err
}
