// Package wait provides explicit waits: poll a condition until it holds or a
// timeout elapses.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Standard timeouts used by page actions.
const (
	Tiny  = 5 * time.Second
	Short = 15 * time.Second
	Long  = 25 * time.Second

	DefaultTimeout = Short
	DefaultPoll    = 500 * time.Millisecond
)

// Options configures a wait.
type Options struct {
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
	// Poll defaults to DefaultPoll.
	Poll time.Duration
	// Message describes what is awaited; it is reported on timeout.
	Message string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Poll <= 0 {
		o.Poll = DefaultPoll
	}
	return o
}

// Condition reports whether the awaited state holds.
type Condition func(ctx context.Context) (bool, error)

// TimeoutError is returned when a condition did not hold in time.
type TimeoutError struct {
	Timeout time.Duration
	Message string
	// Last is the last ignored error returned by the condition, if any.
	Last error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s", e.Timeout)
	if e.Message != "" {
		msg += " waiting for " + e.Message
	}
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Last }

type ignoredError struct{ err error }

func (e *ignoredError) Error() string { return e.err.Error() }
func (e *ignoredError) Unwrap() error { return e.err }

// Ignore marks err as transient: a condition returning it is polled again
// instead of failing the wait. Typical uses are element-not-found and stale
// element errors.
func Ignore(err error) error {
	if err == nil {
		return nil
	}
	return &ignoredError{err: err}
}

// IsIgnored reports whether err was marked with Ignore.
func IsIgnored(err error) bool {
	var ie *ignoredError
	return errors.As(err, &ie)
}

// Until polls cond until it returns true. It returns a *TimeoutError when
// opts.Timeout elapses, the first error of cond that is not marked with
// Ignore, or the context error when ctx is cancelled.
func Until(ctx context.Context, opts Options, cond Condition) error {
	_, err := For(ctx, opts, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := cond(ctx)
		return struct{}{}, ok, err
	})
	return err
}

// For polls fn until it reports done and returns its value.
func For[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	opts = opts.withDefaults()

	var zero T
	deadline := time.Now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()

	var last error
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, done, err := fn(ctx)
		switch {
		case err != nil && !IsIgnored(err):
			return zero, err
		case err != nil:
			last = errors.Unwrap(err)
		case done:
			return v, nil
		}

		if !time.Now().Before(deadline) {
			return zero, &TimeoutError{Timeout: opts.Timeout, Message: opts.Message, Last: last}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
}
