package looma

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned by operations that need an initialized
	// engine before Start succeeded.
	ErrNotStarted = errors.New("looma: session not started")
	// ErrClosed is returned once Close ran.
	ErrClosed = errors.New("looma: session closed")
	// ErrCannotNavigate is returned by Navigate when the document cannot
	// load another URL.
	ErrCannotNavigate = errors.New("looma: document cannot navigate")
)

// ErrInitFailed is the terminal initialization failure after every retry.
// Cause is the last attempt's error.
type ErrInitFailed struct {
	Attempts int
	Cause    error
}

func (e *ErrInitFailed) Error() string {
	return fmt.Sprintf("looma: initialization failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *ErrInitFailed) Unwrap() error { return e.Cause }
