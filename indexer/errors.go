package indexer

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineDestroyed is returned by every call made after Destroy.
	ErrEngineDestroyed = errors.New("indexer: engine destroyed")
	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("indexer: already initialized")
	// ErrNotInitialized is returned by calls that need a document before
	// Initialize has completed.
	ErrNotInitialized = errors.New("indexer: not initialized")
	// ErrQueryNotFound means no record carries the requested ID.
	ErrQueryNotFound = errors.New("indexer: query not found")
	// ErrElementNotFound means the record exists but its element could not
	// be found in the current tree.
	ErrElementNotFound = errors.New("indexer: element not found")
)

// ErrScanFailed is returned when a full scan could not run at all: a
// locator failed to compile or the document refused a query.
type ErrScanFailed struct {
	Platform string
	Cause    error
}

func (e *ErrScanFailed) Error() string {
	return fmt.Sprintf("indexer: scan failed on %s: %v", e.Platform, e.Cause)
}

func (e *ErrScanFailed) Unwrap() error { return e.Cause }
