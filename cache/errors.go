package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed marks a failed loader call. All callers waiting on the
	// same key receive it; the entry is not retained.
	ErrFetchFailed = errors.New("cache: fetch failed")
	// ErrInstantiateFailed marks a failed Instantiator call.
	ErrInstantiateFailed = errors.New("cache: instantiate failed")
	// ErrUnknownIdentifier is logged when Release is called for an id the
	// cache does not track. It is never returned.
	ErrUnknownIdentifier = errors.New("cache: unknown identifier")
	// ErrFlushed is returned to callers whose load was detached by ReleaseAll.
	ErrFlushed = errors.New("cache: flushed while loading")
	// ErrClosed is returned by Acquire/AcquireInstance after Close.
	ErrClosed = errors.New("cache: closed")
	// ErrNilLoader is returned when Acquire is called without a Loader.
	ErrNilLoader = errors.New("cache: nil loader")
	// ErrInvalidKey is returned by Acquire for keys shaped like an
	// InstanceID ("name#123"); that form is reserved for spawned instances.
	ErrInvalidKey = errors.New("cache: key has instance id form")
)

// LoadError describes a failed acquisition. It matches both its kind
// (ErrFetchFailed, ErrInstantiateFailed, ErrFlushed, ErrInvalidKey) and
// the underlying cause with errors.Is.
type LoadError struct {
	Key  string
	Kind error
	Err  error
}

// Error implements error.
func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %q", e.Kind, e.Key)
	}
	return fmt.Sprintf("%v: %q: %v", e.Kind, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// PanicError wraps a value recovered from a panicking loader or instantiator.
type PanicError struct {
	Value any
}

// Error implements error.
func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }
