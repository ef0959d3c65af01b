package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable is the soft failure returned by a backend that
	// was not compiled into the build. It drives fallback to the next backend.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrNoWorkingBackends is returned when every backend was unavailable.
	ErrNoWorkingBackends = errors.New("no working backends")
	// ErrNotFound is returned for a missing local file, an HTTP 404 and a
	// missing object-store key alike.
	ErrNotFound = errors.New("resource not found")
	// ErrUnexpectedStatusCode is the sentinel wrapped by [StatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrTimeout is the sentinel wrapped by [TimeoutError].
	ErrTimeout = errors.New("transfer timed out")
	// ErrUnsupportedScheme is returned for a URL scheme no backend path handles.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// UnavailableError names the backend that is absent from the build.
type UnavailableError struct {
	Backend string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%v: %s", ErrBackendUnavailable, e.Backend)
}

func (e *UnavailableError) Unwrap() error {
	return ErrBackendUnavailable
}

// Unavailable returns the error a stub backend reports for itself.
func Unavailable(backend string) error {
	return &UnavailableError{Backend: backend}
}

// IsUnavailable reports whether err signals an absent backend.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// StatusError is returned when the server answers with a status other
// than 200 OK or 404 Not Found.
type StatusError struct {
	StatusCode int
	Err        error
}

// NewStatusError maps an HTTP status code onto the error taxonomy.
// A 404 is reported as [ErrNotFound].
func NewStatusError(code int) error {
	if code == 404 {
		return fmt.Errorf("http status %d: %w", code, ErrNotFound)
	}

	return &StatusError{StatusCode: code, Err: ErrUnexpectedStatusCode}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d", e.Err, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when a connection could not be established
// in time or a transfer stalled below the minimum rate.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, ErrTimeout)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrTimeout, e.Err)
}

func (e *TimeoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.Err}
}

// IOError tags a disk or stream failure with the operation that failed,
// e.g. "create file", "write file", "sync file", "read file" or "read socket".
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
