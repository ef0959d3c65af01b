package fetchr

import (
	"errors"
	"fmt"
)

var (
	ErrNilCallback           = errors.New("callback must not be nil")
	ErrNilURL                = errors.New("url must not be nil")
	ErrEmptyPath             = errors.New("path must not be empty")
	ErrUnknownBackend        = errors.New("unknown backend")
	ErrContentLengthMismatch = errors.New("content length mismatch")
)

// Error wraps a sentinel error with additional detail.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
