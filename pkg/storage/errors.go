package storage

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every operation on a closed backend.
var ErrClosed = errors.New("closed")

// Error wraps a fault reported by a backend.
type Error struct {
	// Op is the backend operation that failed (get, put, increment, ...).
	Op string

	// Key is the affected key, if any.
	Key string

	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err as an *Error for op and key. Nil stays nil and an error
// that already carries an *Error is returned unchanged.
func Wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Key: key, Err: err}
}

// Closed returns the error reported by op on a closed backend.
func Closed(op string) error {
	return &Error{Op: op, Err: ErrClosed}
}

// IsClosed reports whether err is the closed-backend error.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
