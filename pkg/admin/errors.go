package admin

import "errors"

var (
	// ErrUnknownIdentity is returned when a name or id cannot be resolved.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrNotFound is returned when an identity has no recorded time.
	ErrNotFound = errors.New("no online time recorded")

	// ErrInvalidDuration is returned when duration text does not parse.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrNegativeTime is returned when a change would leave a negative total.
	ErrNegativeTime = errors.New("online time cannot be negative")
)
