package tracker

import "errors"

var (
	// ErrMalformedEvent is returned for a line that is not a valid event.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrUnknownEvent is returned for an event kind the protocol does not define.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrNoCommander is returned when a command line arrives and no
	// Commander is attached.
	ErrNoCommander = errors.New("commands are not accepted")
)
