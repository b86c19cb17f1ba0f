package postgres

import "errors"

var (
	// ErrNoURL is returned when Open is called without a connection URL.
	ErrNoURL = errors.New("database URL is required")

	// ErrInvalidKey is returned when a ledger key is not an identity id.
	ErrInvalidKey = errors.New("key is not an identity id")
)
