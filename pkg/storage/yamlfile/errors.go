package yamlfile

import "errors"

var (
	// ErrLocked is returned when another process holds the document lock.
	ErrLocked = errors.New("document is locked by another process")

	// ErrInvalidYAML is returned when the document cannot be decoded.
	ErrInvalidYAML = errors.New("invalid YAML document")
)
