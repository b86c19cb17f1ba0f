package names

import "errors"

var (
	// ErrEmptyName is returned when binding an empty name.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrDuplicateName is returned when one batch assigns a name to two identities.
	ErrDuplicateName = errors.New("duplicate name in batch")
)
