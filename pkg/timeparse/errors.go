package timeparse

import "errors"

// Configuration errors returned by Builder.Build.
var (
	// ErrInvalidAlias is returned when an alias is not made of letters a-z.
	ErrInvalidAlias = errors.New("invalid unit alias")

	// ErrDuplicateAlias is returned when an alias is registered twice.
	ErrDuplicateAlias = errors.New("duplicate unit alias")

	// ErrInvalidUnitSize is returned when a unit is not a positive number of seconds.
	ErrInvalidUnitSize = errors.New("invalid unit size: must be > 0")

	// ErrNoAliases is returned when a unit is registered without aliases.
	ErrNoAliases = errors.New("unit registered without aliases")
)
