package lang

import "errors"

var (
	// ErrMissingUnit is returned when a vocabulary omits one of the units.
	ErrMissingUnit = errors.New("vocabulary is missing a unit")

	// ErrUnknownUnit is returned when a vocabulary names a unit that does not exist.
	ErrUnknownUnit = errors.New("vocabulary names an unknown unit")

	// ErrMissingWord is returned when a unit has no singular or plural word.
	ErrMissingWord = errors.New("unit is missing its singular or plural word")

	// ErrInvalidYAML is returned when a vocabulary file cannot be decoded.
	ErrInvalidYAML = errors.New("invalid YAML syntax in vocabulary file")
)
