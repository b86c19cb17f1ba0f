// Package identity defines the tracked subject: a stable id plus an optional
// display name.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when a string is not a dashed or undashed UUID.
var ErrInvalidID = errors.New("invalid identity id")

// Identity is a tracked subject. Name is empty when unknown.
type Identity struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// New returns an Identity with the given id and name.
func New(id uuid.UUID, name string) Identity {
	return Identity{ID: id, Name: name}
}

// String returns the display name when known and the id otherwise.
func (i Identity) String() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID.String()
}

// Parse accepts the canonical 36 character form and the 32 hex digit form
// without dashes. Hex digits may be in either case.
func Parse(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case 32, 36:
	default:
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// IsID reports whether s parses as an identity id.
func IsID(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Key returns the storage key for id.
func Key(id uuid.UUID) string {
	return id.String()
}

// FromKey is the inverse of Key.
func FromKey(key string) (uuid.UUID, error) {
	return Parse(key)
}
