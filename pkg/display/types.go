// Package display provides output formatting for online time.
//
// It supports multiple output formats (table, JSON, simple text).
// Durations are rendered through a timefmt.Localization.
package display

import (
	"io"

	"github.com/google/uuid"

	"github.com/0xmhha/onlinetime/pkg/timefmt"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays totals in a formatted table.
	FormatTable Format = "table"

	// FormatJSON displays totals as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays totals in simple text format.
	FormatSimple Format = "simple"
)

// Entry is the online time of one identity.
type Entry struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name,omitempty"`
	Seconds int64     `json:"seconds"`
	Online  bool      `json:"online"`
}

// Label returns the name, or the id when no name is known.
func (e Entry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID.String()
}

// Summary aggregates all recorded identities.
type Summary struct {
	Identities   int   `json:"identities"`
	Online       int   `json:"online"`
	TotalSeconds int64 `json:"total_seconds"`
}

// Formatter formats and displays online time.
type Formatter interface {
	// FormatEntry formats the total of a single identity.
	FormatEntry(w io.Writer, entry Entry) error

	// FormatTop formats a ranking; entries are expected in rank order.
	FormatTop(w io.Writer, entries []Entry) error

	// FormatSummary formats totals over all identities.
	FormatSummary(w io.Writer, summary Summary) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Localization names duration units.
	// Default: English.
	Localization timefmt.Localization

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}
