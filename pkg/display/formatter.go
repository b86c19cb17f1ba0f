package display

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/0xmhha/onlinetime/pkg/lang"
)

// New creates a new formatter based on configuration.
func New(cfg Config) Formatter {
	// Set defaults.
	if cfg.Format == "" {
		cfg.Format = FormatTable
	}
	if cfg.Localization == nil {
		cfg.Localization = lang.Default()
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatSimple:
		return &simpleFormatter{config: cfg}
	case FormatTable:
		fallthrough
	default:
		return &tableFormatter{config: cfg}
	}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatSimple:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q: must be table, simple, or json", s)
	}
}

// Rank sorts entries by descending total, then by label, and keeps the
// first n. n <= 0 keeps all.
func Rank(entries []Entry, n int) []Entry {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Seconds != ranked[j].Seconds {
			return ranked[i].Seconds > ranked[j].Seconds
		}
		return ranked[i].Label() < ranked[j].Label()
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Summarize aggregates entries.
func Summarize(entries []Entry) Summary {
	s := Summary{Identities: len(entries)}
	for _, e := range entries {
		s.TotalSeconds += e.Seconds
		if e.Online {
			s.Online++
		}
	}
	return s
}

// formatNumber formats a number with thousand separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	// Convert to string and add commas.
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func status(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

// writeHeader writes a section header.
func writeHeader(w io.Writer, title string, compact bool) error {
	if compact {
		_, err := fmt.Fprintf(w, "%s\n", title)
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	return err
}
