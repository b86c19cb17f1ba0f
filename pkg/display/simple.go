package display

import (
	"fmt"
	"io"

	"github.com/0xmhha/onlinetime/pkg/timefmt"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatEntry implements Formatter.FormatEntry.
func (f *simpleFormatter) FormatEntry(w io.Writer, entry Entry) error {
	_, err := fmt.Fprintf(w, "%s: %s (%s)\n",
		entry.Label(),
		timefmt.Format(entry.Seconds, f.config.Localization),
		status(entry.Online))
	return err
}

// FormatTop implements Formatter.FormatTop.
func (f *simpleFormatter) FormatTop(w io.Writer, entries []Entry) error {
	for i, entry := range entries {
		if _, err := fmt.Fprintf(w, "#%d: %s - %s\n",
			i+1,
			entry.Label(),
			timefmt.Format(entry.Seconds, f.config.Localization)); err != nil {
			return err
		}
	}

	return nil
}

// FormatSummary implements Formatter.FormatSummary.
func (f *simpleFormatter) FormatSummary(w io.Writer, summary Summary) error {
	_, err := fmt.Fprintf(w, "Identities: %d | Online: %d | Total: %s\n",
		summary.Identities,
		summary.Online,
		timefmt.Format(summary.TotalSeconds, f.config.Localization))
	return err
}
