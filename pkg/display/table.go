package display

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/0xmhha/onlinetime/pkg/timefmt"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatEntry implements Formatter.FormatEntry.
func (f *tableFormatter) FormatEntry(w io.Writer, entry Entry) error {
	if err := writeHeader(w, "Online Time", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Name", entry.Name},
		{"ID", entry.ID.String()},
		{"Online Time", timefmt.Format(entry.Seconds, f.config.Localization)},
		{"Seconds", formatNumber(entry.Seconds)},
		{"Status", status(entry.Online)},
	}
	if entry.Name == "" {
		rows = rows[1:]
	}

	return f.writeTable(w, []string{"Field", "Value"}, rows)
}

// FormatTop implements Formatter.FormatTop.
func (f *tableFormatter) FormatTop(w io.Writer, entries []Entry) error {
	if err := writeHeader(w, "Top Online Time", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Rank", "Name", "Online Time", "Seconds", "Status"}

	rows := make([][]string, len(entries))
	for i, entry := range entries {
		rows[i] = []string{
			fmt.Sprintf("#%d", i+1),
			entry.Label(),
			timefmt.Format(entry.Seconds, f.config.Localization),
			formatNumber(entry.Seconds),
			status(entry.Online),
		}
	}

	return f.writeTable(w, header, rows)
}

// FormatSummary implements Formatter.FormatSummary.
func (f *tableFormatter) FormatSummary(w io.Writer, summary Summary) error {
	if err := writeHeader(w, "Summary", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Identities", formatNumber(int64(summary.Identities))},
		{"Online", formatNumber(int64(summary.Online))},
		{"Total Time", timefmt.Format(summary.TotalSeconds, f.config.Localization)},
	}

	return f.writeTable(w, []string{"Metric", "Value"}, rows)
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}

	// Write header.
	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	// Write separator.
	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	// Write rows.
	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	// Add spacing.
	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(gap)
		}
		b.WriteString(cell)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
		}
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}
