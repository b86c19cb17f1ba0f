package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/onlinetime/pkg/timefmt"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

type jsonEntry struct {
	Entry
	Duration string `json:"duration"`
}

type jsonSummary struct {
	Summary
	Duration string `json:"duration"`
}

// FormatEntry implements Formatter.FormatEntry.
func (f *jsonFormatter) FormatEntry(w io.Writer, entry Entry) error {
	return f.encode(w, f.entry(entry))
}

// FormatTop implements Formatter.FormatTop.
func (f *jsonFormatter) FormatTop(w io.Writer, entries []Entry) error {
	out := make([]jsonEntry, len(entries))
	for i, e := range entries {
		out[i] = f.entry(e)
	}
	return f.encode(w, out)
}

// FormatSummary implements Formatter.FormatSummary.
func (f *jsonFormatter) FormatSummary(w io.Writer, summary Summary) error {
	return f.encode(w, jsonSummary{
		Summary:  summary,
		Duration: timefmt.Format(summary.TotalSeconds, f.config.Localization),
	})
}

func (f *jsonFormatter) entry(e Entry) jsonEntry {
	return jsonEntry{Entry: e, Duration: timefmt.Format(e.Seconds, f.config.Localization)}
}

func (f *jsonFormatter) encode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(v)
}
