package lang

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/onlinetime/pkg/timeparse"
)

func TestDefaultVocabulary(t *testing.T) {
	v := Default()

	assert.Equal(t, "0 seconds", v.Format(0))
	assert.Equal(t, "1 hour 1 minute 1 second", v.Format(3661))
	assert.Equal(t, "1 month 5 days", v.Format(35*86400))

	p, err := v.Parser()
	require.NoError(t, err)
	assert.Equal(t, timeparse.Default().Units(), p.Units())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	german := `
units:
  year:   {singular: Jahr, plural: Jahre, aliases: [jahr, jahre, j]}
  month:  {singular: Monat, plural: Monate, aliases: [monat, monate, mo]}
  week:   {singular: Woche, plural: Wochen, aliases: [woche, wochen, w]}
  day:    {singular: Tag, plural: Tage, aliases: [tag, tage, t]}
  hour:   {singular: Stunde, plural: Stunden, aliases: [stunde, stunden, h, H]}
  minute: {singular: Minute, plural: Minuten, aliases: [minute, minuten, min]}
  second: {singular: Sekunde, plural: Sekunden, aliases: [sekunde, sekunden, s]}
`
	path := filepath.Join(dir, "de.yaml")
	require.NoError(t, os.WriteFile(path, []byte(german), 0600))

	v, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2 Stunden 1 Sekunde", v.Format(7201))

	p, err := v.Parser()
	require.NoError(t, err)
	got, ok := p.Parse("1 stunde 2 min")
	require.True(t, ok)
	assert.Equal(t, int64(3720), got)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"bad yaml", "units: [", ErrInvalidYAML},
		{"missing unit", "units:\n  second: {singular: s, plural: s}\n", ErrMissingUnit},
		{
			"missing word",
			`units:
  year: {singular: y, plural: y}
  month: {singular: m, plural: m}
  week: {singular: w, plural: w}
  day: {singular: d, plural: d}
  hour: {singular: h, plural: h}
  minute: {singular: min, plural: min}
  second: {singular: s}
`,
			ErrMissingWord,
		},
		{
			"unknown unit",
			`units:
  year: {singular: y, plural: y}
  month: {singular: m, plural: m}
  week: {singular: w, plural: w}
  day: {singular: d, plural: d}
  hour: {singular: h, plural: h}
  minute: {singular: min, plural: min}
  second: {singular: s, plural: s}
  decade: {singular: dec, plural: dec}
`,
			ErrUnknownUnit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "v.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))
			_, err := Load(path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParserDuplicateAcrossUnits(t *testing.T) {
	v := Default()
	w := v.Units["hour"]
	w.Aliases = append(w.Aliases, "min")
	v.Units["hour"] = w

	_, err := v.Parser()
	assert.ErrorIs(t, err, timeparse.ErrDuplicateAlias)
}

const abbreviated = `
units:
  year:   {singular: year, plural: years, aliases: [y]}
  month:  {singular: month, plural: months, aliases: [mo]}
  week:   {singular: week, plural: weeks, aliases: [w]}
  day:    {singular: day, plural: days, aliases: [d]}
  hour:   {singular: hour, plural: hours, aliases: [h]}
  minute: {singular: minute, plural: minutes, aliases: [min]}
  second: {singular: second, plural: seconds, aliases: [s]}
`

func TestParserAcceptsUnitWords(t *testing.T) {
	v, err := Parse([]byte(abbreviated))
	require.NoError(t, err)
	p, err := v.Parser()
	require.NoError(t, err)

	assert.Equal(t, "2 hours", v.Format(7200))
	got, ok := p.Parse(v.Format(7200))
	require.True(t, ok)
	assert.Equal(t, int64(7200), got)

	got, ok = p.Parse("1 hour 2 h 1 minute")
	require.True(t, ok)
	assert.Equal(t, int64(3*3600+60), got)
}

func TestParserSkipsNonLetterWords(t *testing.T) {
	v := Default()
	w := v.Units["year"]
	w.Singular, w.Plural = "année", "années"
	v.Units["year"] = w

	p, err := v.Parser()
	require.NoError(t, err)
	got, ok := p.Parse("2y")
	require.True(t, ok)
	assert.Equal(t, 2*timeparse.Year, got)
}

func TestRoundTrip(t *testing.T) {
	vocabularies := map[string]*Vocabulary{"default": Default()}
	v, err := Parse([]byte(abbreviated))
	require.NoError(t, err)
	vocabularies["abbreviated"] = v

	values := []int64{-5, -1, 0, 1, 2, 13, 59}

	for name, v := range vocabularies {
		t.Run(name, func(t *testing.T) {
			p, err := v.Parser()
			require.NoError(t, err)

			units := p.Units()
			aliases := make([]string, 0, len(units))
			for a := range units {
				aliases = append(aliases, a)
			}
			sort.Strings(aliases)

			for i, a := range aliases {
				next := aliases[(i+1)%len(aliases)]
				for _, n := range values {
					single := fmt.Sprintf("%d %s", n, a)
					got, ok := p.Parse(single)
					require.True(t, ok, single)
					assert.Equal(t, n*units[a], got, single)

					pair := fmt.Sprintf("%d%s %d %s %d", n, a, n+1, next, n)
					got, ok = p.Parse(pair)
					require.True(t, ok, pair)
					assert.Equal(t, n*units[a]+(n+1)*units[next]+n, got, pair)
				}
			}

			for _, secs := range []int64{0, 1, 59, 61, 3661, 90061, 35 * 86400, 400 * 86400, -90061, 1<<40 + 7} {
				text := v.Format(secs)
				got, ok := p.Parse(text)
				require.True(t, ok, text)
				assert.Equal(t, secs, got, text)
			}
		})
	}
}
