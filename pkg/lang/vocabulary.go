// Package lang loads the unit vocabulary used to print and parse durations.
//
// A vocabulary is a YAML document with one entry per unit:
//
//	units:
//	  hour:
//	    singular: hour
//	    plural: hours
//	    aliases: [hour, hours, h]
//
// The singular and plural words are used by timefmt. Together with the
// aliases they become the unit names accepted by timeparse.
package lang

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/onlinetime/pkg/timefmt"
	"github.com/0xmhha/onlinetime/pkg/timeparse"
)

//go:embed en.yaml
var english []byte

var unitSeconds = map[timefmt.Unit]int64{
	timefmt.Year:   timeparse.Year,
	timefmt.Month:  timeparse.Month,
	timefmt.Week:   timeparse.Week,
	timefmt.Day:    timeparse.Day,
	timefmt.Hour:   timeparse.Hour,
	timefmt.Minute: timeparse.Minute,
	timefmt.Second: timeparse.Second,
}

// Words holds the vocabulary of one unit.
type Words struct {
	Singular string   `yaml:"singular"`
	Plural   string   `yaml:"plural"`
	Aliases  []string `yaml:"aliases"`
}

// Vocabulary maps every timefmt unit to its words.
type Vocabulary struct {
	Units map[string]Words `yaml:"units"`
}

// Default returns the embedded English vocabulary.
func Default() *Vocabulary {
	v, err := Parse(english)
	if err != nil {
		panic(err)
	}
	return v
}

// Load reads a vocabulary file. An empty path returns Default.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a vocabulary document.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate checks that every unit is present with both words and that no
// unknown unit is named.
func (v *Vocabulary) Validate() error {
	for _, u := range timefmt.Units() {
		w, ok := v.Units[u.String()]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingUnit, u)
		}
		if w.Singular == "" || w.Plural == "" {
			return fmt.Errorf("%w: %s", ErrMissingWord, u)
		}
	}
	if len(v.Units) != len(unitSeconds) {
		for name := range v.Units {
			if !isUnit(name) {
				return fmt.Errorf("%w: %s", ErrUnknownUnit, name)
			}
		}
	}
	return nil
}

// Unit implements timefmt.Localization.
func (v *Vocabulary) Unit(u timefmt.Unit, plural bool) string {
	w := v.Units[u.String()]
	if plural {
		return w.Plural
	}
	return w.Singular
}

// Format renders seconds with this vocabulary.
func (v *Vocabulary) Format(seconds int64) string {
	return timefmt.Format(seconds, v)
}

// Parser builds a duration parser from each unit's singular and plural words
// and its aliases, so everything Format prints parses back. Words that are
// not plain letters cannot be parsed and are left out; explicit aliases must
// be valid. Repeats within one unit are collapsed; a name shared by two units
// is an error.
func (v *Vocabulary) Parser() (*timeparse.Parser, error) {
	b := timeparse.NewBuilder()
	for _, u := range timefmt.Units() {
		w := v.Units[u.String()]
		seen := make(map[string]bool)
		var aliases []string
		add := func(a string) {
			a = strings.ToLower(strings.TrimSpace(a))
			if seen[a] {
				return
			}
			seen[a] = true
			aliases = append(aliases, a)
		}
		for _, word := range []string{w.Singular, w.Plural} {
			if timeparse.ValidAlias(strings.TrimSpace(word)) {
				add(word)
			}
		}
		for _, a := range w.Aliases {
			add(a)
		}
		if len(aliases) == 0 {
			continue
		}
		b.AddUnit(unitSeconds[u], aliases...)
	}
	p, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build duration parser: %w", err)
	}
	return p, nil
}

func isUnit(name string) bool {
	for _, u := range timefmt.Units() {
		if u.String() == name {
			return true
		}
	}
	return false
}
