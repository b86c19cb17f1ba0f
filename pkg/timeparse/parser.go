// Package timeparse parses human-written durations such as "1h 30min" or
// "2 weeks -1 day" into a signed number of seconds.
//
// The accepted text is a sequence of signed integers each followed by a unit
// alias, optionally ending in one bare integer that counts seconds. Blanks
// between tokens are allowed and case is ignored. The empty string is zero.
//
// Example usage:
//
//	p, err := timeparse.NewBuilder().
//	    AddUnit(1, "s", "sec").
//	    AddUnit(60, "min").
//	    Build()
//	secs, ok := p.Parse("1 min 30s") // 90, true
package timeparse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	aliasPattern = regexp.MustCompile(`^[a-z]+$`)
	inputPattern = regexp.MustCompile(`^(?:[+-]?[0-9]+\s*[a-z]+\s*)*(?:[+-]?[0-9]+)?$`)
	tokenPattern = regexp.MustCompile(`([+-]?[0-9]+)\s*([a-z]*)`)
)

// Builder accumulates unit registrations. The first configuration error is
// kept and reported by Build.
type Builder struct {
	units map[string]int64
	err   error
}

// NewBuilder returns a Builder with no units.
func NewBuilder() *Builder {
	return &Builder{units: make(map[string]int64)}
}

// AddUnit registers aliases for a unit worth seconds seconds. Aliases are
// lower-cased and must consist of letters a-z only.
func (b *Builder) AddUnit(seconds int64, aliases ...string) *Builder {
	if b.err != nil {
		return b
	}
	if seconds <= 0 {
		b.err = fmt.Errorf("%w: %d", ErrInvalidUnitSize, seconds)
		return b
	}
	if len(aliases) == 0 {
		b.err = fmt.Errorf("%w: %d", ErrNoAliases, seconds)
		return b
	}
	for _, alias := range aliases {
		alias = strings.ToLower(alias)
		if !aliasPattern.MatchString(alias) {
			b.err = fmt.Errorf("%w: %q", ErrInvalidAlias, alias)
			return b
		}
		if _, dup := b.units[alias]; dup {
			b.err = fmt.Errorf("%w: %q", ErrDuplicateAlias, alias)
			return b
		}
		b.units[alias] = seconds
	}
	return b
}

// ValidAlias reports whether s, lower-cased, is usable as a unit alias.
func ValidAlias(s string) bool {
	return aliasPattern.MatchString(strings.ToLower(s))
}

// Build returns the Parser or the first configuration error.
func (b *Builder) Build() (*Parser, error) {
	if b.err != nil {
		return nil, b.err
	}
	units := make(map[string]int64, len(b.units))
	for k, v := range b.units {
		units[k] = v
	}
	return &Parser{units: units}, nil
}

// Parser converts duration text to seconds. It is immutable and safe for
// concurrent use.
type Parser struct {
	units map[string]int64
}

// Parse returns the number of seconds described by s. The second result is
// false when s does not match the grammar, names an unknown unit, or
// overflows int64.
func (p *Parser) Parse(s string) (int64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, true
	}
	if !inputPattern.MatchString(s) {
		return 0, false
	}

	var total int64
	for _, m := range tokenPattern.FindAllStringSubmatch(s, -1) {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		size := int64(1)
		if m[2] != "" {
			var known bool
			if size, known = p.units[m[2]]; !known {
				return 0, false
			}
		}
		v, ok := mul(n, size)
		if !ok {
			return 0, false
		}
		if total, ok = add(total, v); !ok {
			return 0, false
		}
	}
	return total, true
}

// Units returns a copy of the alias table.
func (p *Parser) Units() map[string]int64 {
	out := make(map[string]int64, len(p.units))
	for k, v := range p.units {
		out[k] = v
	}
	return out
}

func mul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}

func add(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}
