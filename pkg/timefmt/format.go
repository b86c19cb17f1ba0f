// Package timefmt renders a number of seconds as a localized, human-readable
// duration such as "1 hour 2 minutes 5 seconds".
//
// Months are 30 days and years 12 months; the same simplification the
// timeparse package uses, so formatted output parses back to its input.
package timefmt

import (
	"strconv"
	"strings"
)

// Unit identifies one component of a formatted duration.
type Unit int

const (
	Year Unit = iota
	Month
	Week
	Day
	Hour
	Minute
	Second
)

var unitNames = [...]string{"year", "month", "week", "day", "hour", "minute", "second"}

// String returns the lower-case English unit key ("year", ..., "second").
func (u Unit) String() string {
	if u < Year || u > Second {
		return "unit(" + strconv.Itoa(int(u)) + ")"
	}
	return unitNames[u]
}

// Units lists every unit from largest to smallest.
func Units() []Unit {
	return []Unit{Year, Month, Week, Day, Hour, Minute, Second}
}

// Localization supplies the word printed after each component.
type Localization interface {
	Unit(u Unit, plural bool) string
}

// LocalizationFunc adapts a function to Localization.
type LocalizationFunc func(u Unit, plural bool) string

// Unit implements Localization.
func (f LocalizationFunc) Unit(u Unit, plural bool) string { return f(u, plural) }

// Format renders seconds using l. Zero components are left out, except that
// a total of zero renders as a zero seconds component. Every component of a
// negative total is negative. The singular form is used only for exactly 1.
func Format(seconds int64, l Localization) string {
	sec := seconds
	minutes := sec / 60
	sec %= 60
	hours := minutes / 60
	minutes %= 60
	days := hours / 24
	hours %= 24
	months := days / 30
	days %= 30
	years := months / 12
	months %= 12
	weeks := days / 7
	days %= 7

	parts := []struct {
		unit  Unit
		value int64
	}{
		{Year, years},
		{Month, months},
		{Week, weeks},
		{Day, days},
		{Hour, hours},
		{Minute, minutes},
		{Second, sec},
	}

	var b strings.Builder
	for _, p := range parts {
		if p.value == 0 && (p.unit != Second || seconds != 0) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatInt(p.value, 10))
		b.WriteByte(' ')
		b.WriteString(l.Unit(p.unit, p.value != 1))
	}
	return b.String()
}
