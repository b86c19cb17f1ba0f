package timeparse

// Unit sizes in seconds. Months are 30 days and years 360 days so that the
// parser and formatter agree.
const (
	Second int64 = 1
	Minute       = 60 * Second
	Hour         = 60 * Minute
	Day          = 24 * Hour
	Week         = 7 * Day
	Month        = 30 * Day
	Year         = 12 * Month
)

// Default returns a parser with the built-in English aliases.
func Default() *Parser {
	p, err := NewBuilder().
		AddUnit(Second, "second", "seconds", "sec", "s").
		AddUnit(Minute, "minute", "minutes", "min").
		AddUnit(Hour, "hour", "hours", "h").
		AddUnit(Day, "day", "days", "d").
		AddUnit(Week, "week", "weeks", "w").
		AddUnit(Month, "month", "months", "m").
		AddUnit(Year, "year", "years", "y").
		Build()
	if err != nil {
		panic(err)
	}
	return p
}
