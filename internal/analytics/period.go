package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownGranularity is returned for a period label that is not one of
// day, week, month or year.
var ErrUnknownGranularity = errors.New("unknown period granularity")

// Granularity is the length of a reporting period.
type Granularity int

const (
	Day Granularity = iota + 1
	Week
	Month
	Year
)

func (g Granularity) String() string {
	switch g {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	}
	return fmt.Sprintf("Granularity(%d)", int(g))
}

// ParseGranularity accepts "day", "week", "month", "year" and their
// "daily"/"weekly"/"monthly"/"yearly" forms, case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily":
		return Day, nil
	case "week", "weekly":
		return Week, nil
	case "month", "monthly":
		return Month, nil
	case "year", "yearly":
		return Year, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
}

// Period is a closed interval [Start, End]. End is the last nanosecond before
// the next period starts.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within p, inclusive at both ends.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Bounds returns the period of granularity g containing ref, evaluated in loc.
// Weeks start on Monday.
func Bounds(ref time.Time, g Granularity, loc *time.Location) (Period, error) {
	start, err := periodStart(ref, g, loc)
	if err != nil {
		return Period{}, err
	}
	return Period{Start: start, End: shift(start, g, 1).Add(-time.Nanosecond)}, nil
}

// Previous returns the period of granularity g immediately before the one
// containing ref: the prior calendar day, Monday-start week, calendar month
// or calendar year.
func Previous(ref time.Time, g Granularity, loc *time.Location) (Period, error) {
	start, err := periodStart(ref, g, loc)
	if err != nil {
		return Period{}, err
	}
	return Period{Start: shift(start, g, -1), End: start.Add(-time.Nanosecond)}, nil
}

func periodStart(ref time.Time, g Granularity, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = ref.Location()
	}
	t := ref.In(loc)
	y, m, d := t.Date()

	switch g {
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	case Week:
		offset := (int(t.Weekday()) + 6) % 7 // days since Monday
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc), nil
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), nil
	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: %d", ErrUnknownGranularity, int(g))
}

// shift moves a period start by n periods. Starts are always on day 1 for
// months and years, so AddDate never overflows into the following month.
func shift(start time.Time, g Granularity, n int) time.Time {
	switch g {
	case Week:
		return start.AddDate(0, 0, 7*n)
	case Month:
		return start.AddDate(0, n, 0)
	case Year:
		return start.AddDate(n, 0, 0)
	default:
		return start.AddDate(0, 0, n)
	}
}
