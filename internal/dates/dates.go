// Package dates holds the calendar-date helpers shared by recurrence
// evaluation, note rendering and the status lifecycle. Every comparison here
// is on local calendar dates, never on instants, so a record stored at
// 23:30 UTC is not pushed onto the neighbouring day by an offset.
package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// DateLayout is the date-only form used by templates and query params.
	DateLayout = "2006-01-02"
	// ClockLayout is the time-of-day form used by templates ("14:05").
	ClockLayout = "15:04"
)

var errTrailingText = errors.New("unexpected text after date")

// ParseError reports a required date or time string that could not be
// understood. It is the only hard failure the note engine surfaces.
type ParseError struct {
	Value  string
	Layout string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q as %s: %v", e.Value, e.Layout, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseLocalDate parses the date part of s into midnight of that calendar
// date in time.Local. A time component after a 'T' or space separator is
// ignored, so "2025-03-10T14:00:00Z" and "2025-03-10" yield the
// same date.
func ParseLocalDate(s string) (time.Time, error) {
	return ParseLocalDateIn(s, time.Local)
}

// ParseLocalDateIn is ParseLocalDate for an explicit location.
func ParseLocalDateIn(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	datePart := strings.TrimSpace(s)
	if n := len(DateLayout); len(datePart) > n {
		// Only a time component may follow the date.
		if sep := datePart[n]; sep != 'T' && sep != ' ' {
			return time.Time{}, &ParseError{Value: s, Layout: DateLayout, Err: errTrailingText}
		}
		datePart = datePart[:n]
	}
	t, err := time.ParseInLocation(DateLayout, datePart, loc)
	if err != nil {
		return time.Time{}, &ParseError{Value: s, Layout: DateLayout, Err: err}
	}
	return t, nil
}

// DateKey renders the calendar date of t as YYYY-MM-DD in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay returns midnight of t's calendar date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayBounds returns [midnight, next midnight) for t's calendar date.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// IsSameDay reports whether a and b fall on the same calendar date, each in
// its own location.
func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsBefore reports whether a's calendar date is strictly before b's.
func IsBefore(a, b time.Time) bool {
	return dayNumber(a) < dayNumber(b)
}

// IsAfter reports whether a's calendar date is strictly after b's.
func IsAfter(a, b time.Time) bool {
	return dayNumber(a) > dayNumber(b)
}

// dayNumber collapses a date into a sortable integer independent of zone.
func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "H:MM" or "HH:MM" (an optional ":SS" suffix is
// tolerated and dropped).
func ParseClock(s string) (Clock, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, &ParseError{Value: s, Layout: ClockLayout, Err: fmt.Errorf("want HH:MM")}
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, &ParseError{Value: s, Layout: ClockLayout, Err: fmt.Errorf("hour out of range")}
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || m < 0 || m > 59 {
		return Clock{}, &ParseError{Value: s, Layout: ClockLayout, Err: fmt.Errorf("minute out of range")}
	}
	return Clock{Hour: h, Minute: m}, nil
}

// Combine places c on day's calendar date in day's location.
func Combine(day time.Time, c Clock) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// FormatTime12Hour renders t as "H:MM am" / "H:MM pm"; hour 0 is 12.
func FormatTime12Hour(t time.Time) string {
	h := t.Hour()
	suffix := "am"
	if h >= 12 {
		suffix = "pm"
	}
	h = h % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, t.Minute(), suffix)
}

// FormatTimeRange renders "start" or "start-end" when end is non-nil.
func FormatTimeRange(start time.Time, end *time.Time) string {
	if end == nil {
		return FormatTime12Hour(start)
	}
	return FormatTime12Hour(start) + "-" + FormatTime12Hour(*end)
}
