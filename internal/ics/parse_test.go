package ics

import (
	"strings"
	"testing"
	"time"
)

const closureCalendar = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//District//Holidays//EN
BEGIN:VEVENT
UID:spring-break
DTSTAMP:20250101T000000Z
SUMMARY:Spring break
DTSTART;VALUE=DATE:20250317
DTEND;VALUE=DATE:20250322
END:VEVENT
BEGIN:VEVENT
UID:founders-day
DTSTAMP:20250101T000000Z
SUMMARY:Founders day
DTSTART;VALUE=DATE:20240312
RRULE:FREQ=YEARLY
END:VEVENT
BEGIN:VEVENT
UID:early-release
DTSTAMP:20250101T000000Z
SUMMARY:Staff training
DTSTART:20250314T170000Z
DTEND:20250314T200000Z
END:VEVENT
BEGIN:VEVENT
UID:broken
SUMMARY:No start
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseClosures(t *testing.T) {
	closures, err := ParseClosures(crlf(closureCalendar), time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(closures) != 3 {
		t.Fatalf("want 3 closures (broken one skipped) got %d", len(closures))
	}

	byUID := make(map[string]Closure)
	for _, c := range closures {
		byUID[c.UID] = c
	}

	brk := byUID["spring-break"]
	if got := brk.Last.Format("2006-01-02"); got != "2025-03-21" {
		t.Fatalf("DTEND is exclusive: last want=2025-03-21 got=%s", got)
	}
	if brk.Summary != "Spring break" {
		t.Fatalf("summary: got=%q", brk.Summary)
	}

	if byUID["founders-day"].Rule == nil {
		t.Fatalf("RRULE not attached")
	}
}

func TestClosureDays(t *testing.T) {
	closures, err := ParseClosures(crlf(closureCalendar), time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 18, 0, 0, 0, 0, time.UTC)

	tests := map[string]string{
		"spring-break":  "2025-03-17,2025-03-18",
		"founders-day":  "2025-03-12",
		"early-release": "2025-03-14",
	}
	for _, c := range closures {
		want := tests[c.UID]
		if got := strings.Join(c.Days(from, to), ","); got != want {
			t.Fatalf("%s: want=%q got=%q", c.UID, want, got)
		}
	}
}

func TestParseClosuresRejectsEmpty(t *testing.T) {
	if _, err := ParseClosures(nil, time.UTC); err == nil {
		t.Fatalf("expected error for empty body")
	}
}
