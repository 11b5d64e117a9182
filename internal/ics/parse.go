package ics

import (
	"bytes"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/pkg/errors"
	"github.com/teambition/rrule-go"

	"caseload/internal/dates"
	appLog "caseload/internal/log"
)

// Closure is one VEVENT of a closure calendar, reduced to the calendar
// dates it covers.
type Closure struct {
	UID     string
	Summary string
	// First and Last are local midnights; Last is inclusive.
	First time.Time
	Last  time.Time
	// Rule repeats the First..Last span, for yearly holidays and the like.
	Rule *rrule.RRule
}

// ParseClosures reads every VEVENT in body. Dates are interpreted in loc.
// Events that cannot be read are logged and skipped.
func ParseClosures(body []byte, loc *time.Location) ([]Closure, error) {
	if len(body) == 0 {
		return nil, errors.New("empty calendar body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "parsing calendar")
	}

	out := make([]Closure, 0)
	for _, ve := range cal.Events() {
		c, err := parseClosure(ve, loc)
		if err != nil {
			appLog.Debug("closure event skipped", "error", err.Error())
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func parseClosure(ve *ical.VEvent, loc *time.Location) (Closure, error) {
	var c Closure
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		c.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		c.Summary = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return c, errors.Errorf("event %q has no DTSTART", c.UID)
	}
	allDay := isDateValue(startProp)

	var start, end time.Time
	if allDay {
		t, err := parseDate(startProp.Value, loc)
		if err != nil {
			return c, errors.Wrapf(err, "event %q", c.UID)
		}
		start = t
		end = t.AddDate(0, 0, 1)
		if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
			if t, err := parseDate(p.Value, loc); err == nil && t.After(start) {
				end = t
			}
		}
	} else {
		t, err := ve.GetStartAt()
		if err != nil {
			return c, errors.Wrapf(err, "event %q", c.UID)
		}
		start = t.In(loc)
		end = start
		if t, err := ve.GetEndAt(); err == nil && t.After(start) {
			end = t.In(loc)
		}
	}

	c.First = dates.StartOfDay(start)
	// DTEND is exclusive; an end exactly at midnight closes the previous day.
	last := end
	if end.After(start) {
		last = end.Add(-time.Nanosecond)
	}
	c.Last = dates.StartOfDay(last)

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		opt, err := rrule.StrToROption(p.Value)
		if err != nil {
			return c, errors.Wrapf(err, "event %q RRULE", c.UID)
		}
		opt.Dtstart = c.First
		r, err := rrule.NewRRule(*opt)
		if err != nil {
			return c, errors.Wrapf(err, "event %q RRULE", c.UID)
		}
		c.Rule = r
	}
	return c, nil
}

// Days returns the DateKeys c covers within [from, to], by calendar date.
func (c Closure) Days(from, to time.Time) []string {
	from, to = dates.StartOfDay(from.In(c.First.Location())), dates.StartOfDay(to.In(c.First.Location()))
	span := int(c.Last.Sub(c.First).Hours()/24 + 0.5)

	starts := []time.Time{c.First}
	if c.Rule != nil {
		// A repeat starting up to span days before from still overlaps.
		starts = c.Rule.Between(from.AddDate(0, 0, -span), to.AddDate(0, 0, 1).Add(-time.Nanosecond), true)
	}

	var out []string
	for _, s := range starts {
		for d := 0; d <= span; d++ {
			day := s.AddDate(0, 0, d)
			if dates.IsBefore(day, from) || dates.IsAfter(day, to) {
				continue
			}
			out = append(out, dates.DateKey(day))
		}
	}
	return out
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func parseDate(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if len(v) > 8 {
		v = v[:8]
	}
	t, err := time.ParseInLocation("20060102", v, loc)
	if err != nil {
		return time.Time{}, &dates.ParseError{Value: v, Layout: "20060102", Err: err}
	}
	return t, nil
}
