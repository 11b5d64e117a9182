package recurrence

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"caseload/internal/dates"
	appLog "caseload/internal/log"
	"caseload/internal/model"
)

const (
	// DefaultSlot is used when a template has neither an end time nor a
	// duration.
	DefaultSlot = 30 * time.Minute

	defaultMaxOccurrencesPerTemplate = 5000
)

// MaxOccurrencesPerTemplate caps how many start instants ExpandRange will
// materialize for one template.
var MaxOccurrencesPerTemplate = defaultMaxOccurrencesPerTemplate

var errInvalidClock = errors.New("invalid template time")

// Evaluate expands one template against one calendar date. It returns no
// occurrences (and no error) when the template is inactive, cancelled on
// that date, outside its active range, not matching its pattern, or carries
// unusable times or no students. A malformed start or end date is returned
// as *dates.ParseError.
func Evaluate(t model.ScheduledSessionTemplate, day time.Time) ([]model.Occurrence, error) {
	return ExpandRange(t, day, day)
}

// ExpandRange returns every occurrence of t whose start falls on a calendar
// date in [from, to], ordered by start then student. Template dates are
// interpreted in from's location.
func ExpandRange(t model.ScheduledSessionTemplate, from, to time.Time) ([]model.Occurrence, error) {
	if !t.IsActive() {
		return nil, nil
	}
	if len(t.StudentIDs) == 0 {
		return nil, nil
	}
	loc := from.Location()

	startDate, err := dates.ParseLocalDateIn(t.StartDate, loc)
	if err != nil {
		return nil, err
	}
	var endDate *time.Time
	if t.EndDate != "" {
		ed, err := dates.ParseLocalDateIn(t.EndDate, loc)
		if err != nil {
			return nil, err
		}
		endDate = &ed
	}

	clock, err := dates.ParseClock(t.StartTime)
	if err != nil {
		appLog.Debug("recurrence: skipping template with bad start time", "template", t.ID, "start_time", t.StartTime)
		return nil, nil
	}

	// Clamp the window to the template's inclusive active range.
	windowFrom := dates.StartOfDay(from.In(loc))
	windowTo := dates.StartOfDay(to.In(loc))
	if dates.IsBefore(windowFrom, startDate) {
		windowFrom = startDate
	}
	if endDate != nil && dates.IsAfter(windowTo, *endDate) {
		windowTo = *endDate
	}
	if dates.IsAfter(windowFrom, windowTo) {
		return nil, nil
	}

	set, ok := buildSet(t, startDate, endDate, clock)
	if !ok {
		return nil, nil
	}

	_, windowEnd := dates.DayBounds(windowTo)
	starts := set.Between(windowFrom, windowEnd.Add(-time.Nanosecond), true)
	if len(starts) > MaxOccurrencesPerTemplate {
		appLog.Warn("recurrence: truncated occurrences for template due to cap",
			"template", t.ID,
			"cap", MaxOccurrencesPerTemplate,
		)
		starts = starts[:MaxOccurrencesPerTemplate]
	}

	out := make([]model.Occurrence, 0, len(starts)*len(t.StudentIDs))
	for _, start := range starts {
		end, err := resolveEnd(t, start)
		if err != nil {
			appLog.Debug("recurrence: skipping template with bad end time", "template", t.ID, "end_time", t.EndTime)
			return nil, nil
		}
		for _, sid := range t.StudentIDs {
			if sid == "" {
				continue
			}
			out = append(out, model.Occurrence{
				TemplateID:       t.ID,
				StudentID:        sid,
				Start:            start,
				End:              end,
				IsDirectServices: t.IsDirectServices,
			})
		}
	}
	return out, nil
}

// ExpandAll evaluates every template against one date and returns the
// occurrences sorted by start time. The first malformed date aborts the call.
func ExpandAll(templates []model.ScheduledSessionTemplate, day time.Time) ([]model.Occurrence, error) {
	all := make([]model.Occurrence, 0)
	for _, t := range templates {
		occ, err := Evaluate(t, day)
		if err != nil {
			return nil, err
		}
		all = append(all, occ...)
	}
	SortOccurrences(all)
	return all, nil
}

// SortOccurrences orders by start, then template, then student.
func SortOccurrences(occ []model.Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		if !occ[i].Start.Equal(occ[j].Start) {
			return occ[i].Start.Before(occ[j].Start)
		}
		if occ[i].TemplateID != occ[j].TemplateID {
			return occ[i].TemplateID < occ[j].TemplateID
		}
		return occ[i].StudentID < occ[j].StudentID
	})
}

// buildSet turns the template's pattern into an rrule set whose instants
// are the occurrence starts. Only the field set of the selected pattern is
// read. ok is false when the pattern cannot produce anything.
func buildSet(t model.ScheduledSessionTemplate, startDate time.Time, endDate *time.Time, clock dates.Clock) (*rrule.Set, bool) {
	loc := startDate.Location()
	dtstart := dates.Combine(startDate, clock)

	var set rrule.Set
	set.DTStart(dtstart)

	switch t.RecurrencePattern {
	case model.RecurrenceDaily:
		r, err := newRule(rrule.DAILY, dtstart, endDate, clock, nil)
		if err != nil {
			appLog.Error("recurrence: failed to build daily rule", err, "template", t.ID)
			return nil, false
		}
		set.RRule(r)

	case model.RecurrenceWeekly:
		days := weekdays(t.DayOfWeek)
		if len(days) == 0 {
			return nil, false
		}
		r, err := newRule(rrule.WEEKLY, dtstart, endDate, clock, days)
		if err != nil {
			appLog.Error("recurrence: failed to build weekly rule", err, "template", t.ID)
			return nil, false
		}
		set.RRule(r)

	case model.RecurrenceSpecificDates:
		n := 0
		for _, raw := range t.SpecificDates {
			d, err := dates.ParseLocalDateIn(raw, loc)
			if err != nil {
				appLog.Debug("recurrence: skipping bad specific date", "template", t.ID, "date", raw)
				continue
			}
			set.RDate(dates.Combine(d, clock))
			n++
		}
		if n == 0 {
			return nil, false
		}

	case model.RecurrenceNone:
		set.RDate(dtstart)

	default:
		appLog.Debug("recurrence: unknown pattern", "template", t.ID, "pattern", string(t.RecurrencePattern))
		return nil, false
	}

	// Cancellations are whole-day; every instant sits at the template's
	// start time, so an EXDATE at that time removes exactly that day.
	for _, raw := range t.CancelledDates {
		d, err := dates.ParseLocalDateIn(raw, loc)
		if err != nil {
			appLog.Debug("recurrence: skipping bad cancelled date", "template", t.ID, "date", raw)
			continue
		}
		set.ExDate(dates.Combine(d, clock))
	}

	return &set, true
}

func newRule(freq rrule.Frequency, dtstart time.Time, endDate *time.Time, clock dates.Clock, days []rrule.Weekday) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Freq:      freq,
		Dtstart:   dtstart,
		Byweekday: days,
	}
	if endDate != nil {
		opt.Until = dates.Combine(*endDate, clock)
	}
	return rrule.NewRRule(opt)
}

// weekdays maps 0=Sunday..6=Saturday onto rrule weekdays, dropping values
// outside that range and duplicates.
func weekdays(in []int) []rrule.Weekday {
	table := [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}
	seen := make(map[int]bool, len(in))
	out := make([]rrule.Weekday, 0, len(in))
	for _, d := range in {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, table[d])
	}
	return out
}

// resolveEnd applies the end-of-slot defaults in order: explicit end time,
// then duration, then DefaultSlot.
func resolveEnd(t model.ScheduledSessionTemplate, start time.Time) (time.Time, error) {
	if t.EndTime != "" {
		c, err := dates.ParseClock(t.EndTime)
		if err != nil {
			return time.Time{}, errInvalidClock
		}
		return dates.Combine(start, c), nil
	}
	if t.Duration != nil && *t.Duration > 0 {
		return start.Add(time.Duration(*t.Duration) * time.Minute), nil
	}
	return start.Add(DefaultSlot), nil
}
