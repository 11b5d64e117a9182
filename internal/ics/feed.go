// Package ics reads district closure calendars and publishes projected
// sessions as an iCalendar feed.
package ics

import (
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"caseload/internal/model"
	"caseload/internal/notes"
)

const (
	ProductID = "-//caseload//schedule//EN"
	uidDomain = "caseload"
)

// event is one (template, start) group of occurrences.
type event struct {
	templateID string
	start, end time.Time
	direct     bool
	students   []string
}

// BuildFeed renders occurrences as a PUBLISH calendar with one VEVENT per
// template and day; group members share the event. stamp is used as DTSTAMP.
func BuildFeed(occ []model.Occurrence, dir notes.Directory, name string, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	for _, ev := range groupEvents(occ) {
		vev := cal.AddEvent(EventUID(ev.templateID, ev.start))
		vev.SetDtStampTime(stamp.UTC())
		vev.SetStartAt(ev.start)
		vev.SetEndAt(ev.end)
		vev.SetSummary(eventSummary(ev, dir))
	}
	return cal.Serialize()
}

// EventUID is stable across rebuilds so subscribers update in place.
func EventUID(templateID string, start time.Time) string {
	return templateID + "-" + start.Format("20060102") + "@" + uidDomain
}

func groupEvents(occ []model.Occurrence) []*event {
	byKey := make(map[string]*event)
	out := make([]*event, 0)
	for _, o := range occ {
		key := EventUID(o.TemplateID, o.Start)
		ev, ok := byKey[key]
		if !ok {
			ev = &event{templateID: o.TemplateID, start: o.Start, end: o.End, direct: o.IsDirectServices}
			byKey[key] = ev
			out = append(out, ev)
		}
		ev.students = append(ev.students, o.StudentID)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].start.Equal(out[j].start) {
			return out[i].start.Before(out[j].start)
		}
		return out[i].templateID < out[j].templateID
	})
	return out
}

func eventSummary(ev *event, dir notes.Directory) string {
	labels := make([]string, 0, len(ev.students))
	for _, id := range ev.students {
		labels = append(labels, notes.StudentLabel(dir, id))
	}
	sort.Strings(labels)
	prefix := "Indirect services: "
	if ev.direct {
		prefix = "Direct therapy: "
	}
	return prefix + strings.Join(labels, ", ")
}
