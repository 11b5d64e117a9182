// Package notes turns a day's clinical activity into a billing note.
//
// Two modes share one pipeline. Retrospective notes classify records that
// already exist; prospective notes first expand scheduled-session templates
// for the target date and classify the resulting occurrences. Classification
// and rendering are pure and keep all dedup state local to the call.
package notes

import (
	"time"

	"caseload/internal/model"
	"caseload/internal/recurrence"
)

// Mode names the two note flavours.
type Mode string

const (
	ModeRetrospective Mode = "retrospective"
	ModeProspective   Mode = "prospective"
)

// GenerateRetrospective renders a note from records already filtered to a
// single date and scope.
func GenerateRetrospective(records []model.Record, dir Directory, opts Options) string {
	return Render(Classify(records), dir, opts)
}

// GenerateProspective renders the note a day would produce if every
// template ran as scheduled. A malformed template date surfaces as
// *dates.ParseError.
func GenerateProspective(templates []model.ScheduledSessionTemplate, day time.Time, dir Directory, opts Options) (string, error) {
	occ, err := recurrence.ExpandAll(templates, day)
	if err != nil {
		return "", err
	}
	return Render(ClassifyOccurrences(occ), dir, opts), nil
}
