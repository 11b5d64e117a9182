package model

import "time"

// RecurrencePattern selects which supporting field set of a
// ScheduledSessionTemplate is consulted.
type RecurrencePattern string

const (
	RecurrenceNone          RecurrencePattern = "none"
	RecurrenceDaily         RecurrencePattern = "daily"
	RecurrenceWeekly        RecurrencePattern = "weekly"
	RecurrenceSpecificDates RecurrencePattern = "specific-dates"
)

// ScheduledSessionTemplate is a recurring service definition, before
// expansion. Dates are date-only strings ("2025-03-10"; a trailing time is
// tolerated and ignored), times are "HH:MM".
type ScheduledSessionTemplate struct {
	ID         string   `json:"id"`
	SchoolID   string   `json:"school_id,omitempty"`
	StudentIDs []string `json:"student_ids"`

	StartTime string `json:"start_time"`
	// EndTime wins over Duration when both are present.
	EndTime  string `json:"end_time,omitempty"`
	Duration *int   `json:"duration,omitempty"` // minutes

	RecurrencePattern RecurrencePattern `json:"recurrence_pattern"`
	// DayOfWeek uses 0=Sunday..6=Saturday; consulted for weekly only.
	DayOfWeek []int `json:"day_of_week,omitempty"`
	// SpecificDates is consulted for specific-dates only.
	SpecificDates []string `json:"specific_dates,omitempty"`

	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date,omitempty"`
	CancelledDates []string `json:"cancelled_dates,omitempty"`

	// Active is nil on records that predate the flag; only an explicit false
	// disables the template.
	Active           *bool `json:"active,omitempty"`
	IsDirectServices bool  `json:"is_direct_services"`
}

// IsActive reports whether the template may produce occurrences.
func (t ScheduledSessionTemplate) IsActive() bool {
	return t.Active == nil || *t.Active
}

// Occurrence is one student's concrete instance of a template on one date.
// It is derived per call and never stored.
type Occurrence struct {
	TemplateID       string    `json:"template_id"`
	StudentID        string    `json:"student_id"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	IsDirectServices bool      `json:"is_direct_services"`
}

// Student is the subset of a caseload student the notes need.
type Student struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Grade    string `json:"grade"`
	SchoolID string `json:"school_id,omitempty"`
}

// School carries the teletherapy flag that switches note labelling.
type School struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Teletherapy bool   `json:"teletherapy"`
}

// StudentIndex resolves student ids to students.
type StudentIndex map[string]Student

// Lookup returns the student for id, if known.
func (idx StudentIndex) Lookup(id string) (Student, bool) {
	s, ok := idx[id]
	return s, ok
}
