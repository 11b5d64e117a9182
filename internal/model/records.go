package model

import "time"

// Record is the closed set of clinical activity kinds the note engine
// classifies: Session, ArticulationScreener, Meeting and Communication. The
// unexported marker keeps other packages from adding kinds, so a new kind
// means touching this package and every classifier switch.
type Record interface {
	// Student returns the associated student id, or "" when there is none.
	Student() string
	isRecord()
}

// Session is one therapy session row. Rows sharing a non-empty
// GroupSessionID are the same clinical event with several participants.
type Session struct {
	ID               string     `json:"id"`
	StudentID        string     `json:"student_id"`
	Start            time.Time  `json:"start"`
	End              *time.Time `json:"end,omitempty"`
	IsDirectServices bool       `json:"is_direct_services"`
	MissedSession    bool       `json:"missed_session"`
	GroupSessionID   string     `json:"group_session_id,omitempty"`
}

type ArticulationScreener struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Date      time.Time `json:"date"`
}

// Meeting categories recognised by the note rules.
const (
	CategoryIEP             = "IEP"
	CategoryThreeYear       = "3 year assessment"
	CategorySpeechScreening = "Speech screening"
)

// Meeting activity subtypes.
const (
	SubtypeMeeting    = "meeting"
	SubtypeUpdates    = "updates"
	SubtypeAssessment = "assessment"
)

type Meeting struct {
	ID              string     `json:"id"`
	StudentID       string     `json:"student_id,omitempty"`
	Category        string     `json:"category"`
	ActivitySubtype string     `json:"activity_subtype,omitempty"`
	Start           time.Time  `json:"start"`
	End             *time.Time `json:"end,omitempty"`
}

// Subtype resolves the activity subtype. Older meetings were stored without
// one; they were all plain meetings.
func (m Meeting) Subtype() string {
	if m.ActivitySubtype == "" {
		return SubtypeMeeting
	}
	return m.ActivitySubtype
}

type Communication struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id,omitempty"`
	RelatedTo string    `json:"related_to,omitempty"`
	Date      time.Time `json:"date"`
}

func (s Session) Student() string              { return s.StudentID }
func (s ArticulationScreener) Student() string { return s.StudentID }
func (m Meeting) Student() string              { return m.StudentID }
func (c Communication) Student() string        { return c.StudentID }

func (Session) isRecord()              {}
func (ArticulationScreener) isRecord() {}
func (Meeting) isRecord()              {}
func (Communication) isRecord()        {}
