package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"caseload/internal/model"
)

var allRows = []any{
	&schoolRow{},
	&studentRow{},
	&sessionRow{},
	&screenerRow{},
	&meetingRow{},
	&communicationRow{},
	&templateRow{},
	&dueItemRow{},
	&progressReportRow{},
}

// base gives every row a string uuid key and timestamps.
type base struct {
	ID        string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

type schoolRow struct {
	base
	Name        string `gorm:"not null"`
	Teletherapy bool   `gorm:"not null;default:false"`
}

func (schoolRow) TableName() string { return "schools" }

type studentRow struct {
	base
	SchoolID string `gorm:"index;size:36"`
	Name     string `gorm:"not null"`
	Grade    string
}

func (studentRow) TableName() string { return "students" }

type sessionRow struct {
	base
	SchoolID         string    `gorm:"index;size:36"`
	StudentID        string    `gorm:"index;size:36"`
	StartTime        time.Time `gorm:"index;not null"`
	EndTime          *time.Time
	IsDirectServices bool   `gorm:"not null"`
	MissedSession    bool   `gorm:"not null;default:false"`
	GroupSessionID   string `gorm:"index;size:36"`
}

func (sessionRow) TableName() string { return "sessions" }

type screenerRow struct {
	base
	SchoolID  string    `gorm:"index;size:36"`
	StudentID string    `gorm:"index;size:36"`
	Date      time.Time `gorm:"column:screened_at;index;not null"`
}

func (screenerRow) TableName() string { return "articulation_screeners" }

type meetingRow struct {
	base
	SchoolID        string `gorm:"index;size:36"`
	StudentID       string `gorm:"index;size:36"`
	Category        string `gorm:"index"`
	ActivitySubtype string
	StartTime       time.Time `gorm:"index;not null"`
	EndTime         *time.Time
}

func (meetingRow) TableName() string { return "meetings" }

type communicationRow struct {
	base
	SchoolID  string `gorm:"index;size:36"`
	StudentID string `gorm:"index;size:36"`
	RelatedTo string
	Date      time.Time `gorm:"column:sent_at;index;not null"`
}

func (communicationRow) TableName() string { return "communications" }

type templateRow struct {
	base
	SchoolID          string                      `gorm:"index;size:36"`
	StudentIDs        datatypes.JSONSlice[string] `gorm:"type:json"`
	StartTime         string                      `gorm:"size:8"`
	EndTime           string                      `gorm:"size:8"`
	Duration          *int
	RecurrencePattern string                      `gorm:"size:32"`
	DayOfWeek         datatypes.JSONSlice[int]    `gorm:"type:json"`
	SpecificDates     datatypes.JSONSlice[string] `gorm:"type:json"`
	StartDate         string                      `gorm:"size:32"`
	EndDate           string                      `gorm:"size:32"`
	CancelledDates    datatypes.JSONSlice[string] `gorm:"type:json"`
	Active            *bool
	IsDirectServices  bool `gorm:"not null"`
}

func (templateRow) TableName() string { return "scheduled_sessions" }

type dueItemRow struct {
	base
	StudentID     string    `gorm:"index;size:36"`
	Title         string    `gorm:"not null"`
	DueDate       time.Time `gorm:"index;not null"`
	CompletedDate *time.Time
	Status        string `gorm:"size:16;not null;default:pending"`
}

func (dueItemRow) TableName() string { return "due_date_items" }

type progressReportRow struct {
	base
	StudentID     string `gorm:"index;size:36"`
	Period        string
	DueDate       time.Time `gorm:"index;not null"`
	CompletedDate *time.Time
	Status        string `gorm:"size:16;not null;default:pending"`
}

func (progressReportRow) TableName() string { return "progress_reports" }

func (s *Store) sessionModel(r sessionRow) model.Session {
	return model.Session{
		ID:               r.ID,
		StudentID:        r.StudentID,
		Start:            s.local(r.StartTime),
		End:              s.localPtr(r.EndTime),
		IsDirectServices: r.IsDirectServices,
		MissedSession:    r.MissedSession,
		GroupSessionID:   r.GroupSessionID,
	}
}

func (s *Store) meetingModel(r meetingRow) model.Meeting {
	return model.Meeting{
		ID:              r.ID,
		StudentID:       r.StudentID,
		Category:        r.Category,
		ActivitySubtype: r.ActivitySubtype,
		Start:           s.local(r.StartTime),
		End:             s.localPtr(r.EndTime),
	}
}

func templateModel(r templateRow) model.ScheduledSessionTemplate {
	return model.ScheduledSessionTemplate{
		ID:                r.ID,
		SchoolID:          r.SchoolID,
		StudentIDs:        []string(r.StudentIDs),
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		Duration:          r.Duration,
		RecurrencePattern: model.RecurrencePattern(r.RecurrencePattern),
		DayOfWeek:         []int(r.DayOfWeek),
		SpecificDates:     []string(r.SpecificDates),
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		CancelledDates:    []string(r.CancelledDates),
		Active:            r.Active,
		IsDirectServices:  r.IsDirectServices,
	}
}

func (s *Store) dueItemModel(r dueItemRow) model.DueDateItem {
	return model.DueDateItem{
		ID:            r.ID,
		StudentID:     r.StudentID,
		Title:         r.Title,
		DueDate:       s.local(r.DueDate),
		CompletedDate: s.localPtr(r.CompletedDate),
		Status:        model.Status(r.Status),
	}
}

func (s *Store) progressReportModel(r progressReportRow) model.ProgressReport {
	return model.ProgressReport{
		ID:            r.ID,
		StudentID:     r.StudentID,
		Period:        r.Period,
		DueDate:       s.local(r.DueDate),
		CompletedDate: s.localPtr(r.CompletedDate),
		Status:        model.Status(r.Status),
	}
}
