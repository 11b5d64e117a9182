package store

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"caseload/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// templateRules are the write-time constraints on a template. Reads stay
// lenient because older rows may not satisfy them.
type templateRules struct {
	StudentIDs        []string `validate:"min=1,dive,required"`
	StartTime         string   `validate:"required,datetime=15:04"`
	EndTime           string   `validate:"omitempty,datetime=15:04"`
	Duration          *int     `validate:"omitempty,min=1"`
	RecurrencePattern string   `validate:"oneof=none daily weekly specific-dates"`
	DayOfWeek         []int    `validate:"required_if=RecurrencePattern weekly,dive,min=0,max=6"`
	SpecificDates     []string `validate:"required_if=RecurrencePattern specific-dates,dive,datetime=2006-01-02"`
	StartDate         string   `validate:"required,datetime=2006-01-02"`
	EndDate           string   `validate:"omitempty,datetime=2006-01-02"`
	CancelledDates    []string `validate:"dive,datetime=2006-01-02"`
}

// ValidateTemplate checks a template before it is written.
func ValidateTemplate(t model.ScheduledSessionTemplate) error {
	return validate.Struct(templateRules{
		StudentIDs:        t.StudentIDs,
		StartTime:         t.StartTime,
		EndTime:           t.EndTime,
		Duration:          t.Duration,
		RecurrencePattern: string(t.RecurrencePattern),
		DayOfWeek:         t.DayOfWeek,
		SpecificDates:     t.SpecificDates,
		StartDate:         t.StartDate,
		EndDate:           t.EndDate,
		CancelledDates:    t.CancelledDates,
	})
}

func (s *Store) CreateSchool(ctx context.Context, sc model.School) (model.School, error) {
	row := schoolRow{base: base{ID: sc.ID}, Name: sc.Name, Teletherapy: sc.Teletherapy}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.School{}, errors.Wrap(err, "creating school")
	}
	sc.ID = row.ID
	return sc, nil
}

func (s *Store) CreateStudent(ctx context.Context, st model.Student) (model.Student, error) {
	row := studentRow{base: base{ID: st.ID}, SchoolID: st.SchoolID, Name: st.Name, Grade: st.Grade}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Student{}, errors.Wrap(err, "creating student")
	}
	st.ID = row.ID
	return st, nil
}

func (s *Store) CreateSession(ctx context.Context, schoolID string, m model.Session) (model.Session, error) {
	row := sessionRow{
		base:             base{ID: m.ID},
		SchoolID:         schoolID,
		StudentID:        m.StudentID,
		StartTime:        m.Start.UTC(),
		EndTime:          utcPtr(m.End),
		IsDirectServices: m.IsDirectServices,
		MissedSession:    m.MissedSession,
		GroupSessionID:   m.GroupSessionID,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Session{}, errors.Wrap(err, "creating session")
	}
	m.ID = row.ID
	return m, nil
}

func (s *Store) CreateScreener(ctx context.Context, schoolID string, m model.ArticulationScreener) (model.ArticulationScreener, error) {
	row := screenerRow{base: base{ID: m.ID}, SchoolID: schoolID, StudentID: m.StudentID, Date: m.Date.UTC()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.ArticulationScreener{}, errors.Wrap(err, "creating screener")
	}
	m.ID = row.ID
	return m, nil
}

func (s *Store) CreateMeeting(ctx context.Context, schoolID string, m model.Meeting) (model.Meeting, error) {
	row := meetingRow{
		base:            base{ID: m.ID},
		SchoolID:        schoolID,
		StudentID:       m.StudentID,
		Category:        m.Category,
		ActivitySubtype: m.ActivitySubtype,
		StartTime:       m.Start.UTC(),
		EndTime:         utcPtr(m.End),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Meeting{}, errors.Wrap(err, "creating meeting")
	}
	m.ID = row.ID
	return m, nil
}

func (s *Store) CreateCommunication(ctx context.Context, schoolID string, m model.Communication) (model.Communication, error) {
	row := communicationRow{
		base:      base{ID: m.ID},
		SchoolID:  schoolID,
		StudentID: m.StudentID,
		RelatedTo: m.RelatedTo,
		Date:      m.Date.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Communication{}, errors.Wrap(err, "creating communication")
	}
	m.ID = row.ID
	return m, nil
}

// CreateTemplate validates and stores a scheduled session template.
func (s *Store) CreateTemplate(ctx context.Context, t model.ScheduledSessionTemplate) (model.ScheduledSessionTemplate, error) {
	if err := ValidateTemplate(t); err != nil {
		return model.ScheduledSessionTemplate{}, errors.Wrap(err, "invalid scheduled session")
	}
	row := templateRow{
		base:              base{ID: t.ID},
		SchoolID:          t.SchoolID,
		StudentIDs:        datatypes.JSONSlice[string](t.StudentIDs),
		StartTime:         t.StartTime,
		EndTime:           t.EndTime,
		Duration:          t.Duration,
		RecurrencePattern: string(t.RecurrencePattern),
		DayOfWeek:         datatypes.JSONSlice[int](t.DayOfWeek),
		SpecificDates:     datatypes.JSONSlice[string](t.SpecificDates),
		StartDate:         t.StartDate,
		EndDate:           t.EndDate,
		CancelledDates:    datatypes.JSONSlice[string](t.CancelledDates),
		Active:            t.Active,
		IsDirectServices:  t.IsDirectServices,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.ScheduledSessionTemplate{}, errors.Wrap(err, "creating scheduled session")
	}
	t.ID = row.ID
	return t, nil
}

func (s *Store) CreateDueItem(ctx context.Context, it model.DueDateItem) (model.DueDateItem, error) {
	if it.Status == "" {
		it.Status = model.StatusPending
	}
	row := dueItemRow{
		base:          base{ID: it.ID},
		StudentID:     it.StudentID,
		Title:         it.Title,
		DueDate:       it.DueDate.UTC(),
		CompletedDate: utcPtr(it.CompletedDate),
		Status:        string(it.Status),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.DueDateItem{}, errors.Wrap(err, "creating due date item")
	}
	it.ID = row.ID
	return it, nil
}

func (s *Store) CreateProgressReport(ctx context.Context, r model.ProgressReport) (model.ProgressReport, error) {
	if r.Status == "" {
		r.Status = model.StatusPending
	}
	row := progressReportRow{
		base:          base{ID: r.ID},
		StudentID:     r.StudentID,
		Period:        r.Period,
		DueDate:       r.DueDate.UTC(),
		CompletedDate: utcPtr(r.CompletedDate),
		Status:        string(r.Status),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.ProgressReport{}, errors.Wrap(err, "creating progress report")
	}
	r.ID = row.ID
	return r, nil
}
