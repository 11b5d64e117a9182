package notes

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"caseload/internal/dates"
	appLog "caseload/internal/log"
	"caseload/internal/model"
	"caseload/internal/recurrence"
)

// Source supplies persisted inputs for one school. Implementations own all
// storage; the note engine only reads.
type Source interface {
	School(ctx context.Context, schoolID string) (model.School, error)
	Students(ctx context.Context, schoolID string) (model.StudentIndex, error)
	DayRecords(ctx context.Context, schoolID string, day time.Time) ([]model.Record, error)
	Templates(ctx context.Context, schoolID string) ([]model.ScheduledSessionTemplate, error)
}

// Closures reports whole-day school closures keyed by dates.DateKey, with
// the closure's name as value.
type Closures interface {
	ClosureDates(ctx context.Context, from, to time.Time) (map[string]string, error)
}

// Service fetches a day's inputs and runs the note pipeline on them.
type Service struct {
	src      Source
	closures Closures
	defaults Options
}

func NewService(src Source, defaults Options) *Service {
	return &Service{src: src, defaults: defaults}
}

// WithClosures suppresses projected sessions on closure days. Stored
// records are never filtered.
func (s *Service) WithClosures(c Closures) *Service {
	s.closures = c
	return s
}

// Defaults returns the options applied when a caller does not override them.
func (s *Service) Defaults() Options {
	return s.defaults
}

// Retrospective builds the note for records already stored on day.
func (s *Service) Retrospective(ctx context.Context, schoolID string, day time.Time, opts Options) (string, error) {
	var (
		school   model.School
		students model.StudentIndex
		records  []model.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		school, err = s.src.School(gctx, schoolID)
		return err
	})
	g.Go(func() (err error) {
		students, err = s.src.Students(gctx, schoolID)
		return err
	})
	g.Go(func() (err error) {
		records, err = s.src.DayRecords(gctx, schoolID, day)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	opts.IsTeletherapy = opts.IsTeletherapy || school.Teletherapy
	note := GenerateRetrospective(records, students, opts)
	appLog.Debug("notes: retrospective generated",
		"school", schoolID,
		"date", dates.DateKey(day),
		"records", len(records),
		"teletherapy", opts.IsTeletherapy,
	)
	return note, nil
}

// Prospective builds the note projected from the school's templates.
func (s *Service) Prospective(ctx context.Context, schoolID string, day time.Time, opts Options) (string, error) {
	school, students, templates, err := s.scheduleInputs(ctx, schoolID, day, day)
	if err != nil {
		return "", err
	}
	opts.IsTeletherapy = opts.IsTeletherapy || school.Teletherapy
	note, err := GenerateProspective(templates, day, students, opts)
	if err != nil {
		return "", err
	}
	appLog.Debug("notes: prospective generated",
		"school", schoolID,
		"date", dates.DateKey(day),
		"templates", len(templates),
		"teletherapy", opts.IsTeletherapy,
	)
	return note, nil
}

// Schedule expands the school's templates over [from, to] and returns the
// occurrences together with the students needed to label them.
func (s *Service) Schedule(ctx context.Context, schoolID string, from, to time.Time) ([]model.Occurrence, model.StudentIndex, error) {
	_, students, templates, err := s.scheduleInputs(ctx, schoolID, from, to)
	if err != nil {
		return nil, nil, err
	}
	all := make([]model.Occurrence, 0)
	for _, t := range templates {
		occ, err := recurrence.ExpandRange(t, from, to)
		if err != nil {
			return nil, nil, err
		}
		all = append(all, occ...)
	}
	recurrence.SortOccurrences(all)
	return all, students, nil
}

func (s *Service) scheduleInputs(ctx context.Context, schoolID string, from, to time.Time) (model.School, model.StudentIndex, []model.ScheduledSessionTemplate, error) {
	var (
		school    model.School
		students  model.StudentIndex
		templates []model.ScheduledSessionTemplate
		closed    map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		school, err = s.src.School(gctx, schoolID)
		return err
	})
	g.Go(func() (err error) {
		students, err = s.src.Students(gctx, schoolID)
		return err
	})
	g.Go(func() (err error) {
		templates, err = s.src.Templates(gctx, schoolID)
		return err
	})
	if s.closures != nil {
		g.Go(func() (err error) {
			closed, err = s.closures.ClosureDates(gctx, from, to)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return model.School{}, nil, nil, err
	}
	return school, students, cancelClosures(templates, closed), nil
}

// cancelClosures treats every closure day as a cancelled date of every
// template. Inputs are not modified.
func cancelClosures(templates []model.ScheduledSessionTemplate, closed map[string]string) []model.ScheduledSessionTemplate {
	if len(closed) == 0 {
		return templates
	}
	keys := make([]string, 0, len(closed))
	for k := range closed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]model.ScheduledSessionTemplate, len(templates))
	for i, t := range templates {
		t.CancelledDates = append(append([]string(nil), t.CancelledDates...), keys...)
		out[i] = t
	}
	return out
}
