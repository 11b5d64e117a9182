package store

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"caseload/internal/dates"
	"caseload/internal/model"
)

// School returns the school with id. An empty id is the unnamed default
// school of a single-school install and is never teletherapy.
func (s *Store) School(ctx context.Context, id string) (model.School, error) {
	if id == "" {
		return model.School{}, nil
	}
	var row schoolRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return model.School{}, notFound(err, "school", id)
	}
	return model.School{ID: row.ID, Name: row.Name, Teletherapy: row.Teletherapy}, nil
}

// Students indexes every student of the school.
func (s *Store) Students(ctx context.Context, schoolID string) (model.StudentIndex, error) {
	var rows []studentRow
	if err := scoped(s.db.WithContext(ctx), schoolID).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "listing students")
	}
	idx := make(model.StudentIndex, len(rows))
	for _, r := range rows {
		idx[r.ID] = model.Student{ID: r.ID, Name: r.Name, Grade: r.Grade, SchoolID: r.SchoolID}
	}
	return idx, nil
}

// DayRecords returns every session, screener, meeting and communication of
// the school that falls on day's calendar date, ordered by time.
func (s *Store) DayRecords(ctx context.Context, schoolID string, day time.Time) ([]model.Record, error) {
	from, to := dates.DayBounds(day.In(s.loc))
	from, to = from.UTC(), to.UTC()
	db := s.db.WithContext(ctx)

	type timed struct {
		at  time.Time
		rec model.Record
	}
	var all []timed

	var sessions []sessionRow
	if err := scoped(db, schoolID).Where("start_time >= ? AND start_time < ?", from, to).
		Order("start_time").Find(&sessions).Error; err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	for _, r := range sessions {
		all = append(all, timed{r.StartTime, s.sessionModel(r)})
	}

	var screeners []screenerRow
	if err := scoped(db, schoolID).Where("screened_at >= ? AND screened_at < ?", from, to).
		Order("screened_at").Find(&screeners).Error; err != nil {
		return nil, errors.Wrap(err, "listing screeners")
	}
	for _, r := range screeners {
		all = append(all, timed{r.Date, model.ArticulationScreener{
			ID: r.ID, StudentID: r.StudentID, Date: s.local(r.Date),
		}})
	}

	var meetings []meetingRow
	if err := scoped(db, schoolID).Where("start_time >= ? AND start_time < ?", from, to).
		Order("start_time").Find(&meetings).Error; err != nil {
		return nil, errors.Wrap(err, "listing meetings")
	}
	for _, r := range meetings {
		all = append(all, timed{r.StartTime, s.meetingModel(r)})
	}

	var comms []communicationRow
	if err := scoped(db, schoolID).Where("sent_at >= ? AND sent_at < ?", from, to).
		Order("sent_at").Find(&comms).Error; err != nil {
		return nil, errors.Wrap(err, "listing communications")
	}
	for _, r := range comms {
		all = append(all, timed{r.Date, model.Communication{
			ID: r.ID, StudentID: r.StudentID, RelatedTo: r.RelatedTo, Date: s.local(r.Date),
		}})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
	out := make([]model.Record, len(all))
	for i, t := range all {
		out[i] = t.rec
	}
	return out, nil
}

// Templates returns the school's scheduled session templates, inactive ones
// included; expansion skips those.
func (s *Store) Templates(ctx context.Context, schoolID string) ([]model.ScheduledSessionTemplate, error) {
	var rows []templateRow
	if err := scoped(s.db.WithContext(ctx), schoolID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "listing scheduled sessions")
	}
	out := make([]model.ScheduledSessionTemplate, len(rows))
	for i, r := range rows {
		out[i] = templateModel(r)
	}
	return out, nil
}
