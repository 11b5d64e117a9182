package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"caseload/internal/model"
	"caseload/internal/status"
)

func dueFilter(q *gorm.DB, f status.Filter) *gorm.DB {
	if f.StudentID != "" {
		q = q.Where("student_id = ?", f.StudentID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	return q.Order("due_date, id")
}

func (s *Store) ListDueItems(ctx context.Context, f status.Filter) ([]model.DueDateItem, error) {
	var rows []dueItemRow
	if err := dueFilter(s.db.WithContext(ctx), f).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "listing due date items")
	}
	out := make([]model.DueDateItem, len(rows))
	for i, r := range rows {
		out[i] = s.dueItemModel(r)
	}
	return out, nil
}

func (s *Store) GetDueItem(ctx context.Context, id string) (model.DueDateItem, error) {
	var row dueItemRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return model.DueDateItem{}, notFound(err, "due date item", id)
	}
	return s.dueItemModel(row), nil
}

func (s *Store) UpdateDueItemStatus(ctx context.Context, id string, st model.Status, completedDate *time.Time) error {
	return s.updateStatus(ctx, &dueItemRow{}, "due date item", id, st, completedDate)
}

func (s *Store) ListProgressReports(ctx context.Context, f status.Filter) ([]model.ProgressReport, error) {
	var rows []progressReportRow
	if err := dueFilter(s.db.WithContext(ctx), f).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "listing progress reports")
	}
	out := make([]model.ProgressReport, len(rows))
	for i, r := range rows {
		out[i] = s.progressReportModel(r)
	}
	return out, nil
}

func (s *Store) GetProgressReport(ctx context.Context, id string) (model.ProgressReport, error) {
	var row progressReportRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return model.ProgressReport{}, notFound(err, "progress report", id)
	}
	return s.progressReportModel(row), nil
}

func (s *Store) UpdateProgressReportStatus(ctx context.Context, id string, st model.Status, completedDate *time.Time) error {
	return s.updateStatus(ctx, &progressReportRow{}, "progress report", id, st, completedDate)
}

// updateStatus writes status and completed_date together; a nil date clears
// the column.
func (s *Store) updateStatus(ctx context.Context, row any, what, id string, st model.Status, completedDate *time.Time) error {
	res := s.db.WithContext(ctx).Model(row).Where("id = ?", id).Updates(map[string]any{
		"status":         string(st),
		"completed_date": utcPtr(completedDate),
	})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "updating %s %s", what, id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "%s %s", what, id)
	}
	return nil
}
