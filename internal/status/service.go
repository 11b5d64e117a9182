package status

import (
	"context"
	"time"

	appLog "caseload/internal/log"
	"caseload/internal/model"
)

// Filter narrows list reads. Empty fields match everything.
type Filter struct {
	StudentID string
	Status    model.Status
}

// Repository persists due-bearing entities. Status writes are plain
// last-write-wins updates of a single row.
type Repository interface {
	ListDueItems(ctx context.Context, f Filter) ([]model.DueDateItem, error)
	GetDueItem(ctx context.Context, id string) (model.DueDateItem, error)
	UpdateDueItemStatus(ctx context.Context, id string, st model.Status, completedDate *time.Time) error

	ListProgressReports(ctx context.Context, f Filter) ([]model.ProgressReport, error)
	GetProgressReport(ctx context.Context, id string) (model.ProgressReport, error)
	UpdateProgressReportStatus(ctx context.Context, id string, st model.Status, completedDate *time.Time) error
}

// Service recomputes statuses on read and handles complete/uncomplete.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ListDueItems returns items with freshly computed statuses. The status
// filter applies after recomputation so a stale "pending" row that is now
// overdue is reported as overdue.
func (s *Service) ListDueItems(ctx context.Context, f Filter) ([]model.DueDateItem, error) {
	want := f.Status
	f.Status = ""
	items, err := s.repo.ListDueItems(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]model.DueDateItem, 0, len(items))
	for _, it := range items {
		it, err = s.refreshDueItem(ctx, it, now)
		if err != nil {
			return nil, err
		}
		if want != "" && it.Status != want {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *Service) GetDueItem(ctx context.Context, id string) (model.DueDateItem, error) {
	it, err := s.repo.GetDueItem(ctx, id)
	if err != nil {
		return model.DueDateItem{}, err
	}
	return s.refreshDueItem(ctx, it, s.now())
}

func (s *Service) CompleteDueItem(ctx context.Context, id string) (model.DueDateItem, error) {
	it, err := s.repo.GetDueItem(ctx, id)
	if err != nil {
		return model.DueDateItem{}, err
	}
	it = CompleteDueItem(it, s.now())
	if err := s.repo.UpdateDueItemStatus(ctx, it.ID, it.Status, it.CompletedDate); err != nil {
		return model.DueDateItem{}, err
	}
	appLog.Info("due item completed", "id", it.ID, "student", it.StudentID)
	return it, nil
}

func (s *Service) UncompleteDueItem(ctx context.Context, id string) (model.DueDateItem, error) {
	it, err := s.repo.GetDueItem(ctx, id)
	if err != nil {
		return model.DueDateItem{}, err
	}
	it = UncompleteDueItem(it, s.now())
	if err := s.repo.UpdateDueItemStatus(ctx, it.ID, it.Status, nil); err != nil {
		return model.DueDateItem{}, err
	}
	appLog.Info("due item reopened", "id", it.ID, "student", it.StudentID, "status", string(it.Status))
	return it, nil
}

func (s *Service) refreshDueItem(ctx context.Context, it model.DueDateItem, now time.Time) (model.DueDateItem, error) {
	next := ComputeDueItem(it, now)
	if next == it.Status {
		return it, nil
	}
	if err := s.repo.UpdateDueItemStatus(ctx, it.ID, next, it.CompletedDate); err != nil {
		return model.DueDateItem{}, err
	}
	appLog.Debug("due item status recomputed", "id", it.ID, "from", string(it.Status), "to", string(next))
	it.Status = next
	return it, nil
}

// ListProgressReports mirrors ListDueItems.
func (s *Service) ListProgressReports(ctx context.Context, f Filter) ([]model.ProgressReport, error) {
	want := f.Status
	f.Status = ""
	reports, err := s.repo.ListProgressReports(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]model.ProgressReport, 0, len(reports))
	for _, r := range reports {
		r, err = s.refreshProgressReport(ctx, r, now)
		if err != nil {
			return nil, err
		}
		if want != "" && r.Status != want {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) GetProgressReport(ctx context.Context, id string) (model.ProgressReport, error) {
	r, err := s.repo.GetProgressReport(ctx, id)
	if err != nil {
		return model.ProgressReport{}, err
	}
	return s.refreshProgressReport(ctx, r, s.now())
}

func (s *Service) CompleteProgressReport(ctx context.Context, id string) (model.ProgressReport, error) {
	r, err := s.repo.GetProgressReport(ctx, id)
	if err != nil {
		return model.ProgressReport{}, err
	}
	r = CompleteProgressReport(r, s.now())
	if err := s.repo.UpdateProgressReportStatus(ctx, r.ID, r.Status, r.CompletedDate); err != nil {
		return model.ProgressReport{}, err
	}
	appLog.Info("progress report completed", "id", r.ID, "student", r.StudentID)
	return r, nil
}

func (s *Service) UncompleteProgressReport(ctx context.Context, id string) (model.ProgressReport, error) {
	r, err := s.repo.GetProgressReport(ctx, id)
	if err != nil {
		return model.ProgressReport{}, err
	}
	r = UncompleteProgressReport(r, s.now())
	if err := s.repo.UpdateProgressReportStatus(ctx, r.ID, r.Status, nil); err != nil {
		return model.ProgressReport{}, err
	}
	appLog.Info("progress report reopened", "id", r.ID, "student", r.StudentID, "status", string(r.Status))
	return r, nil
}

func (s *Service) refreshProgressReport(ctx context.Context, r model.ProgressReport, now time.Time) (model.ProgressReport, error) {
	next := ComputeProgressReport(r, now)
	if next == r.Status {
		return r, nil
	}
	if err := s.repo.UpdateProgressReportStatus(ctx, r.ID, next, r.CompletedDate); err != nil {
		return model.ProgressReport{}, err
	}
	appLog.Debug("progress report status recomputed", "id", r.ID, "from", string(r.Status), "to", string(next))
	r.Status = next
	return r, nil
}
