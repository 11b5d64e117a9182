package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"caseload/internal/model"
)

var (
	now       = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	yesterday = time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	today     = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	tomorrow  = time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
)

func TestCompute(t *testing.T) {
	done := yesterday
	tests := []struct {
		name      string
		current   model.Status
		due       time.Time
		completed *time.Time
		want      model.Status
	}{
		{"past due", model.StatusPending, yesterday, nil, model.StatusOverdue},
		{"due today", model.StatusPending, today, nil, model.StatusPending},
		{"future", model.StatusPending, tomorrow, nil, model.StatusPending},
		{"overdue moved out", model.StatusOverdue, tomorrow, nil, model.StatusPending},
		{"completed sticky", model.StatusCompleted, yesterday, nil, model.StatusCompleted},
		{"completed date wins", model.StatusOverdue, yesterday, &done, model.StatusCompleted},
		{"scheduled untouched", model.StatusScheduled, yesterday, nil, model.StatusScheduled},
		{"in-progress untouched", model.StatusInProgress, yesterday, nil, model.StatusInProgress},
		{"empty status", "", yesterday, nil, model.StatusOverdue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.current, tt.due, tt.completed, now)
			if got != tt.want {
				t.Fatalf("want=%q got=%q", tt.want, got)
			}
			if again := Compute(got, tt.due, tt.completed, now); again != got {
				t.Fatalf("not idempotent: %q then %q", got, again)
			}
		})
	}
}

func TestComputeAcrossZones(t *testing.T) {
	pacific := time.FixedZone("PDT", -7*3600)
	tokyo := time.FixedZone("JST", 9*3600)
	tests := []struct {
		name string
		due  time.Time
		now  time.Time
		want model.Status
	}{
		{
			name: "utc clock already on next day",
			due:  time.Date(2025, 3, 10, 0, 0, 0, 0, pacific),
			now:  time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC),
			want: model.StatusPending,
		},
		{
			name: "utc clock past pacific midnight",
			due:  time.Date(2025, 3, 10, 0, 0, 0, 0, pacific),
			now:  time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC),
			want: model.StatusOverdue,
		},
		{
			name: "utc clock still on due day",
			due:  time.Date(2025, 3, 10, 0, 0, 0, 0, tokyo),
			now:  time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC),
			want: model.StatusOverdue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(model.StatusPending, tt.due, nil, tt.now); got != tt.want {
				t.Fatalf("want=%q got=%q", tt.want, got)
			}
		})
	}
}

func TestCompleteUncomplete(t *testing.T) {
	item := model.DueDateItem{ID: "d1", DueDate: yesterday, Status: model.StatusOverdue}

	done := CompleteDueItem(item, now)
	if done.Status != model.StatusCompleted || done.CompletedDate == nil || !done.CompletedDate.Equal(now) {
		t.Fatalf("complete: got %+v", done)
	}
	reopened := UncompleteDueItem(done, now)
	if reopened.CompletedDate != nil {
		t.Fatalf("uncomplete must clear completed date")
	}
	if reopened.Status != model.StatusOverdue {
		t.Fatalf("uncomplete: want=%q got=%q", model.StatusOverdue, reopened.Status)
	}

	future := UncompleteDueItem(CompleteDueItem(model.DueDateItem{DueDate: tomorrow}, now), now)
	if future.Status != model.StatusPending {
		t.Fatalf("uncomplete future: want=%q got=%q", model.StatusPending, future.Status)
	}
}

type fakeRepo struct {
	items   map[string]model.DueDateItem
	reports map[string]model.ProgressReport
	writes  int
}

func (f *fakeRepo) ListDueItems(_ context.Context, flt Filter) ([]model.DueDateItem, error) {
	out := make([]model.DueDateItem, 0)
	for _, id := range []string{"a", "b", "c"} {
		it, ok := f.items[id]
		if !ok {
			continue
		}
		if flt.StudentID != "" && it.StudentID != flt.StudentID {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

var errMissing = errors.New("missing")

func (f *fakeRepo) GetDueItem(_ context.Context, id string) (model.DueDateItem, error) {
	it, ok := f.items[id]
	if !ok {
		return model.DueDateItem{}, errMissing
	}
	return it, nil
}

func (f *fakeRepo) UpdateDueItemStatus(_ context.Context, id string, st model.Status, completed *time.Time) error {
	it := f.items[id]
	it.Status = st
	it.CompletedDate = completed
	f.items[id] = it
	f.writes++
	return nil
}

func (f *fakeRepo) ListProgressReports(_ context.Context, _ Filter) ([]model.ProgressReport, error) {
	out := make([]model.ProgressReport, 0, len(f.reports))
	for _, r := range f.reports {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRepo) GetProgressReport(_ context.Context, id string) (model.ProgressReport, error) {
	r, ok := f.reports[id]
	if !ok {
		return model.ProgressReport{}, errMissing
	}
	return r, nil
}

func (f *fakeRepo) UpdateProgressReportStatus(_ context.Context, id string, st model.Status, completed *time.Time) error {
	r := f.reports[id]
	r.Status = st
	r.CompletedDate = completed
	f.reports[id] = r
	f.writes++
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return now }
	return svc
}

func TestServiceListPersistsOnlyChanges(t *testing.T) {
	repo := &fakeRepo{items: map[string]model.DueDateItem{
		"a": {ID: "a", StudentID: "s1", DueDate: yesterday, Status: model.StatusPending},
		"b": {ID: "b", StudentID: "s1", DueDate: tomorrow, Status: model.StatusPending},
		"c": {ID: "c", StudentID: "s2", DueDate: yesterday, Status: model.StatusOverdue},
	}}
	svc := newTestService(repo)

	items, err := svc.ListDueItems(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("ListDueItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("want=3 got=%d", len(items))
	}
	if items[0].Status != model.StatusOverdue {
		t.Fatalf("a: want overdue got %q", items[0].Status)
	}
	if repo.writes != 1 {
		t.Fatalf("writes: want=1 got=%d", repo.writes)
	}

	if _, err := svc.ListDueItems(context.Background(), Filter{}); err != nil {
		t.Fatalf("ListDueItems: %v", err)
	}
	if repo.writes != 1 {
		t.Fatalf("second read must not write, writes=%d", repo.writes)
	}
}

func TestServiceListFiltersAfterRecompute(t *testing.T) {
	repo := &fakeRepo{items: map[string]model.DueDateItem{
		"a": {ID: "a", DueDate: yesterday, Status: model.StatusPending},
		"b": {ID: "b", DueDate: tomorrow, Status: model.StatusPending},
	}}
	svc := newTestService(repo)
	items, err := svc.ListDueItems(context.Background(), Filter{Status: model.StatusOverdue})
	if err != nil {
		t.Fatalf("ListDueItems: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a" {
		t.Fatalf("want only a, got %+v", items)
	}
}

func TestServiceDueItemsAcrossZones(t *testing.T) {
	pacific := time.FixedZone("PDT", -7*3600)
	clock := time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		due  time.Time
		want model.Status
	}{
		{"due today in pacific", time.Date(2025, 3, 10, 0, 0, 0, 0, pacific), model.StatusPending},
		{"due yesterday in pacific", time.Date(2025, 3, 9, 0, 0, 0, 0, pacific), model.StatusOverdue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{items: map[string]model.DueDateItem{
				"a": {ID: "a", DueDate: tt.due, Status: model.StatusPending},
			}}
			svc := NewService(repo)
			svc.now = func() time.Time { return clock }

			got, err := svc.GetDueItem(context.Background(), "a")
			if err != nil {
				t.Fatalf("GetDueItem: %v", err)
			}
			if got.Status != tt.want {
				t.Fatalf("GetDueItem: want=%q got=%q", tt.want, got.Status)
			}
			list, err := svc.ListDueItems(context.Background(), Filter{})
			if err != nil {
				t.Fatalf("ListDueItems: %v", err)
			}
			if len(list) != 1 || list[0].Status != tt.want {
				t.Fatalf("ListDueItems: want one %q item, got %+v", tt.want, list)
			}
			wantWrites := 0
			if tt.want != model.StatusPending {
				wantWrites = 1
			}
			if repo.writes != wantWrites {
				t.Fatalf("writes: want=%d got=%d", wantWrites, repo.writes)
			}
		})
	}
}

func TestServiceCompleteAndUncomplete(t *testing.T) {
	repo := &fakeRepo{items: map[string]model.DueDateItem{
		"a": {ID: "a", DueDate: yesterday, Status: model.StatusOverdue},
	}}
	svc := newTestService(repo)
	ctx := context.Background()

	it, err := svc.CompleteDueItem(ctx, "a")
	if err != nil {
		t.Fatalf("CompleteDueItem: %v", err)
	}
	if it.Status != model.StatusCompleted || repo.items["a"].CompletedDate == nil {
		t.Fatalf("complete not persisted: %+v", repo.items["a"])
	}

	it, err = svc.UncompleteDueItem(ctx, "a")
	if err != nil {
		t.Fatalf("UncompleteDueItem: %v", err)
	}
	if it.Status != model.StatusOverdue || repo.items["a"].CompletedDate != nil {
		t.Fatalf("uncomplete not persisted: %+v", repo.items["a"])
	}

	if _, err := svc.CompleteDueItem(ctx, "nope"); !errors.Is(err, errMissing) {
		t.Fatalf("want errMissing, got %v", err)
	}
}

func TestServiceProgressReports(t *testing.T) {
	repo := &fakeRepo{reports: map[string]model.ProgressReport{
		"r1": {ID: "r1", DueDate: yesterday, Status: model.StatusPending},
		"r2": {ID: "r2", DueDate: yesterday, Status: model.StatusInProgress},
	}}
	svc := newTestService(repo)
	ctx := context.Background()

	r, err := svc.GetProgressReport(ctx, "r1")
	if err != nil {
		t.Fatalf("GetProgressReport: %v", err)
	}
	if r.Status != model.StatusOverdue {
		t.Fatalf("r1: want overdue got %q", r.Status)
	}
	r, _ = svc.GetProgressReport(ctx, "r2")
	if r.Status != model.StatusInProgress {
		t.Fatalf("r2: want in-progress got %q", r.Status)
	}
	if repo.writes != 1 {
		t.Fatalf("writes: want=1 got=%d", repo.writes)
	}

	r, err = svc.CompleteProgressReport(ctx, "r2")
	if err != nil || r.Status != model.StatusCompleted {
		t.Fatalf("CompleteProgressReport: %+v %v", r, err)
	}
	r, err = svc.UncompleteProgressReport(ctx, "r2")
	if err != nil || r.Status != model.StatusOverdue {
		t.Fatalf("UncompleteProgressReport: %+v %v", r, err)
	}
}
