package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"caseload/internal/config"
	"caseload/internal/model"
	"caseload/internal/notes"
	"caseload/internal/status"
	"caseload/internal/store"
)

var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type fixture struct {
	srv    *Server
	st     *store.Store
	school model.School
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	st, err := store.Open(store.Options{Driver: store.DriverSQLite, DSN: "file::memory:", Location: time.UTC})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	school, err := st.CreateSchool(ctx, model.School{Name: "Adams"})
	if err != nil {
		t.Fatal(err)
	}
	alice, err := st.CreateStudent(ctx, model.Student{SchoolID: school.ID, Name: "Alice Smith", Grade: "3"})
	if err != nil {
		t.Fatal(err)
	}
	start := monday.Add(9 * time.Hour)
	end := start.Add(30 * time.Minute)
	if _, err := st.CreateSession(ctx, school.ID, model.Session{
		StudentID: alice.ID, Start: start, End: &end, IsDirectServices: true,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateTemplate(ctx, model.ScheduledSessionTemplate{
		ID:                "weekly",
		SchoolID:          school.ID,
		StudentIDs:        []string{alice.ID},
		StartTime:         "10:00",
		RecurrencePattern: model.RecurrenceWeekly,
		DayOfWeek:         []int{1},
		StartDate:         "2025-03-01",
		IsDirectServices:  true,
	}); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	if mutate != nil {
		mutate(cfg)
	}
	srv := NewServer(cfg, Deps{
		Notes:  notes.NewService(st, notes.Options{}),
		Status: status.NewService(st),
		DB:     st,
	})
	srv.now = func() time.Time { return monday.Add(8 * time.Hour) }
	return &fixture{srv: srv, st: st, school: school}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestBasicAuth(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "slp", Password: "secret"}
	})

	if rec := f.do(t, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("/health must bypass auth, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/due-items"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/due-items", nil)
	req.SetBasicAuth("slp", "secret")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 with credentials got %d", rec.Code)
	}
}

func TestNotesEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/notes?date=2025-03-10&specific_times=1&school="+f.school.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[noteResponse](t, rec)
	if resp.Mode != notes.ModeRetrospective || resp.Date != "2025-03-10" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.Contains(resp.Note, "AS (3) 9:00 am-9:30 am") {
		t.Fatalf("note:\n%s", resp.Note)
	}

	rec = f.do(t, http.MethodGet, "/api/notes?date=2025-03-10&mode=prospective&format=text&school="+f.school.ID)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("text format: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), notes.LabelDirect) || !strings.Contains(rec.Body.String(), "AS (3)") {
		t.Fatalf("prospective note:\n%s", rec.Body.String())
	}
}

func TestNotesEndpointErrors(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		target string
		want   int
	}{
		{"/api/notes?date=03/10/2025", http.StatusBadRequest},
		{"/api/notes?mode=weekly", http.StatusBadRequest},
		{"/api/notes?specific_times=maybe", http.StatusBadRequest},
		{"/api/notes?school=missing", http.StatusNotFound},
		{"/api/occurrences?days=0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := f.do(t, http.MethodGet, tt.target); rec.Code != tt.want {
			t.Fatalf("%s: want=%d got=%d (%s)", tt.target, tt.want, rec.Code, rec.Body.String())
		}
	}
}

func TestOccurrencesEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/occurrences?date=2025-03-10&days=14&school="+f.school.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[occurrencesResponse](t, rec)
	if resp.To != "2025-03-23" || len(resp.Occurrences) != 2 {
		t.Fatalf("want two Mondays, got %+v", resp)
	}
	if got := resp.Occurrences[1]; got.Student != "AS (3)" || got.Start.Day() != 17 || got.Start.Hour() != 10 {
		t.Fatalf("second occurrence: %+v", got)
	}
}

func TestScheduleFeedCached(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Feed.CacheSeconds = 60 })
	target := "/api/schedule.ics?days=7&school=" + f.school.ID

	rec := f.do(t, http.MethodGet, target)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("feed: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	first := rec.Body.String()
	if strings.Count(first, "BEGIN:VEVENT") != 1 || !strings.Contains(first, "UID:weekly-20250310@caseload") {
		t.Fatalf("feed body:\n%s", first)
	}

	if _, err := f.st.CreateTemplate(context.Background(), model.ScheduledSessionTemplate{
		SchoolID:          f.school.ID,
		StudentIDs:        []string{"other"},
		StartTime:         "11:00",
		RecurrencePattern: model.RecurrenceDaily,
		StartDate:         "2025-03-01",
	}); err != nil {
		t.Fatal(err)
	}
	if again := f.do(t, http.MethodGet, target).Body.String(); again != first {
		t.Fatalf("feed must be served from cache within the TTL")
	}

	f.srv.now = func() time.Time { return monday.Add(9 * time.Hour) }
	if fresh := f.do(t, http.MethodGet, target).Body.String(); strings.Count(fresh, "BEGIN:VEVENT") != 8 {
		t.Fatalf("want a rebuilt feed after expiry:\n%s", fresh)
	}
}

func TestDueItemEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	it, err := f.st.CreateDueItem(context.Background(), model.DueDateItem{
		StudentID: "s1", Title: "Annual IEP", DueDate: time.Now().AddDate(0, 0, 30),
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodPost, "/api/due-items/"+it.ID+"/complete")
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[model.DueDateItem](t, rec); got.Status != model.StatusCompleted || got.CompletedDate == nil {
		t.Fatalf("complete: %+v", got)
	}

	rec = f.do(t, http.MethodPost, "/api/due-items/"+it.ID+"/uncomplete")
	if got := decode[model.DueDateItem](t, rec); got.Status != model.StatusPending || got.CompletedDate != nil {
		t.Fatalf("uncomplete: %+v", got)
	}

	rec = f.do(t, http.MethodGet, "/api/due-items?student=s1&status=pending")
	if list := decode[map[string][]model.DueDateItem](t, rec); len(list["items"]) != 1 {
		t.Fatalf("list: %+v", list)
	}

	if rec := f.do(t, http.MethodGet, "/api/due-items/missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: want 404 got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/due-items/"+it.ID+"/complete"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET on complete: want 405 got %d", rec.Code)
	}
}

func TestProgressReportEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	rep, err := f.st.CreateProgressReport(context.Background(), model.ProgressReport{
		StudentID: "s1", Period: "Q3", DueDate: time.Now().AddDate(0, 0, -2), Status: model.StatusPending,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/api/progress-reports/"+rep.ID)
	if got := decode[model.ProgressReport](t, rec); got.Status != model.StatusOverdue {
		t.Fatalf("want recomputed overdue, got %+v", got)
	}
	rec = f.do(t, http.MethodPost, "/api/progress-reports/"+rep.ID+"/complete")
	if got := decode[model.ProgressReport](t, rec); got.Status != model.StatusCompleted {
		t.Fatalf("complete: %+v", got)
	}
	rec = f.do(t, http.MethodGet, "/api/progress-reports?status=completed")
	if list := decode[map[string][]model.ProgressReport](t, rec); len(list["reports"]) != 1 {
		t.Fatalf("list: %+v", list)
	}
}
