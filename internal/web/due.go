package web

import (
	"context"
	"net/http"

	"caseload/internal/model"
	"caseload/internal/status"
)

func statusFilter(r *http.Request) status.Filter {
	q := r.URL.Query()
	return status.Filter{StudentID: q.Get("student"), Status: model.Status(q.Get("status"))}
}

// GET /api/due-items?student=ID&status=overdue
func (s *Server) handleListDueItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.status.ListDueItems(r.Context(), statusFilter(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetDueItem(w http.ResponseWriter, r *http.Request) {
	s.dueItemAction(w, r, s.status.GetDueItem)
}

func (s *Server) handleCompleteDueItem(w http.ResponseWriter, r *http.Request) {
	s.dueItemAction(w, r, s.status.CompleteDueItem)
}

func (s *Server) handleUncompleteDueItem(w http.ResponseWriter, r *http.Request) {
	s.dueItemAction(w, r, s.status.UncompleteDueItem)
}

func (s *Server) dueItemAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (model.DueDateItem, error)) {
	it, err := fn(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// GET /api/progress-reports?student=ID&status=pending
func (s *Server) handleListProgressReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.status.ListProgressReports(r.Context(), statusFilter(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleGetProgressReport(w http.ResponseWriter, r *http.Request) {
	s.progressReportAction(w, r, s.status.GetProgressReport)
}

func (s *Server) handleCompleteProgressReport(w http.ResponseWriter, r *http.Request) {
	s.progressReportAction(w, r, s.status.CompleteProgressReport)
}

func (s *Server) handleUncompleteProgressReport(w http.ResponseWriter, r *http.Request) {
	s.progressReportAction(w, r, s.status.UncompleteProgressReport)
}

func (s *Server) progressReportAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (model.ProgressReport, error)) {
	rep, err := fn(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
