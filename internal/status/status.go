// Package status derives due-item and progress-report status from the due
// date and completion date. Compute is pure and idempotent; Service applies
// it on every read and writes back only rows whose stored status is stale.
package status

import (
	"time"

	"caseload/internal/dates"
	"caseload/internal/model"
)

// Compute returns the status an item should have at now.
//
// Completion is sticky. Scheduled and in-progress are set by the caller's
// workflow and are left alone. Anything else is overdue once the due date's
// calendar day is behind now's, and pending otherwise. now is read in the due
// date's zone, so a host clock in another zone cannot shift the day.
func Compute(current model.Status, dueDate time.Time, completedDate *time.Time, now time.Time) model.Status {
	if current == model.StatusCompleted || completedDate != nil {
		return model.StatusCompleted
	}
	switch current {
	case model.StatusScheduled, model.StatusInProgress:
		return current
	}
	if dates.IsBefore(dueDate, now.In(dueDate.Location())) {
		return model.StatusOverdue
	}
	return model.StatusPending
}

// ComputeDueItem is Compute applied to a DueDateItem.
func ComputeDueItem(item model.DueDateItem, now time.Time) model.Status {
	return Compute(item.Status, item.DueDate, item.CompletedDate, now)
}

// ComputeProgressReport is Compute applied to a ProgressReport.
func ComputeProgressReport(r model.ProgressReport, now time.Time) model.Status {
	return Compute(r.Status, r.DueDate, r.CompletedDate, now)
}

// CompleteDueItem marks item completed at now.
func CompleteDueItem(item model.DueDateItem, now time.Time) model.DueDateItem {
	completed := now
	item.CompletedDate = &completed
	item.Status = model.StatusCompleted
	return item
}

// UncompleteDueItem clears completion and re-derives the status.
func UncompleteDueItem(item model.DueDateItem, now time.Time) model.DueDateItem {
	item.CompletedDate = nil
	item.Status = model.StatusPending
	item.Status = ComputeDueItem(item, now)
	return item
}

// CompleteProgressReport marks r completed at now.
func CompleteProgressReport(r model.ProgressReport, now time.Time) model.ProgressReport {
	completed := now
	r.CompletedDate = &completed
	r.Status = model.StatusCompleted
	return r
}

// UncompleteProgressReport clears completion and re-derives the status.
func UncompleteProgressReport(r model.ProgressReport, now time.Time) model.ProgressReport {
	r.CompletedDate = nil
	r.Status = model.StatusPending
	r.Status = ComputeProgressReport(r, now)
	return r
}
