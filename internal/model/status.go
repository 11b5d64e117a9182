package model

import "time"

// Status is the lifecycle state of a due-bearing entity.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOverdue   Status = "overdue"
	StatusCompleted Status = "completed"

	// Progress reports only; driven by the scheduling UI, never derived.
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
)

// DueDateItem is a compliance deadline attached to a student.
type DueDateItem struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"student_id"`
	Title         string     `json:"title"`
	DueDate       time.Time  `json:"due_date"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	Status        Status     `json:"status"`
}

// ProgressReport is a periodic report with a due date.
type ProgressReport struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"student_id"`
	Period        string     `json:"period"`
	DueDate       time.Time  `json:"due_date"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	Status        Status     `json:"status"`
}
