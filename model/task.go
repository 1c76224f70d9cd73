package model

import "time"

// Task status constants.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

var taskStatuses = map[string]bool{
	TaskStatusPending:    true,
	TaskStatusInProgress: true,
	TaskStatusCompleted:  true,
	TaskStatusCancelled:  true,
}

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	return taskStatuses[s]
}

// Task priority constants.
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)

var taskPriorities = map[string]bool{
	TaskPriorityLow:    true,
	TaskPriorityMedium: true,
	TaskPriorityHigh:   true,
	TaskPriorityUrgent: true,
}

// ValidTaskPriority reports whether p is a known task priority.
func ValidTaskPriority(p string) bool {
	return taskPriorities[p]
}

// Task is a unit of work attached to a case. Workflow tasks
// (IsWorkflowTask=true) are owned by template materialization: they carry a
// source template id and an order index, and are replaced wholesale whenever
// the case's benefit type changes. Manual tasks are never touched by
// materialization and have OrderIndex zero.
type Task struct {
	ID                string     `json:"id"`
	CaseID            string     `json:"case_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Status            string     `json:"status"`
	Priority          string     `json:"priority"`
	DueDate           time.Time  `json:"due_date"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	AssignedTo        string     `json:"assigned_to,omitempty"`
	CreatedBy         string     `json:"created_by,omitempty"`
	IsWorkflowTask    bool       `json:"is_workflow_task"`
	SourceTemplateID  string     `json:"source_template_id,omitempty"`
	OrderIndex        int        `json:"order_index,omitempty"`
	RequiredDocuments []string   `json:"required_documents,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Overdue reports whether the task is past due. It is derived, never
// persisted: due date before now and the task not completed.
func (t Task) Overdue(now time.Time) bool {
	return !t.DueDate.IsZero() && t.DueDate.Before(now) && t.Status != TaskStatusCompleted
}
