// Package workflow implements the template side of the case lifecycle
// engine: resolving which template applies to a case, materializing its task
// specs into concrete tasks, the task status state machine, and template
// administration.
package workflow

import (
	"fmt"
	"time"

	"github.com/juridia/caseflow/model"
)

// transitions maps each task status to the set it may move to. Completed and
// cancelled are terminal.
var transitions = map[string]map[string]bool{
	model.TaskStatusPending: {
		model.TaskStatusInProgress: true,
		model.TaskStatusCompleted:  true,
		model.TaskStatusCancelled:  true,
	},
	model.TaskStatusInProgress: {
		model.TaskStatusCompleted: true,
		model.TaskStatusCancelled: true,
	},
	model.TaskStatusCompleted: {},
	model.TaskStatusCancelled: {},
}

// Transition applies a status change to the task. Moving to completed stamps
// CompletedAt; leaving completed would clear it, but no such transition is
// legal. Requesting the status the task already has is a no-op and returns a
// warning instead of an error, so retried completion calls stay idempotent.
func Transition(t model.Task, newStatus string, now time.Time) (model.Task, string, error) {
	if !model.ValidTaskStatus(newStatus) {
		return t, "", model.NewValidationError([]model.FieldError{
			{Field: "status", Code: "invalid", Message: fmt.Sprintf("unknown task status %q", newStatus)},
		})
	}

	if t.Status == newStatus {
		return t, fmt.Sprintf("task already has status %q", newStatus), nil
	}

	if !transitions[t.Status][newStatus] {
		return t, "", model.NewInvalidTransitionError(
			fmt.Sprintf("cannot move task from %q to %q", t.Status, newStatus),
		)
	}

	t.Status = newStatus
	if newStatus == model.TaskStatusCompleted {
		completed := now.UTC()
		t.CompletedAt = &completed
	}
	t.UpdatedAt = now.UTC()
	return t, "", nil
}
