// Package store persists cases, tasks, and workflow templates. Two
// implementations exist: an in-memory store for tests and single-process
// deployments, and a PostgreSQL store for production. Both enforce the same
// contracts, in particular the global uniqueness of case numbers and the
// atomicity of workflow-task replacement.
package store

import (
	"context"
	"errors"

	"github.com/juridia/caseflow/model"
)

// ErrDuplicateCaseNumber is returned by CreateCase when the candidate case
// number is already taken. The identifier allocator treats it as a signal to
// retry with the next candidate.
var ErrDuplicateCaseNumber = errors.New("case number already exists")

// CaseFilters are optional filters for listing cases.
type CaseFilters struct {
	Status      string
	BenefitType string
}

// Store is the persistence boundary for the case lifecycle engine.
//
// Tenant scoping is part of every read and delete contract: operations that
// take a tenantID return NOT_FOUND for records belonging to another tenant.
// Tasks are scoped through their owning case.
type Store interface {
	// CreateCase inserts a new case. Returns ErrDuplicateCaseNumber
	// (possibly wrapped) if the case number is already taken anywhere in
	// storage; this is the uniqueness backstop for identifier allocation.
	CreateCase(ctx context.Context, c model.Case) error

	// GetCase retrieves a case by ID, scoped to a tenant.
	GetCase(ctx context.Context, tenantID, caseID string) (model.Case, error)

	// UpdateCase persists an updated case. The case number is immutable;
	// implementations never write it after creation.
	UpdateCase(ctx context.Context, c model.Case) error

	// DeleteCase removes a case and all of its tasks.
	DeleteCase(ctx context.Context, tenantID, caseID string) error

	// ListCases returns a tenant's cases, newest first.
	ListCases(ctx context.Context, tenantID string, filters CaseFilters) ([]model.Case, error)

	// MaxCaseSequence returns the highest case-number sequence already
	// assigned to the tenant in the given year, or 0 if none.
	MaxCaseSequence(ctx context.Context, tenantID string, year int) (int, error)

	// CreateTask inserts a single task.
	CreateTask(ctx context.Context, t model.Task) error

	// GetTask retrieves a task by ID, scoped through its owning case.
	GetTask(ctx context.Context, tenantID, taskID string) (model.Task, error)

	// UpdateTask persists an updated task.
	UpdateTask(ctx context.Context, t model.Task) error

	// ListTasks returns a case's tasks. Workflow tasks come first, ordered
	// by order index; manual tasks follow, ordered by creation time. With
	// workflowOnly set, manual tasks are omitted.
	ListTasks(ctx context.Context, tenantID, caseID string, workflowOnly bool) ([]model.Task, error)

	// ReplaceWorkflowTasks deletes every workflow task on the case and
	// inserts the given tasks, as a single atomic unit of work. A
	// concurrent reader never observes the intermediate empty state.
	ReplaceWorkflowTasks(ctx context.Context, tenantID, caseID string, tasks []model.Task) error

	// DeleteWorkflowTasks removes all workflow tasks on the case and
	// returns how many were removed. Manual tasks are untouched.
	DeleteWorkflowTasks(ctx context.Context, tenantID, caseID string) (int, error)

	// CountTasksForTemplate returns how many tasks reference the template.
	// Used as the referential guard for template deletion.
	CountTasksForTemplate(ctx context.Context, templateID string) (int, error)

	// CreateTemplate inserts a new workflow template.
	CreateTemplate(ctx context.Context, tpl model.WorkflowTemplate) error

	// GetTemplate retrieves a template by ID. Ordinary tenants see global
	// templates and their own; superadmins see all.
	GetTemplate(ctx context.Context, tenantID string, superAdmin bool, templateID string) (model.WorkflowTemplate, error)

	// UpdateTemplate persists an updated template.
	UpdateTemplate(ctx context.Context, tpl model.WorkflowTemplate) error

	// DeleteTemplate removes a template. The referential guard is the
	// caller's responsibility (CountTasksForTemplate).
	DeleteTemplate(ctx context.Context, templateID string) error

	// ListTemplates returns templates visible to the tenant (global plus
	// tenant-owned), or every template for superadmins.
	ListTemplates(ctx context.Context, tenantID string, superAdmin bool) ([]model.WorkflowTemplate, error)

	// FindTemplates returns the active templates for a benefit type that
	// are visible to the tenant: global ones plus the tenant's own.
	FindTemplates(ctx context.Context, tenantID, benefitType string) ([]model.WorkflowTemplate, error)
}
