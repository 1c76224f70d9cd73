package cases

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juridia/caseflow/internal/observability"
	"github.com/juridia/caseflow/internal/store"
	"github.com/juridia/caseflow/internal/workflow"
	"github.com/juridia/caseflow/model"
)

// Coordinator drives the case lifecycle. Every case mutation that touches the
// benefit type flows through it so the workflow task set always reflects the
// last committed benefit type.
type Coordinator struct {
	store        store.Store
	allocator    *Allocator
	resolver     *workflow.Resolver
	materializer *workflow.Materializer
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewCoordinator creates a coordinator.
func NewCoordinator(st store.Store, allocator *Allocator, resolver *workflow.Resolver, materializer *workflow.Materializer, logger *zap.Logger, metrics *observability.Metrics) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:        st,
		allocator:    allocator,
		resolver:     resolver,
		materializer: materializer,
		logger:       logger,
		metrics:      metrics,
		now:          time.Now,
	}
}

// CreateCaseInput is the payload for creating a case.
type CreateCaseInput struct {
	ClientName  string `json:"client_name"`
	ClientCPF   string `json:"client_cpf"`
	BenefitType string `json:"benefit_type"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
	AssignedTo  string `json:"assigned_to"`
}

// UpdateCaseInput is the payload for a partial case update. Nil fields are
// left unchanged. An explicit empty BenefitType clears the benefit type and
// removes the case's workflow tasks.
type UpdateCaseInput struct {
	ClientName  *string `json:"client_name"`
	ClientCPF   *string `json:"client_cpf"`
	BenefitType *string `json:"benefit_type"`
	Status      *string `json:"status"`
	Description *string `json:"description"`
	Notes       *string `json:"notes"`
	AssignedTo  *string `json:"assigned_to"`
}

// TaskView is a task plus its derived overdue flag.
type TaskView struct {
	model.Task
	Overdue bool `json:"overdue"`
}

// Progress summarizes workflow completion for a case.
type Progress struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// CaseView is a case with its tasks and workflow progress.
type CaseView struct {
	model.Case
	Tasks    []TaskView `json:"tasks"`
	Progress Progress   `json:"progress"`
}

// CreateCase allocates a case number, stores the case, and materializes
// workflow tasks when a benefit type with a matching template is provided.
func (co *Coordinator) CreateCase(ctx context.Context, rc model.RequestContext, in CreateCaseInput) (CaseView, error) {
	var details []model.FieldError
	if strings.TrimSpace(in.ClientName) == "" {
		details = append(details, model.FieldError{
			Field: "client_name", Code: "required", Message: "client name is required",
		})
	}
	if len(details) > 0 {
		return CaseView{}, model.NewValidationError(details)
	}

	now := co.now().UTC()
	c := model.Case{
		ID:          uuid.NewString(),
		TenantID:    rc.TenantID,
		ClientName:  in.ClientName,
		ClientCPF:   in.ClientCPF,
		BenefitType: in.BenefitType,
		Status:      model.CaseStatusPending,
		Description: in.Description,
		Notes:       in.Notes,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   rc.SubjectID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	c, err := co.allocator.AllocateAndCreate(ctx, c)
	if err != nil {
		return CaseView{}, err
	}

	observability.RequestLogger(ctx, co.logger).Info("case created",
		zap.String("case_id", c.ID),
		zap.String("case_number", c.CaseNumber),
	)

	if c.BenefitType != "" {
		if err := co.applyTemplate(ctx, rc, c); err != nil {
			return CaseView{}, err
		}
	}
	return co.view(ctx, rc, c)
}

// GetCase returns a case with its tasks.
func (co *Coordinator) GetCase(ctx context.Context, rc model.RequestContext, caseID string) (CaseView, error) {
	c, err := co.store.GetCase(ctx, rc.TenantID, caseID)
	if err != nil {
		return CaseView{}, err
	}
	return co.view(ctx, rc, c)
}

// ListCases returns the tenant's cases.
func (co *Coordinator) ListCases(ctx context.Context, rc model.RequestContext, filters store.CaseFilters) ([]model.Case, error) {
	if filters.Status != "" && !model.ValidCaseStatus(filters.Status) {
		return nil, model.NewValidationError([]model.FieldError{
			{Field: "status", Code: "invalid", Message: "unknown case status " + filters.Status},
		})
	}
	return co.store.ListCases(ctx, rc.TenantID, filters)
}

// UpdateCase applies a partial update. A benefit type change triggers the
// re-materialization policy: a new type with a template rebuilds the workflow
// task set, a new type without one keeps the old tasks, and clearing the type
// deletes all workflow tasks. Manual tasks are never touched.
func (co *Coordinator) UpdateCase(ctx context.Context, rc model.RequestContext, caseID string, in UpdateCaseInput) (CaseView, error) {
	c, err := co.store.GetCase(ctx, rc.TenantID, caseID)
	if err != nil {
		return CaseView{}, err
	}

	if in.Status != nil && !model.ValidCaseStatus(*in.Status) {
		return CaseView{}, model.NewValidationError([]model.FieldError{
			{Field: "status", Code: "invalid", Message: "unknown case status " + *in.Status},
		})
	}
	if in.ClientName != nil && strings.TrimSpace(*in.ClientName) == "" {
		return CaseView{}, model.NewValidationError([]model.FieldError{
			{Field: "client_name", Code: "required", Message: "client name cannot be empty"},
		})
	}

	oldBenefitType := c.BenefitType
	if in.ClientName != nil {
		c.ClientName = *in.ClientName
	}
	if in.ClientCPF != nil {
		c.ClientCPF = *in.ClientCPF
	}
	if in.BenefitType != nil {
		c.BenefitType = *in.BenefitType
	}
	if in.Status != nil {
		c.Status = *in.Status
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Notes != nil {
		c.Notes = *in.Notes
	}
	if in.AssignedTo != nil {
		c.AssignedTo = *in.AssignedTo
	}
	c.UpdatedAt = co.now().UTC()

	if err := co.store.UpdateCase(ctx, c); err != nil {
		return CaseView{}, err
	}

	if in.BenefitType != nil {
		if err := co.reconcileWorkflow(ctx, rc, c, oldBenefitType); err != nil {
			return CaseView{}, err
		}
	}
	return co.view(ctx, rc, c)
}

// DeleteCase removes a case and all of its tasks.
func (co *Coordinator) DeleteCase(ctx context.Context, rc model.RequestContext, caseID string) error {
	if err := co.store.DeleteCase(ctx, rc.TenantID, caseID); err != nil {
		return err
	}
	observability.RequestLogger(ctx, co.logger).Info("case deleted",
		zap.String("case_id", caseID),
	)
	return nil
}

// ListTasks returns a case's tasks with derived fields.
func (co *Coordinator) ListTasks(ctx context.Context, rc model.RequestContext, caseID string, workflowOnly bool) ([]TaskView, error) {
	tasks, err := co.store.ListTasks(ctx, rc.TenantID, caseID, workflowOnly)
	if err != nil {
		return nil, err
	}
	return co.taskViews(tasks), nil
}

// CreateTaskInput is the payload for creating a manual task.
type CreateTaskInput struct {
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Priority          string    `json:"priority"`
	DueDate           time.Time `json:"due_date"`
	AssignedTo        string    `json:"assigned_to"`
	RequiredDocuments []string  `json:"required_documents"`
	Notes             string    `json:"notes"`
}

// CreateManualTask adds a non-workflow task to a case. Manual tasks carry no
// order index and survive every materialization.
func (co *Coordinator) CreateManualTask(ctx context.Context, rc model.RequestContext, caseID string, in CreateTaskInput) (TaskView, error) {
	if _, err := co.store.GetCase(ctx, rc.TenantID, caseID); err != nil {
		return TaskView{}, err
	}

	now := co.now().UTC()
	var details []model.FieldError
	if strings.TrimSpace(in.Title) == "" {
		details = append(details, model.FieldError{
			Field: "title", Code: "required", Message: "title is required",
		})
	}
	if in.Priority == "" {
		in.Priority = model.TaskPriorityMedium
	} else if !model.ValidTaskPriority(in.Priority) {
		details = append(details, model.FieldError{
			Field: "priority", Code: "invalid", Message: "unknown priority " + in.Priority,
		})
	}
	if !in.DueDate.IsZero() && in.DueDate.Before(now) {
		details = append(details, model.FieldError{
			Field: "due_date", Code: "invalid", Message: "due date must be in the future",
		})
	}
	if len(details) > 0 {
		return TaskView{}, model.NewValidationError(details)
	}

	t := model.Task{
		ID:                uuid.NewString(),
		CaseID:            caseID,
		Title:             in.Title,
		Description:       in.Description,
		Status:            model.TaskStatusPending,
		Priority:          in.Priority,
		DueDate:           in.DueDate,
		AssignedTo:        in.AssignedTo,
		CreatedBy:         rc.SubjectID,
		RequiredDocuments: in.RequiredDocuments,
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := co.store.CreateTask(ctx, t); err != nil {
		return TaskView{}, err
	}
	return TaskView{Task: t, Overdue: t.Overdue(now)}, nil
}

// UpdateTaskStatus runs the task state machine. The returned warning is
// non-empty when the request was a no-op (the task already had the requested
// status).
func (co *Coordinator) UpdateTaskStatus(ctx context.Context, rc model.RequestContext, taskID, status string) (TaskView, string, error) {
	t, err := co.store.GetTask(ctx, rc.TenantID, taskID)
	if err != nil {
		return TaskView{}, "", err
	}

	now := co.now().UTC()
	from := t.Status
	updated, warning, err := workflow.Transition(t, status, now)
	if err != nil {
		return TaskView{}, "", err
	}
	if warning != "" {
		observability.RequestLogger(ctx, co.logger).Warn("task status no-op",
			zap.String("task_id", taskID),
			zap.String("status", status),
		)
		return TaskView{Task: updated, Overdue: updated.Overdue(now)}, warning, nil
	}

	if err := co.store.UpdateTask(ctx, updated); err != nil {
		return TaskView{}, "", err
	}
	co.metrics.RecordTaskTransition(from, status)
	observability.RequestLogger(ctx, co.logger).Info("task status changed",
		zap.String("task_id", taskID),
		zap.String("from", from),
		zap.String("to", status),
	)
	return TaskView{Task: updated, Overdue: updated.Overdue(now)}, "", nil
}

// TenantProgress aggregates workflow completion across the tenant's cases.
type TenantProgress struct {
	Cases   []CaseProgress `json:"cases"`
	Overall Progress       `json:"overall"`
}

// CaseProgress is one case's workflow completion summary.
type CaseProgress struct {
	CaseID     string   `json:"case_id"`
	CaseNumber string   `json:"case_number"`
	ClientName string   `json:"client_name"`
	Progress   Progress `json:"progress"`
}

// ProgressReport computes per-case and tenant-wide workflow completion.
func (co *Coordinator) ProgressReport(ctx context.Context, rc model.RequestContext) (TenantProgress, error) {
	all, err := co.store.ListCases(ctx, rc.TenantID, store.CaseFilters{})
	if err != nil {
		return TenantProgress{}, err
	}

	report := TenantProgress{Cases: make([]CaseProgress, 0, len(all))}
	totalDone, totalTasks := 0, 0
	for _, c := range all {
		tasks, err := co.store.ListTasks(ctx, rc.TenantID, c.ID, true)
		if err != nil {
			return TenantProgress{}, err
		}
		p := progressOf(tasks)
		totalDone += p.Completed
		totalTasks += p.Total
		report.Cases = append(report.Cases, CaseProgress{
			CaseID:     c.ID,
			CaseNumber: c.CaseNumber,
			ClientName: c.ClientName,
			Progress:   p,
		})
	}
	report.Overall = Progress{Completed: totalDone, Total: totalTasks}
	if totalTasks > 0 {
		report.Overall.Percentage = float64(totalDone) / float64(totalTasks) * 100
	}
	return report, nil
}

// applyTemplate resolves and materializes the case's benefit type. A missing
// template is not an error; the benefit type stays recorded and any existing
// workflow tasks stay in place.
func (co *Coordinator) applyTemplate(ctx context.Context, rc model.RequestContext, c model.Case) error {
	tpl, ok, err := co.resolver.Resolve(ctx, rc.TenantID, c.BenefitType)
	if err != nil {
		return err
	}
	if !ok {
		observability.RequestLogger(ctx, co.logger).Info("no template for benefit type",
			zap.String("case_id", c.ID),
			zap.String("benefit_type", c.BenefitType),
		)
		return nil
	}

	result, err := co.materializer.Materialize(ctx, rc, c, tpl, co.now())
	if err != nil {
		return err
	}
	co.metrics.RecordTasksMaterialized(c.BenefitType, result.TasksCreated)
	return nil
}

// reconcileWorkflow applies the benefit-type change policy after the case row
// has been updated.
func (co *Coordinator) reconcileWorkflow(ctx context.Context, rc model.RequestContext, c model.Case, oldBenefitType string) error {
	if c.BenefitType == "" {
		removed, err := co.store.DeleteWorkflowTasks(ctx, rc.TenantID, c.ID)
		if err != nil {
			return err
		}
		if removed > 0 {
			observability.RequestLogger(ctx, co.logger).Info("workflow tasks removed with benefit type",
				zap.String("case_id", c.ID),
				zap.Int("removed", removed),
			)
		}
		return nil
	}

	existing, err := co.store.ListTasks(ctx, rc.TenantID, c.ID, true)
	if err != nil {
		return err
	}
	if c.BenefitType == oldBenefitType && len(existing) > 0 {
		return nil
	}
	return co.applyTemplate(ctx, rc, c)
}

func (co *Coordinator) view(ctx context.Context, rc model.RequestContext, c model.Case) (CaseView, error) {
	tasks, err := co.store.ListTasks(ctx, rc.TenantID, c.ID, false)
	if err != nil {
		return CaseView{}, err
	}

	workflowTasks := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsWorkflowTask {
			workflowTasks = append(workflowTasks, t)
		}
	}
	return CaseView{
		Case:     c,
		Tasks:    co.taskViews(tasks),
		Progress: progressOf(workflowTasks),
	}, nil
}

func (co *Coordinator) taskViews(tasks []model.Task) []TaskView {
	now := co.now().UTC()
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, TaskView{Task: t, Overdue: t.Overdue(now)})
	}
	return views
}

func progressOf(workflowTasks []model.Task) Progress {
	p := Progress{Total: len(workflowTasks)}
	for _, t := range workflowTasks {
		if t.Status == model.TaskStatusCompleted {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percentage = float64(p.Completed) / float64(p.Total) * 100
	}
	return p
}
