package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juridia/caseflow/internal/observability"
	"github.com/juridia/caseflow/internal/store"
	"github.com/juridia/caseflow/model"
)

// Materializer turns a template's task specs into concrete workflow tasks on
// a case.
type Materializer struct {
	store       store.Store
	logger      *zap.Logger
	gracePeriod time.Duration
}

// NewMaterializer creates a materializer. gracePeriod sets how far in the
// future materialized tasks fall due.
func NewMaterializer(st store.Store, logger *zap.Logger, gracePeriod time.Duration) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{store: st, logger: logger, gracePeriod: gracePeriod}
}

// MaterializationResult reports what a materialization did.
type MaterializationResult struct {
	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_name"`
	TasksCreated int    `json:"tasks_created"`
}

// Materialize replaces the case's workflow tasks with fresh ones built from
// the template. Specs are ordered by their order index and renumbered
// contiguously from 1, so gaps in the template don't leak into the case.
// Manual tasks on the case are untouched.
func (m *Materializer) Materialize(ctx context.Context, rc model.RequestContext, c model.Case, tpl model.WorkflowTemplate, now time.Time) (MaterializationResult, error) {
	specs := make([]model.TaskSpec, len(tpl.Tasks))
	copy(specs, tpl.Tasks)
	sort.SliceStable(specs, func(i, j int) bool {
		return specs[i].OrderIndex < specs[j].OrderIndex
	})

	now = now.UTC()
	due := now.Add(m.gracePeriod)
	tasks := make([]model.Task, 0, len(specs))
	for i, spec := range specs {
		tasks = append(tasks, model.Task{
			ID:                uuid.NewString(),
			CaseID:            c.ID,
			Title:             spec.Title,
			Description:       spec.Description,
			Status:            model.TaskStatusPending,
			Priority:          model.TaskPriorityMedium,
			DueDate:           due,
			CreatedBy:         rc.SubjectID,
			IsWorkflowTask:    true,
			SourceTemplateID:  tpl.ID,
			OrderIndex:        i + 1,
			RequiredDocuments: spec.RequiredDocuments,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	if err := m.store.ReplaceWorkflowTasks(ctx, c.TenantID, c.ID, tasks); err != nil {
		return MaterializationResult{}, err
	}

	observability.RequestLogger(ctx, m.logger).Info("workflow tasks materialized",
		zap.String("case_id", c.ID),
		zap.String("template_id", tpl.ID),
		zap.Int("tasks_created", len(tasks)),
	)

	return MaterializationResult{
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		TasksCreated: len(tasks),
	}, nil
}
