package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juridia/caseflow/internal/observability"
	"github.com/juridia/caseflow/internal/store"
	"github.com/juridia/caseflow/model"
)

// TemplateService administers workflow templates: CRUD, the active-flag
// toggle, and the referential guard on deletion.
type TemplateService struct {
	store  store.Store
	logger *zap.Logger
}

// NewTemplateService creates a template service.
func NewTemplateService(st store.Store, logger *zap.Logger) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{store: st, logger: logger}
}

// CreateTemplateInput is the payload for creating a template.
type CreateTemplateInput struct {
	BenefitType string           `json:"benefit_type"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Tasks       []model.TaskSpec `json:"tasks"`
	Global      bool             `json:"global"`
}

// UpdateTemplateInput is the payload for a partial template update. Nil
// fields are left unchanged.
type UpdateTemplateInput struct {
	BenefitType *string           `json:"benefit_type"`
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Tasks       *[]model.TaskSpec `json:"tasks"`
	Active      *bool             `json:"active"`
}

func validateTemplateTasks(specs []model.TaskSpec) []model.FieldError {
	var details []model.FieldError
	if len(specs) == 0 {
		details = append(details, model.FieldError{
			Field: "tasks", Code: "required", Message: "a template needs at least one task",
		})
		return details
	}
	for i, spec := range specs {
		if strings.TrimSpace(spec.Title) == "" {
			details = append(details, model.FieldError{
				Field:   fmt.Sprintf("tasks[%d].title", i),
				Code:    "required",
				Message: "task title is required",
			})
		}
	}
	return details
}

// Create validates and stores a new template. Only superadmins may create
// global templates; everyone else creates tenant-owned ones.
func (s *TemplateService) Create(ctx context.Context, rc model.RequestContext, in CreateTemplateInput) (model.WorkflowTemplate, error) {
	var details []model.FieldError
	if strings.TrimSpace(in.BenefitType) == "" {
		details = append(details, model.FieldError{
			Field: "benefit_type", Code: "required", Message: "benefit type is required",
		})
	}
	if strings.TrimSpace(in.Name) == "" {
		details = append(details, model.FieldError{
			Field: "name", Code: "required", Message: "name is required",
		})
	}
	details = append(details, validateTemplateTasks(in.Tasks)...)
	if len(details) > 0 {
		return model.WorkflowTemplate{}, model.NewValidationError(details)
	}

	scope := model.TenantScope(rc.TenantID)
	if in.Global {
		if !rc.SuperAdmin {
			return model.WorkflowTemplate{}, model.NewForbiddenError(
				"only superadmins may create global templates",
			)
		}
		scope = model.GlobalScope()
	}

	now := time.Now().UTC()
	tpl := model.WorkflowTemplate{
		ID:          uuid.NewString(),
		BenefitType: in.BenefitType,
		Name:        in.Name,
		Description: in.Description,
		Tasks:       in.Tasks,
		Active:      true,
		Scope:       scope,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTemplate(ctx, tpl); err != nil {
		return model.WorkflowTemplate{}, err
	}

	observability.RequestLogger(ctx, s.logger).Info("template created",
		zap.String("template_id", tpl.ID),
		zap.String("benefit_type", tpl.BenefitType),
		zap.String("scope", tpl.Scope.String()),
	)
	return tpl, nil
}

// Get retrieves a template visible to the caller.
func (s *TemplateService) Get(ctx context.Context, rc model.RequestContext, templateID string) (model.WorkflowTemplate, error) {
	return s.store.GetTemplate(ctx, rc.TenantID, rc.SuperAdmin, templateID)
}

// List returns the templates visible to the caller.
func (s *TemplateService) List(ctx context.Context, rc model.RequestContext) ([]model.WorkflowTemplate, error) {
	return s.store.ListTemplates(ctx, rc.TenantID, rc.SuperAdmin)
}

// Update applies a partial update. Editing a global template requires
// superadmin; editing a tenant-owned one requires owning it.
func (s *TemplateService) Update(ctx context.Context, rc model.RequestContext, templateID string, in UpdateTemplateInput) (model.WorkflowTemplate, error) {
	tpl, err := s.store.GetTemplate(ctx, rc.TenantID, rc.SuperAdmin, templateID)
	if err != nil {
		return model.WorkflowTemplate{}, err
	}
	if err := s.requireEditable(rc, tpl); err != nil {
		return model.WorkflowTemplate{}, err
	}

	if in.BenefitType != nil {
		if strings.TrimSpace(*in.BenefitType) == "" {
			return model.WorkflowTemplate{}, model.NewValidationError([]model.FieldError{
				{Field: "benefit_type", Code: "required", Message: "benefit type cannot be empty"},
			})
		}
		tpl.BenefitType = *in.BenefitType
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return model.WorkflowTemplate{}, model.NewValidationError([]model.FieldError{
				{Field: "name", Code: "required", Message: "name cannot be empty"},
			})
		}
		tpl.Name = *in.Name
	}
	if in.Description != nil {
		tpl.Description = *in.Description
	}
	if in.Tasks != nil {
		if details := validateTemplateTasks(*in.Tasks); len(details) > 0 {
			return model.WorkflowTemplate{}, model.NewValidationError(details)
		}
		tpl.Tasks = *in.Tasks
	}
	if in.Active != nil {
		tpl.Active = *in.Active
	}
	tpl.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateTemplate(ctx, tpl); err != nil {
		return model.WorkflowTemplate{}, err
	}
	return tpl, nil
}

// Toggle flips the template's active flag and returns the updated template.
func (s *TemplateService) Toggle(ctx context.Context, rc model.RequestContext, templateID string) (model.WorkflowTemplate, error) {
	tpl, err := s.store.GetTemplate(ctx, rc.TenantID, rc.SuperAdmin, templateID)
	if err != nil {
		return model.WorkflowTemplate{}, err
	}
	if err := s.requireEditable(rc, tpl); err != nil {
		return model.WorkflowTemplate{}, err
	}

	tpl.Active = !tpl.Active
	tpl.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateTemplate(ctx, tpl); err != nil {
		return model.WorkflowTemplate{}, err
	}

	observability.RequestLogger(ctx, s.logger).Info("template toggled",
		zap.String("template_id", tpl.ID),
		zap.Bool("active", tpl.Active),
	)
	return tpl, nil
}

// Delete removes a template unless any task still references it.
func (s *TemplateService) Delete(ctx context.Context, rc model.RequestContext, templateID string) error {
	tpl, err := s.store.GetTemplate(ctx, rc.TenantID, rc.SuperAdmin, templateID)
	if err != nil {
		return err
	}
	if err := s.requireEditable(rc, tpl); err != nil {
		return err
	}

	count, err := s.store.CountTasksForTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	if count > 0 {
		return model.NewConflictError(fmt.Sprintf(
			"template %q is referenced by %d tasks; deactivate it instead", templateID, count,
		))
	}
	return s.store.DeleteTemplate(ctx, templateID)
}

func (s *TemplateService) requireEditable(rc model.RequestContext, tpl model.WorkflowTemplate) error {
	if rc.SuperAdmin {
		return nil
	}
	if owner, ok := tpl.Scope.Owner(); ok && owner == rc.TenantID {
		return nil
	}
	return model.NewForbiddenError("global templates can only be modified by superadmins")
}
