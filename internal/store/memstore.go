package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/juridia/caseflow/model"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments. All mutations run under one mutex, which gives the same
// atomicity guarantees the PostgreSQL store gets from transactions.
type MemoryStore struct {
	mu          sync.RWMutex
	cases       map[string]model.Case             // key: case ID
	caseNumbers map[string]string                 // key: case number, value: case ID
	tasks       map[string]model.Task             // key: task ID
	templates   map[string]model.WorkflowTemplate // key: template ID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cases:       make(map[string]model.Case),
		caseNumbers: make(map[string]string),
		tasks:       make(map[string]model.Task),
		templates:   make(map[string]model.WorkflowTemplate),
	}
}

// CreateCase inserts a new case, enforcing global case-number uniqueness.
func (s *MemoryStore) CreateCase(_ context.Context, c model.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cases[c.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("case %q already exists", c.ID))
	}
	if _, taken := s.caseNumbers[c.CaseNumber]; taken {
		return fmt.Errorf("create case %s: %w", c.CaseNumber, ErrDuplicateCaseNumber)
	}

	s.cases[c.ID] = c
	s.caseNumbers[c.CaseNumber] = c.ID
	return nil
}

// GetCase retrieves a case by ID, scoped to tenant.
func (s *MemoryStore) GetCase(_ context.Context, tenantID, caseID string) (model.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCaseLocked(tenantID, caseID)
}

func (s *MemoryStore) getCaseLocked(tenantID, caseID string) (model.Case, error) {
	c, exists := s.cases[caseID]
	if !exists || c.TenantID != tenantID {
		return model.Case{}, model.NewNotFoundError(fmt.Sprintf("case %q not found", caseID))
	}
	return c, nil
}

// UpdateCase persists an updated case. The case number never changes.
func (s *MemoryStore) UpdateCase(_ context.Context, c model.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.cases[c.ID]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("case %q not found", c.ID))
	}
	c.CaseNumber = existing.CaseNumber
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.cases[c.ID] = c
	return nil
}

// DeleteCase removes a case and all of its tasks.
func (s *MemoryStore) DeleteCase(_ context.Context, tenantID, caseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.cases[caseID]
	if !exists || c.TenantID != tenantID {
		return model.NewNotFoundError(fmt.Sprintf("case %q not found", caseID))
	}

	delete(s.cases, caseID)
	delete(s.caseNumbers, c.CaseNumber)
	for id, t := range s.tasks {
		if t.CaseID == caseID {
			delete(s.tasks, id)
		}
	}
	return nil
}

// ListCases returns a tenant's cases, newest first.
func (s *MemoryStore) ListCases(_ context.Context, tenantID string, filters CaseFilters) ([]model.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Case, 0)
	for _, c := range s.cases {
		if c.TenantID != tenantID {
			continue
		}
		if filters.Status != "" && c.Status != filters.Status {
			continue
		}
		if filters.BenefitType != "" && c.BenefitType != filters.BenefitType {
			continue
		}
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// MaxCaseSequence returns the highest sequence assigned to the tenant-year.
func (s *MemoryStore) MaxCaseSequence(_ context.Context, tenantID string, year int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := 0
	for _, c := range s.cases {
		if c.TenantID != tenantID {
			continue
		}
		y, seq, ok := model.ParseCaseNumber(c.CaseNumber)
		if ok && y == year && seq > max {
			max = seq
		}
	}
	return max, nil
}

// CreateTask inserts a single task.
func (s *MemoryStore) CreateTask(_ context.Context, t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("task %q already exists", t.ID))
	}
	s.tasks[t.ID] = t
	return nil
}

// GetTask retrieves a task by ID, scoped through its owning case.
func (s *MemoryStore) GetTask(_ context.Context, tenantID, taskID string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tasks[taskID]
	if !exists {
		return model.Task{}, model.NewNotFoundError(fmt.Sprintf("task %q not found", taskID))
	}
	if _, err := s.getCaseLocked(tenantID, t.CaseID); err != nil {
		return model.Task{}, model.NewNotFoundError(fmt.Sprintf("task %q not found", taskID))
	}
	return t, nil
}

// UpdateTask persists an updated task.
func (s *MemoryStore) UpdateTask(_ context.Context, t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.tasks[t.ID]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("task %q not found", t.ID))
	}
	t.CaseID = existing.CaseID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.tasks[t.ID] = t
	return nil
}

// ListTasks returns a case's tasks in workflow order.
func (s *MemoryStore) ListTasks(_ context.Context, tenantID, caseID string, workflowOnly bool) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getCaseLocked(tenantID, caseID); err != nil {
		return nil, err
	}

	result := make([]model.Task, 0)
	for _, t := range s.tasks {
		if t.CaseID != caseID {
			continue
		}
		if workflowOnly && !t.IsWorkflowTask {
			continue
		}
		result = append(result, t)
	}
	sortTasks(result)
	return result, nil
}

// ReplaceWorkflowTasks swaps the case's workflow task set atomically.
func (s *MemoryStore) ReplaceWorkflowTasks(_ context.Context, tenantID, caseID string, tasks []model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getCaseLocked(tenantID, caseID); err != nil {
		return err
	}

	for id, t := range s.tasks {
		if t.CaseID == caseID && t.IsWorkflowTask {
			delete(s.tasks, id)
		}
	}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return nil
}

// DeleteWorkflowTasks removes all workflow tasks on the case.
func (s *MemoryStore) DeleteWorkflowTasks(_ context.Context, tenantID, caseID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getCaseLocked(tenantID, caseID); err != nil {
		return 0, err
	}

	removed := 0
	for id, t := range s.tasks {
		if t.CaseID == caseID && t.IsWorkflowTask {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed, nil
}

// CountTasksForTemplate returns how many tasks reference the template.
func (s *MemoryStore) CountTasksForTemplate(_ context.Context, templateID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, t := range s.tasks {
		if t.SourceTemplateID == templateID {
			count++
		}
	}
	return count, nil
}

// CreateTemplate inserts a new workflow template.
func (s *MemoryStore) CreateTemplate(_ context.Context, tpl model.WorkflowTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[tpl.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("template %q already exists", tpl.ID))
	}
	s.templates[tpl.ID] = tpl
	return nil
}

// GetTemplate retrieves a template, honoring tenant visibility.
func (s *MemoryStore) GetTemplate(_ context.Context, tenantID string, superAdmin bool, templateID string) (model.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, exists := s.templates[templateID]
	if !exists || (!superAdmin && !tpl.Scope.VisibleTo(tenantID)) {
		return model.WorkflowTemplate{}, model.NewNotFoundError(
			fmt.Sprintf("workflow template %q not found", templateID),
		)
	}
	return tpl, nil
}

// UpdateTemplate persists an updated template.
func (s *MemoryStore) UpdateTemplate(_ context.Context, tpl model.WorkflowTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.templates[tpl.ID]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("workflow template %q not found", tpl.ID))
	}
	tpl.CreatedAt = existing.CreatedAt
	tpl.UpdatedAt = time.Now().UTC()
	s.templates[tpl.ID] = tpl
	return nil
}

// DeleteTemplate removes a template.
func (s *MemoryStore) DeleteTemplate(_ context.Context, templateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[templateID]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("workflow template %q not found", templateID))
	}
	delete(s.templates, templateID)
	return nil
}

// ListTemplates returns templates visible to the tenant.
func (s *MemoryStore) ListTemplates(_ context.Context, tenantID string, superAdmin bool) ([]model.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.WorkflowTemplate, 0)
	for _, tpl := range s.templates {
		if superAdmin || tpl.Scope.VisibleTo(tenantID) {
			result = append(result, tpl)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].BenefitType != result[j].BenefitType {
			return result[i].BenefitType < result[j].BenefitType
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// FindTemplates returns active templates for a benefit type visible to the
// tenant.
func (s *MemoryStore) FindTemplates(_ context.Context, tenantID, benefitType string) ([]model.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.WorkflowTemplate, 0)
	for _, tpl := range s.templates {
		if !tpl.Active || tpl.BenefitType != benefitType {
			continue
		}
		if !tpl.Scope.VisibleTo(tenantID) {
			continue
		}
		result = append(result, tpl)
	}
	return result, nil
}

// sortTasks orders workflow tasks first by order index, then manual tasks by
// creation time.
func sortTasks(tasks []model.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.IsWorkflowTask != b.IsWorkflowTask {
			return a.IsWorkflowTask
		}
		if a.IsWorkflowTask {
			return a.OrderIndex < b.OrderIndex
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
