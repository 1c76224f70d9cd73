package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juridia/caseflow/model"
)

func newCase(id, tenantID, number string) model.Case {
	now := time.Now().UTC()
	return model.Case{
		ID:         id,
		TenantID:   tenantID,
		CaseNumber: number,
		ClientName: "Maria Silva",
		Status:     model.CaseStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMemoryStore_duplicateCaseNumber(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.CreateCase(ctx, newCase("c1", "t1", "CASE-2026-0001")); err != nil {
		t.Fatalf("create first case: %v", err)
	}

	err := s.CreateCase(ctx, newCase("c2", "t2", "CASE-2026-0001"))
	if !errors.Is(err, ErrDuplicateCaseNumber) {
		t.Fatalf("expected ErrDuplicateCaseNumber across tenants, got %v", err)
	}
}

func TestMemoryStore_tenantScoping(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.CreateCase(ctx, newCase("c1", "t1", "CASE-2026-0001")); err != nil {
		t.Fatalf("create case: %v", err)
	}

	if _, err := s.GetCase(ctx, "t2", "c1"); err == nil {
		t.Error("expected not found for foreign tenant")
	}
	if err := s.DeleteCase(ctx, "t2", "c1"); err == nil {
		t.Error("expected not found deleting via foreign tenant")
	}
	if _, err := s.GetCase(ctx, "t1", "c1"); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
}

func TestMemoryStore_maxCaseSequence(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, c := range []model.Case{
		newCase("c1", "t1", "CASE-2026-0003"),
		newCase("c2", "t1", "CASE-2026-0007"),
		newCase("c3", "t1", "CASE-2025-9999"),
		newCase("c4", "t2", "CASE-2026-0042"),
	} {
		if err := s.CreateCase(ctx, c); err != nil {
			t.Fatalf("create %s: %v", c.ID, err)
		}
	}

	max, err := s.MaxCaseSequence(ctx, "t1", 2026)
	if err != nil {
		t.Fatalf("max sequence: %v", err)
	}
	if max != 7 {
		t.Errorf("max sequence = %d, want 7 (per-tenant, per-year)", max)
	}

	max, err = s.MaxCaseSequence(ctx, "t3", 2026)
	if err != nil {
		t.Fatalf("max sequence empty tenant: %v", err)
	}
	if max != 0 {
		t.Errorf("max sequence for empty tenant = %d, want 0", max)
	}
}

func TestMemoryStore_replaceWorkflowTasksKeepsManual(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.CreateCase(ctx, newCase("c1", "t1", "CASE-2026-0001")); err != nil {
		t.Fatalf("create case: %v", err)
	}

	now := time.Now().UTC()
	mk := func(id string, workflow bool, order int) model.Task {
		return model.Task{
			ID: id, CaseID: "c1", Title: "task " + id,
			Status: model.TaskStatusPending, Priority: model.TaskPriorityMedium,
			IsWorkflowTask: workflow, OrderIndex: order,
			CreatedAt: now, UpdatedAt: now,
		}
	}

	for _, task := range []model.Task{mk("w1", true, 1), mk("w2", true, 2), mk("m1", false, 0)} {
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatalf("create task %s: %v", task.ID, err)
		}
	}

	if err := s.ReplaceWorkflowTasks(ctx, "t1", "c1", []model.Task{mk("w3", true, 1)}); err != nil {
		t.Fatalf("replace workflow tasks: %v", err)
	}

	tasks, err := s.ListTasks(ctx, "t1", "c1", false)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2 (new workflow task + manual)", len(tasks))
	}
	if tasks[0].ID != "w3" || tasks[1].ID != "m1" {
		t.Errorf("task order = %s, %s; want w3 then m1", tasks[0].ID, tasks[1].ID)
	}
}

func TestMemoryStore_deleteCaseRemovesTasks(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.CreateCase(ctx, newCase("c1", "t1", "CASE-2026-0001")); err != nil {
		t.Fatalf("create case: %v", err)
	}
	task := model.Task{
		ID: "task1", CaseID: "c1", Title: "gather documents",
		Status: model.TaskStatusPending, Priority: model.TaskPriorityMedium,
	}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := s.DeleteCase(ctx, "t1", "c1"); err != nil {
		t.Fatalf("delete case: %v", err)
	}
	if _, err := s.GetTask(ctx, "t1", "task1"); err == nil {
		t.Error("task survived case deletion")
	}

	// The number is free again once the case is gone.
	if err := s.CreateCase(ctx, newCase("c2", "t1", "CASE-2026-0001")); err != nil {
		t.Errorf("recreate with freed number: %v", err)
	}
}

func TestMemoryStore_findTemplates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	templates := []model.WorkflowTemplate{
		{ID: "g1", BenefitType: "disability", Name: "global", Active: true,
			Scope: model.GlobalScope(), CreatedAt: now, UpdatedAt: now},
		{ID: "o1", BenefitType: "disability", Name: "owned", Active: true,
			Scope: model.TenantScope("t1"), CreatedAt: now, UpdatedAt: now},
		{ID: "x1", BenefitType: "disability", Name: "foreign", Active: true,
			Scope: model.TenantScope("t2"), CreatedAt: now, UpdatedAt: now},
		{ID: "i1", BenefitType: "disability", Name: "inactive", Active: false,
			Scope: model.GlobalScope(), CreatedAt: now, UpdatedAt: now},
		{ID: "b1", BenefitType: "retirement", Name: "other type", Active: true,
			Scope: model.GlobalScope(), CreatedAt: now, UpdatedAt: now},
	}
	for _, tpl := range templates {
		if err := s.CreateTemplate(ctx, tpl); err != nil {
			t.Fatalf("create template %s: %v", tpl.ID, err)
		}
	}

	found, err := s.FindTemplates(ctx, "t1", "disability")
	if err != nil {
		t.Fatalf("find templates: %v", err)
	}
	ids := make(map[string]bool)
	for _, tpl := range found {
		ids[tpl.ID] = true
	}
	if len(found) != 2 || !ids["g1"] || !ids["o1"] {
		t.Errorf("found %v, want exactly g1 and o1", ids)
	}
}

func TestMemoryStore_templateVisibility(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tpl := model.WorkflowTemplate{
		ID: "o1", BenefitType: "disability", Name: "owned",
		Active: true, Scope: model.TenantScope("t1"),
	}
	if err := s.CreateTemplate(ctx, tpl); err != nil {
		t.Fatalf("create template: %v", err)
	}

	if _, err := s.GetTemplate(ctx, "t2", false, "o1"); err == nil {
		t.Error("foreign tenant could read an owned template")
	}
	if _, err := s.GetTemplate(ctx, "t2", true, "o1"); err != nil {
		t.Errorf("superadmin read failed: %v", err)
	}

	listed, err := s.ListTemplates(ctx, "t2", false)
	if err != nil {
		t.Fatalf("list templates: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("foreign tenant sees %d templates, want 0", len(listed))
	}
}
