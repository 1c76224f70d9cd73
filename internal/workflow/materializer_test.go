package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/juridia/caseflow/internal/store"
	"github.com/juridia/caseflow/model"
)

const grace = 7 * 24 * time.Hour

func seedCase(t *testing.T, st store.Store) model.Case {
	t.Helper()
	now := time.Now().UTC()
	c := model.Case{
		ID: "c1", TenantID: "t1", CaseNumber: "CASE-2026-0001",
		ClientName: "Maria Silva", Status: model.CaseStatusPending,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.CreateCase(context.Background(), c); err != nil {
		t.Fatalf("seed case: %v", err)
	}
	return c
}

func TestMaterializer_contiguousOrderFromGappySpecs(t *testing.T) {
	st := store.NewMemoryStore()
	c := seedCase(t, st)
	ctx := context.Background()
	now := time.Now().UTC()

	tpl := model.WorkflowTemplate{
		ID: "tpl1", Name: "disability intake",
		Tasks: []model.TaskSpec{
			{Title: "file petition", OrderIndex: 30},
			{Title: "gather documents", OrderIndex: 5},
			{Title: "medical exam", OrderIndex: 12},
		},
	}

	m := NewMaterializer(st, nil, grace)
	result, err := m.Materialize(ctx, model.RequestContext{TenantID: "t1", SubjectID: "u1"}, c, tpl, now)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if result.TasksCreated != 3 {
		t.Fatalf("TasksCreated = %d, want 3", result.TasksCreated)
	}

	tasks, err := st.ListTasks(ctx, "t1", c.ID, true)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	wantTitles := []string{"gather documents", "medical exam", "file petition"}
	for i, task := range tasks {
		if task.OrderIndex != i+1 {
			t.Errorf("task %d order index = %d, want %d", i, task.OrderIndex, i+1)
		}
		if task.Title != wantTitles[i] {
			t.Errorf("task %d title = %q, want %q", i, task.Title, wantTitles[i])
		}
		if task.Status != model.TaskStatusPending {
			t.Errorf("task %d status = %q", i, task.Status)
		}
		if task.Priority != model.TaskPriorityMedium {
			t.Errorf("task %d priority = %q", i, task.Priority)
		}
		if !task.IsWorkflowTask || task.SourceTemplateID != "tpl1" {
			t.Errorf("task %d missing workflow provenance", i)
		}
		if !task.DueDate.Equal(now.Add(grace)) {
			t.Errorf("task %d due = %v, want now+grace", i, task.DueDate)
		}
	}
}

func TestMaterializer_replacesOldWorkflowSet(t *testing.T) {
	st := store.NewMemoryStore()
	c := seedCase(t, st)
	ctx := context.Background()
	rc := model.RequestContext{TenantID: "t1", SubjectID: "u1"}
	m := NewMaterializer(st, nil, grace)

	three := model.WorkflowTemplate{ID: "tpl3", Tasks: []model.TaskSpec{
		{Title: "a", OrderIndex: 1}, {Title: "b", OrderIndex: 2}, {Title: "c", OrderIndex: 3},
	}}
	if _, err := m.Materialize(ctx, rc, c, three, time.Now()); err != nil {
		t.Fatalf("first materialize: %v", err)
	}

	two := model.WorkflowTemplate{ID: "tpl2", Tasks: []model.TaskSpec{
		{Title: "x", OrderIndex: 1}, {Title: "y", OrderIndex: 2},
	}}
	if _, err := m.Materialize(ctx, rc, c, two, time.Now()); err != nil {
		t.Fatalf("second materialize: %v", err)
	}

	tasks, err := st.ListTasks(ctx, "t1", c.ID, true)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d workflow tasks after re-materialization, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.SourceTemplateID != "tpl2" {
			t.Errorf("task %q still sourced from %q", task.Title, task.SourceTemplateID)
		}
	}
}

func TestMaterializer_emptyTemplateClearsWorkflowTasks(t *testing.T) {
	st := store.NewMemoryStore()
	c := seedCase(t, st)
	ctx := context.Background()
	rc := model.RequestContext{TenantID: "t1"}
	m := NewMaterializer(st, nil, grace)

	one := model.WorkflowTemplate{ID: "tpl1", Tasks: []model.TaskSpec{{Title: "a", OrderIndex: 1}}}
	if _, err := m.Materialize(ctx, rc, c, one, time.Now()); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	empty := model.WorkflowTemplate{ID: "tpl0"}
	result, err := m.Materialize(ctx, rc, c, empty, time.Now())
	if err != nil {
		t.Fatalf("materialize empty: %v", err)
	}
	if result.TasksCreated != 0 {
		t.Errorf("TasksCreated = %d, want 0", result.TasksCreated)
	}

	tasks, err := st.ListTasks(ctx, "t1", c.ID, true)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("got %d workflow tasks, want 0", len(tasks))
	}
}
