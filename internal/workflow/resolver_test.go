package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/juridia/caseflow/internal/store"
	"github.com/juridia/caseflow/model"
)

func seedTemplate(t *testing.T, st store.Store, tpl model.WorkflowTemplate) {
	t.Helper()
	if err := st.CreateTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("seed template %s: %v", tpl.ID, err)
	}
}

func TestResolver_tenantBeatsGlobal(t *testing.T) {
	st := store.NewMemoryStore()
	now := time.Now().UTC()

	seedTemplate(t, st, model.WorkflowTemplate{
		ID: "global", BenefitType: "disability", Name: "global", Active: true,
		Scope: model.GlobalScope(), UpdatedAt: now.Add(time.Hour),
	})
	seedTemplate(t, st, model.WorkflowTemplate{
		ID: "owned", BenefitType: "disability", Name: "owned", Active: true,
		Scope: model.TenantScope("t1"), UpdatedAt: now,
	})

	tpl, ok, err := NewResolver(st).Resolve(context.Background(), "t1", "disability")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || tpl.ID != "owned" {
		t.Errorf("resolved %q, want tenant-owned even when global is newer", tpl.ID)
	}
}

func TestResolver_mostRecentWinsWithinTier(t *testing.T) {
	st := store.NewMemoryStore()
	now := time.Now().UTC()

	seedTemplate(t, st, model.WorkflowTemplate{
		ID: "old", BenefitType: "disability", Name: "old", Active: true,
		Scope: model.GlobalScope(), UpdatedAt: now.Add(-time.Hour),
	})
	seedTemplate(t, st, model.WorkflowTemplate{
		ID: "new", BenefitType: "disability", Name: "new", Active: true,
		Scope: model.GlobalScope(), UpdatedAt: now,
	})

	tpl, ok, err := NewResolver(st).Resolve(context.Background(), "t1", "disability")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || tpl.ID != "new" {
		t.Errorf("resolved %q, want most recently updated", tpl.ID)
	}
}

func TestResolver_noTemplateIsNotAnError(t *testing.T) {
	st := store.NewMemoryStore()

	_, ok, err := NewResolver(st).Resolve(context.Background(), "t1", "unknown-benefit")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ok {
		t.Error("resolved a template for a benefit type with none defined")
	}
}

func TestResolver_ignoresInactiveAndForeign(t *testing.T) {
	st := store.NewMemoryStore()
	now := time.Now().UTC()

	seedTemplate(t, st, model.WorkflowTemplate{
		ID: "inactive", BenefitType: "disability", Name: "inactive", Active: false,
		Scope: model.GlobalScope(), UpdatedAt: now,
	})
	seedTemplate(t, st, model.WorkflowTemplate{
		ID: "foreign", BenefitType: "disability", Name: "foreign", Active: true,
		Scope: model.TenantScope("t2"), UpdatedAt: now,
	})

	_, ok, err := NewResolver(st).Resolve(context.Background(), "t1", "disability")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ok {
		t.Error("resolved from inactive or foreign templates")
	}
}
