package workflow

import (
	"context"

	"github.com/juridia/caseflow/internal/store"
	"github.com/juridia/caseflow/model"
)

// Resolver picks the workflow template that applies to a tenant and benefit
// type.
type Resolver struct {
	store store.Store
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve returns the winning active template for the tenant and benefit
// type. Tenant-owned templates beat global ones; within a tier the most
// recently updated wins. ok=false with a nil error means no template is
// defined, which is a normal outcome, not a failure.
func (r *Resolver) Resolve(ctx context.Context, tenantID, benefitType string) (model.WorkflowTemplate, bool, error) {
	candidates, err := r.store.FindTemplates(ctx, tenantID, benefitType)
	if err != nil {
		return model.WorkflowTemplate{}, false, err
	}
	if len(candidates) == 0 {
		return model.WorkflowTemplate{}, false, nil
	}

	best := candidates[0]
	for _, tpl := range candidates[1:] {
		if better(tpl, best) {
			best = tpl
		}
	}
	return best, true, nil
}

func better(a, b model.WorkflowTemplate) bool {
	aOwned := !a.Scope.IsGlobal()
	bOwned := !b.Scope.IsGlobal()
	if aOwned != bOwned {
		return aOwned
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}
