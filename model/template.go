package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskSpec is one required task inside a workflow template. The order index
// determines the position of the materialized task within the case workflow.
type TaskSpec struct {
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	RequiredDocuments []string `json:"required_documents,omitempty"`
	OrderIndex        int      `json:"order_index"`
}

// WorkflowTemplate is the declarative list of required tasks for a benefit
// type. Templates are either global (visible to every tenant) or owned by
// exactly one tenant; ownership is expressed by the Scope tagged type.
type WorkflowTemplate struct {
	ID          string        `json:"id"`
	BenefitType string        `json:"benefit_type"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Tasks       []TaskSpec    `json:"tasks"`
	Active      bool          `json:"active"`
	Scope       TemplateScope `json:"scope"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TemplateScope is a two-case tagged type: either Global or owned by a single
// tenant. The zero value is tenant-owned with an empty tenant id, which never
// matches any caller; construct values with GlobalScope or TenantScope.
type TemplateScope struct {
	global   bool
	tenantID string
}

// GlobalScope returns the scope visible to all tenants.
func GlobalScope() TemplateScope {
	return TemplateScope{global: true}
}

// TenantScope returns a scope owned by the given tenant.
func TenantScope(tenantID string) TemplateScope {
	return TemplateScope{tenantID: tenantID}
}

// IsGlobal reports whether the scope is global.
func (s TemplateScope) IsGlobal() bool {
	return s.global
}

// Owner returns the owning tenant id and true for tenant-owned scopes.
func (s TemplateScope) Owner() (string, bool) {
	if s.global {
		return "", false
	}
	return s.tenantID, true
}

// VisibleTo reports whether a caller from the given tenant may see templates
// with this scope.
func (s TemplateScope) VisibleTo(tenantID string) bool {
	return s.global || (s.tenantID != "" && s.tenantID == tenantID)
}

func (s TemplateScope) String() string {
	if s.global {
		return "global"
	}
	return "tenant:" + s.tenantID
}

type scopeJSON struct {
	Type     string `json:"type"`
	TenantID string `json:"tenant_id,omitempty"`
}

// MarshalJSON encodes the scope as {"type":"global"} or
// {"type":"tenant","tenant_id":"..."}.
func (s TemplateScope) MarshalJSON() ([]byte, error) {
	if s.global {
		return json.Marshal(scopeJSON{Type: "global"})
	}
	return json.Marshal(scopeJSON{Type: "tenant", TenantID: s.tenantID})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (s *TemplateScope) UnmarshalJSON(data []byte) error {
	var raw scopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case "global":
		*s = GlobalScope()
	case "tenant":
		if raw.TenantID == "" {
			return fmt.Errorf("template scope: tenant scope requires tenant_id")
		}
		*s = TenantScope(raw.TenantID)
	default:
		return fmt.Errorf("template scope: unknown type %q", raw.Type)
	}
	return nil
}
