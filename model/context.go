package model

import (
	"context"
	"errors"
	"fmt"
)

// RequestContext carries the identity and tenancy information for the
// lifetime of an authenticated request. It is immutable after construction
// and safe for concurrent reads. Every core operation takes it explicitly;
// there is no ambient session state.
type RequestContext struct {
	SubjectID     string
	TenantID      string
	SuperAdmin    bool
	CorrelationID string
}

// Validate checks that all mandatory fields are present. TenantID must be
// non-empty for ordinary callers; superadmins may operate without one.
func (rc *RequestContext) Validate() error {
	var errs []error
	if rc.SubjectID == "" {
		errs = append(errs, fmt.Errorf("SubjectID is required"))
	}
	if rc.TenantID == "" && !rc.SuperAdmin {
		errs = append(errs, fmt.Errorf("TenantID is required"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

type contextKey struct{}

// WithRequestContext attaches a RequestContext to the given context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom extracts the RequestContext from the context, or returns
// nil if not present.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}
