package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/juridia/caseflow/model"
)

func TestLoggerFrom(t *testing.T) {
	fallback := zap.NewNop()
	if got := LoggerFrom(context.Background(), fallback); got != fallback {
		t.Error("empty context should yield the fallback logger")
	}

	stored := zap.NewNop()
	ctx := WithLogger(context.Background(), stored)
	if got := LoggerFrom(ctx, fallback); got != stored {
		t.Error("stored logger not returned")
	}
}

func TestRequestLogger_identityFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	ctx := model.WithRequestContext(context.Background(), &model.RequestContext{
		TenantID:      "t1",
		SubjectID:     "u1",
		CorrelationID: "c1",
	})
	ctx = WithLogger(ctx, zap.New(core))

	RequestLogger(ctx, zap.NewNop()).Info("case created")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["tenant_id"] != "t1" {
		t.Errorf("tenant_id = %v", fields["tenant_id"])
	}
	if fields["subject_id"] != "u1" {
		t.Errorf("subject_id = %v", fields["subject_id"])
	}
	if fields["correlation_id"] != "c1" {
		t.Errorf("correlation_id = %v", fields["correlation_id"])
	}
	if _, ok := fields["super_admin"]; ok {
		t.Error("super_admin field present for a regular subject")
	}
}

func TestRequestLogger_withoutRequestContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	RequestLogger(ctx, zap.NewNop()).Info("startup")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if len(entries[0].Context) != 0 {
		t.Errorf("unexpected fields: %v", entries[0].ContextMap())
	}
}
