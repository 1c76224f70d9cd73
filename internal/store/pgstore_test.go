package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsDuplicateCaseNumber(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "cases_case_number_key"}
	if !isDuplicateCaseNumber(dup) {
		t.Error("case_number unique violation not recognized")
	}
	if !isDuplicateCaseNumber(fmt.Errorf("insert case: %w", dup)) {
		t.Error("wrapped violation not recognized")
	}

	// Only the case_number constraint counts. A primary key collision must
	// surface to the caller, not turn into an allocation retry.
	pk := &pgconn.PgError{Code: "23505", ConstraintName: "cases_pkey"}
	if isDuplicateCaseNumber(pk) {
		t.Error("id collision treated as a case number conflict")
	}
	if isDuplicateCaseNumber(errors.New("connection reset")) {
		t.Error("plain error treated as a case number conflict")
	}
	if isDuplicateCaseNumber(nil) {
		t.Error("nil error treated as a case number conflict")
	}
}

// taskRowStub satisfies pgx.Row; it fills the required_documents column and
// leaves everything else at its zero value.
type taskRowStub struct {
	docs []byte
}

func (r taskRowStub) Scan(dest ...any) error {
	for _, d := range dest {
		if p, ok := d.(*[]byte); ok {
			*p = r.docs
		}
	}
	return nil
}

func TestScanTask_requiredDocuments(t *testing.T) {
	task, err := scanTask(taskRowStub{docs: []byte(`["rg","cpf"]`)})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(task.RequiredDocuments) != 2 {
		t.Errorf("got %d documents, want 2", len(task.RequiredDocuments))
	}

	if _, err := scanTask(taskRowStub{docs: []byte(`{broken`)}); err == nil {
		t.Error("malformed documents column must fail the scan")
	}
}
