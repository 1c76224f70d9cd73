package cases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juridia/caseflow/internal/store"
	"github.com/juridia/caseflow/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAllocator_sequentialNumbers(t *testing.T) {
	st := store.NewMemoryStore()
	a := NewAllocator(st, nil, nil, 100)
	a.now = fixedClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		c, err := a.AllocateAndCreate(ctx, model.Case{
			ID: fmt.Sprintf("c%d", i), TenantID: "t1",
			ClientName: "client", Status: model.CaseStatusPending,
		})
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		want := fmt.Sprintf("CASE-2026-%04d", i)
		if c.CaseNumber != want {
			t.Errorf("case %d number = %q, want %q", i, c.CaseNumber, want)
		}
	}
}

func TestAllocator_skipsForeignNumbers(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	// Another tenant already holds 0001 and 0002.
	for i := 1; i <= 2; i++ {
		err := st.CreateCase(ctx, model.Case{
			ID: fmt.Sprintf("x%d", i), TenantID: "t2",
			CaseNumber: model.FormatCaseNumber(2026, i),
			ClientName: "other", Status: model.CaseStatusPending,
		})
		if err != nil {
			t.Fatalf("seed foreign case: %v", err)
		}
	}

	a := NewAllocator(st, nil, nil, 100)
	a.now = fixedClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	c, err := a.AllocateAndCreate(ctx, model.Case{
		ID: "c1", TenantID: "t1", ClientName: "client", Status: model.CaseStatusPending,
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if c.CaseNumber != "CASE-2026-0003" {
		t.Errorf("number = %q, want CASE-2026-0003 (numbers are globally unique)", c.CaseNumber)
	}
}

func TestAllocator_concurrentAllocationsAreDistinct(t *testing.T) {
	st := store.NewMemoryStore()
	a := NewAllocator(st, nil, nil, 100)
	a.now = fixedClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	numbers := make([]string, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := a.AllocateAndCreate(ctx, model.Case{
				ID: fmt.Sprintf("c%d", i), TenantID: "t1",
				ClientName: "client", Status: model.CaseStatusPending,
			})
			numbers[i] = c.CaseNumber
			errs[i] = err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("allocation %d failed: %v", i, errs[i])
		}
		if seen[numbers[i]] {
			t.Fatalf("duplicate case number %q", numbers[i])
		}
		seen[numbers[i]] = true
	}
}

func TestAllocator_sequenceExhausted(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	if err := st.CreateCase(ctx, model.Case{
		ID: "last", TenantID: "t1",
		CaseNumber: model.FormatCaseNumber(2026, model.MaxCaseSequence),
		ClientName: "client", Status: model.CaseStatusPending,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	a := NewAllocator(st, nil, nil, 100)
	a.now = fixedClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	_, err := a.AllocateAndCreate(ctx, model.Case{
		ID: "c1", TenantID: "t1", ClientName: "client", Status: model.CaseStatusPending,
	})
	var envelope *model.ErrorEnvelope
	if !errors.As(err, &envelope) || envelope.Code != model.ErrSequenceExhausted {
		t.Errorf("got %v, want SEQUENCE_EXHAUSTED", err)
	}
}

func TestAllocator_boundedAttempts(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	// t1 sees max=0, but t2 holds 0001..0005, so every candidate collides.
	for i := 1; i <= 5; i++ {
		if err := st.CreateCase(ctx, model.Case{
			ID: fmt.Sprintf("x%d", i), TenantID: "t2",
			CaseNumber: model.FormatCaseNumber(2026, i),
			ClientName: "other", Status: model.CaseStatusPending,
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	a := NewAllocator(st, nil, nil, 3)
	a.now = fixedClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	_, err := a.AllocateAndCreate(ctx, model.Case{
		ID: "c1", TenantID: "t1", ClientName: "client", Status: model.CaseStatusPending,
	})
	var envelope *model.ErrorEnvelope
	if !errors.As(err, &envelope) || envelope.Code != model.ErrConflict {
		t.Errorf("got %v, want CONFLICT after bounded attempts", err)
	}
}
