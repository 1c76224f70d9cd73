// Package cases implements the case lifecycle: sequential case number
// allocation and the coordinator that ties case mutations to workflow
// materialization.
package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/juridia/caseflow/internal/observability"
	"github.com/juridia/caseflow/internal/store"
	"github.com/juridia/caseflow/model"
)

// Allocator assigns case numbers of the form CASE-<year>-<seq> and inserts
// the case in the same step. The store's unique constraint on case_number is
// the source of truth; the allocator seeds a candidate from the tenant's own
// maximum and walks forward past numbers other writers grabbed first.
type Allocator struct {
	store       store.Store
	logger      *zap.Logger
	metrics     *observability.Metrics
	maxAttempts int
	now         func() time.Time
}

// NewAllocator creates an allocator. maxAttempts bounds how many candidate
// numbers a single allocation tries before giving up.
func NewAllocator(st store.Store, logger *zap.Logger, metrics *observability.Metrics, maxAttempts int) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = 100
	}
	return &Allocator{
		store:       st,
		logger:      logger,
		metrics:     metrics,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// AllocateAndCreate assigns the next free case number for the tenant's
// current year and inserts the case. On a duplicate-number collision it
// retries with the next sequence. Returns the stored case with its number
// set.
func (a *Allocator) AllocateAndCreate(ctx context.Context, c model.Case) (model.Case, error) {
	year := a.now().UTC().Year()

	seed, err := a.store.MaxCaseSequence(ctx, c.TenantID, year)
	if err != nil {
		return model.Case{}, fmt.Errorf("seed case sequence: %w", err)
	}

	seq := seed + 1
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if seq > model.MaxCaseSequence {
			a.metrics.RecordAllocationFailure("sequence_exhausted")
			return model.Case{}, model.NewSequenceExhaustedError(fmt.Sprintf(
				"no case numbers left for year %d", year,
			))
		}

		c.CaseNumber = model.FormatCaseNumber(year, seq)
		err := a.store.CreateCase(ctx, c)
		if err == nil {
			a.metrics.RecordCaseCreated(c.TenantID)
			if attempt > 1 {
				observability.RequestLogger(ctx, a.logger).Info("case number allocated after retries",
					zap.String("case_number", c.CaseNumber),
					zap.Int("attempts", attempt),
				)
			}
			return c, nil
		}
		if !errors.Is(err, store.ErrDuplicateCaseNumber) {
			return model.Case{}, err
		}

		a.metrics.RecordAllocationRetry()
		seq++
	}

	a.metrics.RecordAllocationFailure("attempts_exhausted")
	observability.RequestLogger(ctx, a.logger).Warn("case number allocation gave up",
		zap.String("tenant_id", c.TenantID),
		zap.Int("max_attempts", a.maxAttempts),
	)
	return model.Case{}, model.NewConflictError(fmt.Sprintf(
		"could not allocate a case number after %d attempts", a.maxAttempts,
	))
}
