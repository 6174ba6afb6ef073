// Package jobs runs the ledger's batch work on a cron schedule, one pass per
// active business.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/services"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

// outcome is what one business pass reports back for its JobRun.
type outcome struct {
	succeeded int
	skipped   int
	failures  []models.JobFailure
}

type Runner struct {
	store       store.Store
	generator   *services.FeeGenerator
	sweeper     *services.OverdueSweeper
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

func NewRunner(s store.Store, generator *services.FeeGenerator, sweeper *services.OverdueSweeper, logger *zap.Logger, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:       s,
		generator:   generator,
		sweeper:     sweeper,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Register adds both batch jobs to c.
func (r *Runner) Register(c *cron.Cron, generationSpec, sweepSpec string) error {
	if _, err := c.AddFunc(generationSpec, func() {
		if err := r.GenerateFees(context.Background()); err != nil {
			r.logger.Error("scheduled fee generation finished with errors", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule fee generation %q: %w", generationSpec, err)
	}
	if _, err := c.AddFunc(sweepSpec, func() {
		if err := r.SweepOverdue(context.Background()); err != nil {
			r.logger.Error("scheduled overdue sweep finished with errors", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule overdue sweep %q: %w", sweepSpec, err)
	}
	return nil
}

// History returns the most recent job runs of a business, newest first.
func (r *Runner) History(ctx context.Context, businessID uuid.UUID, limit int) ([]models.JobRun, error) {
	return r.store.ListJobRuns(ctx, businessID, limit)
}

// forEachBusiness runs pass for every active business, a bounded number at a
// time, and records a JobRun for each. A failing business does not stop the
// others; the first failure is returned once all have finished.
func (r *Runner) forEachBusiness(ctx context.Context, kind models.JobKind, target time.Time, pass func(ctx context.Context, businessID uuid.UUID) (outcome, error)) error {
	ids, err := r.store.ListActiveBusinessIDs(ctx)
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			started := r.now()
			out, passErr := pass(ctx, id)

			run := &models.JobRun{
				BusinessID: id,
				Kind:       kind,
				TargetAt:   target,
				StartedAt:  started,
				FinishedAt: r.now(),
				Succeeded:  out.succeeded,
				Skipped:    out.skipped,
				Failed:     len(out.failures),
				Failures:   out.failures,
			}
			if passErr != nil {
				msg := passErr.Error()
				run.Error = &msg
			}
			if err := r.store.CreateJobRun(ctx, run); err != nil {
				r.logger.Warn("failed to record job run",
					zap.String("kind", string(kind)), zap.Stringer("business_id", id), zap.Error(err))
			}
			if passErr != nil {
				return fmt.Errorf("%s for business %s: %w", kind, id, passErr)
			}
			return nil
		})
	}
	return g.Wait()
}
