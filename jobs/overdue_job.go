package jobs

import (
	"context"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (r *Runner) SweepOverdue(ctx context.Context) error {
	now := r.now()
	r.logger.Info("running job: overdue sweep", zap.Time("now", now))

	return r.forEachBusiness(ctx, models.JobOverdueSweep, now, func(ctx context.Context, businessID uuid.UUID) (outcome, error) {
		res, err := r.sweeper.Sweep(ctx, businessID, now)
		if res == nil {
			return outcome{}, err
		}
		out := outcome{succeeded: res.UpdatedCount + res.Repaired}
		for _, f := range res.Failures {
			feeID := f.FeeID
			out.failures = append(out.failures, models.JobFailure{FeeID: &feeID, Error: f.Error})
		}
		return out, err
	})
}
