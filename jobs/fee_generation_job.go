package jobs

import (
	"context"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerateFees bills the current period of every template in every active
// business.
func (r *Runner) GenerateFees(ctx context.Context) error {
	target := r.now()
	r.logger.Info("running job: fee generation", zap.Time("target", target))

	return r.forEachBusiness(ctx, models.JobFeeGeneration, target, func(ctx context.Context, businessID uuid.UUID) (outcome, error) {
		res, err := r.generator.Generate(ctx, businessID, target)
		if res == nil {
			return outcome{}, err
		}
		out := outcome{succeeded: res.GeneratedCount, skipped: res.SkippedCount}
		for _, f := range res.Failures {
			templateID := f.TemplateID
			out.failures = append(out.failures, models.JobFailure{
				StudentID:  f.StudentID,
				TemplateID: &templateID,
				Error:      f.Error,
			})
		}
		return out, err
	})
}
