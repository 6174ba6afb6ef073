package services

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SweepFailure struct {
	FeeID uuid.UUID `json:"fee_id"`
	Error string    `json:"error"`
}

type SweepResult struct {
	BusinessID      uuid.UUID      `json:"business_id"`
	UpdatedCount    int            `json:"updated_count"`
	LateFeesApplied int            `json:"late_fees_applied"`
	Repaired        int            `json:"repaired"`
	Failed          int            `json:"failed"`
	Failures        []SweepFailure `json:"failures,omitempty"`
}

type sweepOutcome int

const (
	sweepUntouched sweepOutcome = iota
	sweepOverdue
	sweepOverdueWithLateFee
	sweepRepaired
)

// OverdueSweeper moves unpaid fees past their due date to OVERDUE and adds
// their late fee, at most once per fee.
type OverdueSweeper struct {
	Deps
}

func NewOverdueSweeper(deps Deps) *OverdueSweeper {
	return &OverdueSweeper{Deps: deps.withDefaults()}
}

// Sweep processes every PENDING or PARTIAL fee whose due day ended before
// now. A fee whose payments already cover it is set to PAID instead. Running
// it again on the same day changes nothing.
func (s *OverdueSweeper) Sweep(ctx context.Context, businessID uuid.UUID, now time.Time) (*SweepResult, error) {
	cutoff := dayStart(now)
	candidates, err := s.Store.ListFees(ctx, businessID, store.FeeFilter{
		Statuses:  []models.FeeStatus{models.FeeStatusPending, models.FeeStatusPartial},
		DueBefore: &cutoff,
	})
	if err != nil {
		return nil, err
	}

	result := &SweepResult{BusinessID: businessID}
	log := s.Logger.With(zap.Stringer("business_id", businessID))
	templateLateFees := map[uuid.UUID]*money.Money{}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, err := s.sweepOne(ctx, businessID, candidate.ID, now, templateLateFees)
		if err != nil {
			log.Error("overdue sweep failed for fee", zap.Stringer("fee_id", candidate.ID), zap.Error(err))
			result.Failed++
			result.Failures = append(result.Failures, SweepFailure{FeeID: candidate.ID, Error: err.Error()})
			continue
		}
		switch outcome {
		case sweepOverdueWithLateFee:
			result.LateFeesApplied++
			result.UpdatedCount++
		case sweepOverdue:
			result.UpdatedCount++
		case sweepRepaired:
			result.Repaired++
		}
	}

	if result.UpdatedCount > 0 || result.Repaired > 0 {
		s.invalidateStats(ctx, businessID)
		s.publish(Event{Type: EventOverdueSwept, BusinessID: businessID, Payload: map[string]int{
			"updated_count": result.UpdatedCount,
			"repaired":      result.Repaired,
		}})
	}
	log.Info("overdue sweep finished",
		zap.Int("updated", result.UpdatedCount),
		zap.Int("late_fees", result.LateFeesApplied),
		zap.Int("repaired", result.Repaired),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *OverdueSweeper) sweepOne(ctx context.Context, businessID, feeID uuid.UUID, now time.Time, templateLateFees map[uuid.UUID]*money.Money) (sweepOutcome, error) {
	outcome := sweepUntouched
	err := s.Store.WithinTx(ctx, func(tx store.Store) error {
		fee, err := tx.GetFeeForUpdate(ctx, businessID, feeID)
		if err != nil {
			return err
		}
		if fee.Status != models.FeeStatusPending && fee.Status != models.FeeStatusPartial {
			return nil
		}

		paid, err := tx.SumPayments(ctx, businessID, feeID)
		if err != nil {
			return err
		}
		if paid.GreaterThanOrEqual(fee.Amount) {
			paidAt := fee.PaidAt
			if paidAt == nil {
				paidAt = &now
			}
			if err := tx.UpdateFeeStatus(ctx, fee, models.FeeStatusPaid, paidAt); err != nil {
				return err
			}
			outcome = sweepRepaired
			return nil
		}

		surcharge := money.Zero
		if fee.LateFeeApplied.IsZero() {
			lateFee, err := s.lateFeeFor(ctx, tx, fee, templateLateFees)
			if err != nil {
				return err
			}
			if lateFee != nil {
				surcharge = lateFee.ClampZero()
			}
		}
		marked, err := tx.MarkOverdue(ctx, fee, store.OverdueUpdate{Surcharge: surcharge})
		if err != nil || !marked {
			return err
		}
		outcome = sweepOverdue
		if surcharge.IsPositive() {
			outcome = sweepOverdueWithLateFee
		}
		return nil
	})
	if errors.Is(err, store.ErrConflict) {
		// Someone else moved the fee on; the next sweep sees its new state.
		return sweepUntouched, nil
	}
	return outcome, err
}

// lateFeeFor prefers the fee's own snapshot and falls back to the template's
// current late fee for template fees without one.
func (s *OverdueSweeper) lateFeeFor(ctx context.Context, tx store.Store, fee *models.Fee, templateLateFees map[uuid.UUID]*money.Money) (*money.Money, error) {
	if fee.LateFee != nil || fee.TemplateID == nil {
		return fee.LateFee, nil
	}
	if lf, ok := templateLateFees[*fee.TemplateID]; ok {
		return lf, nil
	}
	t, err := tx.GetTemplate(ctx, fee.BusinessID, *fee.TemplateID)
	if errors.Is(err, store.ErrNotFound) {
		templateLateFees[*fee.TemplateID] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	templateLateFees[*fee.TemplateID] = t.LateFee
	return t.LateFee, nil
}
