package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type GenerationFailure struct {
	StudentID  *uuid.UUID `json:"student_id,omitempty"`
	TemplateID uuid.UUID  `json:"template_id"`
	Error      string     `json:"error"`
}

// GenerationResult summarises one generation run. Failures never abort the
// run; they are reported here.
type GenerationResult struct {
	BusinessID     uuid.UUID           `json:"business_id"`
	TargetDate     time.Time           `json:"target_date"`
	GeneratedCount int                 `json:"generated_count"`
	SkippedCount   int                 `json:"skipped_count"`
	FeeIDs         []uuid.UUID         `json:"fee_ids"`
	Failures       []GenerationFailure `json:"failures,omitempty"`
}

func (r *GenerationResult) FailedCount() int { return len(r.Failures) }

type ManualFeeInput struct {
	StudentID         uuid.UUID
	Title             string
	Category          models.FeeCategory
	Amount            money.Money
	DueDate           time.Time
	LateFee           *money.Money
	CourseID          *uuid.UUID
	ApplyScholarships bool
}

// FeeGenerator turns templates into fees, at most once per student, template
// and billing period.
type FeeGenerator struct {
	Deps
	defaultDueDay int
}

func NewFeeGenerator(deps Deps, defaultDueDay int) *FeeGenerator {
	if defaultDueDay < 1 || defaultDueDay > 31 {
		defaultDueDay = DefaultDueDay
	}
	return &FeeGenerator{Deps: deps.withDefaults(), defaultDueDay: defaultDueDay}
}

// Generate creates the fees of target's billing period for every active
// template (optionally only those with the given recurrences) and every
// eligible student. Fees that already exist are skipped, so re-running it,
// also after a crash half way, never duplicates a charge.
func (g *FeeGenerator) Generate(ctx context.Context, businessID uuid.UUID, target time.Time, only ...models.Recurrence) (*GenerationResult, error) {
	templates, err := g.Store.ListTemplates(ctx, businessID, true)
	if err != nil {
		return nil, fmt.Errorf("list fee templates: %w", err)
	}

	result := &GenerationResult{BusinessID: businessID, TargetDate: target, FeeIDs: []uuid.UUID{}}
	log := g.Logger.With(zap.Stringer("business_id", businessID), zap.Time("target", target))

	for _, t := range templates {
		if len(only) > 0 && !lo.Contains(only, t.Recurrence) {
			continue
		}
		period, err := PeriodKey(t.Recurrence, target)
		if err != nil {
			result.Failures = append(result.Failures, GenerationFailure{TemplateID: t.ID, Error: err.Error()})
			continue
		}
		students, err := g.Store.ListEligibleStudents(ctx, businessID, t.CourseID)
		if err != nil {
			log.Error("failed to list students for template", zap.Stringer("template_id", t.ID), zap.Error(err))
			result.Failures = append(result.Failures, GenerationFailure{TemplateID: t.ID, Error: err.Error()})
			continue
		}

		for _, st := range students {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			feeID, created, err := g.generateOne(ctx, t, st, period, target)
			switch {
			case err != nil:
				studentID := st.ID
				log.Warn("fee generation failed for student",
					zap.Stringer("template_id", t.ID), zap.Stringer("student_id", st.ID), zap.Error(err))
				result.Failures = append(result.Failures, GenerationFailure{
					StudentID:  &studentID,
					TemplateID: t.ID,
					Error:      err.Error(),
				})
			case created:
				result.GeneratedCount++
				result.FeeIDs = append(result.FeeIDs, feeID)
			default:
				result.SkippedCount++
			}
		}
	}

	log.Info("fee generation finished",
		zap.Int("generated", result.GeneratedCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("failed", result.FailedCount()))

	if result.GeneratedCount > 0 {
		g.invalidateStats(ctx, businessID)
		g.publish(Event{Type: EventFeesGenerated, BusinessID: businessID, Payload: map[string]int{
			"generated_count": result.GeneratedCount,
		}})
	}
	return result, nil
}

func (g *FeeGenerator) generateOne(ctx context.Context, t models.FeeTemplate, st models.Student, period string, target time.Time) (feeID uuid.UUID, created bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while generating fee: %v", r)
		}
	}()

	exists, err := g.Store.FeeExistsForPeriod(ctx, t.BusinessID, st.ID, t.ID, period)
	if err != nil {
		return uuid.Nil, false, err
	}
	if exists {
		return uuid.Nil, false, nil
	}

	scholarships, err := g.Store.ListScholarships(ctx, t.BusinessID, st.ID, true)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("load scholarships: %w", err)
	}
	discount := ComputeDiscount(t.Amount, t.Category, scholarships)

	day := g.defaultDueDay
	if t.DayDue != nil {
		day = *t.DayDue
	}

	templateID := t.ID
	fee := &models.Fee{
		BusinessID:      t.BusinessID,
		StudentID:       st.ID,
		TemplateID:      &templateID,
		PeriodKey:       &period,
		Title:           feeTitle(t, period),
		Category:        t.Category,
		Amount:          discount.Final,
		OriginalAmount:  t.Amount,
		DiscountApplied: discount.Discount,
		LateFee:         copyMoney(t.LateFee),
		DueDate:         DueDate(target, day),
		Status:          models.FeeStatusPending,
		CourseID:        t.CourseID,
	}
	if err := g.Store.CreateFee(ctx, fee); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Another run inserted it between our check and insert.
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return fee.ID, true, nil
}

func feeTitle(t models.FeeTemplate, period string) string {
	if period == periodOnce {
		return t.Name
	}
	return fmt.Sprintf("%s %s", t.Name, period)
}

func copyMoney(m *money.Money) *money.Money {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// CreateManualFee records an operator-created charge. It has no template or
// period and never blocks template generation.
func (g *FeeGenerator) CreateManualFee(ctx context.Context, businessID uuid.UUID, in ManualFeeInput) (*models.Fee, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title", "is required")
	}
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if in.DueDate.IsZero() {
		return nil, invalid("due_date", "is required")
	}
	if in.LateFee != nil && in.LateFee.IsNegative() {
		return nil, invalid("late_fee", "must not be negative")
	}
	if _, err := g.Store.GetStudent(ctx, businessID, in.StudentID); err != nil {
		return nil, notFound("student", err)
	}

	category := in.Category
	if category == "" {
		category = models.CategoryOther
	}
	discount := DiscountResult{Final: in.Amount, Discount: money.Zero}
	if in.ApplyScholarships {
		scholarships, err := g.Store.ListScholarships(ctx, businessID, in.StudentID, true)
		if err != nil {
			return nil, err
		}
		discount = ComputeDiscount(in.Amount, category, scholarships)
	}

	fee := &models.Fee{
		BusinessID:      businessID,
		StudentID:       in.StudentID,
		Title:           strings.TrimSpace(in.Title),
		Category:        category,
		Amount:          discount.Final,
		OriginalAmount:  in.Amount,
		DiscountApplied: discount.Discount,
		LateFee:         copyMoney(in.LateFee),
		DueDate:         in.DueDate,
		Status:          models.FeeStatusPending,
		CourseID:        in.CourseID,
	}
	if err := g.Store.CreateFee(ctx, fee); err != nil {
		return nil, err
	}
	g.invalidateStats(ctx, businessID)
	return fee, nil
}

// VoidFee cancels a fee nobody has paid anything against. Fees are never
// deleted.
func (g *FeeGenerator) VoidFee(ctx context.Context, businessID, feeID uuid.UUID) (*models.Fee, error) {
	var voided *models.Fee
	err := g.Store.WithinTx(ctx, func(tx store.Store) error {
		fee, err := tx.GetFeeForUpdate(ctx, businessID, feeID)
		if err != nil {
			return notFound("fee", err)
		}
		if fee.Status == models.FeeStatusVoid {
			voided = fee
			return nil
		}
		count, err := tx.CountPayments(ctx, businessID, feeID)
		if err != nil {
			return err
		}
		if count > 0 || fee.Status == models.FeeStatusPaid {
			return ErrFeeHasPayments
		}
		if err := tx.UpdateFeeStatus(ctx, fee, models.FeeStatusVoid, nil); err != nil {
			return err
		}
		voided = fee
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrConcurrencyConflict
		}
		return nil, err
	}
	g.invalidateStats(ctx, businessID)
	return voided, nil
}

func (g *FeeGenerator) GetFee(ctx context.Context, businessID, feeID uuid.UUID) (*models.Fee, error) {
	fee, err := g.Store.GetFee(ctx, businessID, feeID)
	if err != nil {
		return nil, notFound("fee", err)
	}
	return fee, nil
}

func (g *FeeGenerator) ListFees(ctx context.Context, businessID uuid.UUID, filter store.FeeFilter) ([]models.Fee, error) {
	return g.Store.ListFees(ctx, businessID, filter)
}
