package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStoreFunc returns an empty store and a business registered in it.
type newStoreFunc func(t *testing.T) (Store, uuid.UUID)

var contractDue = time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)

func uniqueRef() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

type seeded struct {
	biz      uuid.UUID
	student  models.Student
	template models.FeeTemplate
}

func seed(t *testing.T, ctx context.Context, s Store, biz uuid.UUID) seeded {
	t.Helper()
	st := &models.Student{BusinessID: biz, FullName: "Amina Wanjiku", IsActive: true}
	require.NoError(t, s.CreateStudent(ctx, st))
	lateFee := money.FromInt(50)
	tpl := &models.FeeTemplate{
		BusinessID: biz,
		Name:       "Tuition",
		Category:   models.CategoryTuition,
		Amount:     money.FromInt(1000),
		Recurrence: models.RecurrenceMonthly,
		LateFee:    &lateFee,
		IsActive:   true,
	}
	require.NoError(t, s.CreateTemplate(ctx, tpl))
	return seeded{biz: biz, student: *st, template: *tpl}
}

func (sd seeded) fee(period string) *models.Fee {
	return &models.Fee{
		BusinessID:      sd.biz,
		StudentID:       sd.student.ID,
		TemplateID:      &sd.template.ID,
		PeriodKey:       &period,
		Title:           "Tuition",
		Category:        models.CategoryTuition,
		Amount:          money.FromInt(1000),
		OriginalAmount:  money.FromInt(1000),
		DiscountApplied: money.Zero,
		LateFeeApplied:  money.Zero,
		DueDate:         contractDue,
		Status:          models.FeeStatusPending,
	}
}

func runStoreContract(t *testing.T, newStore newStoreFunc) {
	ctx := context.Background()

	t.Run("inactive template is stored inactive", func(t *testing.T) {
		s, biz := newStore(t)
		sd := seed(t, ctx, s, biz)
		retired := &models.FeeTemplate{
			BusinessID: biz,
			Name:       "Old bus route",
			Category:   models.CategoryTransport,
			Amount:     money.FromInt(200),
			Recurrence: models.RecurrenceMonthly,
			IsActive:   false,
		}
		require.NoError(t, s.CreateTemplate(ctx, retired))

		got, err := s.GetTemplate(ctx, biz, retired.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		active, err := s.ListTemplates(ctx, biz, true)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, sd.template.ID, active[0].ID)

		all, err := s.ListTemplates(ctx, biz, false)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("inactive student is not eligible", func(t *testing.T) {
		s, biz := newStore(t)
		sd := seed(t, ctx, s, biz)
		require.NoError(t, s.CreateStudent(ctx, &models.Student{BusinessID: biz, FullName: "Left school", IsActive: false}))

		eligible, err := s.ListEligibleStudents(ctx, biz, nil)
		require.NoError(t, err)
		require.Len(t, eligible, 1)
		assert.Equal(t, sd.student.ID, eligible[0].ID)
	})

	t.Run("duplicate period", func(t *testing.T) {
		s, biz := newStore(t)
		sd := seed(t, ctx, s, biz)
		require.NoError(t, s.CreateFee(ctx, sd.fee("2026-10")))
		err := s.CreateFee(ctx, sd.fee("2026-10"))
		assert.ErrorIs(t, err, ErrDuplicate)

		exists, err := s.FeeExistsForPeriod(ctx, biz, sd.student.ID, sd.template.ID, "2026-10")
		require.NoError(t, err)
		assert.True(t, exists)
		require.NoError(t, s.CreateFee(ctx, sd.fee("2026-11")))
	})

	t.Run("tenant scoping", func(t *testing.T) {
		s, biz := newStore(t)
		sd := seed(t, ctx, s, biz)
		fee := sd.fee("2026-10")
		require.NoError(t, s.CreateFee(ctx, fee))

		_, err := s.GetFee(ctx, uuid.New(), fee.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetTemplate(ctx, uuid.New(), sd.template.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		fees, err := s.ListFees(ctx, uuid.New(), FeeFilter{})
		require.NoError(t, err)
		assert.Empty(t, fees)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		s, biz := newStore(t)
		sd := seed(t, ctx, s, biz)
		fee := sd.fee("2026-10")
		require.NoError(t, s.CreateFee(ctx, fee))
		stale := *fee

		require.NoError(t, s.UpdateFeeStatus(ctx, fee, models.FeeStatusPartial, nil))
		assert.Equal(t, stale.Version+1, fee.Version)

		err := s.UpdateFeeStatus(ctx, &stale, models.FeeStatusPaid, nil)
		assert.ErrorIs(t, err, ErrConflict)

		got, err := s.GetFee(ctx, biz, fee.ID)
		require.NoError(t, err)
		assert.Equal(t, models.FeeStatusPartial, got.Status)
	})

	t.Run("late fee applied once", func(t *testing.T) {
		s, biz := newStore(t)
		sd := seed(t, ctx, s, biz)
		fee := sd.fee("2026-10")
		require.NoError(t, s.CreateFee(ctx, fee))
		stale := *fee

		marked, err := s.MarkOverdue(ctx, fee, OverdueUpdate{Surcharge: money.FromInt(50)})
		require.NoError(t, err)
		assert.True(t, marked)

		marked, err = s.MarkOverdue(ctx, &stale, OverdueUpdate{Surcharge: money.FromInt(50)})
		require.NoError(t, err)
		assert.False(t, marked)

		current, err := s.GetFee(ctx, biz, fee.ID)
		require.NoError(t, err)
		marked, err = s.MarkOverdue(ctx, current, OverdueUpdate{Surcharge: money.FromInt(50)})
		require.NoError(t, err)
		assert.False(t, marked)

		got, err := s.GetFee(ctx, biz, fee.ID)
		require.NoError(t, err)
		assert.Equal(t, models.FeeStatusOverdue, got.Status)
		assert.Equal(t, "1050.00", got.Amount.String())
		assert.Equal(t, "50.00", got.LateFeeApplied.String())
	})

	t.Run("due before filter", func(t *testing.T) {
		s, biz := newStore(t)
		sd := seed(t, ctx, s, biz)
		require.NoError(t, s.CreateFee(ctx, sd.fee("2026-10")))

		cutoff := contractDue
		fees, err := s.ListFees(ctx, biz, FeeFilter{DueBefore: &cutoff})
		require.NoError(t, err)
		assert.Empty(t, fees)

		cutoff = contractDue.AddDate(0, 0, 1)
		fees, err = s.ListFees(ctx, biz, FeeFilter{DueBefore: &cutoff, Statuses: []models.FeeStatus{models.FeeStatusPending}})
		require.NoError(t, err)
		assert.Len(t, fees, 1)
	})

	t.Run("payments and book entries", func(t *testing.T) {
		s, biz := newStore(t)
		sd := seed(t, ctx, s, biz)
		fee := sd.fee("2026-10")
		require.NoError(t, s.CreateFee(ctx, fee))

		paidAt := contractDue.Add(-time.Hour)
		for _, amount := range []int64{300, 450} {
			p := &models.Payment{
				BusinessID:    biz,
				FeeID:         fee.ID,
				Amount:        money.FromInt(amount),
				Method:        models.PaymentMethodCash,
				PaidAt:        paidAt,
				ReceiptNumber: uniqueRef(),
			}
			require.NoError(t, s.CreatePayment(ctx, p))
			require.NoError(t, s.CreateTransaction(ctx, &models.Transaction{
				BusinessID: biz,
				Type:       models.TransactionIncome,
				Amount:     p.Amount,
				PaymentID:  &p.ID,
				Reference:  p.ReceiptNumber,
				OccurredAt: paidAt,
			}))
			paidAt = paidAt.Add(time.Minute)
		}

		total, err := s.SumPayments(ctx, biz, fee.ID)
		require.NoError(t, err)
		assert.Equal(t, "750.00", total.String())
		count, err := s.CountPayments(ctx, biz, fee.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		txns, err := s.ListTransactions(ctx, biz)
		require.NoError(t, err)
		require.Len(t, txns, 2)
		assert.Equal(t, "300.00", txns[0].Amount.String())
		assert.Equal(t, "450.00", txns[1].Amount.String())

		other, err := s.ListTransactions(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("job runs newest first", func(t *testing.T) {
		s, biz := newStore(t)
		started := contractDue
		for _, kind := range []models.JobKind{models.JobFeeGeneration, models.JobOverdueSweep} {
			require.NoError(t, s.CreateJobRun(ctx, &models.JobRun{
				BusinessID: biz,
				Kind:       kind,
				TargetAt:   contractDue,
				StartedAt:  started,
				FinishedAt: started.Add(time.Second),
			}))
			started = started.Add(time.Hour)
		}

		runs, err := s.ListJobRuns(ctx, biz, 0)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, models.JobOverdueSweep, runs[0].Kind)

		runs, err = s.ListJobRuns(ctx, biz, 1)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})

	t.Run("rollback on error", func(t *testing.T) {
		s, biz := newStore(t)
		sd := seed(t, ctx, s, biz)
		fee := sd.fee("2026-10")
		err := s.WithinTx(ctx, func(tx Store) error {
			if err := tx.CreateFee(ctx, fee); err != nil {
				return err
			}
			return ErrConflict
		})
		assert.ErrorIs(t, err, ErrConflict)

		fees, err := s.ListFees(ctx, biz, FeeFilter{})
		require.NoError(t, err)
		assert.Empty(t, fees)
	})
}
