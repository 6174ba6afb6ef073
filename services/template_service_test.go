package services

import (
	"testing"
	"time"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTemplateCreateValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewTemplateService(f.store, zap.NewNop())

	cases := []struct {
		name  string
		in    TemplateInput
		field string
	}{
		{"missing name", TemplateInput{Amount: m("10"), Recurrence: models.RecurrenceMonthly}, "name"},
		{"negative amount", TemplateInput{Name: "Tuition", Amount: m("-1"), Recurrence: models.RecurrenceMonthly}, "amount"},
		{"bad recurrence", TemplateInput{Name: "Tuition", Amount: m("10"), Recurrence: "DAILY"}, "recurrence"},
		{"bad day", TemplateInput{Name: "Tuition", Amount: m("10"), Recurrence: models.RecurrenceMonthly, DayDue: ptr(32)}, "day_due"},
		{"negative late fee", TemplateInput{Name: "Tuition", Amount: m("10"), Recurrence: models.RecurrenceMonthly, LateFee: ptr(m("-5"))}, "late_fee"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(f.ctx, f.biz, tc.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestTemplateUpdateLeavesGeneratedFeesAlone(t *testing.T) {
	f := newFixture(t)
	svc := NewTemplateService(f.store, zap.NewNop())
	st := f.addStudent(t, "Carol Njeri")

	tpl, err := svc.Create(f.ctx, f.biz, TemplateInput{
		Name:       "Tuition",
		Category:   models.CategoryTuition,
		Amount:     m("1000"),
		Recurrence: models.RecurrenceMonthly,
		LateFee:    ptr(m("50")),
	})
	require.NoError(t, err)
	assert.True(t, tpl.IsActive)

	res, err := f.generator().Generate(f.ctx, f.biz, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, res.FeeIDs, 1)

	_, err = svc.Update(f.ctx, f.biz, tpl.ID, TemplateInput{
		Name:       "Tuition (revised)",
		Amount:     m("1200"),
		Recurrence: models.RecurrenceMonthly,
		LateFee:    ptr(m("75")),
	})
	require.NoError(t, err)

	fee := f.fee(t, res.FeeIDs[0])
	assert.Equal(t, st.ID, fee.StudentID)
	assert.Equal(t, "1000.00", fee.Amount.String())
	assert.Equal(t, "50.00", fee.LateFee.String())
	assert.Equal(t, "Tuition 2026-10", fee.Title)

	updated, err := svc.Get(f.ctx, f.biz, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "1200.00", updated.Amount.String())
	assert.Equal(t, models.CategoryTuition, updated.Category)
}

func TestTemplateIsScopedToBusiness(t *testing.T) {
	f := newFixture(t)
	svc := NewTemplateService(f.store, zap.NewNop())

	tpl, err := svc.Create(f.ctx, f.biz, TemplateInput{Name: "Books", Amount: m("80"), Recurrence: models.RecurrenceYearly})
	require.NoError(t, err)

	_, err = svc.Get(f.ctx, uuid.New(), tpl.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := svc.List(f.ctx, uuid.New(), false)
	require.NoError(t, err)
	assert.Empty(t, list)

	inactive := false
	_, err = svc.Update(f.ctx, f.biz, tpl.ID, TemplateInput{Name: "Books", Amount: m("80"), Recurrence: models.RecurrenceYearly, IsActive: &inactive})
	require.NoError(t, err)

	activeOnly, err := svc.List(f.ctx, f.biz, true)
	require.NoError(t, err)
	assert.Empty(t, activeOnly)
}
