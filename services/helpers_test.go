package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/fee_ledger/cache"
	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/anjiri1684/fee_ledger/store/storetest"
	"github.com/anjiri1684/fee_ledger/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	ctx    context.Context
	store  *store.Memory
	faults *storetest.Conflicts
	cache  *cache.Memory
	events *recordingPublisher
	biz    uuid.UUID
	now    time.Time

	refs *utils.ReferenceGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemory()
	biz := s.AddBusiness(models.Business{Name: "Hillside Academy", IsActive: true})
	refs, err := utils.NewReferenceGenerator(1)
	require.NoError(t, err)
	return &fixture{
		ctx:    context.Background(),
		store:  s,
		faults: storetest.WithConflicts(s),
		cache:  cache.NewMemory(),
		events: &recordingPublisher{},
		biz:    biz.ID,
		now:    time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		refs:   refs,
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Store:  f.faults,
		Cache:  f.cache,
		Events: f.events,
		Logger: zap.NewNop(),
		Now:    func() time.Time { return f.now },
	}
}

func (f *fixture) generator() *FeeGenerator {
	return NewFeeGenerator(f.deps(), DefaultDueDay)
}

func (f *fixture) ledger() *PaymentLedger {
	return NewPaymentLedger(f.deps(), f.refs, LedgerOptions{MaxAttempts: 3, RecordTransactions: true})
}

func (f *fixture) sweeper() *OverdueSweeper {
	return NewOverdueSweeper(f.deps())
}

func (f *fixture) accounts() *AccountService {
	return NewAccountService(f.deps(), time.Minute)
}

func (f *fixture) addStudent(t *testing.T, name string) models.Student {
	t.Helper()
	st := &models.Student{BusinessID: f.biz, FullName: name, IsActive: true}
	require.NoError(t, f.store.CreateStudent(f.ctx, st))
	return *st
}

func (f *fixture) addTemplate(t *testing.T, tpl models.FeeTemplate) models.FeeTemplate {
	t.Helper()
	tpl.BusinessID = f.biz
	tpl.IsActive = true
	if tpl.Category == "" {
		tpl.Category = models.CategoryTuition
	}
	require.NoError(t, f.store.CreateTemplate(f.ctx, &tpl))
	return tpl
}

func (f *fixture) addScholarship(t *testing.T, studentID uuid.UUID, d models.Discount) {
	t.Helper()
	require.NoError(t, f.store.CreateScholarship(f.ctx, &models.Scholarship{
		BusinessID: f.biz,
		StudentID:  studentID,
		Name:       "Bursary",
		Discount:   d,
		IsActive:   true,
	}))
}

func (f *fixture) transactions(t *testing.T) []models.Transaction {
	t.Helper()
	txns, err := f.ledger().ListTransactions(f.ctx, f.biz)
	require.NoError(t, err)
	return txns
}

// addFee stores a manual fee directly, bypassing the generator.
func (f *fixture) addFee(t *testing.T, studentID uuid.UUID, amount string, due time.Time) models.Fee {
	t.Helper()
	fee := &models.Fee{
		BusinessID:      f.biz,
		StudentID:       studentID,
		Title:           "Fee",
		Category:        models.CategoryOther,
		Amount:          m(amount),
		OriginalAmount:  m(amount),
		DiscountApplied: money.Zero,
		DueDate:         due,
		Status:          models.FeeStatusPending,
	}
	require.NoError(t, f.store.CreateFee(f.ctx, fee))
	return *fee
}

func (f *fixture) fee(t *testing.T, id uuid.UUID) models.Fee {
	t.Helper()
	fee, err := f.store.GetFee(f.ctx, f.biz, id)
	require.NoError(t, err)
	return *fee
}

func m(s string) money.Money { return money.MustParse(s) }

func ptr[T any](v T) *T { return &v }
