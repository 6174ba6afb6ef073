package services

import (
	"context"
	"sort"
	"time"

	"github.com/anjiri1684/fee_ledger/cache"
	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultStatsTTL is how long a business summary stays cached.
const DefaultStatsTTL = time.Minute

type FeeAccount struct {
	Fee       models.Fee  `json:"fee"`
	Paid      money.Money `json:"paid"`
	Remaining money.Money `json:"remaining"`
}

// AccountSummary is a student's position. TotalPending is everything still
// owed, TotalOverdue the part of it past due. Balance is charges minus
// payments and goes negative only when overpayments exceed what is owed.
type AccountSummary struct {
	StudentID    uuid.UUID    `json:"student_id"`
	TotalCharges money.Money  `json:"total_charges"`
	TotalPaid    money.Money  `json:"total_paid"`
	TotalPending money.Money  `json:"total_pending"`
	TotalOverdue money.Money  `json:"total_overdue"`
	Balance      money.Money  `json:"balance"`
	Credit       money.Money  `json:"credit"`
	Fees         []FeeAccount `json:"fees"`
}

type Debtor struct {
	StudentID   uuid.UUID   `json:"student_id"`
	FullName    string      `json:"full_name"`
	Outstanding money.Money `json:"outstanding"`
	Overdue     money.Money `json:"overdue"`
	OpenFees    int         `json:"open_fees"`
}

// BusinessSummary splits what is owed into TotalPending (not yet due) and
// TotalOverdue (past due and unpaid).
type BusinessSummary struct {
	BusinessID   uuid.UUID   `json:"business_id"`
	TotalCharges money.Money `json:"total_charges"`
	TotalPaid    money.Money `json:"total_paid"`
	TotalPending money.Money `json:"total_pending"`
	TotalOverdue money.Money `json:"total_overdue"`
	Balance      money.Money `json:"balance"`
	Credit       money.Money `json:"credit"`
	// CollectionRate is the percentage of charges covered by payments.
	CollectionRate decimal.Decimal          `json:"collection_rate"`
	StatusCounts   map[models.FeeStatus]int `json:"status_counts"`
	TopDebtors     []Debtor                 `json:"top_debtors"`
	GeneratedAt    time.Time                `json:"generated_at"`
}

// cachedSummary is only valid for the generation and UTC day it was
// computed under; overdue figures move at midnight.
type cachedSummary struct {
	TopN       int             `json:"top_n"`
	Generation int64           `json:"generation"`
	Day        string          `json:"day"`
	Summary    BusinessSummary `json:"summary"`
}

// AccountService builds read projections from fees and their payments.
// Nothing here is stored; every figure is recomputed from the ledger.
type AccountService struct {
	Deps
	statsTTL time.Duration
}

func NewAccountService(deps Deps, statsTTL time.Duration) *AccountService {
	if statsTTL <= 0 {
		statsTTL = DefaultStatsTTL
	}
	return &AccountService{Deps: deps.withDefaults(), statsTTL: statsTTL}
}

// feeFigures holds the derived numbers of one non-void fee.
type feeFigures struct {
	fee       models.Fee
	paid      money.Money
	remaining money.Money
	credit    money.Money
	overdue   bool
}

func (s *AccountService) load(ctx context.Context, businessID uuid.UUID, filter store.FeeFilter, now time.Time) ([]feeFigures, error) {
	fees, err := s.Store.ListFees(ctx, businessID, filter)
	if err != nil {
		return nil, err
	}
	fees = lo.Filter(fees, func(f models.Fee, _ int) bool { return f.Status != models.FeeStatusVoid })
	if len(fees) == 0 {
		return nil, nil
	}

	payments, err := s.Store.ListPayments(ctx, businessID, lo.Map(fees, func(f models.Fee, _ int) uuid.UUID { return f.ID }))
	if err != nil {
		return nil, err
	}
	byFee := lo.GroupBy(payments, func(p models.Payment) uuid.UUID { return p.FeeID })

	today := dayStart(now)
	out := make([]feeFigures, 0, len(fees))
	for _, f := range fees {
		paid := lo.Reduce(byFee[f.ID], func(sum money.Money, p models.Payment, _ int) money.Money {
			return sum.Add(p.Amount)
		}, money.Zero)
		remaining := f.Remaining(paid)
		out = append(out, feeFigures{
			fee:       f,
			paid:      paid,
			remaining: remaining,
			credit:    paid.SubClamped(f.Amount),
			overdue:   remaining.IsPositive() && (f.Status == models.FeeStatusOverdue || f.DueDate.Before(today)),
		})
	}
	return out, nil
}

// StudentAccount summarises everything a student owes and has paid.
func (s *AccountService) StudentAccount(ctx context.Context, businessID, studentID uuid.UUID) (*AccountSummary, error) {
	if _, err := s.Store.GetStudent(ctx, businessID, studentID); err != nil {
		return nil, notFound("student", err)
	}
	figures, err := s.load(ctx, businessID, store.FeeFilter{StudentID: &studentID}, s.Now())
	if err != nil {
		return nil, err
	}

	summary := &AccountSummary{
		StudentID:    studentID,
		TotalCharges: money.Zero,
		TotalPaid:    money.Zero,
		TotalPending: money.Zero,
		TotalOverdue: money.Zero,
		Balance:      money.Zero,
		Credit:       money.Zero,
		Fees:         make([]FeeAccount, 0, len(figures)),
	}
	for _, ff := range figures {
		summary.TotalCharges = summary.TotalCharges.Add(ff.fee.Amount)
		summary.TotalPaid = summary.TotalPaid.Add(ff.paid)
		summary.Credit = summary.Credit.Add(ff.credit)
		summary.TotalPending = summary.TotalPending.Add(ff.remaining)
		if ff.overdue {
			summary.TotalOverdue = summary.TotalOverdue.Add(ff.remaining)
		}
		summary.Fees = append(summary.Fees, FeeAccount{Fee: ff.fee, Paid: ff.paid, Remaining: ff.remaining})
	}
	summary.Balance = summary.TotalCharges.Sub(summary.TotalPaid)
	return summary, nil
}

// BusinessStats is the business-wide projection, served from the cache when
// a summary for the same topN and day is still fresh.
func (s *AccountService) BusinessStats(ctx context.Context, businessID uuid.UUID, now time.Time, topN int) (*BusinessSummary, error) {
	if topN < 0 {
		topN = 0
	}
	log := s.Logger.With(zap.Stringer("business_id", businessID))
	key := cache.BusinessStatsKey(businessID)
	genKey := cache.BusinessStatsGenerationKey(businessID)
	day := now.UTC().Format("2006-01-02")

	gen, err := s.generation(ctx, genKey)
	if err != nil {
		log.Warn("finance stats generation read failed", zap.Error(err))
		return s.computeStats(ctx, businessID, now, topN)
	}
	var cached cachedSummary
	if ok, err := s.Cache.Get(ctx, key, &cached); err != nil {
		log.Warn("finance stats cache read failed", zap.Error(err))
	} else if ok && cached.TopN == topN && cached.Generation == gen && cached.Day == day {
		return &cached.Summary, nil
	}

	summary, err := s.computeStats(ctx, businessID, now, topN)
	if err != nil {
		return nil, err
	}
	// A write that landed while computing bumped the generation; its
	// invalidation must not be undone by storing this summary.
	if after, err := s.generation(ctx, genKey); err != nil || after != gen {
		return summary, nil
	}
	entry := cachedSummary{TopN: topN, Generation: gen, Day: day, Summary: *summary}
	if err := s.Cache.Set(ctx, key, entry, s.statsTTL); err != nil {
		log.Warn("finance stats cache write failed", zap.Error(err))
	}
	return summary, nil
}

func (s *AccountService) generation(ctx context.Context, key string) (int64, error) {
	var gen int64
	if _, err := s.Cache.Get(ctx, key, &gen); err != nil {
		return 0, err
	}
	return gen, nil
}

func (s *AccountService) computeStats(ctx context.Context, businessID uuid.UUID, now time.Time, topN int) (*BusinessSummary, error) {
	figures, err := s.load(ctx, businessID, store.FeeFilter{}, now)
	if err != nil {
		return nil, err
	}

	summary := &BusinessSummary{
		BusinessID:     businessID,
		TotalCharges:   money.Zero,
		TotalPaid:      money.Zero,
		TotalPending:   money.Zero,
		TotalOverdue:   money.Zero,
		Balance:        money.Zero,
		Credit:         money.Zero,
		CollectionRate: decimal.Zero,
		StatusCounts:   map[models.FeeStatus]int{},
		TopDebtors:     []Debtor{},
		GeneratedAt:    now,
	}
	covered := money.Zero
	debtors := map[uuid.UUID]*Debtor{}

	for _, ff := range figures {
		summary.TotalCharges = summary.TotalCharges.Add(ff.fee.Amount)
		summary.TotalPaid = summary.TotalPaid.Add(ff.paid)
		summary.Credit = summary.Credit.Add(ff.credit)
		summary.StatusCounts[ff.fee.Status]++
		covered = covered.Add(money.Min(ff.paid, ff.fee.Amount))

		if !ff.remaining.IsPositive() {
			continue
		}
		d, ok := debtors[ff.fee.StudentID]
		if !ok {
			d = &Debtor{StudentID: ff.fee.StudentID, Outstanding: money.Zero, Overdue: money.Zero}
			debtors[ff.fee.StudentID] = d
		}
		d.Outstanding = d.Outstanding.Add(ff.remaining)
		d.OpenFees++
		if ff.overdue {
			d.Overdue = d.Overdue.Add(ff.remaining)
			summary.TotalOverdue = summary.TotalOverdue.Add(ff.remaining)
		} else {
			summary.TotalPending = summary.TotalPending.Add(ff.remaining)
		}
	}
	summary.Balance = summary.TotalCharges.Sub(summary.TotalPaid)

	if summary.TotalCharges.IsPositive() {
		summary.CollectionRate = covered.Decimal().
			Mul(hundred).
			Div(summary.TotalCharges.Decimal()).
			Round(2)
	}

	ranked := lo.Values(debtors)
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].Outstanding.Cmp(ranked[j].Outstanding); c != 0 {
			return c > 0
		}
		return ranked[i].StudentID.String() < ranked[j].StudentID.String()
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	for _, d := range ranked {
		if st, err := s.Store.GetStudent(ctx, businessID, d.StudentID); err == nil {
			d.FullName = st.FullName
		}
		summary.TopDebtors = append(summary.TopDebtors, *d)
	}
	return summary, nil
}
