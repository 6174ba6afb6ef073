package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/google/uuid"
)

// Memory is an in-process Store with the same uniqueness, tenant and version
// rules as the Postgres schema. Transactions hold a single lock and restore a
// snapshot on error.
type Memory struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

type memData struct {
	businesses   map[uuid.UUID]models.Business
	students     map[uuid.UUID]models.Student
	enrollments  []models.Enrollment
	templates    map[uuid.UUID]models.FeeTemplate
	scholarships map[uuid.UUID]models.Scholarship
	fees         map[uuid.UUID]models.Fee
	payments     []models.Payment
	transactions []models.Transaction
	jobRuns      []models.JobRun
}

func NewMemory() *Memory {
	return &Memory{
		mu: &sync.Mutex{},
		data: &memData{
			businesses:   map[uuid.UUID]models.Business{},
			students:     map[uuid.UUID]models.Student{},
			templates:    map[uuid.UUID]models.FeeTemplate{},
			scholarships: map[uuid.UUID]models.Scholarship{},
			fees:         map[uuid.UUID]models.Fee{},
		},
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		businesses:   make(map[uuid.UUID]models.Business, len(d.businesses)),
		students:     make(map[uuid.UUID]models.Student, len(d.students)),
		enrollments:  append([]models.Enrollment(nil), d.enrollments...),
		templates:    make(map[uuid.UUID]models.FeeTemplate, len(d.templates)),
		scholarships: make(map[uuid.UUID]models.Scholarship, len(d.scholarships)),
		fees:         make(map[uuid.UUID]models.Fee, len(d.fees)),
		payments:     append([]models.Payment(nil), d.payments...),
		transactions: append([]models.Transaction(nil), d.transactions...),
		jobRuns:      append([]models.JobRun(nil), d.jobRuns...),
	}
	for k, v := range d.businesses {
		c.businesses[k] = v
	}
	for k, v := range d.students {
		c.students[k] = v
	}
	for k, v := range d.templates {
		c.templates[k] = v
	}
	for k, v := range d.scholarships {
		c.scholarships[k] = v
	}
	for k, v := range d.fees {
		c.fees[k] = v
	}
	return c
}

// AddBusiness registers a tenant.
func (m *Memory) AddBusiness(b models.Business) models.Business {
	defer m.lock()()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	m.data.businesses[b.ID] = b
	return b
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	tx := &Memory{mu: m.mu, data: m.data, inTx: true}
	if err := fn(tx); err != nil {
		*m.data = *snapshot
		return err
	}
	return nil
}

func (m *Memory) ListActiveBusinessIDs(ctx context.Context) ([]uuid.UUID, error) {
	defer m.lock()()
	var ids []uuid.UUID
	for id, b := range m.data.businesses {
		if b.IsActive {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids, nil
}

func (m *Memory) CreateStudent(ctx context.Context, s *models.Student) error {
	defer m.lock()()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if _, ok := m.data.students[s.ID]; ok {
		return ErrDuplicate
	}
	stamp(&s.CreatedAt, &s.UpdatedAt)
	m.data.students[s.ID] = *s
	return nil
}

func (m *Memory) GetStudent(ctx context.Context, businessID, studentID uuid.UUID) (*models.Student, error) {
	defer m.lock()()
	s, ok := m.data.students[studentID]
	if !ok || s.BusinessID != businessID {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) CreateEnrollment(ctx context.Context, e *models.Enrollment) error {
	defer m.lock()()
	for _, existing := range m.data.enrollments {
		if existing.StudentID == e.StudentID && existing.CourseID == e.CourseID {
			return ErrDuplicate
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	m.data.enrollments = append(m.data.enrollments, *e)
	return nil
}

func (m *Memory) ListEligibleStudents(ctx context.Context, businessID uuid.UUID, courseID *uuid.UUID) ([]models.Student, error) {
	defer m.lock()()
	enrolled := map[uuid.UUID]bool{}
	if courseID != nil {
		for _, e := range m.data.enrollments {
			if e.BusinessID == businessID && e.CourseID == *courseID {
				enrolled[e.StudentID] = true
			}
		}
	}
	var out []models.Student
	for _, s := range m.data.students {
		if s.BusinessID != businessID || !s.IsActive {
			continue
		}
		if courseID != nil && !enrolled[s.ID] {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *Memory) CreateTemplate(ctx context.Context, t *models.FeeTemplate) error {
	defer m.lock()()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	stamp(&t.CreatedAt, &t.UpdatedAt)
	m.data.templates[t.ID] = *t
	return nil
}

func (m *Memory) SaveTemplate(ctx context.Context, t *models.FeeTemplate) error {
	defer m.lock()()
	existing, ok := m.data.templates[t.ID]
	if !ok || existing.BusinessID != t.BusinessID {
		return ErrNotFound
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now()
	m.data.templates[t.ID] = *t
	return nil
}

func (m *Memory) GetTemplate(ctx context.Context, businessID, templateID uuid.UUID) (*models.FeeTemplate, error) {
	defer m.lock()()
	t, ok := m.data.templates[templateID]
	if !ok || t.BusinessID != businessID {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *Memory) ListTemplates(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]models.FeeTemplate, error) {
	defer m.lock()()
	var out []models.FeeTemplate
	for _, t := range m.data.templates {
		if t.BusinessID == businessID && (!activeOnly || t.IsActive) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) CreateScholarship(ctx context.Context, s *models.Scholarship) error {
	defer m.lock()()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	stamp(&s.CreatedAt, &s.UpdatedAt)
	m.data.scholarships[s.ID] = *s
	return nil
}

func (m *Memory) SaveScholarship(ctx context.Context, s *models.Scholarship) error {
	defer m.lock()()
	existing, ok := m.data.scholarships[s.ID]
	if !ok || existing.BusinessID != s.BusinessID {
		return ErrNotFound
	}
	s.StudentID = existing.StudentID
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now()
	m.data.scholarships[s.ID] = *s
	return nil
}

func (m *Memory) GetScholarship(ctx context.Context, businessID, scholarshipID uuid.UUID) (*models.Scholarship, error) {
	defer m.lock()()
	s, ok := m.data.scholarships[scholarshipID]
	if !ok || s.BusinessID != businessID {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) ListScholarships(ctx context.Context, businessID, studentID uuid.UUID, activeOnly bool) ([]models.Scholarship, error) {
	defer m.lock()()
	var out []models.Scholarship
	for _, s := range m.data.scholarships {
		if s.BusinessID == businessID && s.StudentID == studentID && (!activeOnly || s.IsActive) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *Memory) CreateFee(ctx context.Context, f *models.Fee) error {
	defer m.lock()()
	if f.TemplateID != nil && f.PeriodKey != nil {
		for _, existing := range m.data.fees {
			if existing.BusinessID == f.BusinessID &&
				existing.StudentID == f.StudentID &&
				existing.TemplateID != nil && *existing.TemplateID == *f.TemplateID &&
				existing.PeriodKey != nil && *existing.PeriodKey == *f.PeriodKey {
				return ErrDuplicate
			}
		}
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Status == "" {
		f.Status = models.FeeStatusPending
	}
	stamp(&f.CreatedAt, &f.UpdatedAt)
	m.data.fees[f.ID] = *f
	return nil
}

func (m *Memory) GetFee(ctx context.Context, businessID, feeID uuid.UUID) (*models.Fee, error) {
	defer m.lock()()
	f, ok := m.data.fees[feeID]
	if !ok || f.BusinessID != businessID {
		return nil, ErrNotFound
	}
	return &f, nil
}

// GetFeeForUpdate needs no row lock: a transaction already holds the store.
func (m *Memory) GetFeeForUpdate(ctx context.Context, businessID, feeID uuid.UUID) (*models.Fee, error) {
	return m.GetFee(ctx, businessID, feeID)
}

func (m *Memory) FeeExistsForPeriod(ctx context.Context, businessID, studentID, templateID uuid.UUID, periodKey string) (bool, error) {
	defer m.lock()()
	for _, f := range m.data.fees {
		if f.BusinessID == businessID && f.StudentID == studentID &&
			f.TemplateID != nil && *f.TemplateID == templateID &&
			f.PeriodKey != nil && *f.PeriodKey == periodKey {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListFees(ctx context.Context, businessID uuid.UUID, filter FeeFilter) ([]models.Fee, error) {
	defer m.lock()()
	var out []models.Fee
	for _, f := range m.data.fees {
		if f.BusinessID != businessID {
			continue
		}
		if filter.StudentID != nil && f.StudentID != *filter.StudentID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, f.Status) {
			continue
		}
		if filter.DueBefore != nil && !f.DueDate.Before(*filter.DueBefore) {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) UpdateFeeStatus(ctx context.Context, f *models.Fee, status models.FeeStatus, paidAt *time.Time) error {
	defer m.lock()()
	current, ok := m.data.fees[f.ID]
	if !ok || current.BusinessID != f.BusinessID {
		return ErrNotFound
	}
	if current.Version != f.Version {
		return ErrConflict
	}
	current.Status = status
	current.PaidAt = paidAt
	current.Version++
	current.UpdatedAt = time.Now()
	m.data.fees[f.ID] = current

	f.Status = status
	f.PaidAt = paidAt
	f.Version = current.Version
	return nil
}

func (m *Memory) MarkOverdue(ctx context.Context, f *models.Fee, upd OverdueUpdate) (bool, error) {
	defer m.lock()()
	current, ok := m.data.fees[f.ID]
	if !ok || current.BusinessID != f.BusinessID {
		return false, ErrNotFound
	}
	eligible := current.Status == models.FeeStatusPending || current.Status == models.FeeStatusPartial
	if !eligible || current.Version != f.Version || !current.LateFeeApplied.IsZero() {
		return false, nil
	}
	current.Status = models.FeeStatusOverdue
	current.Amount = current.Amount.Add(upd.Surcharge)
	current.LateFeeApplied = upd.Surcharge
	current.Version++
	current.UpdatedAt = time.Now()
	m.data.fees[f.ID] = current

	*f = current
	return true, nil
}

func (m *Memory) CreatePayment(ctx context.Context, p *models.Payment) error {
	defer m.lock()()
	fee, ok := m.data.fees[p.FeeID]
	if !ok || fee.BusinessID != p.BusinessID {
		return ErrNotFound
	}
	for _, existing := range m.data.payments {
		if existing.ReceiptNumber == p.ReceiptNumber {
			return ErrDuplicate
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	m.data.payments = append(m.data.payments, *p)
	return nil
}

func (m *Memory) SumPayments(ctx context.Context, businessID, feeID uuid.UUID) (money.Money, error) {
	defer m.lock()()
	total := money.Zero
	for _, p := range m.data.payments {
		if p.BusinessID == businessID && p.FeeID == feeID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (m *Memory) CountPayments(ctx context.Context, businessID, feeID uuid.UUID) (int64, error) {
	defer m.lock()()
	var n int64
	for _, p := range m.data.payments {
		if p.BusinessID == businessID && p.FeeID == feeID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListPayments(ctx context.Context, businessID uuid.UUID, feeIDs []uuid.UUID) ([]models.Payment, error) {
	defer m.lock()()
	wanted := map[uuid.UUID]bool{}
	for _, id := range feeIDs {
		wanted[id] = true
	}
	var out []models.Payment
	for _, p := range m.data.payments {
		if p.BusinessID != businessID {
			continue
		}
		if len(feeIDs) > 0 && !wanted[p.FeeID] {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, nil
}

func (m *Memory) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	defer m.lock()()
	for _, existing := range m.data.transactions {
		if existing.Reference == t.Reference {
			return ErrDuplicate
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	m.data.transactions = append(m.data.transactions, *t)
	return nil
}

func (m *Memory) ListTransactions(ctx context.Context, businessID uuid.UUID) ([]models.Transaction, error) {
	defer m.lock()()
	var out []models.Transaction
	for _, t := range m.data.transactions {
		if t.BusinessID == businessID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (m *Memory) CreateJobRun(ctx context.Context, r *models.JobRun) error {
	defer m.lock()()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.data.jobRuns = append(m.data.jobRuns, *r)
	return nil
}

func (m *Memory) ListJobRuns(ctx context.Context, businessID uuid.UUID, limit int) ([]models.JobRun, error) {
	defer m.lock()()
	var out []models.JobRun
	for i := len(m.data.jobRuns) - 1; i >= 0; i-- {
		if r := m.data.jobRuns[i]; r.BusinessID == businessID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func containsStatus(list []models.FeeStatus, s models.FeeStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
