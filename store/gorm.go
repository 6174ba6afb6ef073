package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm is the Postgres-backed store.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
	return translate(err)
}

// translate maps driver errors onto the store's sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrConflict) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	return err
}

func lockForUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func (s *Gorm) ListActiveBusinessIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.Business{}).
		Where("is_active = ?", true).
		Order("id").
		Pluck("id", &ids).Error
	return ids, translate(err)
}

func (s *Gorm) CreateStudent(ctx context.Context, st *models.Student) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(st).Error)
}

func (s *Gorm) GetStudent(ctx context.Context, businessID, studentID uuid.UUID) (*models.Student, error) {
	var st models.Student
	err := s.db.WithContext(ctx).First(&st, "id = ? AND business_id = ?", studentID, businessID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (s *Gorm) CreateEnrollment(ctx context.Context, e *models.Enrollment) error {
	return translate(s.db.WithContext(ctx).Create(e).Error)
}

func (s *Gorm) ListEligibleStudents(ctx context.Context, businessID uuid.UUID, courseID *uuid.UUID) ([]models.Student, error) {
	db := s.db.WithContext(ctx)
	q := db.Where("business_id = ? AND is_active = ?", businessID, true)
	if courseID != nil {
		enrolled := db.Model(&models.Enrollment{}).
			Select("student_id").
			Where("business_id = ? AND course_id = ?", businessID, *courseID)
		q = q.Where("id IN (?)", enrolled)
	}
	var students []models.Student
	err := q.Order("id").Find(&students).Error
	return students, translate(err)
}

func (s *Gorm) CreateTemplate(ctx context.Context, t *models.FeeTemplate) error {
	return translate(s.db.WithContext(ctx).Create(t).Error)
}

func (s *Gorm) SaveTemplate(ctx context.Context, t *models.FeeTemplate) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", t.ID, t.BusinessID).
		Select("*").Omit("id", "business_id", "created_at").
		Updates(t)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Gorm) GetTemplate(ctx context.Context, businessID, templateID uuid.UUID) (*models.FeeTemplate, error) {
	var t models.FeeTemplate
	err := s.db.WithContext(ctx).First(&t, "id = ? AND business_id = ?", templateID, businessID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *Gorm) ListTemplates(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]models.FeeTemplate, error) {
	q := s.db.WithContext(ctx).Where("business_id = ?", businessID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var templates []models.FeeTemplate
	err := q.Order("created_at, id").Find(&templates).Error
	return templates, translate(err)
}

func (s *Gorm) CreateScholarship(ctx context.Context, sc *models.Scholarship) error {
	return translate(s.db.WithContext(ctx).Create(sc).Error)
}

func (s *Gorm) SaveScholarship(ctx context.Context, sc *models.Scholarship) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", sc.ID, sc.BusinessID).
		Select("*").Omit("id", "business_id", "student_id", "created_at").
		Updates(sc)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Gorm) GetScholarship(ctx context.Context, businessID, scholarshipID uuid.UUID) (*models.Scholarship, error) {
	var sc models.Scholarship
	err := s.db.WithContext(ctx).First(&sc, "id = ? AND business_id = ?", scholarshipID, businessID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sc, nil
}

func (s *Gorm) ListScholarships(ctx context.Context, businessID, studentID uuid.UUID, activeOnly bool) ([]models.Scholarship, error) {
	q := s.db.WithContext(ctx).Where("business_id = ? AND student_id = ?", businessID, studentID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var scholarships []models.Scholarship
	err := q.Order("created_at, id").Find(&scholarships).Error
	return scholarships, translate(err)
}

func (s *Gorm) CreateFee(ctx context.Context, f *models.Fee) error {
	return translate(s.db.WithContext(ctx).Create(f).Error)
}

func (s *Gorm) GetFee(ctx context.Context, businessID, feeID uuid.UUID) (*models.Fee, error) {
	var f models.Fee
	err := s.db.WithContext(ctx).First(&f, "id = ? AND business_id = ?", feeID, businessID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (s *Gorm) GetFeeForUpdate(ctx context.Context, businessID, feeID uuid.UUID) (*models.Fee, error) {
	var f models.Fee
	err := s.db.WithContext(ctx).
		Clauses(lockForUpdate()).
		First(&f, "id = ? AND business_id = ?", feeID, businessID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (s *Gorm) FeeExistsForPeriod(ctx context.Context, businessID, studentID, templateID uuid.UUID, periodKey string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Fee{}).
		Where("business_id = ? AND student_id = ? AND template_id = ? AND period_key = ?",
			businessID, studentID, templateID, periodKey).
		Count(&count).Error
	return count > 0, translate(err)
}

func (s *Gorm) ListFees(ctx context.Context, businessID uuid.UUID, filter FeeFilter) ([]models.Fee, error) {
	q := s.db.WithContext(ctx).Where("business_id = ?", businessID)
	if filter.StudentID != nil {
		q = q.Where("student_id = ?", *filter.StudentID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.DueBefore != nil {
		q = q.Where("due_date < ?", *filter.DueBefore)
	}
	var fees []models.Fee
	err := q.Order("due_date, id").Find(&fees).Error
	return fees, translate(err)
}

func (s *Gorm) UpdateFeeStatus(ctx context.Context, f *models.Fee, status models.FeeStatus, paidAt *time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Fee{}).
		Where("id = ? AND business_id = ? AND version = ?", f.ID, f.BusinessID, f.Version).
		Updates(map[string]any{
			"status":     status,
			"paid_at":    paidAt,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	f.Status = status
	f.PaidAt = paidAt
	f.Version++
	return nil
}

func (s *Gorm) MarkOverdue(ctx context.Context, f *models.Fee, upd OverdueUpdate) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Fee{}).
		Where("id = ? AND business_id = ? AND version = ? AND status IN ? AND late_fee_applied = 0",
			f.ID, f.BusinessID, f.Version,
			[]models.FeeStatus{models.FeeStatusPending, models.FeeStatusPartial}).
		Updates(map[string]any{
			"status":           models.FeeStatusOverdue,
			"amount":           gorm.Expr("amount + ?", upd.Surcharge),
			"late_fee_applied": upd.Surcharge,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	f.Status = models.FeeStatusOverdue
	f.Amount = f.Amount.Add(upd.Surcharge)
	f.LateFeeApplied = upd.Surcharge
	f.Version++
	return true, nil
}

func (s *Gorm) CreatePayment(ctx context.Context, p *models.Payment) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error)
}

func (s *Gorm) SumPayments(ctx context.Context, businessID, feeID uuid.UUID) (money.Money, error) {
	var total money.Money
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("business_id = ? AND fee_id = ?", businessID, feeID).
		Select("COALESCE(SUM(amount), 0)").
		Row().Scan(&total)
	return total, translate(err)
}

func (s *Gorm) CountPayments(ctx context.Context, businessID, feeID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("business_id = ? AND fee_id = ?", businessID, feeID).
		Count(&count).Error
	return count, translate(err)
}

func (s *Gorm) ListPayments(ctx context.Context, businessID uuid.UUID, feeIDs []uuid.UUID) ([]models.Payment, error) {
	q := s.db.WithContext(ctx).Where("business_id = ?", businessID)
	if len(feeIDs) > 0 {
		q = q.Where("fee_id IN ?", feeIDs)
	}
	var payments []models.Payment
	err := q.Order("paid_at, id").Find(&payments).Error
	return payments, translate(err)
}

func (s *Gorm) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return translate(s.db.WithContext(ctx).Create(t).Error)
}

func (s *Gorm) ListTransactions(ctx context.Context, businessID uuid.UUID) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("occurred_at, created_at").
		Find(&txns).Error
	return txns, translate(err)
}

func (s *Gorm) CreateJobRun(ctx context.Context, r *models.JobRun) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *Gorm) ListJobRuns(ctx context.Context, businessID uuid.UUID, limit int) ([]models.JobRun, error) {
	q := s.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("started_at DESC, finished_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []models.JobRun
	err := q.Find(&runs).Error
	return runs, translate(err)
}
