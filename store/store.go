// Package store is the data-access boundary of the ledger. Every method takes
// the business id and filters on it; there is no cross-tenant query.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict means a concurrent writer changed the row first.
	ErrConflict = errors.New("concurrent modification")
)

// FeeFilter narrows ListFees. Zero fields do not filter.
type FeeFilter struct {
	StudentID *uuid.UUID
	Statuses  []models.FeeStatus
	DueBefore *time.Time
}

// OverdueUpdate describes the transition applied by MarkOverdue.
type OverdueUpdate struct {
	Surcharge money.Money
}

type Store interface {
	// WithinTx runs fn against a transactional view of the store. Returning an
	// error rolls everything back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	ListActiveBusinessIDs(ctx context.Context) ([]uuid.UUID, error)

	CreateStudent(ctx context.Context, s *models.Student) error
	GetStudent(ctx context.Context, businessID, studentID uuid.UUID) (*models.Student, error)
	CreateEnrollment(ctx context.Context, e *models.Enrollment) error
	// ListEligibleStudents returns active students, restricted to a course's
	// enrollments when courseID is set.
	ListEligibleStudents(ctx context.Context, businessID uuid.UUID, courseID *uuid.UUID) ([]models.Student, error)

	CreateTemplate(ctx context.Context, t *models.FeeTemplate) error
	SaveTemplate(ctx context.Context, t *models.FeeTemplate) error
	GetTemplate(ctx context.Context, businessID, templateID uuid.UUID) (*models.FeeTemplate, error)
	ListTemplates(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]models.FeeTemplate, error)

	CreateScholarship(ctx context.Context, s *models.Scholarship) error
	SaveScholarship(ctx context.Context, s *models.Scholarship) error
	GetScholarship(ctx context.Context, businessID, scholarshipID uuid.UUID) (*models.Scholarship, error)
	ListScholarships(ctx context.Context, businessID, studentID uuid.UUID, activeOnly bool) ([]models.Scholarship, error)

	// CreateFee returns ErrDuplicate when the (student, template, period)
	// unique index already holds a fee.
	CreateFee(ctx context.Context, f *models.Fee) error
	GetFee(ctx context.Context, businessID, feeID uuid.UUID) (*models.Fee, error)
	// GetFeeForUpdate locks the fee row until the surrounding transaction ends.
	GetFeeForUpdate(ctx context.Context, businessID, feeID uuid.UUID) (*models.Fee, error)
	FeeExistsForPeriod(ctx context.Context, businessID, studentID, templateID uuid.UUID, periodKey string) (bool, error)
	ListFees(ctx context.Context, businessID uuid.UUID, filter FeeFilter) ([]models.Fee, error)
	// UpdateFeeStatus writes status and paidAt if f.Version still matches,
	// then bumps f.Version. A stale version yields ErrConflict.
	UpdateFeeStatus(ctx context.Context, f *models.Fee, status models.FeeStatus, paidAt *time.Time) error
	// MarkOverdue moves a PENDING or PARTIAL fee to OVERDUE and adds the
	// surcharge to its amount. It reports false when the fee was no longer
	// eligible, which makes a repeated sweep a no-op.
	MarkOverdue(ctx context.Context, f *models.Fee, upd OverdueUpdate) (bool, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	SumPayments(ctx context.Context, businessID, feeID uuid.UUID) (money.Money, error)
	CountPayments(ctx context.Context, businessID, feeID uuid.UUID) (int64, error)
	// ListPayments returns payments of the given fees, or of the whole
	// business when feeIDs is empty, oldest first.
	ListPayments(ctx context.Context, businessID uuid.UUID, feeIDs []uuid.UUID) ([]models.Payment, error)

	CreateTransaction(ctx context.Context, t *models.Transaction) error
	// ListTransactions returns the accounting entries of a business, oldest first.
	ListTransactions(ctx context.Context, businessID uuid.UUID) ([]models.Transaction, error)

	CreateJobRun(ctx context.Context, r *models.JobRun) error
	// ListJobRuns returns the newest batch runs first. A limit of zero
	// returns them all.
	ListJobRuns(ctx context.Context, businessID uuid.UUID, limit int) ([]models.JobRun, error)
}
