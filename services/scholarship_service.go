package services

import (
	"context"
	"strings"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// DiscountResult is what the resolver grants on a base amount.
// Discount + Final always equals the base exactly.
type DiscountResult struct {
	Discount money.Money `json:"discount"`
	Final    money.Money `json:"final"`
}

// ComputeDiscount stacks every active scholarship that applies to category.
// Percentages and fixed amounts add up; the total is capped at base so the
// final amount never goes negative.
func ComputeDiscount(base money.Money, category models.FeeCategory, scholarships []models.Scholarship) DiscountResult {
	total := money.Zero
	for _, s := range scholarships {
		if !s.AppliesTo(category) {
			continue
		}
		total = total.Add(s.Discount.Of(base))
	}
	discount := money.Min(total, base.ClampZero())
	return DiscountResult{
		Discount: discount,
		Final:    base.SubClamped(discount),
	}
}

type ScholarshipInput struct {
	StudentID  uuid.UUID
	Name       string
	Percentage *decimal.Decimal
	Amount     *money.Money
	Category   *models.FeeCategory
}

type ScholarshipService struct {
	store  store.Store
	logger *zap.Logger
}

func NewScholarshipService(s store.Store, logger *zap.Logger) *ScholarshipService {
	return &ScholarshipService{store: s, logger: logger}
}

func validateDiscount(in ScholarshipInput) (models.Discount, error) {
	switch {
	case in.Percentage != nil && in.Amount != nil:
		return models.Discount{}, invalid("discount", "set either percentage or amount, not both")
	case in.Percentage != nil:
		p := *in.Percentage
		if !p.IsPositive() || p.GreaterThan(hundred) {
			return models.Discount{}, invalid("percentage", "must be in (0, 100]")
		}
		return models.Percentage(p), nil
	case in.Amount != nil:
		if !in.Amount.IsPositive() {
			return models.Discount{}, invalid("amount", "must be greater than zero")
		}
		return models.FixedAmount(*in.Amount), nil
	}
	return models.Discount{}, invalid("discount", "percentage or amount is required")
}

func (s *ScholarshipService) Create(ctx context.Context, businessID uuid.UUID, in ScholarshipInput) (*models.Scholarship, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "is required")
	}
	discount, err := validateDiscount(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetStudent(ctx, businessID, in.StudentID); err != nil {
		return nil, notFound("student", err)
	}

	sc := &models.Scholarship{
		BusinessID: businessID,
		StudentID:  in.StudentID,
		Name:       strings.TrimSpace(in.Name),
		Discount:   discount,
		Category:   in.Category,
		IsActive:   true,
	}
	if err := s.store.CreateScholarship(ctx, sc); err != nil {
		return nil, err
	}
	s.logger.Info("scholarship created",
		zap.Stringer("business_id", businessID),
		zap.Stringer("student_id", in.StudentID),
		zap.String("kind", string(discount.Kind)))
	return sc, nil
}

func (s *ScholarshipService) ListForStudent(ctx context.Context, businessID, studentID uuid.UUID) ([]models.Scholarship, error) {
	return s.store.ListScholarships(ctx, businessID, studentID, false)
}

// Deactivate stops a scholarship from applying to fees created from now on.
func (s *ScholarshipService) Deactivate(ctx context.Context, businessID, scholarshipID uuid.UUID) (*models.Scholarship, error) {
	sc, err := s.store.GetScholarship(ctx, businessID, scholarshipID)
	if err != nil {
		return nil, notFound("scholarship", err)
	}
	if !sc.IsActive {
		return sc, nil
	}
	sc.IsActive = false
	if err := s.store.SaveScholarship(ctx, sc); err != nil {
		return nil, notFound("scholarship", err)
	}
	return sc, nil
}

// Preview resolves the discount a student would get on amount right now.
func (s *ScholarshipService) Preview(ctx context.Context, businessID, studentID uuid.UUID, amount money.Money, category models.FeeCategory) (DiscountResult, error) {
	scholarships, err := s.store.ListScholarships(ctx, businessID, studentID, true)
	if err != nil {
		return DiscountResult{}, err
	}
	return ComputeDiscount(amount, category, scholarships), nil
}
