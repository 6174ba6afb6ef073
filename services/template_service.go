package services

import (
	"context"
	"strings"

	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TemplateInput struct {
	Name       string
	Category   models.FeeCategory
	Amount     money.Money
	Recurrence models.Recurrence
	DayDue     *int
	LateFee    *money.Money
	CourseID   *uuid.UUID
	IsActive   *bool
}

// TemplateService manages fee templates. Fees already generated keep the
// values they were created with.
type TemplateService struct {
	store  store.Store
	logger *zap.Logger
}

func NewTemplateService(s store.Store, logger *zap.Logger) *TemplateService {
	return &TemplateService{store: s, logger: logger}
}

func validateTemplate(in TemplateInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "is required")
	}
	if in.Amount.IsNegative() {
		return invalid("amount", "must not be negative")
	}
	if !in.Recurrence.Valid() {
		return invalid("recurrence", "is not supported")
	}
	if in.DayDue != nil && (*in.DayDue < 1 || *in.DayDue > 31) {
		return invalid("day_due", "must be between 1 and 31")
	}
	if in.LateFee != nil && in.LateFee.IsNegative() {
		return invalid("late_fee", "must not be negative")
	}
	return nil
}

func (s *TemplateService) Create(ctx context.Context, businessID uuid.UUID, in TemplateInput) (*models.FeeTemplate, error) {
	if err := validateTemplate(in); err != nil {
		return nil, err
	}
	category := in.Category
	if category == "" {
		category = models.CategoryOther
	}
	t := &models.FeeTemplate{
		BusinessID: businessID,
		Name:       strings.TrimSpace(in.Name),
		Category:   category,
		Amount:     in.Amount,
		Recurrence: in.Recurrence,
		DayDue:     in.DayDue,
		LateFee:    in.LateFee,
		CourseID:   in.CourseID,
		IsActive:   in.IsActive == nil || *in.IsActive,
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("fee template created",
		zap.Stringer("business_id", businessID),
		zap.Stringer("template_id", t.ID),
		zap.String("recurrence", string(t.Recurrence)))
	return t, nil
}

// Update is an administrative edit of a template.
func (s *TemplateService) Update(ctx context.Context, businessID, templateID uuid.UUID, in TemplateInput) (*models.FeeTemplate, error) {
	if err := validateTemplate(in); err != nil {
		return nil, err
	}
	t, err := s.store.GetTemplate(ctx, businessID, templateID)
	if err != nil {
		return nil, notFound("fee template", err)
	}
	t.Name = strings.TrimSpace(in.Name)
	if in.Category != "" {
		t.Category = in.Category
	}
	t.Amount = in.Amount
	t.Recurrence = in.Recurrence
	t.DayDue = in.DayDue
	t.LateFee = in.LateFee
	t.CourseID = in.CourseID
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if err := s.store.SaveTemplate(ctx, t); err != nil {
		return nil, notFound("fee template", err)
	}
	return t, nil
}

func (s *TemplateService) Get(ctx context.Context, businessID, templateID uuid.UUID) (*models.FeeTemplate, error) {
	t, err := s.store.GetTemplate(ctx, businessID, templateID)
	if err != nil {
		return nil, notFound("fee template", err)
	}
	return t, nil
}

func (s *TemplateService) List(ctx context.Context, businessID uuid.UUID, activeOnly bool) ([]models.FeeTemplate, error) {
	return s.store.ListTemplates(ctx, businessID, activeOnly)
}
