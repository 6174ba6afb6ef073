package handlers

import (
	"time"

	"github.com/anjiri1684/fee_ledger/jobs"
	"github.com/anjiri1684/fee_ledger/middleware"
	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/anjiri1684/fee_ledger/services"
	"github.com/anjiri1684/fee_ledger/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FinanceHandler serves the fee ledger API. Every route it backs runs behind
// middleware.TenantRequired, so the business always comes from the token.
type FinanceHandler struct {
	Templates    *services.TemplateService
	Scholarships *services.ScholarshipService
	Generator    *services.FeeGenerator
	Ledger       *services.PaymentLedger
	Sweeper      *services.OverdueSweeper
	Accounts     *services.AccountService
	Jobs         *jobs.Runner
	Hub          *websocket.Hub
	JWTSecret    []byte
	Now          func() time.Time
}

func (h *FinanceHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type TemplateRequest struct {
	Name       string             `json:"name" validate:"required,max=255"`
	Category   models.FeeCategory `json:"category" validate:"omitempty,oneof=TUITION REGISTRATION TRANSPORT MATERIALS OTHER"`
	Amount     money.Money        `json:"amount"`
	Recurrence models.Recurrence  `json:"recurrence" validate:"required,oneof=ONE_TIME MONTHLY QUARTERLY YEARLY"`
	DayDue     *int               `json:"day_due" validate:"omitempty,min=1,max=31"`
	LateFee    *money.Money       `json:"late_fee"`
	CourseID   string             `json:"course_id" validate:"omitempty,uuid"`
	IsActive   *bool              `json:"is_active"`
}

func (r TemplateRequest) input() services.TemplateInput {
	return services.TemplateInput{
		Name:       r.Name,
		Category:   r.Category,
		Amount:     r.Amount,
		Recurrence: r.Recurrence,
		DayDue:     r.DayDue,
		LateFee:    r.LateFee,
		CourseID:   optionalUUID(r.CourseID),
		IsActive:   r.IsActive,
	}
}

func (h *FinanceHandler) CreateTemplate(c *fiber.Ctx) error {
	var req TemplateRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	t, err := h.Templates.Create(c.UserContext(), middleware.BusinessID(c), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *FinanceHandler) UpdateTemplate(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req TemplateRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	t, err := h.Templates.Update(c.UserContext(), middleware.BusinessID(c), id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(t)
}

func (h *FinanceHandler) GetTemplate(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	t, err := h.Templates.Get(c.UserContext(), middleware.BusinessID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(t)
}

func (h *FinanceHandler) ListTemplates(c *fiber.Ctx) error {
	templates, err := h.Templates.List(c.UserContext(), middleware.BusinessID(c), c.QueryBool("active"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(templates)
}

type ScholarshipRequest struct {
	StudentID  string              `json:"student_id" validate:"required,uuid"`
	Name       string              `json:"name" validate:"required,max=255"`
	Percentage *decimal.Decimal    `json:"percentage"`
	Amount     *money.Money        `json:"amount"`
	Category   *models.FeeCategory `json:"category" validate:"omitempty,oneof=TUITION REGISTRATION TRANSPORT MATERIALS OTHER"`
}

func (h *FinanceHandler) CreateScholarship(c *fiber.Ctx) error {
	var req ScholarshipRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	s, err := h.Scholarships.Create(c.UserContext(), middleware.BusinessID(c), services.ScholarshipInput{
		StudentID:  uuid.MustParse(req.StudentID),
		Name:       req.Name,
		Percentage: req.Percentage,
		Amount:     req.Amount,
		Category:   req.Category,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s)
}

func (h *FinanceHandler) ListStudentScholarships(c *fiber.Ctx) error {
	studentID, err := paramUUID(c, "studentId")
	if err != nil {
		return respondError(c, err)
	}
	list, err := h.Scholarships.ListForStudent(c.UserContext(), middleware.BusinessID(c), studentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (h *FinanceHandler) DeactivateScholarship(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	s, err := h.Scholarships.Deactivate(c.UserContext(), middleware.BusinessID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s)
}

type DiscountPreviewRequest struct {
	Amount   money.Money        `json:"amount"`
	Category models.FeeCategory `json:"category" validate:"required,oneof=TUITION REGISTRATION TRANSPORT MATERIALS OTHER"`
}

// PreviewDiscount shows what a student's scholarships would take off an
// amount without creating a fee.
func (h *FinanceHandler) PreviewDiscount(c *fiber.Ctx) error {
	studentID, err := paramUUID(c, "studentId")
	if err != nil {
		return respondError(c, err)
	}
	var req DiscountPreviewRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	result, err := h.Scholarships.Preview(c.UserContext(), middleware.BusinessID(c), studentID, req.Amount, req.Category)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
