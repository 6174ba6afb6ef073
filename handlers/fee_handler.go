package handlers

import (
	"strings"

	"github.com/anjiri1684/fee_ledger/middleware"
	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/anjiri1684/fee_ledger/services"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ManualFeeRequest struct {
	StudentID         string             `json:"student_id" validate:"required,uuid"`
	Title             string             `json:"title" validate:"required,max=255"`
	Category          models.FeeCategory `json:"category" validate:"omitempty,oneof=TUITION REGISTRATION TRANSPORT MATERIALS OTHER"`
	Amount            money.Money        `json:"amount"`
	DueDate           string             `json:"due_date" validate:"required,datetime=2006-01-02"`
	LateFee           *money.Money       `json:"late_fee"`
	CourseID          string             `json:"course_id" validate:"omitempty,uuid"`
	ApplyScholarships bool               `json:"apply_scholarships"`
}

func (h *FinanceHandler) CreateManualFee(c *fiber.Ctx) error {
	var req ManualFeeRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	due, err := parseDate(req.DueDate, h.now())
	if err != nil {
		return respondError(c, fiber.NewError(fiber.StatusBadRequest, "Invalid due_date"))
	}
	fee, err := h.Generator.CreateManualFee(c.UserContext(), middleware.BusinessID(c), services.ManualFeeInput{
		StudentID:         uuid.MustParse(req.StudentID),
		Title:             req.Title,
		Category:          req.Category,
		Amount:            req.Amount,
		DueDate:           due,
		LateFee:           req.LateFee,
		CourseID:          optionalUUID(req.CourseID),
		ApplyScholarships: req.ApplyScholarships,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fee)
}

// ListFees supports ?student_id= and a comma separated ?status= filter.
func (h *FinanceHandler) ListFees(c *fiber.Ctx) error {
	var filter store.FeeFilter
	if raw := c.Query("student_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, fiber.NewError(fiber.StatusBadRequest, "Invalid student_id"))
		}
		filter.StudentID = &id
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.FeeStatus(strings.ToUpper(strings.TrimSpace(s)))
			if err := validate.Var(string(status), "oneof=PENDING PARTIAL PAID OVERDUE VOID"); err != nil {
				return respondError(c, fiber.NewError(fiber.StatusBadRequest, "Invalid status "+s))
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	fees, err := h.Generator.ListFees(c.UserContext(), middleware.BusinessID(c), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fees)
}

func (h *FinanceHandler) GetFee(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	fee, err := h.Generator.GetFee(c.UserContext(), middleware.BusinessID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fee)
}

func (h *FinanceHandler) VoidFee(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	fee, err := h.Generator.VoidFee(c.UserContext(), middleware.BusinessID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fee)
}

type GenerateRequest struct {
	TargetDate  string              `json:"target_date" validate:"omitempty,datetime=2006-01-02"`
	Recurrences []models.Recurrence `json:"recurrences" validate:"omitempty,dive,oneof=ONE_TIME MONTHLY QUARTERLY YEARLY"`
}

// GenerateFees runs generation for the caller's business on demand. The
// scheduled job does the same for every business.
func (h *FinanceHandler) GenerateFees(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	target, err := parseDate(req.TargetDate, h.now())
	if err != nil {
		return respondError(c, fiber.NewError(fiber.StatusBadRequest, "Invalid target_date"))
	}
	result, err := h.Generator.Generate(c.UserContext(), middleware.BusinessID(c), target, req.Recurrences...)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

type SweepRequest struct {
	AsOf string `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

func (h *FinanceHandler) SweepOverdue(c *fiber.Ctx) error {
	var req SweepRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	asOf, err := parseDate(req.AsOf, h.now())
	if err != nil {
		return respondError(c, fiber.NewError(fiber.StatusBadRequest, "Invalid as_of"))
	}
	result, err := h.Sweeper.Sweep(c.UserContext(), middleware.BusinessID(c), asOf)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
