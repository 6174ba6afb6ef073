package handlers

import (
	"github.com/anjiri1684/fee_ledger/middleware"
	"github.com/anjiri1684/fee_ledger/models"
	"github.com/anjiri1684/fee_ledger/money"
	"github.com/anjiri1684/fee_ledger/services"
	"github.com/gofiber/fiber/v2"
)

type RecordPaymentRequest struct {
	Amount            money.Money          `json:"amount"`
	Method            models.PaymentMethod `json:"method" validate:"required,oneof=CASH CARD TRANSFER"`
	TeacherID         string               `json:"teacher_id" validate:"omitempty,uuid"`
	TeacherCommission *money.Money         `json:"teacher_commission"`
	ReserveAmount     *money.Money         `json:"reserve_amount"`
	SchoolAmount      *money.Money         `json:"school_amount"`
}

func (r RecordPaymentRequest) attribution() *services.Attribution {
	if r.TeacherID == "" && r.TeacherCommission == nil && r.ReserveAmount == nil && r.SchoolAmount == nil {
		return nil
	}
	return &services.Attribution{
		TeacherID:         optionalUUID(r.TeacherID),
		TeacherCommission: r.TeacherCommission,
		ReserveAmount:     r.ReserveAmount,
		SchoolAmount:      r.SchoolAmount,
	}
}

func (h *FinanceHandler) RecordPayment(c *fiber.Ctx) error {
	feeID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req RecordPaymentRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	payment, err := h.Ledger.RecordPayment(c.UserContext(), middleware.BusinessID(c), feeID, req.Amount, req.Method, req.attribution())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}

func (h *FinanceHandler) ListPayments(c *fiber.Ctx) error {
	feeID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	payments, err := h.Ledger.ListPayments(c.UserContext(), middleware.BusinessID(c), feeID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payments)
}

func (h *FinanceHandler) FeeBalance(c *fiber.Ctx) error {
	feeID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	balance, err := h.Ledger.FeeBalance(c.UserContext(), middleware.BusinessID(c), feeID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(balance)
}

func (h *FinanceHandler) ListTransactions(c *fiber.Ctx) error {
	txns, err := h.Ledger.ListTransactions(c.UserContext(), middleware.BusinessID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(txns)
}
