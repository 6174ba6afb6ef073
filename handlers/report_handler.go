package handlers

import (
	"bytes"
	"fmt"

	"github.com/anjiri1684/fee_ledger/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

const (
	defaultTopDebtors = 10
	maxTopDebtors     = 500
	debtorsSheet      = "Debtors"
	defaultJobRuns    = 20
	maxJobRuns        = 200
)

func (h *FinanceHandler) StudentAccount(c *fiber.Ctx) error {
	studentID, err := paramUUID(c, "studentId")
	if err != nil {
		return respondError(c, err)
	}
	summary, err := h.Accounts.StudentAccount(c.UserContext(), middleware.BusinessID(c), studentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

func (h *FinanceHandler) BusinessStats(c *fiber.Ctx) error {
	topN := queryInt(c, "top", defaultTopDebtors, maxTopDebtors)
	stats, err := h.Accounts.BusinessStats(c.UserContext(), middleware.BusinessID(c), h.now(), topN)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// JobRuns lists the latest fee generation and overdue sweep runs.
func (h *FinanceHandler) JobRuns(c *fiber.Ctx) error {
	limit := queryInt(c, "limit", defaultJobRuns, maxJobRuns)
	runs, err := h.Jobs.History(c.UserContext(), middleware.BusinessID(c), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(runs)
}

// ExportDebtors writes the business's debtors, largest balance first, as an
// xlsx sheet.
func (h *FinanceHandler) ExportDebtors(c *fiber.Ctx) error {
	now := h.now()
	stats, err := h.Accounts.BusinessStats(c.UserContext(), middleware.BusinessID(c), now, maxTopDebtors)
	if err != nil {
		return respondError(c, err)
	}

	f := excelize.NewFile()
	defer f.Close()
	index, err := f.NewSheet(debtorsSheet)
	if err != nil {
		return respondError(c, err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"Student ID", "Full name", "Outstanding", "Overdue", "Open fees"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(debtorsSheet, cell, header)
	}
	for i, d := range stats.TopDebtors {
		row := i + 2
		f.SetCellValue(debtorsSheet, fmt.Sprintf("A%d", row), d.StudentID.String())
		f.SetCellValue(debtorsSheet, fmt.Sprintf("B%d", row), d.FullName)
		f.SetCellValue(debtorsSheet, fmt.Sprintf("C%d", row), d.Outstanding.Float64())
		f.SetCellValue(debtorsSheet, fmt.Sprintf("D%d", row), d.Overdue.Float64())
		f.SetCellValue(debtorsSheet, fmt.Sprintf("E%d", row), d.OpenFees)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return respondError(c, fmt.Errorf("write debtors workbook: %w", err))
	}
	fileName := fmt.Sprintf("debtors_%s.xlsx", now.Format("20060102_150405"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+fileName)
	return c.Send(buf.Bytes())
}
