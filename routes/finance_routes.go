package routes

import (
	"github.com/anjiri1684/fee_ledger/handlers"
	"github.com/anjiri1684/fee_ledger/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func FinanceRoutes(app *fiber.App, h *handlers.FinanceHandler, secret []byte) {
	api := app.Group("/api/v1")

	finance := api.Group("/finance", middleware.Protected(secret), middleware.TenantRequired())

	templates := finance.Group("/templates")
	templates.Get("", h.ListTemplates)
	templates.Post("", h.CreateTemplate)
	templates.Get("/:id", h.GetTemplate)
	templates.Put("/:id", h.UpdateTemplate)

	scholarships := finance.Group("/scholarships")
	scholarships.Post("", h.CreateScholarship)
	scholarships.Post("/:id/deactivate", h.DeactivateScholarship)

	fees := finance.Group("/fees")
	fees.Get("", h.ListFees)
	fees.Post("", h.CreateManualFee)
	fees.Post("/generate", h.GenerateFees)
	fees.Post("/sweep-overdue", h.SweepOverdue)
	fees.Get("/:id", h.GetFee)
	fees.Post("/:id/void", h.VoidFee)
	fees.Get("/:id/balance", h.FeeBalance)
	fees.Get("/:id/payments", h.ListPayments)
	fees.Post("/:id/payments", h.RecordPayment)

	students := finance.Group("/students/:studentId")
	students.Get("/account", h.StudentAccount)
	students.Get("/scholarships", h.ListStudentScholarships)
	students.Post("/discount-preview", h.PreviewDiscount)

	finance.Get("/transactions", h.ListTransactions)
	finance.Get("/job-runs", h.JobRuns)
	finance.Get("/stats", h.BusinessStats)
	finance.Get("/stats/debtors.xlsx", h.ExportDebtors)

	// Outside the JWT group: the socket authenticates with its first frame.
	api.Use("/ws/finance", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws/finance", websocket.New(h.ServeEvents))
}
