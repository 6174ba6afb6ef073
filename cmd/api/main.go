package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/anjiri1684/fee_ledger/cache"
	config "github.com/anjiri1684/fee_ledger/configs"
	"github.com/anjiri1684/fee_ledger/database"
	"github.com/anjiri1684/fee_ledger/handlers"
	"github.com/anjiri1684/fee_ledger/jobs"
	"github.com/anjiri1684/fee_ledger/routes"
	"github.com/anjiri1684/fee_ledger/services"
	"github.com/anjiri1684/fee_ledger/store"
	"github.com/anjiri1684/fee_ledger/utils"
	"github.com/anjiri1684/fee_ledger/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	settings := config.Load()
	if settings.JWTSecret == "" {
		log.Fatal("🔥 JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("🔥 Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	database.ConnectDB()
	database.Migrate()

	refs, err := utils.NewReferenceGenerator(settings.SnowflakeNode)
	if err != nil {
		log.Fatalf("🔥 Invalid SNOWFLAKE_NODE: %v", err)
	}

	hub := websocket.NewHub(256)
	go hub.Run(ctx)

	deps := services.Deps{
		Store:  store.NewGorm(database.DB),
		Cache:  cache.Connect(ctx, settings.RedisAddr),
		Events: hub,
		Logger: zlog,
	}
	generator := services.NewFeeGenerator(deps, settings.FeeDefaultDueDay)
	sweeper := services.NewOverdueSweeper(deps)

	runner := jobs.NewRunner(deps.Store, generator, sweeper, zlog.Named("jobs"), settings.JobConcurrency)
	c := cron.New()
	if err := runner.Register(c, settings.FeeGenerationCron, settings.OverdueSweepCron); err != nil {
		log.Fatalf("🔥 Failed to schedule finance jobs: %v", err)
	}
	c.Start()
	log.Println("✅ Fee generation and overdue sweep jobs scheduled successfully.")

	h := &handlers.FinanceHandler{
		Templates:    services.NewTemplateService(deps.Store, zlog),
		Scholarships: services.NewScholarshipService(deps.Store, zlog),
		Generator:    generator,
		Ledger: services.NewPaymentLedger(deps, refs, services.LedgerOptions{
			MaxAttempts:        settings.PaymentMaxAttempts,
			RecordTransactions: settings.RecordTransactions,
		}),
		Sweeper:   sweeper,
		Accounts:  services.NewAccountService(deps, settings.StatsCacheTTL),
		Jobs:      runner,
		Hub:       hub,
		JWTSecret: []byte(settings.JWTSecret),
	}

	app := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       "Fee Ledger",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Disposition, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	routes.FinanceRoutes(app, h, []byte(settings.JWTSecret))

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		<-c.Stop().Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("🔥 Server shutdown failed: %v", err)
		}
	}()

	log.Printf("✅ Server is running on port %s", settings.Port)
	if err := app.Listen(":" + settings.Port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
