package routes

import (
	"saccotrack/internal/adapters/http/handlers"
	"saccotrack/internal/adapters/http/middleware"
	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/config"
	"saccotrack/internal/core/services"

	"github.com/gofiber/fiber/v2"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, store repositories.LedgerStore, scheduler *services.Scheduler, notifier services.Notifier, cfg *config.Config) {
	// Initialize services
	memberService := services.NewMemberService(store)
	loanService := services.NewLoanService(store, notifier)
	savingService := services.NewSavingService(store, notifier)
	fineService := services.NewFineService(store, notifier)
	reportService := services.NewReportService(store)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(scheduler)
	memberHandler := handlers.NewMemberHandler(memberService)
	loanHandler := handlers.NewLoanHandler(loanService)
	savingHandler := handlers.NewSavingHandler(savingService)
	fineHandler := handlers.NewFineHandler(fineService)
	automationHandler := handlers.NewAutomationHandler(scheduler, reportService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	memberRoutes := apiV1.Group("/members")
	setupMemberRoutes(memberRoutes, memberHandler)

	loanRoutes := apiV1.Group("/loans")
	setupLoanRoutes(loanRoutes, loanHandler)

	savingRoutes := apiV1.Group("/savings")
	setupSavingRoutes(savingRoutes, savingHandler)

	fineRoutes := apiV1.Group("/fines")
	setupFineRoutes(fineRoutes, fineHandler)

	automationRoutes := apiV1.Group("/automation")
	setupAutomationRoutes(automationRoutes, automationHandler)
}

// setupMemberRoutes configures member routes
func setupMemberRoutes(router fiber.Router, handler *handlers.MemberHandler) {
	router.Post("/", handler.Register)
	router.Get("/", handler.List)
	router.Get("/:id", handler.Get)
	router.Get("/:id/summary", handler.Summary)
	router.Put("/:id/approve", handler.Approve)
	router.Put("/:id/reject", handler.Reject)
}

// setupLoanRoutes configures loan routes
func setupLoanRoutes(router fiber.Router, handler *handlers.LoanHandler) {
	router.Post("/", handler.Request)
	router.Get("/", handler.List)
	router.Get("/:id", handler.Get)
	router.Put("/:id/approve", handler.Approve)
	router.Put("/:id/reject", handler.Reject)
	router.Post("/:id/repay", handler.Repay)
}

// setupSavingRoutes configures saving routes
func setupSavingRoutes(router fiber.Router, handler *handlers.SavingHandler) {
	router.Post("/", handler.Deposit)
	router.Get("/", handler.List)
}

// setupFineRoutes configures fine routes
func setupFineRoutes(router fiber.Router, handler *handlers.FineHandler) {
	router.Post("/", handler.Issue)
	router.Get("/", handler.List)
	router.Post("/:id/pay", handler.Pay)
}

// setupAutomationRoutes configures automation trigger and audit routes.
// Manual triggers get a stricter rate limit than the general API.
func setupAutomationRoutes(router fiber.Router, handler *handlers.AutomationHandler) {
	router.Post("/daily", middleware.TriggerRateLimiter(), handler.TriggerDaily)
	router.Post("/weekly", middleware.TriggerRateLimiter(), handler.TriggerWeekly)
	router.Post("/monthly", middleware.TriggerRateLimiter(), handler.TriggerMonthly)
	router.Get("/status", handler.Status)
	router.Get("/logs", handler.Logs)
	router.Get("/reports", middleware.ReportCache(), handler.Reports)
}
