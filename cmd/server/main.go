package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"saccotrack/internal/adapters/http/middleware"
	"saccotrack/internal/adapters/http/routes"
	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/config"
	"saccotrack/internal/core/services"
	"saccotrack/internal/events"

	"github.com/gofiber/fiber/v2"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	// Seed development data
	if cfg.IsDev() {
		if err := config.NewSeeder(db).Run(); err != nil {
			log.Printf("⚠️ Warning: seeding failed: %v", err)
		}
	}

	// Event bus carries entity insert events from the store to the
	// reactive rules
	bus := events.NewBus(64)
	defer bus.Close()

	store := repositories.NewLedgerRepository(db, bus)
	notifier := services.NewNotificationService(cfg.Notify)

	// Rule engine + scheduler (time-driven rules)
	engine := services.NewRuleEngine(store, notifier, cfg.Automation)
	scheduler := services.NewScheduler(engine, cfg.Automation)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("❌ Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Event watcher (event-driven rules)
	watcher := services.NewEventWatcher(store, bus)
	watcher.Start()
	defer watcher.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "SaccoTrack API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes
	routes.Setup(app, store, scheduler, notifier, cfg)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
