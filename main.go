package main

import (
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"donorlink/config"
	controller "donorlink/controllers"
	"donorlink/middleware"
	"donorlink/models"
	"donorlink/routes"
	"donorlink/utils"
	"donorlink/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "DONORLINK: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Sentry when a DSN is configured
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Progress hub feeds websocket subscribers
	hub := controller.NewProgressHub()

	// Initialize the dispatch worker
	mailer := utils.NewSMTPMailer()
	dispatcher := worker.NewDispatcher(config.DB, mailer, log.New(os.Stdout, "DISPATCH: ", log.LstdFlags))
	dispatcher.WebhookURL = config.AppConfig.DispatchWebhookURL
	dispatcher.OnOutcome = func(job models.EmailSendJob, email models.GeneratedEmail, success bool) {
		event := controller.ProgressEvent{
			Event:      "sent",
			CampaignID: job.CampaignID,
			EmailID:    email.ID,
			At:         time.Now(),
		}
		if !success {
			event.Event = "failed"
		}
		hub.Broadcast(job.CampaignID, event)
	}

	// Re-arm timers for jobs persisted before the last restart
	if err := dispatcher.Recover(); err != nil {
		logger.Printf("Dispatch recovery failed: %v", err)
	}

	// Setup routes
	routes.SetupRoutes(app, config.DB, dispatcher, hub)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
