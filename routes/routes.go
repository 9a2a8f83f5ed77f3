package routes

import (
	"log"
	"os"

	controller "donorlink/controllers"
	"donorlink/middleware"
	"donorlink/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize logger
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", controller.Me)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, dispatcher *worker.Dispatcher, hub *controller.ProgressHub) {
	// Initialize controllers with their respective loggers
	senderController := controller.NewSenderController(db, log.New(os.Stdout, "SENDER: ", log.LstdFlags))
	donorController := controller.NewDonorController(db, log.New(os.Stdout, "DONOR: ", log.LstdFlags))
	campaignController := controller.NewCampaignController(db, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	configController := controller.NewScheduleConfigController(db, log.New(os.Stdout, "SCHEDULE: ", log.LstdFlags))
	scheduleController := controller.NewScheduleController(db, log.New(os.Stdout, "SCHEDULE: ", log.LstdFlags), dispatcher, hub)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Sender identity routes
	sender := api.Group("/sender")
	sender.Put("/", senderController.ConnectSender)
	sender.Post("/verify", senderController.VerifySender)

	// Donor routes
	donor := api.Group("/donors")
	donor.Post("/", donorController.CreateDonor)
	donor.Get("/", donorController.ListDonors)
	donor.Get("/:id", donorController.GetDonor)
	donor.Patch("/:id", donorController.UpdateDonor)
	donor.Delete("/:id", donorController.DeleteDonor)

	// Schedule configuration routes
	schedule := api.Group("/schedule-config")
	schedule.Get("/", configController.GetScheduleConfig)
	schedule.Patch("/", configController.UpdateScheduleConfig)

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.ListCampaigns)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Post("/:id/emails", campaignController.IngestEmails)
	campaign.Post("/:id/failure", campaignController.ReportGenerationFailure)
	campaign.Get("/:id/schedule", scheduleController.GetCampaignSchedule)

	// Scheduling lifecycle, rate limited per user and campaign
	lifecycle := campaign.Group("/:id", middleware.ScheduleRateLimiter())
	lifecycle.Post("/schedule", scheduleController.ScheduleCampaign)
	lifecycle.Post("/pause", scheduleController.PauseCampaign)
	lifecycle.Post("/resume", scheduleController.ResumeCampaign)
	lifecycle.Post("/cancel", scheduleController.CancelCampaign)
	lifecycle.Post("/retry", scheduleController.RetryCampaign)

	// WebSocket route for campaign progress
	app.Get("/api/v1/campaigns/:id/progress", websocket.New(controller.HandleCampaignProgressWS(hub)))

	// Log initialization
	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB, dispatcher *worker.Dispatcher, hub *controller.ProgressHub) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Setup auth routes
	SetupAuthRoutes(app, db)

	// Setup API routes
	SetupAPIRoutes(app, db, dispatcher, hub)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
