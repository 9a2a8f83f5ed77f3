package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"donorlink/models"
	"donorlink/scheduler"
)

type ScheduleConfigController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewScheduleConfigController(db *gorm.DB, logger *log.Logger) *ScheduleConfigController {
	return &ScheduleConfigController{
		DB:     db,
		Logger: logger,
	}
}

// loadOrCreateScheduleConfig returns the organization's schedule config,
// inserting the defaults on first use. Concurrent first calls race on the
// unique organization index; when this side loses the insert, the winner's
// row is re-read instead of surfacing the conflict.
func loadOrCreateScheduleConfig(db *gorm.DB, orgID uint) (models.ScheduleConfig, error) {
	var cfg models.ScheduleConfig
	err := db.Where("organization_id = ?", orgID).
		Attrs(models.DefaultScheduleConfig(orgID)).
		FirstOrCreate(&cfg).Error
	if err == nil {
		return cfg, nil
	}
	if rerr := db.Where("organization_id = ?", orgID).First(&cfg).Error; rerr == nil {
		return cfg, nil
	}
	return models.ScheduleConfig{}, err
}

func (scc *ScheduleConfigController) GetScheduleConfig(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	cfg, err := loadOrCreateScheduleConfig(scc.DB, user.OrganizationID)
	if err != nil {
		scc.Logger.Printf("Failed to load schedule config for org %d: %v", user.OrganizationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load schedule configuration",
		})
	}

	return c.JSON(cfg)
}

type UpdateScheduleConfigRequest struct {
	DailyLimit       *int    `json:"daily_limit"`
	MinGapMinutes    *int    `json:"min_gap_minutes"`
	MaxGapMinutes    *int    `json:"max_gap_minutes"`
	AllowedDays      *[]int  `json:"allowed_days"`
	AllowedStartTime *string `json:"allowed_start_time"`
	AllowedEndTime   *string `json:"allowed_end_time"`
	Timezone         *string `json:"timezone"`
}

// applyConfigPatch overlays the non-nil request fields onto a copy of cfg.
// Callers validate the merged result before using or persisting it.
func applyConfigPatch(cfg models.ScheduleConfig, req UpdateScheduleConfigRequest) models.ScheduleConfig {
	if req.DailyLimit != nil {
		cfg.DailyLimit = *req.DailyLimit
	}
	if req.MinGapMinutes != nil {
		cfg.MinGapMinutes = *req.MinGapMinutes
	}
	if req.MaxGapMinutes != nil {
		cfg.MaxGapMinutes = *req.MaxGapMinutes
	}
	if req.AllowedDays != nil {
		cfg.AllowedDays = *req.AllowedDays
	}
	if req.AllowedStartTime != nil {
		cfg.AllowedStartTime = *req.AllowedStartTime
	}
	if req.AllowedEndTime != nil {
		cfg.AllowedEndTime = *req.AllowedEndTime
	}
	if req.Timezone != nil {
		cfg.Timezone = *req.Timezone
	}
	return cfg
}

// UpdateScheduleConfig applies a partial update. The merged config is
// validated as a whole before anything is persisted, so a rejected request
// leaves the stored settings untouched. Already-scheduled jobs keep their
// times; new settings apply from the next scheduling operation.
func (scc *ScheduleConfigController) UpdateScheduleConfig(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	cfg, err := loadOrCreateScheduleConfig(scc.DB, user.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load schedule configuration",
		})
	}

	var req UpdateScheduleConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	merged := applyConfigPatch(cfg, req)

	if err := scheduler.ValidateConfig(merged); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Struct update with an explicit column list so the jsonb serializer on
	// AllowedDays is applied and zero values still persist.
	if err := scc.DB.Model(&cfg).
		Select("daily_limit", "min_gap_minutes", "max_gap_minutes",
			"allowed_days", "allowed_start_time", "allowed_end_time", "timezone").
		Updates(&merged).Error; err != nil {
		scc.Logger.Printf("Failed to update schedule config for org %d: %v", user.OrganizationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save schedule configuration",
		})
	}

	return c.JSON(merged)
}
