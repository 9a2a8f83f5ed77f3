package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"donorlink/models"
	"donorlink/scheduler"
	"donorlink/utils"
)

type CampaignController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCampaignController(db *gorm.DB, logger *log.Logger) *CampaignController {
	return &CampaignController{
		DB:     db,
		Logger: logger,
	}
}

type CreateCampaignRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	TargetCount int    `json:"target_count" validate:"omitempty,min=0"`
}

func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	campaign := models.Campaign{
		OrganizationID: user.OrganizationID,
		CreatedByID:    user.ID,
		Name:           req.Name,
		Description:    req.Description,
		TargetCount:    req.TargetCount,
		Status:         models.CampaignStatusDraft,
	}
	if req.TargetCount > 0 {
		campaign.Status = models.CampaignStatusPending
	}

	if err := cc.DB.Create(&campaign).Error; err != nil {
		cc.Logger.Printf("Failed to create campaign: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create campaign",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(campaign)
}

func (cc *CampaignController) ListCampaigns(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaigns []models.Campaign
	if err := cc.DB.Where("organization_id = ?", user.OrganizationID).
		Order("created_at DESC").
		Find(&campaigns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaigns",
		})
	}

	return c.JSON(fiber.Map{"campaigns": campaigns})
}

func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND organization_id = ?", c.Params("id"), user.OrganizationID).
		Preload("Emails").
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	return c.JSON(campaign)
}

func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND organization_id = ?", c.Params("id"), user.OrganizationID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	defer scheduler.LockCampaign(campaign.ID)()

	// Refuse to delete while sends are still in flight
	var activeJobs int64
	cc.DB.Model(&models.EmailSendJob{}).
		Where("campaign_id = ? AND status IN ?", campaign.ID,
			[]string{models.JobStatusScheduled, models.JobStatusRunning}).
		Count(&activeJobs)
	if activeJobs > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Campaign has scheduled or running sends; cancel it first",
		})
	}

	tx := cc.DB.Begin()
	if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.EmailSendJob{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete campaign jobs",
		})
	}
	if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.GeneratedEmail{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete campaign emails",
		})
	}
	if err := tx.Delete(&campaign).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete campaign",
		})
	}
	if err := tx.Commit().Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete campaign",
		})
	}

	return c.JSON(fiber.Map{"message": "Campaign deleted"})
}

type IngestEmailItem struct {
	DonorID uint   `json:"donor_id" validate:"required"`
	Subject string `json:"subject" validate:"required,max=500"`
	Body    string `json:"body" validate:"required"`
}

type IngestEmailsRequest struct {
	Emails []IngestEmailItem `json:"emails" validate:"required,min=1,dive"`
}

// IngestEmails accepts rendered drafts from the drafting engine and attaches
// them to the campaign. This is the boundary where generated content enters
// the pipeline; emails arrive with a NULL send status.
func (cc *CampaignController) IngestEmails(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND organization_id = ?", c.Params("id"), user.OrganizationID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var req IngestEmailsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	defer scheduler.LockCampaign(campaign.ID)()

	// Every referenced donor must belong to the organization
	donorIDs := make([]uint, 0, len(req.Emails))
	for _, item := range req.Emails {
		donorIDs = append(donorIDs, item.DonorID)
	}
	var known int64
	cc.DB.Model(&models.Donor{}).
		Where("id IN ? AND organization_id = ?", donorIDs, user.OrganizationID).
		Count(&known)
	if int(known) != len(uniqueIDs(donorIDs)) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "One or more donors not found in your organization",
		})
	}

	tx := cc.DB.Begin()

	emails := make([]models.GeneratedEmail, 0, len(req.Emails))
	for _, item := range req.Emails {
		emails = append(emails, models.GeneratedEmail{
			CampaignID:     campaign.ID,
			DonorID:        item.DonorID,
			OrganizationID: user.OrganizationID,
			Subject:        item.Subject,
			Body:           item.Body,
		})
	}
	if err := tx.Create(&emails).Error; err != nil {
		tx.Rollback()
		cc.Logger.Printf("Failed to ingest emails for campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store generated emails",
		})
	}

	if campaign.StartedAt == nil {
		now := time.Now()
		if err := tx.Model(&campaign).Update("started_at", now).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update campaign",
			})
		}
	}

	if err := tx.Commit().Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store generated emails",
		})
	}

	if err := scheduler.RefreshCampaign(cc.DB, campaign.ID); err != nil {
		cc.Logger.Printf("Failed to refresh campaign %d after ingest: %v", campaign.ID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Emails ingested",
		"ingested": len(emails),
	})
}

type ReportFailureRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// ReportGenerationFailure raises the session-level failure flag. The
// drafting engine calls this when the pipeline as a whole breaks, which is
// distinct from an individual email's send failure.
func (cc *CampaignController) ReportGenerationFailure(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND organization_id = ?", c.Params("id"), user.OrganizationID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var req ReportFailureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	defer scheduler.LockCampaign(campaign.ID)()

	if err := cc.DB.Model(&campaign).Update("failure_reason", req.Reason).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record failure",
		})
	}
	if err := scheduler.RefreshCampaign(cc.DB, campaign.ID); err != nil {
		cc.Logger.Printf("Failed to refresh campaign %d: %v", campaign.ID, err)
	}

	utils.LogEvent("campaign_generation_failed", map[string]interface{}{
		"campaign_id": campaign.ID,
		"reason":      req.Reason,
	})

	return c.JSON(fiber.Map{
		"message": "Failure recorded",
		"status":  models.CampaignStatusFailed,
	})
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
