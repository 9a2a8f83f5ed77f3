package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"donorlink/models"
	"donorlink/utils"
)

type DonorController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDonorController(db *gorm.DB, logger *log.Logger) *DonorController {
	return &DonorController{
		DB:     db,
		Logger: logger,
	}
}

type CreateDonorRequest struct {
	Email          string `json:"email" validate:"required,email"`
	FirstName      string `json:"first_name" validate:"omitempty,max=100"`
	LastName       string `json:"last_name" validate:"omitempty,max=100"`
	AssignedUserID *uint  `json:"assigned_user_id"`
	TotalDonated   int64  `json:"total_donated" validate:"omitempty,min=0"`
}

func (dc *DonorController) CreateDonor(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateDonorRequest
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

	if err := utils.ValidateDonorEmail(req.Email); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if req.AssignedUserID != nil {
		var assignee models.User
		if err := dc.DB.Where("id = ? AND organization_id = ?", *req.AssignedUserID, user.OrganizationID).
			First(&assignee).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Assigned staff member not found in your organization",
			})
		}
	}

	donor := models.Donor{
		OrganizationID: user.OrganizationID,
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		AssignedUserID: req.AssignedUserID,
		TotalDonated:   req.TotalDonated,
	}

	if err := dc.DB.Create(&donor).Error; err != nil {
		dc.Logger.Printf("Failed to create donor: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create donor",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(donor)
}

func (dc *DonorController) ListDonors(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	perPage := c.QueryInt("per_page", 50)
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	query := dc.DB.Where("organization_id = ?", user.OrganizationID)
	if assigned := c.Query("assigned_user_id"); assigned != "" {
		query = query.Where("assigned_user_id = ?", utils.ParseUint(assigned))
	}

	var total int64
	query.Model(&models.Donor{}).Count(&total)

	var donors []models.Donor
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&donors).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch donors",
		})
	}

	return c.JSON(fiber.Map{
		"donors":   donors,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func (dc *DonorController) GetDonor(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var donor models.Donor
	if err := dc.DB.Where("id = ? AND organization_id = ?", c.Params("id"), user.OrganizationID).
		Preload("AssignedUser").
		First(&donor).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Donor not found",
		})
	}

	if donor.AssignedUser != nil {
		donor.AssignedUser.Sanitize()
	}
	return c.JSON(donor)
}

type UpdateDonorRequest struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	AssignedUserID *uint   `json:"assigned_user_id"`
	IsUnsubscribed *bool   `json:"is_unsubscribed"`
	IsDoNotContact *bool   `json:"is_do_not_contact"`
	TotalDonated   *int64  `json:"total_donated"`
}

func (dc *DonorController) UpdateDonor(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var donor models.Donor
	if err := dc.DB.Where("id = ? AND organization_id = ?", c.Params("id"), user.OrganizationID).
		First(&donor).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Donor not found",
		})
	}

	var req UpdateDonorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.AssignedUserID != nil {
		var assignee models.User
		if err := dc.DB.Where("id = ? AND organization_id = ?", *req.AssignedUserID, user.OrganizationID).
			First(&assignee).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Assigned staff member not found in your organization",
			})
		}
		updates["assigned_user_id"] = *req.AssignedUserID
	}
	if req.IsUnsubscribed != nil {
		updates["is_unsubscribed"] = *req.IsUnsubscribed
	}
	if req.IsDoNotContact != nil {
		updates["is_do_not_contact"] = *req.IsDoNotContact
	}
	if req.TotalDonated != nil {
		updates["total_donated"] = *req.TotalDonated
	}

	if len(updates) == 0 {
		return c.JSON(donor)
	}

	if err := dc.DB.Model(&donor).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update donor",
		})
	}

	return c.JSON(donor)
}

func (dc *DonorController) DeleteDonor(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	result := dc.DB.Where("id = ? AND organization_id = ?", c.Params("id"), user.OrganizationID).
		Delete(&models.Donor{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete donor",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Donor not found",
		})
	}

	return c.JSON(fiber.Map{"message": "Donor deleted"})
}
