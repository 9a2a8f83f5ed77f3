package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"donorlink/models"
	"donorlink/utils"
)

type SenderController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewSenderController(db *gorm.DB, logger *log.Logger) *SenderController {
	return &SenderController{
		DB:     db,
		Logger: logger,
	}
}

type ConnectSenderRequest struct {
	FromEmail    string `json:"from_email" validate:"required,email"`
	FromName     string `json:"from_name" validate:"required,max=100"`
	SMTPHost     string `json:"smtp_host" validate:"required"`
	SMTPPort     int    `json:"smtp_port" validate:"required,min=1,max=65535"`
	SMTPUsername string `json:"smtp_username" validate:"required"`
	SMTPPassword string `json:"smtp_password" validate:"required"`
	Encryption   string `json:"encryption" validate:"required,oneof=SSL TLS STARTTLS"`

	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"imap_password"`
	IMAPEncryption string `json:"imap_encryption"`
}

// ConnectSender stores the caller's outbound account. Credentials are
// encrypted at rest; the identity stays unverified until VerifySender passes.
func (sc *SenderController) ConnectSender(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req ConnectSenderRequest
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

	encryptedSMTP, err := utils.EncryptCredential(req.SMTPPassword)
	if err != nil {
		sc.Logger.Printf("Failed to encrypt SMTP password for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store credentials",
		})
	}

	updates := map[string]interface{}{
		"from_email":        req.FromEmail,
		"from_name":         req.FromName,
		"smtp_host":         req.SMTPHost,
		"smtp_port":         req.SMTPPort,
		"smtp_username":     req.SMTPUsername,
		"smtp_password":     encryptedSMTP,
		"encryption":        req.Encryption,
		"sender_connected":  false,
		"sender_verified_at": nil,
		"last_sender_error": nil,
	}

	if req.IMAPHost != "" {
		encryptedIMAP, err := utils.EncryptCredential(req.IMAPPassword)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store credentials",
			})
		}
		updates["imap_host"] = req.IMAPHost
		updates["imap_port"] = req.IMAPPort
		updates["imap_username"] = req.IMAPUsername
		updates["imap_password"] = encryptedIMAP
		if req.IMAPEncryption != "" {
			updates["imap_encryption"] = req.IMAPEncryption
		}
	}

	if err := sc.DB.Model(user).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save sender identity",
		})
	}

	user.Sanitize()
	return c.JSON(fiber.Map{
		"message": "Sender identity saved. Run verification before scheduling.",
		"user":    user,
	})
}

// VerifySender attempts live SMTP (and IMAP when configured) logins with the
// stored credentials and flips SenderConnected on success.
func (sc *SenderController) VerifySender(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if user.SMTPHost == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No sender identity configured",
		})
	}

	smtpResult, imapResult := utils.VerifySenderIdentity(user)
	connected := smtpResult.Success && imapResult.Success

	updates := map[string]interface{}{
		"sender_connected": connected,
	}
	if connected {
		now := time.Now()
		updates["sender_verified_at"] = now
		updates["last_sender_error"] = nil
	} else {
		detail := smtpResult.Error
		if detail == "" {
			detail = imapResult.Error
		}
		updates["last_sender_error"] = detail
		utils.LogEvent("sender_verification_failed", map[string]interface{}{
			"user_id":   user.ID,
			"smtp_host": user.SMTPHost,
			"detail":    detail,
		})
	}

	if err := sc.DB.Model(user).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record verification result",
		})
	}

	status := fiber.StatusOK
	if !connected {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(fiber.Map{
		"connected": connected,
		"smtp":      smtpResult,
		"imap":      imapResult,
	})
}
