package utils

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"donorlink/models"
)

// CampaignMailer delivers generated campaign emails through the assigned
// staff member's connected SMTP account.
type CampaignMailer interface {
	Send(sender *models.User, to, subject, body string) (messageID string, err error)
}

type SMTPMailer struct{}

func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{}
}

// Send transmits one email and returns the generated Message-ID. The
// sender's SMTP password is stored encrypted and decrypted here, at the
// last possible moment.
func (m *SMTPMailer) Send(sender *models.User, to, subject, body string) (string, error) {
	if sender == nil || !sender.SenderConnected {
		return "", fmt.Errorf("sender identity not connected")
	}

	password, err := DecryptCredential(sender.SMTPPassword)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	messageID := fmt.Sprintf("<%s@donorlink>", uuid.New().String())

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", sender.FromEmail, sender.FromName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", messageID)
	msg.SetBody("text/html", body)

	dialer := gomail.NewDialer(sender.SMTPHost, sender.SMTPPort, sender.SMTPUsername, password)
	if err := dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("smtp send failed: %w", err)
	}

	return messageID, nil
}
