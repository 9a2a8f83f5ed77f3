package utils

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/emersion/go-imap/client"
	"gopkg.in/gomail.v2"

	"donorlink/models"
)

type TestResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ValidateDonorEmail checks that a donor address is syntactically valid and
// its domain publishes MX records. Cheap enough to run before scheduling.
func ValidateDonorEmail(email string) error {
	if err := checkmail.ValidateFormat(email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	parts := strings.Split(email, "@")
	mx, err := net.LookupMX(parts[1])
	if err != nil || len(mx) == 0 {
		return fmt.Errorf("no MX records for domain %s", parts[1])
	}
	return nil
}

// VerifySenderIdentity checks that a staff member's outbound account is
// usable: SMTP credentials authenticate, and IMAP does too when configured.
// Controllers persist SenderConnected from the combined result.
func VerifySenderIdentity(user *models.User) (smtp TestResult, imap TestResult) {
	smtp = testSMTPLogin(user)
	if user.IMAPHost != "" {
		imap = testIMAPLogin(user)
	} else {
		imap = TestResult{Success: true}
	}
	return smtp, imap
}

func testSMTPLogin(user *models.User) TestResult {
	result := TestResult{}

	password, err := DecryptCredential(user.SMTPPassword)
	if err != nil {
		result.Error = fmt.Sprintf("Failed to decrypt SMTP password: %v", err)
		return result
	}

	dialer := gomail.NewDialer(user.SMTPHost, user.SMTPPort, user.SMTPUsername, password)
	switch strings.ToUpper(user.Encryption) {
	case "SSL", "TLS":
		dialer.SSL = true
	}
	dialer.TLSConfig = &tls.Config{ServerName: user.SMTPHost}

	closer, err := dialer.Dial()
	if err != nil {
		result.Error = fmt.Sprintf("SMTP connection failed: %v", err)
		LogError("smtp_connection", err, map[string]interface{}{
			"smtp_host": user.SMTPHost,
			"smtp_port": user.SMTPPort,
			"username":  user.SMTPUsername,
		})
		return result
	}
	defer closer.Close()

	result.Success = true
	return result
}

func testIMAPLogin(user *models.User) TestResult {
	result := TestResult{}

	password, err := DecryptCredential(user.IMAPPassword)
	if err != nil {
		result.Error = fmt.Sprintf("Failed to decrypt IMAP password: %v", err)
		return result
	}

	imapAddr := fmt.Sprintf("%s:%d", user.IMAPHost, user.IMAPPort)

	var c *client.Client
	switch strings.ToUpper(user.IMAPEncryption) {
	case "SSL", "TLS":
		c, err = client.DialTLS(imapAddr, nil)
	default:
		c, err = client.Dial(imapAddr)
	}
	if err != nil {
		result.Error = fmt.Sprintf("Failed to connect to IMAP server: %v", err)
		LogError("imap_connection", err, map[string]interface{}{
			"imap_host": user.IMAPHost,
			"imap_port": user.IMAPPort,
		})
		return result
	}
	defer c.Logout()

	if err := c.Login(user.IMAPUsername, password); err != nil {
		result.Error = fmt.Sprintf("IMAP authentication failed: %v", err)
		return result
	}

	result.Success = true
	return result
}
