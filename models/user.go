package models

import (
	"time"

	"gorm.io/gorm"
)

// Organization represents a donor organization (nonprofit) using the platform
type Organization struct {
	gorm.Model

	Name string `gorm:"not null" json:"name"`
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`

	// Relations
	Users     []User     `gorm:"foreignKey:OrganizationID" json:"users,omitempty"`
	Donors    []Donor    `gorm:"foreignKey:OrganizationID" json:"donors,omitempty"`
	Campaigns []Campaign `gorm:"foreignKey:OrganizationID" json:"campaigns,omitempty"`
}

// User represents a staff member of an organization
type User struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Name         string `json:"name"`
	TokenVersion int    `gorm:"default:0" json:"-"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`
	IsAdmin  bool `gorm:"default:false" json:"is_admin"`

	// ========= Outbound Sender Identity =========
	// Emails to donors assigned to this user go out through this account.
	FromEmail    string `json:"from_email"`
	FromName     string `json:"from_name"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"`          // Encrypted in application layer
	Encryption   string `json:"encryption"` // SSL, TLS, STARTTLS

	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port" gorm:"default:993"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"-"` // Encrypted in application layer
	IMAPEncryption string `json:"imap_encryption" gorm:"default:'SSL'"`

	SenderConnected  bool       `gorm:"default:false" json:"sender_connected"`
	SenderVerifiedAt *time.Time `json:"sender_verified_at"`
	LastSenderError  *string    `json:"last_sender_error"`

	// Relations
	Organization Organization `json:"-"`
	Donors       []Donor      `gorm:"foreignKey:AssignedUserID" json:"donors,omitempty"`
}

// Sanitize clears credential fields before returning a user over the API
func (u *User) Sanitize() {
	u.PasswordHash = ""
	u.SMTPPassword = ""
	u.IMAPPassword = ""
}

// Donor represents a single donor contact belonging to an organization
type Donor struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`

	Email     string `gorm:"not null;index" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	// Staff member whose sender identity is used when emailing this donor
	AssignedUserID *uint `gorm:"index" json:"assigned_user_id"`

	// Suppression flags
	IsUnsubscribed bool `gorm:"default:false" json:"is_unsubscribed"`
	IsBounced      bool `gorm:"default:false" json:"is_bounced"`
	IsDoNotContact bool `gorm:"default:false" json:"is_do_not_contact"`

	// Giving summary (denormalized for display)
	TotalDonated  int64      `gorm:"default:0" json:"total_donated"` // in cents
	LastDonatedAt *time.Time `json:"last_donated_at"`
	LastContactAt *time.Time `json:"last_contact_at"`

	// Relations
	Organization Organization `json:"-"`
	AssignedUser *User        `gorm:"foreignKey:AssignedUserID" json:"assigned_user,omitempty"`
}
