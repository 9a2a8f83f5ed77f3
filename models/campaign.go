package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign statuses, derived from the distribution of its emails' send
// statuses. The stored value is a display cache refreshed after every
// transition, never the source of truth.
const (
	CampaignStatusDraft       = "draft"
	CampaignStatusPending     = "pending"
	CampaignStatusGenerating  = "generating"
	CampaignStatusReadyToSend = "ready_to_send"
	CampaignStatusInProgress  = "in_progress"
	CampaignStatusCompleted   = "completed"
	CampaignStatusFailed      = "failed"
)

// Per-email send statuses
const (
	SendStatusPending   = "pending"
	SendStatusScheduled = "scheduled"
	SendStatusRunning   = "running"
	SendStatusSent      = "sent"
	SendStatusFailed    = "failed"
	SendStatusPaused    = "paused"
	SendStatusCancelled = "cancelled"
)

// Campaign represents a fundraising email campaign (a session of generated
// emails targeting a set of donors, scheduled and tracked together)
type Campaign struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`
	CreatedByID    uint `gorm:"not null;index" json:"created_by_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// Number of donors targeted for generation; generation is complete once
	// this many emails exist.
	TargetCount int `gorm:"default:0" json:"target_count"`

	// Cached aggregate status (see constants above)
	Status        string  `gorm:"default:'draft'" json:"status"`
	FailureReason *string `json:"failure_reason"`

	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Statistics (denormalized for display)
	GeneratedCount int `gorm:"default:0" json:"generated_count"`
	ScheduledCount int `gorm:"default:0" json:"scheduled_count"`
	SentCount      int `gorm:"default:0" json:"sent_count"`
	FailedCount    int `gorm:"default:0" json:"failed_count"`

	// Relations
	Organization Organization     `json:"-"`
	Emails       []GeneratedEmail `gorm:"foreignKey:CampaignID" json:"emails,omitempty"`
}

// GeneratedEmail is one rendered email per (campaign, donor) pair. Created
// by the external drafting engine; mutated only as send jobs progress.
type GeneratedEmail struct {
	gorm.Model
	CampaignID     uint `gorm:"not null;index" json:"campaign_id"`
	DonorID        uint `gorm:"not null;index" json:"donor_id"`
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`

	Subject string `gorm:"not null" json:"subject"`
	Body    string `gorm:"type:text" json:"body"`

	// NULL until the email first enters the pipeline
	SendStatus *string    `gorm:"index" json:"send_status"`
	IsSent     bool       `gorm:"default:false" json:"is_sent"`
	SentAt     *time.Time `json:"sent_at"`
	LastError  *string    `json:"last_error"`

	// Relations
	Campaign Campaign `json:"-"`
	Donor    Donor    `json:"donor,omitempty"`
}
