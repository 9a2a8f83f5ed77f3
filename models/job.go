package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailSendJob statuses
const (
	JobStatusScheduled = "scheduled"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// EmailSendJob is one attempt to send a GeneratedEmail at a concrete time.
// An email may accumulate several jobs over retries, but at most one job is
// in scheduled or running state per email at any time.
type EmailSendJob struct {
	gorm.Model
	EmailID        uint `gorm:"not null;index" json:"email_id"`
	CampaignID     uint `gorm:"not null;index" json:"campaign_id"`
	OrganizationID uint `gorm:"not null;index" json:"organization_id"`

	ScheduledTime time.Time `gorm:"not null;index" json:"scheduled_time"`
	Status        string    `gorm:"default:'scheduled';index" json:"status"`

	// Opaque capability for cancelling the pending dispatch before it fires
	DispatchHandle string `gorm:"uniqueIndex" json:"dispatch_handle"`

	CompletedAt  *time.Time `json:"completed_at"`
	ErrorMessage *string    `json:"error_message"`

	// Relations
	Email    GeneratedEmail `gorm:"foreignKey:EmailID" json:"-"`
	Campaign Campaign       `json:"-"`
}

// Active reports whether the job still occupies the email's single active
// slot (at-most-one-active-job invariant).
func (j *EmailSendJob) Active() bool {
	return j.Status == JobStatusScheduled || j.Status == JobStatusRunning
}
