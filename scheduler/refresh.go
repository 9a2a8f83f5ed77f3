package scheduler

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"donorlink/models"
)

// RefreshCampaign recomputes the campaign's cached status and denormalized
// counters from its emails. Called after every state transition so the
// displayed status never drifts from the per-email truth.
func RefreshCampaign(db *gorm.DB, campaignID uint) error {
	var campaign models.Campaign
	if err := db.First(&campaign, campaignID).Error; err != nil {
		return fmt.Errorf("load campaign %d: %w", campaignID, err)
	}

	var emails []models.GeneratedEmail
	if err := db.Where("campaign_id = ?", campaignID).Find(&emails).Error; err != nil {
		return fmt.Errorf("load campaign %d emails: %w", campaignID, err)
	}

	scheduled, sent, failed := 0, 0, 0
	for _, e := range emails {
		if e.IsSent {
			sent++
		}
		if HasStatus(e, models.SendStatusScheduled) || HasStatus(e, models.SendStatusRunning) {
			scheduled++
		}
		if HasStatus(e, models.SendStatusFailed) {
			failed++
		}
	}

	updates := map[string]interface{}{
		"status":          DeriveCampaignStatus(campaign, emails),
		"generated_count": len(emails),
		"scheduled_count": scheduled,
		"sent_count":      sent,
		"failed_count":    failed,
	}
	if updates["status"] == models.CampaignStatusCompleted && campaign.CompletedAt == nil {
		updates["completed_at"] = time.Now()
	}

	return db.Model(&campaign).Updates(updates).Error
}
