package controller

import (
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"donorlink/models"
	"donorlink/scheduler"
	"donorlink/utils"
	"donorlink/worker"
)

// ScheduleController owns the campaign scheduling lifecycle: planning slots,
// persisting jobs, and driving the dispatcher. Every operation takes the
// per-campaign lock so concurrent requests against one campaign serialize.
type ScheduleController struct {
	DB         *gorm.DB
	Logger     *log.Logger
	Dispatcher *worker.Dispatcher
	Quota      *scheduler.QuotaTracker
	Hub        *ProgressHub
}

func NewScheduleController(db *gorm.DB, logger *log.Logger, dispatcher *worker.Dispatcher, hub *ProgressHub) *ScheduleController {
	return &ScheduleController{
		DB:         db,
		Logger:     logger,
		Dispatcher: dispatcher,
		Quota:      scheduler.NewQuotaTracker(db),
		Hub:        hub,
	}
}

// ScheduleCampaign plans send times for every schedulable email in the
// campaign and registers a dispatch job per slot.
func (sc *ScheduleController) ScheduleCampaign(c *fiber.Ctx) error {
	return sc.scheduleFiltered(c, scheduler.Schedulable, scheduler.ErrNoSchedulableEmails, "scheduled")
}

// ResumeCampaign re-plans only the emails paused earlier. Times are computed
// fresh against the current config and quota, not restored from before the
// pause.
func (sc *ScheduleController) ResumeCampaign(c *fiber.Ctx) error {
	paused := func(e models.GeneratedEmail) bool {
		return scheduler.HasStatus(e, models.SendStatusPaused)
	}
	return sc.scheduleFiltered(c, paused, scheduler.ErrNoPausedEmails, "resumed")
}

// RetryCampaign re-plans the schedulable set, which after a failure or
// cancellation includes exactly the emails that never went out.
func (sc *ScheduleController) RetryCampaign(c *fiber.Ctx) error {
	return sc.scheduleFiltered(c, scheduler.Schedulable, scheduler.ErrNoSchedulableEmails, "retried")
}

// scheduleFiltered is the shared scheduling core: filter the campaign's
// emails, drop donors that cannot be contacted, plan slots against the
// organization's window and remaining quota, persist one job per slot, and
// hand the jobs to the dispatcher.
func (sc *ScheduleController) scheduleFiltered(c *fiber.Ctx, eligible func(models.GeneratedEmail) bool, emptyErr error, event string) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := sc.DB.Where("id = ? AND organization_id = ?", c.Params("id"), user.OrganizationID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	defer scheduler.LockCampaign(campaign.ID)()

	cfg, err := loadOrCreateScheduleConfig(sc.DB, user.OrganizationID)
	if err != nil {
		sc.Logger.Printf("Failed to load schedule settings for org %d: %v", user.OrganizationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load schedule configuration",
		})
	}

	// An optional request body overrides config fields for this run only;
	// the stored config is untouched.
	if len(c.Body()) > 0 {
		var override UpdateScheduleConfigRequest
		if err := c.BodyParser(&override); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		cfg = applyConfigPatch(cfg, override)
	}
	if err := scheduler.ValidateConfig(cfg); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	settings, err := scheduler.SettingsFromConfig(cfg)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var emails []models.GeneratedEmail
	if err := sc.DB.Where("campaign_id = ?", campaign.ID).Order("id ASC").Find(&emails).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load campaign emails",
		})
	}

	candidates := make([]models.GeneratedEmail, 0, len(emails))
	for _, e := range emails {
		if eligible(e) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": emptyErr.Error(),
		})
	}

	sendable, suppressed, capErr, err := sc.filterContactable(candidates)
	if err != nil {
		sc.Logger.Printf("Failed to load donor records for campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load donor records",
		})
	}
	if len(sendable) == 0 {
		resp := fiber.Map{
			"error": "No emails can be sent",
		}
		if capErr != nil {
			resp["error"] = capErr.Error()
			resp["donor_ids"] = capErr.DonorIDs
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}

	now := time.Now()
	usedToday, err := sc.Quota.SentToday(user.OrganizationID, settings.Location, now)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute daily quota",
		})
	}

	emailIDs := make([]uint, len(sendable))
	for i, e := range sendable {
		emailIDs[i] = e.ID
	}

	rng := rand.New(rand.NewSource(now.UnixNano()))
	plan, err := scheduler.BuildPlan(emailIDs, settings, usedToday, now, rng)
	if err != nil {
		var verr *scheduler.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": verr.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to plan schedule",
		})
	}

	jobs, err := sc.persistPlan(&campaign, plan)
	if err != nil {
		sc.Logger.Printf("Failed to persist plan for campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save schedule",
		})
	}

	for _, job := range jobs {
		sc.Dispatcher.Enqueue(job)
	}

	if err := scheduler.RefreshCampaign(sc.DB, campaign.ID); err != nil {
		sc.Logger.Printf("Failed to refresh campaign %d: %v", campaign.ID, err)
	}

	utils.LogEvent("campaign_"+event, map[string]interface{}{
		"campaign_id": campaign.ID,
		"org_id":      user.OrganizationID,
		"scheduled":   len(plan.Slots),
		"window":      settings.Describe(),
	})
	sc.Hub.Broadcast(campaign.ID, ProgressEvent{
		Event:      event,
		CampaignID: campaign.ID,
		Count:      len(plan.Slots),
		At:         now,
	})

	resp := fiber.Map{
		"message":                   "Campaign " + event,
		"scheduled_count":           len(plan.Slots),
		"scheduled_for_today":       plan.ScheduledToday,
		"scheduled_for_later":       plan.ScheduledLater,
		"estimated_completion_time": plan.EstimatedCompletion,
		"quota_used_today":          usedToday,
	}
	if suppressed > 0 {
		resp["suppressed_count"] = suppressed
	}
	if capErr != nil {
		resp["unsendable_donor_ids"] = capErr.DonorIDs
	}
	return c.JSON(resp)
}

// PauseCampaign cancels the pending dispatch for every scheduled job and
// marks the emails paused. A send already running is past the point of no
// return and finishes on its own.
func (sc *ScheduleController) PauseCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := sc.DB.Where("id = ? AND organization_id = ?", c.Params("id"), user.OrganizationID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	defer scheduler.LockCampaign(campaign.ID)()

	count, err := sc.withdrawScheduled(campaign.ID, models.SendStatusPaused)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to pause campaign",
		})
	}
	if count == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": scheduler.ErrNoScheduledJobs.Error(),
		})
	}

	if err := scheduler.RefreshCampaign(sc.DB, campaign.ID); err != nil {
		sc.Logger.Printf("Failed to refresh campaign %d: %v", campaign.ID, err)
	}

	sc.Hub.Broadcast(campaign.ID, ProgressEvent{
		Event:      "paused",
		CampaignID: campaign.ID,
		Count:      count,
		At:         time.Now(),
	})

	return c.JSON(fiber.Map{
		"message":      "Campaign paused",
		"paused_count": count,
	})
}

// CancelCampaign withdraws every scheduled job and additionally marks every
// remaining non-sent email cancelled, ending the run. A send already running
// finishes on its own. Unlike pause there is no resume path; rescheduling
// starts a fresh plan.
func (sc *ScheduleController) CancelCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := sc.DB.Where("id = ? AND organization_id = ?", c.Params("id"), user.OrganizationID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	defer scheduler.LockCampaign(campaign.ID)()

	withdrawn, err := sc.withdrawScheduled(campaign.ID, models.SendStatusCancelled)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to cancel campaign",
		})
	}

	// Remaining non-sent emails (never scheduled, paused, or failed) have no
	// live job; flip their status directly
	remaining := sc.DB.Model(&models.GeneratedEmail{}).
		Where("campaign_id = ? AND is_sent = ?", campaign.ID, false).
		Where("send_status IS NULL OR send_status IN ?",
			[]string{models.SendStatusPending, models.SendStatusPaused, models.SendStatusFailed}).
		Update("send_status", models.SendStatusCancelled)
	if remaining.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to cancel campaign",
		})
	}

	total := withdrawn + int(remaining.RowsAffected)
	if total == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "no cancellable emails found for this campaign",
		})
	}

	if err := scheduler.RefreshCampaign(sc.DB, campaign.ID); err != nil {
		sc.Logger.Printf("Failed to refresh campaign %d: %v", campaign.ID, err)
	}

	sc.Hub.Broadcast(campaign.ID, ProgressEvent{
		Event:      "cancelled",
		CampaignID: campaign.ID,
		Count:      total,
		At:         time.Now(),
	})

	return c.JSON(fiber.Map{
		"message":         "Campaign cancelled",
		"cancelled_count": total,
	})
}

// GetCampaignSchedule returns the campaign's job timeline: upcoming sends in
// order plus the settled history and per-status counts.
func (sc *ScheduleController) GetCampaignSchedule(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := sc.DB.Where("id = ? AND organization_id = ?", c.Params("id"), user.OrganizationID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var jobs []models.EmailSendJob
	if err := sc.DB.Where("campaign_id = ?", campaign.ID).
		Order("scheduled_time ASC").
		Find(&jobs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load schedule",
		})
	}

	upcoming := make([]models.EmailSendJob, 0, len(jobs))
	history := make([]models.EmailSendJob, 0, len(jobs))
	counts := map[string]int{}
	var nextSendAt *time.Time
	var lastPlanned *time.Time

	for i := range jobs {
		job := jobs[i]
		counts[job.Status]++
		if job.Active() {
			upcoming = append(upcoming, job)
			if nextSendAt == nil {
				nextSendAt = &job.ScheduledTime
			}
			lastPlanned = &job.ScheduledTime
		} else {
			history = append(history, job)
		}
	}

	resp := fiber.Map{
		"campaign_id":     campaign.ID,
		"campaign_status": campaign.Status,
		"counts":          counts,
		"upcoming":        upcoming,
		"history":         history,
	}
	if nextSendAt != nil {
		resp["next_send_at"] = nextSendAt
		resp["estimated_completion_time"] = lastPlanned
	}
	return c.JSON(resp)
}

// filterContactable removes emails whose donor is suppressed or whose
// assigned staff member has no verified sender identity. Suppressed donors
// are skipped silently (counted); missing sender capability is reported so
// the caller can fix assignments. A failed lookup is a storage error, not
// an empty result.
func (sc *ScheduleController) filterContactable(emails []models.GeneratedEmail) (sendable []models.GeneratedEmail, suppressed int, capErr *scheduler.CapabilityError, err error) {
	donorIDs := make([]uint, 0, len(emails))
	for _, e := range emails {
		donorIDs = append(donorIDs, e.DonorID)
	}

	var donors []models.Donor
	if err = sc.DB.Where("id IN ?", uniqueIDs(donorIDs)).Find(&donors).Error; err != nil {
		return nil, 0, nil, err
	}
	donorByID := make(map[uint]models.Donor, len(donors))
	userIDs := make([]uint, 0, len(donors))
	for _, d := range donors {
		donorByID[d.ID] = d
		if d.AssignedUserID != nil {
			userIDs = append(userIDs, *d.AssignedUserID)
		}
	}

	connected := make(map[uint]bool)
	if len(userIDs) > 0 {
		var users []models.User
		if err = sc.DB.Where("id IN ?", uniqueIDs(userIDs)).Find(&users).Error; err != nil {
			return nil, 0, nil, err
		}
		for _, u := range users {
			connected[u.ID] = u.SenderConnected
		}
	}

	var blocked []uint
	for _, e := range emails {
		donor, ok := donorByID[e.DonorID]
		if !ok {
			continue
		}
		if donor.IsUnsubscribed || donor.IsBounced || donor.IsDoNotContact {
			suppressed++
			continue
		}
		if donor.AssignedUserID == nil || !connected[*donor.AssignedUserID] {
			blocked = append(blocked, donor.ID)
			continue
		}
		sendable = append(sendable, e)
	}

	if len(blocked) > 0 {
		capErr = &scheduler.CapabilityError{DonorIDs: blocked}
	}
	return sendable, suppressed, capErr, nil
}

// persistPlan writes one job per slot and flips the emails to scheduled,
// all in one transaction so a failure schedules nothing.
func (sc *ScheduleController) persistPlan(campaign *models.Campaign, plan *scheduler.Plan) ([]models.EmailSendJob, error) {
	jobs := make([]models.EmailSendJob, 0, len(plan.Slots))

	err := sc.DB.Transaction(func(tx *gorm.DB) error {
		for _, slot := range plan.Slots {
			job := models.EmailSendJob{
				EmailID:        slot.EmailID,
				CampaignID:     campaign.ID,
				OrganizationID: campaign.OrganizationID,
				ScheduledTime:  slot.SendAt,
				Status:         models.JobStatusScheduled,
				DispatchHandle: uuid.NewString(),
			}
			if err := tx.Create(&job).Error; err != nil {
				return err
			}
			jobs = append(jobs, job)

			if err := tx.Model(&models.GeneratedEmail{}).
				Where("id = ?", slot.EmailID).
				Update("send_status", models.SendStatusScheduled).Error; err != nil {
				return err
			}
		}
		if campaign.StartedAt == nil {
			now := time.Now()
			return tx.Model(campaign).Update("started_at", now).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// withdrawScheduled cancels the dispatch timer and job row for every
// scheduled job in the campaign, setting the emails to emailStatus. Returns
// how many jobs were withdrawn.
func (sc *ScheduleController) withdrawScheduled(campaignID uint, emailStatus string) (int, error) {
	var jobs []models.EmailSendJob
	if err := sc.DB.Where("campaign_id = ? AND status = ?", campaignID, models.JobStatusScheduled).
		Find(&jobs).Error; err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	// Stop the timers first; the status check at fire time covers any timer
	// that slips through before the DB update lands.
	for _, job := range jobs {
		sc.Dispatcher.Cancel(job.DispatchHandle)
	}

	err := sc.DB.Transaction(func(tx *gorm.DB) error {
		jobIDs := make([]uint, len(jobs))
		emailIDs := make([]uint, len(jobs))
		for i, job := range jobs {
			jobIDs[i] = job.ID
			emailIDs[i] = job.EmailID
		}

		if err := tx.Model(&models.EmailSendJob{}).
			Where("id IN ?", jobIDs).
			Update("status", models.JobStatusCancelled).Error; err != nil {
			return err
		}
		return tx.Model(&models.GeneratedEmail{}).
			Where("id IN ?", emailIDs).
			Update("send_status", emailStatus).Error
	})
	if err != nil {
		return 0, err
	}
	return len(jobs), nil
}
