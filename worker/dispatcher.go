package worker

import (
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"donorlink/models"
	"donorlink/scheduler"
	"donorlink/utils"
)

// Dispatcher owns the timers between "job persisted" and "email on the
// wire". Each scheduled job holds one timer keyed by its dispatch handle;
// cancelling a handle before it fires is idempotent, and a job whose
// status changed underneath a live timer is dropped at fire time.
type Dispatcher struct {
	DB     *gorm.DB
	Mailer utils.CampaignMailer
	Logger *log.Logger

	// Optional hooks wired at startup
	WebhookURL string
	OnOutcome  func(job models.EmailSendJob, email models.GeneratedEmail, success bool)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewDispatcher(db *gorm.DB, mailer utils.CampaignMailer, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		DB:     db,
		Mailer: mailer,
		Logger: logger,
		timers: make(map[string]*time.Timer),
	}
}

// Enqueue registers a timer for the job's scheduled time. Overdue jobs
// (e.g. re-enqueued after a restart) fire immediately.
func (d *Dispatcher) Enqueue(job models.EmailSendJob) {
	delay := time.Until(job.ScheduledTime)
	if delay < 0 {
		delay = 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	handle := job.DispatchHandle
	jobID := job.ID
	d.timers[handle] = time.AfterFunc(delay, func() {
		d.fire(jobID, handle)
	})
}

// Cancel stops the pending timer for a dispatch handle. Cancelling a
// handle that already fired, or was never enqueued, is a no-op.
func (d *Dispatcher) Cancel(handle string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[handle]; ok {
		t.Stop()
		delete(d.timers, handle)
	}
}

// Recover re-enqueues every persisted scheduled job. Called once at
// startup so a restart does not strand the pipeline.
func (d *Dispatcher) Recover() error {
	var jobs []models.EmailSendJob
	if err := d.DB.Where("status = ?", models.JobStatusScheduled).Find(&jobs).Error; err != nil {
		return err
	}

	for _, job := range jobs {
		d.Enqueue(job)
	}
	if len(jobs) > 0 {
		d.Logger.Printf("Recovered %d scheduled jobs", len(jobs))
	}
	return nil
}

// Pending reports how many timers are currently registered.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

func (d *Dispatcher) fire(jobID uint, handle string) {
	d.mu.Lock()
	delete(d.timers, handle)
	d.mu.Unlock()

	var job models.EmailSendJob
	if err := d.DB.First(&job, jobID).Error; err != nil {
		d.Logger.Printf("Job %d not found at fire time: %v", jobID, err)
		return
	}

	// The job may have been cancelled after the timer was set. External
	// timer cancellation is best-effort, so the conditional claim below is
	// what actually prevents a late-firing cancelled job from sending.
	claimed, err := d.claim(&job)
	if err != nil {
		d.Logger.Printf("Failed to claim job %d: %v", job.ID, err)
		return
	}
	if !claimed {
		d.Logger.Printf("Job %d settled before fire, dropping", job.ID)
		return
	}

	success, sendErr := d.send(&job)
	now := time.Now()

	var email models.GeneratedEmail
	if success {
		job.CompletedAt = &now
		if err := d.transition(&job, models.JobStatusCompleted, models.SendStatusSent, nil); err != nil {
			d.Logger.Printf("Failed to complete job %d: %v", job.ID, err)
		}
	} else {
		job.CompletedAt = &now
		msg := sendErr.Error()
		if err := d.transition(&job, models.JobStatusFailed, models.SendStatusFailed, &msg); err != nil {
			d.Logger.Printf("Failed to record job %d failure: %v", job.ID, err)
		}
		utils.LogError("dispatch_failed", sendErr, map[string]interface{}{
			"job_id":      job.ID,
			"email_id":    job.EmailID,
			"campaign_id": job.CampaignID,
		})
	}

	if err := scheduler.RefreshCampaign(d.DB, job.CampaignID); err != nil {
		d.Logger.Printf("Failed to refresh campaign %d: %v", job.CampaignID, err)
	}

	if err := d.DB.First(&email, job.EmailID).Error; err == nil {
		if d.OnOutcome != nil {
			d.OnOutcome(job, email, success)
		}
		d.notifyWebhook(job, email, success, sendErr)
	}
}

// send resolves the donor and the assigned staff member's sender identity,
// then hands the rendered email to the mailer.
func (d *Dispatcher) send(job *models.EmailSendJob) (bool, error) {
	var email models.GeneratedEmail
	if err := d.DB.First(&email, job.EmailID).Error; err != nil {
		return false, err
	}

	var donor models.Donor
	if err := d.DB.First(&donor, email.DonorID).Error; err != nil {
		return false, err
	}

	if donor.AssignedUserID == nil {
		return false, &scheduler.CapabilityError{DonorIDs: []uint{donor.ID}}
	}

	var sender models.User
	if err := d.DB.First(&sender, *donor.AssignedUserID).Error; err != nil {
		return false, err
	}

	if _, err := d.Mailer.Send(&sender, donor.Email, email.Subject, email.Body); err != nil {
		return false, err
	}

	now := time.Now()
	d.DB.Model(&donor).Update("last_contact_at", now)
	return true, nil
}

// claim flips the job scheduled→running, but only if it is still scheduled
// in the database. A cancel or pause can land between loading the job and
// this write; the conditional update makes exactly one winner, so a settled
// job is never resurrected. Returns false when someone else won.
func (d *Dispatcher) claim(job *models.EmailSendJob) (bool, error) {
	var claimed bool
	err := d.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.EmailSendJob{}).
			Where("id = ? AND status = ?", job.ID, models.JobStatusScheduled).
			Update("status", models.JobStatusRunning)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true
		job.Status = models.JobStatusRunning
		return tx.Model(&models.GeneratedEmail{}).
			Where("id = ?", job.EmailID).
			Update("send_status", models.SendStatusRunning).Error
	})
	return claimed, err
}

// transition settles a running job and its email in one transaction so the
// pair never diverges. Guarded on the running status the same way claim is
// guarded on scheduled; a job settled elsewhere is left alone.
func (d *Dispatcher) transition(job *models.EmailSendJob, jobStatus, emailStatus string, errMsg *string) error {
	return d.DB.Transaction(func(tx *gorm.DB) error {
		jobUpdates := map[string]interface{}{"status": jobStatus}
		if job.CompletedAt != nil {
			jobUpdates["completed_at"] = *job.CompletedAt
		}
		if errMsg != nil {
			jobUpdates["error_message"] = *errMsg
		}
		res := tx.Model(&models.EmailSendJob{}).
			Where("id = ? AND status = ?", job.ID, models.JobStatusRunning).
			Updates(jobUpdates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.Status = jobStatus

		emailUpdates := map[string]interface{}{"send_status": emailStatus}
		if emailStatus == models.SendStatusSent {
			emailUpdates["is_sent"] = true
			emailUpdates["sent_at"] = time.Now()
		}
		if errMsg != nil {
			emailUpdates["last_error"] = *errMsg
		}
		return tx.Model(&models.GeneratedEmail{}).Where("id = ?", job.EmailID).Updates(emailUpdates).Error
	})
}
