package scheduler

import (
	"donorlink/models"
)

// Schedulable reports whether an email is eligible to receive a new send
// job right now. Emails already scheduled, running, or sent are excluded so
// a re-schedule can never double-dispatch.
func Schedulable(e models.GeneratedEmail) bool {
	if e.IsSent {
		return false
	}
	if e.SendStatus == nil {
		return true
	}
	switch *e.SendStatus {
	case models.SendStatusPending, models.SendStatusPaused,
		models.SendStatusFailed, models.SendStatusCancelled:
		return true
	default:
		return false
	}
}

// FilterSchedulable returns the schedulable subset of a campaign's emails,
// preserving order.
func FilterSchedulable(emails []models.GeneratedEmail) []models.GeneratedEmail {
	out := make([]models.GeneratedEmail, 0, len(emails))
	for _, e := range emails {
		if Schedulable(e) {
			out = append(out, e)
		}
	}
	return out
}

// HasStatus reports whether the email's send status equals s (a NULL
// status never matches).
func HasStatus(e models.GeneratedEmail, s string) bool {
	return e.SendStatus != nil && *e.SendStatus == s
}

// DeriveCampaignStatus computes the aggregate campaign status from the
// distribution of its emails' send statuses. The campaign row caches the
// result for display; this function is the source of truth.
func DeriveCampaignStatus(c models.Campaign, emails []models.GeneratedEmail) string {
	if c.FailureReason != nil {
		return models.CampaignStatusFailed
	}

	total := len(emails)
	if total == 0 {
		if c.TargetCount > 0 {
			return models.CampaignStatusPending
		}
		return models.CampaignStatusDraft
	}

	if c.TargetCount > 0 && total < c.TargetCount {
		return models.CampaignStatusGenerating
	}

	sent := 0
	started := false
	for _, e := range emails {
		if e.IsSent {
			sent++
		}
		if e.SendStatus != nil {
			started = true
		}
	}

	if sent == total {
		return models.CampaignStatusCompleted
	}
	if !started {
		return models.CampaignStatusReadyToSend
	}
	return models.CampaignStatusInProgress
}

// ActiveJobViolations returns the email IDs holding more than one job in
// scheduled or running state. A correct pipeline always returns an empty
// slice; exposed for invariant checks.
func ActiveJobViolations(jobs []models.EmailSendJob) []uint {
	active := make(map[uint]int)
	for _, j := range jobs {
		if j.Active() {
			active[j.EmailID]++
		}
	}
	var violated []uint
	for id, n := range active {
		if n > 1 {
			violated = append(violated, id)
		}
	}
	return violated
}
