package worker

import (
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"

	"donorlink/models"
)

type outcomePayload struct {
	JobID          uint   `json:"job_id"`
	EmailID        uint   `json:"email_id"`
	CampaignID     uint   `json:"campaign_id"`
	OrganizationID uint   `json:"organization_id"`
	Outcome        string `json:"outcome"` // success | failure
	ErrorDetail    string `json:"error_detail,omitempty"`
	CompletedAt    string `json:"completed_at"`
}

// notifyWebhook posts the dispatch outcome to the configured callback URL.
// Best-effort: a webhook failure is logged and never affects job state.
func (d *Dispatcher) notifyWebhook(job models.EmailSendJob, email models.GeneratedEmail, success bool, sendErr error) {
	if d.WebhookURL == "" {
		return
	}

	payload := outcomePayload{
		JobID:          job.ID,
		EmailID:        email.ID,
		CampaignID:     job.CampaignID,
		OrganizationID: job.OrganizationID,
		Outcome:        "success",
		CompletedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if !success {
		payload.Outcome = "failure"
		if sendErr != nil {
			payload.ErrorDetail = sendErr.Error()
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.Logger.Printf("Failed to marshal webhook payload: %v", err)
		return
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(d.WebhookURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := fasthttp.DoTimeout(req, resp, 10*time.Second); err != nil {
		d.Logger.Printf("Outcome webhook failed for job %d: %v", job.ID, err)
		return
	}
	if resp.StatusCode() >= 300 {
		d.Logger.Printf("Outcome webhook returned %d for job %d", resp.StatusCode(), job.ID)
	}
}
