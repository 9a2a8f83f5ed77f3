package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"donorlink/models"
)

func statusPtr(s string) *string { return &s }

func gormModel(id uint) gorm.Model { return gorm.Model{ID: id} }

func TestSchedulable(t *testing.T) {
	tests := []struct {
		name  string
		email models.GeneratedEmail
		want  bool
	}{
		{"never entered pipeline", models.GeneratedEmail{SendStatus: nil}, true},
		{"pending", models.GeneratedEmail{SendStatus: statusPtr(models.SendStatusPending)}, true},
		{"paused", models.GeneratedEmail{SendStatus: statusPtr(models.SendStatusPaused)}, true},
		{"failed", models.GeneratedEmail{SendStatus: statusPtr(models.SendStatusFailed)}, true},
		{"cancelled", models.GeneratedEmail{SendStatus: statusPtr(models.SendStatusCancelled)}, true},
		{"scheduled", models.GeneratedEmail{SendStatus: statusPtr(models.SendStatusScheduled)}, false},
		{"running", models.GeneratedEmail{SendStatus: statusPtr(models.SendStatusRunning)}, false},
		{"sent", models.GeneratedEmail{SendStatus: statusPtr(models.SendStatusSent), IsSent: true}, false},
		{"is_sent set regardless of status", models.GeneratedEmail{SendStatus: statusPtr(models.SendStatusFailed), IsSent: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Schedulable(tt.email))
		})
	}
}

func TestFilterSchedulablePreservesOrder(t *testing.T) {
	emails := []models.GeneratedEmail{
		{Model: gormModel(1), SendStatus: nil},
		{Model: gormModel(2), SendStatus: statusPtr(models.SendStatusScheduled)},
		{Model: gormModel(3), SendStatus: statusPtr(models.SendStatusFailed)},
		{Model: gormModel(4), SendStatus: statusPtr(models.SendStatusSent), IsSent: true},
		{Model: gormModel(5), SendStatus: statusPtr(models.SendStatusPaused)},
	}

	got := FilterSchedulable(emails)
	ids := make([]uint, len(got))
	for i, e := range got {
		ids[i] = e.ID
	}
	assert.Equal(t, []uint{1, 3, 5}, ids)
}

func TestDeriveCampaignStatus(t *testing.T) {
	tests := []struct {
		name     string
		campaign models.Campaign
		emails   []models.GeneratedEmail
		want     string
	}{
		{
			"failure reason wins",
			models.Campaign{FailureReason: statusPtr("generation engine down")},
			[]models.GeneratedEmail{{SendStatus: statusPtr(models.SendStatusSent), IsSent: true}},
			models.CampaignStatusFailed,
		},
		{
			"no emails no target",
			models.Campaign{},
			nil,
			models.CampaignStatusDraft,
		},
		{
			"no emails with target",
			models.Campaign{TargetCount: 10},
			nil,
			models.CampaignStatusPending,
		},
		{
			"partial generation",
			models.Campaign{TargetCount: 3},
			[]models.GeneratedEmail{{SendStatus: nil}},
			models.CampaignStatusGenerating,
		},
		{
			"generated but untouched",
			models.Campaign{TargetCount: 2},
			[]models.GeneratedEmail{{SendStatus: nil}, {SendStatus: nil}},
			models.CampaignStatusReadyToSend,
		},
		{
			"some scheduled",
			models.Campaign{TargetCount: 2},
			[]models.GeneratedEmail{
				{SendStatus: statusPtr(models.SendStatusScheduled)},
				{SendStatus: nil},
			},
			models.CampaignStatusInProgress,
		},
		{
			"partially sent",
			models.Campaign{TargetCount: 2},
			[]models.GeneratedEmail{
				{SendStatus: statusPtr(models.SendStatusSent), IsSent: true},
				{SendStatus: statusPtr(models.SendStatusScheduled)},
			},
			models.CampaignStatusInProgress,
		},
		{
			"all sent",
			models.Campaign{TargetCount: 2},
			[]models.GeneratedEmail{
				{SendStatus: statusPtr(models.SendStatusSent), IsSent: true},
				{SendStatus: statusPtr(models.SendStatusSent), IsSent: true},
			},
			models.CampaignStatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveCampaignStatus(tt.campaign, tt.emails))
		})
	}
}

func TestActiveJobViolations(t *testing.T) {
	jobs := []models.EmailSendJob{
		{EmailID: 1, Status: models.JobStatusScheduled},
		{EmailID: 1, Status: models.JobStatusCompleted}, // settled, not a violation
		{EmailID: 2, Status: models.JobStatusScheduled},
		{EmailID: 2, Status: models.JobStatusRunning}, // two active for email 2
		{EmailID: 3, Status: models.JobStatusCancelled},
	}

	violations := ActiveJobViolations(jobs)
	assert.Equal(t, []uint{2}, violations)
}

func TestActiveJobViolationsClean(t *testing.T) {
	jobs := []models.EmailSendJob{
		{EmailID: 1, Status: models.JobStatusScheduled},
		{EmailID: 2, Status: models.JobStatusCompleted},
	}
	assert.Empty(t, ActiveJobViolations(jobs))
}
