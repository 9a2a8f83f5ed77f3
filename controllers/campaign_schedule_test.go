package controller

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"donorlink/models"
	"donorlink/worker"
)

// blockingMailer parks every Send until release is closed, so tests can hold
// a job in running state deterministically.
type blockingMailer struct {
	mu      sync.Mutex
	started int
	release chan struct{}
}

func newBlockingMailer() *blockingMailer {
	return &blockingMailer{release: make(chan struct{})}
}

func (m *blockingMailer) Send(sender *models.User, to, subject, body string) (string, error) {
	m.mu.Lock()
	m.started++
	m.mu.Unlock()
	<-m.release
	return "<test-message-id>", nil
}

func (m *blockingMailer) startedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

type scheduleTestEnv struct {
	app      *fiber.App
	db       *gorm.DB
	mailer   *blockingMailer
	user     models.User
	campaign models.Campaign
	emails   []models.GeneratedEmail
}

func newScheduleTestEnv(t *testing.T) *scheduleTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Donor{},
		&models.ScheduleConfig{},
		&models.Campaign{},
		&models.GeneratedEmail{},
		&models.EmailSendJob{},
	))

	org := models.Organization{Name: "Hope Works", Slug: "hope-works"}
	require.NoError(t, db.Create(&org).Error)

	user := models.User{
		OrganizationID:  org.ID,
		Email:           "staff@hopeworks.org",
		PasswordHash:    "x",
		IsActive:        true,
		FromEmail:       "staff@hopeworks.org",
		SenderConnected: true,
	}
	require.NoError(t, db.Create(&user).Error)

	// Always-open window so the planner places the first slot at "now"
	cfg := models.ScheduleConfig{
		OrganizationID:   org.ID,
		DailyLimit:       500,
		MinGapMinutes:    1,
		MaxGapMinutes:    1,
		AllowedDays:      []int{0, 1, 2, 3, 4, 5, 6},
		AllowedStartTime: "00:00",
		AllowedEndTime:   "23:59",
		Timezone:         "UTC",
	}
	require.NoError(t, db.Create(&cfg).Error)

	campaign := models.Campaign{
		OrganizationID: org.ID,
		CreatedByID:    user.ID,
		Name:           "Spring Appeal",
		TargetCount:    3,
	}
	require.NoError(t, db.Create(&campaign).Error)

	emails := make([]models.GeneratedEmail, 3)
	for i := range emails {
		donor := models.Donor{
			OrganizationID: org.ID,
			Email:          fmt.Sprintf("donor%d@example.com", i+1),
			AssignedUserID: &user.ID,
		}
		require.NoError(t, db.Create(&donor).Error)

		emails[i] = models.GeneratedEmail{
			CampaignID:     campaign.ID,
			DonorID:        donor.ID,
			OrganizationID: org.ID,
			Subject:        "Thank you",
			Body:           "<p>Thank you.</p>",
		}
		require.NoError(t, db.Create(&emails[i]).Error)
	}

	mailer := newBlockingMailer()
	dispatcher := worker.NewDispatcher(db, mailer, log.New(io.Discard, "", 0))
	sc := NewScheduleController(db, log.New(io.Discard, "", 0), dispatcher, NewProgressHub())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", &user)
		return c.Next()
	})
	app.Post("/campaigns/:id/schedule", sc.ScheduleCampaign)
	app.Post("/campaigns/:id/pause", sc.PauseCampaign)
	app.Post("/campaigns/:id/resume", sc.ResumeCampaign)
	app.Post("/campaigns/:id/cancel", sc.CancelCampaign)
	app.Post("/campaigns/:id/retry", sc.RetryCampaign)
	app.Get("/campaigns/:id/schedule", sc.GetCampaignSchedule)

	return &scheduleTestEnv{app: app, db: db, mailer: mailer, user: user, campaign: campaign, emails: emails}
}

func (env *scheduleTestEnv) do(t *testing.T, method, path string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func (env *scheduleTestEnv) waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSchedulePauseResumeLifecycle(t *testing.T) {
	env := newScheduleTestEnv(t)
	defer close(env.mailer.release)
	path := fmt.Sprintf("/campaigns/%d", env.campaign.ID)

	// Schedule all three emails
	status, body := env.do(t, http.MethodPost, path+"/schedule")
	require.Equal(t, http.StatusOK, status, "schedule failed: %v", body)
	assert.Equal(t, float64(3), body["scheduled_count"])

	// The first slot lands at "now"; wait until its send is in flight so the
	// remaining two are deterministically still scheduled
	env.waitFor(t, func() bool { return env.mailer.startedCount() == 1 })

	status, body = env.do(t, http.MethodPost, path+"/pause")
	require.Equal(t, http.StatusOK, status, "pause failed: %v", body)
	assert.Equal(t, float64(2), body["paused_count"])

	var paused int64
	env.db.Model(&models.GeneratedEmail{}).
		Where("campaign_id = ? AND send_status = ?", env.campaign.ID, models.SendStatusPaused).
		Count(&paused)
	assert.Equal(t, int64(2), paused)

	var cancelledJobs int64
	env.db.Model(&models.EmailSendJob{}).
		Where("campaign_id = ? AND status = ?", env.campaign.ID, models.JobStatusCancelled).
		Count(&cancelledJobs)
	assert.Equal(t, int64(2), cancelledJobs)

	// Pausing again has nothing scheduled to act on
	status, _ = env.do(t, http.MethodPost, path+"/pause")
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// Resume re-plans the two paused emails with fresh times
	resumeStart := time.Now()
	status, body = env.do(t, http.MethodPost, path+"/resume")
	require.Equal(t, http.StatusOK, status, "resume failed: %v", body)
	assert.Equal(t, float64(2), body["scheduled_count"])

	var jobs []models.EmailSendJob
	env.db.Where("campaign_id = ? AND status = ?", env.campaign.ID, models.JobStatusScheduled).Find(&jobs)
	for _, job := range jobs {
		assert.False(t, job.ScheduledTime.Before(resumeStart.Add(-time.Second)),
			"resumed job scheduled before the resume instant")
	}

	// No email ever holds more than one active job
	var allJobs []models.EmailSendJob
	env.db.Where("campaign_id = ?", env.campaign.ID).Find(&allJobs)
	active := map[uint]int{}
	for _, j := range allJobs {
		if j.Active() {
			active[j.EmailID]++
		}
	}
	for emailID, n := range active {
		assert.LessOrEqual(t, n, 1, "email %d has %d active jobs", emailID, n)
	}

	// Resuming with nothing paused is a precondition failure
	status, _ = env.do(t, http.MethodPost, path+"/resume")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestCancelMarksRemainingEmails(t *testing.T) {
	env := newScheduleTestEnv(t)
	defer close(env.mailer.release)
	path := fmt.Sprintf("/campaigns/%d", env.campaign.ID)

	status, body := env.do(t, http.MethodPost, path+"/schedule")
	require.Equal(t, http.StatusOK, status, "schedule failed: %v", body)

	env.waitFor(t, func() bool { return env.mailer.startedCount() == 1 })

	status, body = env.do(t, http.MethodPost, path+"/cancel")
	require.Equal(t, http.StatusOK, status, "cancel failed: %v", body)
	assert.Equal(t, float64(2), body["cancelled_count"])

	var cancelled int64
	env.db.Model(&models.GeneratedEmail{}).
		Where("campaign_id = ? AND send_status = ?", env.campaign.ID, models.SendStatusCancelled).
		Count(&cancelled)
	assert.Equal(t, int64(2), cancelled)

	// Retry brings cancelled emails back into the pipeline
	status, body = env.do(t, http.MethodPost, path+"/retry")
	require.Equal(t, http.StatusOK, status, "retry failed: %v", body)
	assert.Equal(t, float64(2), body["scheduled_count"])
}

func TestScheduleReportsStorageFailureAsServerError(t *testing.T) {
	env := newScheduleTestEnv(t)
	defer close(env.mailer.release)
	path := fmt.Sprintf("/campaigns/%d", env.campaign.ID)

	// A failed donor lookup is an outage, not an empty campaign; it must
	// surface as a 500 rather than a precondition 422
	require.NoError(t, env.db.Migrator().DropTable(&models.Donor{}))

	status, body := env.do(t, http.MethodPost, path+"/schedule")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Failed to load donor records", body["error"])
}

func TestGetCampaignScheduleTimeline(t *testing.T) {
	env := newScheduleTestEnv(t)
	defer close(env.mailer.release)
	path := fmt.Sprintf("/campaigns/%d", env.campaign.ID)

	status, body := env.do(t, http.MethodPost, path+"/schedule")
	require.Equal(t, http.StatusOK, status, "schedule failed: %v", body)

	status, body = env.do(t, http.MethodGet, path+"/schedule")
	require.Equal(t, http.StatusOK, status)

	counts := body["counts"].(map[string]interface{})
	total := 0.0
	for _, v := range counts {
		total += v.(float64)
	}
	assert.Equal(t, 3.0, total)
	assert.NotNil(t, body["next_send_at"])
}
