package scheduler

import (
	"time"

	"gorm.io/gorm"

	"donorlink/models"
)

// DayBounds returns the organization-local calendar day containing now as a
// half-open interval [midnight, midnight+24h). Computed with the zone's own
// calendar so daylight-saving days come out 23 or 25 hours long.
func DayBounds(now time.Time, loc *time.Location) (start, end time.Time) {
	lt := now.In(loc)
	start = time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	end = start.AddDate(0, 0, 1)
	return start, end
}

// QuotaTracker answers how much of an organization's daily limit is already
// spoken for on its local "today".
type QuotaTracker struct {
	DB *gorm.DB
}

func NewQuotaTracker(db *gorm.DB) *QuotaTracker {
	return &QuotaTracker{DB: db}
}

// SentToday counts sends that consume today's quota: jobs completed today
// plus jobs still scheduled or running with a send time inside today. The
// boundary is recomputed on every call because "today" moves with the
// wall clock.
func (q *QuotaTracker) SentToday(orgID uint, loc *time.Location, now time.Time) (int, error) {
	start, end := DayBounds(now, loc)

	var count int64
	err := q.DB.Model(&models.EmailSendJob{}).
		Where("organization_id = ?", orgID).
		Where(
			q.DB.Where("status = ? AND completed_at >= ? AND completed_at < ?",
				models.JobStatusCompleted, start, end).
				Or("status IN ? AND scheduled_time >= ? AND scheduled_time < ?",
					[]string{models.JobStatusScheduled, models.JobStatusRunning}, start, end),
		).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
