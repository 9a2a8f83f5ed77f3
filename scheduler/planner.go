package scheduler

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"donorlink/models"
)

// Settings is the planner's view of a ScheduleConfig, with the timezone
// resolved and times parsed. Build one with SettingsFromConfig.
type Settings struct {
	DailyLimit    int
	MinGapMinutes int
	MaxGapMinutes int
	AllowedDays   map[time.Weekday]bool
	StartMinute   int // minutes since local midnight, inclusive
	EndMinute     int // minutes since local midnight, inclusive
	Location      *time.Location
}

// Slot is one planned send: the email and the absolute instant it goes out.
type Slot struct {
	EmailID uint      `json:"email_id"`
	SendAt  time.Time `json:"send_at"`
}

// Plan is the planner's output for one batch.
type Plan struct {
	Slots               []Slot    `json:"slots"`
	ScheduledToday      int       `json:"scheduled_for_today"`
	ScheduledLater      int       `json:"scheduled_for_later"`
	EstimatedCompletion time.Time `json:"estimated_completion_time"`
}

// SettingsFromConfig resolves the config's timezone and window times. It
// trusts bounds already enforced by ValidateConfig.
func SettingsFromConfig(cfg models.ScheduleConfig) (Settings, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Settings{}, NewValidationError("unknown timezone %q", cfg.Timezone)
	}

	start, err := parseClock(cfg.AllowedStartTime)
	if err != nil {
		return Settings{}, err
	}
	end, err := parseClock(cfg.AllowedEndTime)
	if err != nil {
		return Settings{}, err
	}

	days := make(map[time.Weekday]bool, len(cfg.AllowedDays))
	for _, d := range cfg.AllowedDays {
		days[time.Weekday(d)] = true
	}

	return Settings{
		DailyLimit:    cfg.DailyLimit,
		MinGapMinutes: cfg.MinGapMinutes,
		MaxGapMinutes: cfg.MaxGapMinutes,
		AllowedDays:   days,
		StartMinute:   start,
		EndMinute:     end,
		Location:      loc,
	}, nil
}

// ValidateConfig enforces the administrative invariants on a schedule
// config. Invalid input leaves the stored config untouched (callers only
// persist after this passes).
func ValidateConfig(cfg models.ScheduleConfig) error {
	if cfg.DailyLimit < models.MinDailyLimit || cfg.DailyLimit > models.MaxDailyLimit {
		return NewValidationError("daily limit must be between %d and %d", models.MinDailyLimit, models.MaxDailyLimit)
	}
	if cfg.MinGapMinutes < 0 || cfg.MaxGapMinutes < 0 {
		return NewValidationError("gap minutes must not be negative")
	}
	if cfg.MaxGapMinutes < cfg.MinGapMinutes {
		return NewValidationError("maximum gap must be greater than or equal to minimum gap")
	}
	if len(cfg.AllowedDays) == 0 {
		return NewValidationError("at least one sending day is required")
	}
	for _, d := range cfg.AllowedDays {
		if d < 0 || d > 6 {
			return NewValidationError("allowed days must be weekday values 0-6")
		}
	}
	start, err := parseClock(cfg.AllowedStartTime)
	if err != nil {
		return err
	}
	end, err := parseClock(cfg.AllowedEndTime)
	if err != nil {
		return err
	}
	if end <= start {
		return NewValidationError("allowed end time must be after start time")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return NewValidationError("unknown timezone %q", cfg.Timezone)
	}
	return nil
}

// BuildPlan assigns a concrete send time to every email in order, honoring
// the daily cap, the randomized gap, and the allowed window evaluated in
// the organization's timezone. usedToday is the quota already consumed on
// the organization-local day containing now; overflow spills into
// subsequent allowed days at the full daily limit.
func BuildPlan(emailIDs []uint, s Settings, usedToday int, now time.Time, rng *rand.Rand) (*Plan, error) {
	if len(emailIDs) == 0 {
		return nil, ErrNoSchedulableEmails
	}
	if s.DailyLimit <= 0 {
		return nil, NewValidationError("daily limit must be positive")
	}
	if len(s.AllowedDays) == 0 {
		return nil, NewValidationError("at least one sending day is required")
	}

	remainingToday := s.DailyLimit - usedToday
	if remainingToday < 0 {
		remainingToday = 0
	}

	cursor := s.nextOpen(now)
	placed := 0

	plan := &Plan{Slots: make([]Slot, 0, len(emailIDs))}
	for _, id := range emailIDs {
		for placed >= s.capacityOn(cursor, now, remainingToday) {
			cursor = s.nextDayOpen(cursor)
			placed = 0
		}

		plan.Slots = append(plan.Slots, Slot{EmailID: id, SendAt: cursor})
		placed++

		if s.sameLocalDay(cursor, now) {
			plan.ScheduledToday++
		} else {
			plan.ScheduledLater++
		}
		plan.EstimatedCompletion = cursor

		// Advance by the randomized gap, then re-check the window: the gap
		// may push the cursor past the allowed end even though the email
		// itself was placed inside it. A single email's gap never straddles
		// midnight.
		gap := s.MinGapMinutes
		if s.MaxGapMinutes > s.MinGapMinutes {
			gap += rng.Intn(s.MaxGapMinutes - s.MinGapMinutes + 1)
		}
		next := cursor.Add(time.Duration(gap) * time.Minute)
		aligned := s.nextOpen(next)
		if !s.sameLocalDay(aligned, cursor) {
			placed = 0
		}
		cursor = aligned
	}

	return plan, nil
}

// capacityOn returns how many emails may land on the local day containing
// t: today's remaining headroom, or the full daily limit on later days.
func (s Settings) capacityOn(t, now time.Time, remainingToday int) int {
	if s.sameLocalDay(t, now) {
		return remainingToday
	}
	return s.DailyLimit
}

func (s Settings) sameLocalDay(a, b time.Time) bool {
	la, lb := a.In(s.Location), b.In(s.Location)
	ay, am, ad := la.Date()
	by, bm, bd := lb.Date()
	return ay == by && am == bm && ad == bd
}

// windowOn returns the allowed window's bounds on the local day containing t.
func (s Settings) windowOn(t time.Time) (start, end time.Time) {
	lt := t.In(s.Location)
	y, m, d := lt.Date()
	start = time.Date(y, m, d, s.StartMinute/60, s.StartMinute%60, 0, 0, s.Location)
	end = time.Date(y, m, d, s.EndMinute/60, s.EndMinute%60, 0, 0, s.Location)
	return start, end
}

// InWindow reports whether t falls inside the allowed window: weekday in
// AllowedDays and time-of-day within [start, end], in the configured zone.
func (s Settings) InWindow(t time.Time) bool {
	lt := t.In(s.Location)
	if !s.AllowedDays[lt.Weekday()] {
		return false
	}
	start, end := s.windowOn(lt)
	return !lt.Before(start) && !lt.After(end)
}

// nextOpen returns t if it is inside the allowed window, otherwise the next
// instant at which the window opens, rolling forward day by day and
// skipping disallowed weekdays.
func (s Settings) nextOpen(t time.Time) time.Time {
	lt := t.In(s.Location)
	for i := 0; i < 400; i++ {
		day := lt.AddDate(0, 0, i)
		if !s.AllowedDays[day.Weekday()] {
			continue
		}
		start, end := s.windowOn(day)
		if i == 0 {
			if lt.After(end) {
				continue
			}
			if lt.Before(start) {
				return start
			}
			return lt
		}
		return start
	}
	// unreachable while AllowedDays is non-empty
	return lt
}

// nextDayOpen returns the window start of the first allowed day strictly
// after the local day containing t.
func (s Settings) nextDayOpen(t time.Time) time.Time {
	lt := t.In(s.Location)
	next := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, s.Location).AddDate(0, 0, 1)
	return s.nextOpen(next)
}

func parseClock(v string) (int, error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, NewValidationError("invalid time of day %q, expected HH:MM", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, NewValidationError("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, NewValidationError("invalid minute in %q", v)
	}
	return h*60 + m, nil
}

// Describe renders the window for log lines, e.g. "Mon-Fri 09:00-17:00
// America/New_York" equivalents without range collapsing.
func (s Settings) Describe() string {
	days := make([]string, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.AllowedDays[d] {
			days = append(days, d.String()[:3])
		}
	}
	return fmt.Sprintf("%s %02d:%02d-%02d:%02d %s",
		strings.Join(days, ","),
		s.StartMinute/60, s.StartMinute%60,
		s.EndMinute/60, s.EndMinute%60,
		s.Location.String())
}
