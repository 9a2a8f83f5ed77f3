package models

import (
	"gorm.io/gorm"
)

// Bounds for administrative sanity on daily sending volume
const (
	MinDailyLimit = 1
	MaxDailyLimit = 500
)

// Defaults applied when an organization schedules for the first time
const (
	DefaultDailyLimit    = 150
	DefaultMinGapMinutes = 1
	DefaultMaxGapMinutes = 3
	DefaultStartTime     = "09:00"
	DefaultEndTime       = "17:00"
	DefaultTimezone      = "America/New_York"
)

// ScheduleConfig holds per-organization sending window and volume settings.
// One row per organization; created lazily on the first scheduling request.
type ScheduleConfig struct {
	gorm.Model
	OrganizationID uint `gorm:"not null;uniqueIndex" json:"organization_id"`

	// Volume and pacing
	DailyLimit    int `gorm:"default:150" json:"daily_limit"`
	MinGapMinutes int `gorm:"default:1" json:"min_gap_minutes"`
	MaxGapMinutes int `gorm:"default:3" json:"max_gap_minutes"`

	// Allowed window, evaluated in Timezone. Days use time.Weekday values
	// (0 = Sunday). Times are local "HH:MM".
	AllowedDays      []int  `gorm:"type:jsonb;serializer:json" json:"allowed_days"`
	AllowedStartTime string `gorm:"default:'09:00'" json:"allowed_start_time"`
	AllowedEndTime   string `gorm:"default:'17:00'" json:"allowed_end_time"`
	Timezone         string `gorm:"default:'America/New_York'" json:"timezone"`

	// Relations
	Organization Organization `json:"-"`
}

// DefaultScheduleConfig returns the config inserted on first use: weekday
// business hours in US Eastern with a 1-3 minute gap between sends.
func DefaultScheduleConfig(orgID uint) ScheduleConfig {
	return ScheduleConfig{
		OrganizationID:   orgID,
		DailyLimit:       DefaultDailyLimit,
		MinGapMinutes:    DefaultMinGapMinutes,
		MaxGapMinutes:    DefaultMaxGapMinutes,
		AllowedDays:      []int{1, 2, 3, 4, 5}, // Mon-Fri
		AllowedStartTime: DefaultStartTime,
		AllowedEndTime:   DefaultEndTime,
		Timezone:         DefaultTimezone,
	}
}
