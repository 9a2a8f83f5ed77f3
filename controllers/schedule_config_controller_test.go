package controller

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"donorlink/models"
)

func openConfigTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Organization{}, &models.ScheduleConfig{}))
	return db
}

func TestLoadOrCreateScheduleConfigIsIdempotent(t *testing.T) {
	db := openConfigTestDB(t)

	org := models.Organization{Name: "Hope Works", Slug: "hope-works"}
	require.NoError(t, db.Create(&org).Error)

	first, err := loadOrCreateScheduleConfig(db, org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDailyLimit, first.DailyLimit)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, first.AllowedDays)

	second, err := loadOrCreateScheduleConfig(db, org.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&models.ScheduleConfig{}).Where("organization_id = ?", org.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLoadOrCreateScheduleConfigKeepsExistingRow(t *testing.T) {
	db := openConfigTestDB(t)

	org := models.Organization{Name: "Hope Works", Slug: "hope-works"}
	require.NoError(t, db.Create(&org).Error)

	existing := models.DefaultScheduleConfig(org.ID)
	existing.DailyLimit = 42
	existing.Timezone = "Europe/Berlin"
	require.NoError(t, db.Create(&existing).Error)

	cfg, err := loadOrCreateScheduleConfig(db, org.ID)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, cfg.ID)
	assert.Equal(t, 42, cfg.DailyLimit)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
}
