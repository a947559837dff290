package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("memory driver with defaults", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "memory")
		t.Setenv("JWT_SECRET_KEY", "secret")
		t.Setenv("ATTENDANCE_TIMEZONE", "Asia/Jakarta")
		t.Setenv("ATTENDANCE_WORKING_WEEKDAYS", "1, 2,3,4,5,6")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, StorageDriverMemory, cfg.App.StorageDriver)
		assert.Equal(t, "Asia/Jakarta", cfg.Attendance.DefaultSchedule.Timezone)
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, cfg.Attendance.DefaultSchedule.WorkingWeekdays)
		assert.Equal(t, 15, cfg.Attendance.Overtime.RoundingMinutes)
		assert.Equal(t, time.Hour, cfg.Attendance.AbsenceJobInterval)
		assert.False(t, cfg.Redis.Enabled())
		assert.False(t, cfg.Attendance.PermissionDegradedMode)
	})

	t.Run("postgres requires a password", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "postgres")
		t.Setenv("JWT_SECRET_KEY", "secret")
		t.Setenv("DB_PASSWORD", "")

		_, err := Load()
		assert.ErrorContains(t, err, "DB_PASSWORD")
	})

	t.Run("malformed values are reported", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "memory")
		t.Setenv("JWT_SECRET_KEY", "secret")
		t.Setenv("APP_PORT", "eighty")
		t.Setenv("PERMISSION_DEGRADED_MODE", "maybe")

		_, err := Load()
		require.Error(t, err)
		assert.ErrorContains(t, err, "APP_PORT")
		assert.ErrorContains(t, err, "PERMISSION_DEGRADED_MODE")
	})

	t.Run("unknown timezone", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "memory")
		t.Setenv("JWT_SECRET_KEY", "secret")
		t.Setenv("ATTENDANCE_TIMEZONE", "Mars/Olympus")

		_, err := Load()
		assert.ErrorContains(t, err, "ATTENDANCE_TIMEZONE")
	})
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, Name: "attendance", SSLMode: "disable"}}
	assert.Equal(t, "postgres://u:p@db:5432/attendance?sslmode=disable", cfg.DatabaseURL())
}
