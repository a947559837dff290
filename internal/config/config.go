package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Redis      RedisConfig
	Attendance AttendanceConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration time.Duration
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	StorageDriver  string
	MigrateOnStart bool
	AllowedOrigins []string
}

// RedisConfig is optional; an empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type AttendanceConfig struct {
	DefaultSchedule        schedule.ScheduleRule
	Overtime               attendance.OvertimeRounding
	CacheTTL               time.Duration
	AbsenceJobInterval     time.Duration
	PermissionDegradedMode bool
	EventQueueSize         int
}

// Defaults returns the process-wide settings fallbacks.
func (a AttendanceConfig) Defaults() settings.Defaults {
	return settings.Defaults{Schedule: a.DefaultSchedule, Overtime: a.Overtime}
}

func Load() (*Config, error) {
	// .env is optional outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{}
	var errs []error

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432, &errs),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	config.App = AppConfig{
		Port:           getEnvInt("APP_PORT", 8080, &errs),
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		StorageDriver:  getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", true, &errs),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnvDuration("JWT_ACCESS_EXPIRATION_TIME", time.Hour, &errs),
	}

	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0, &errs),
	}

	weekdays, err := parseWeekdays(getEnv("ATTENDANCE_WORKING_WEEKDAYS", "1,2,3,4,5"))
	if err != nil {
		errs = append(errs, err)
	}
	config.Attendance = AttendanceConfig{
		DefaultSchedule: schedule.ScheduleRule{
			Timezone:          getEnv("ATTENDANCE_TIMEZONE", "UTC"),
			WorkStart:         getEnv("ATTENDANCE_WORK_START", "09:00"),
			WorkEnd:           getEnv("ATTENDANCE_WORK_END", "18:00"),
			LateGraceMinutes:  getEnvInt("ATTENDANCE_LATE_GRACE_MINUTES", 0, &errs),
			EarlyGraceMinutes: getEnvInt("ATTENDANCE_EARLY_GRACE_MINUTES", 0, &errs),
			RoundingMinutes:   getEnvInt("ATTENDANCE_ROUNDING_MINUTES", 1, &errs),
			WorkingWeekdays:   weekdays,
		},
		Overtime: attendance.OvertimeRounding{
			MinimumMinutes:   getEnvInt("OVERTIME_MINIMUM_MINUTES", 30, &errs),
			RoundingMinutes:  getEnvInt("OVERTIME_ROUNDING_MINUTES", 15, &errs),
			MaxPerDayMinutes: getEnvInt("OVERTIME_MAX_PER_DAY_MINUTES", 240, &errs),
		},
		CacheTTL:               getEnvDuration("SETTINGS_CACHE_TTL", 5*time.Minute, &errs),
		AbsenceJobInterval:     getEnvDuration("ABSENCE_JOB_INTERVAL", time.Hour, &errs),
		PermissionDegradedMode: getEnvBool("PERMISSION_DEGRADED_MODE", false, &errs),
		EventQueueSize:         getEnvInt("EVENT_QUEUE_SIZE", 1000, &errs),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.App.StorageDriver {
	case StorageDriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q", StorageDriverPostgres, StorageDriverMemory)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := time.LoadLocation(c.Attendance.DefaultSchedule.Timezone); err != nil {
		return fmt.Errorf("ATTENDANCE_TIMEZONE is invalid: %w", err)
	}
	rule := c.Attendance.DefaultSchedule
	if rule.StartMinute() < 0 || rule.EndMinute() < 0 {
		return fmt.Errorf("ATTENDANCE_WORK_START and ATTENDANCE_WORK_END must be HH:MM")
	}
	if rule.RoundingMinutes < 1 {
		return fmt.Errorf("ATTENDANCE_ROUNDING_MINUTES must be at least 1")
	}
	if rule.LateGraceMinutes < 0 || rule.EarlyGraceMinutes < 0 {
		return fmt.Errorf("grace minutes cannot be negative")
	}
	if c.Attendance.AbsenceJobInterval <= 0 {
		return fmt.Errorf("ABSENCE_JOB_INTERVAL must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return d
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func parseWeekdays(value string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid ATTENDANCE_WORKING_WEEKDAYS entry %q", part)
		}
		days = append(days, d)
	}
	return days, nil
}
