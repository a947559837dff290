package schedule

import (
	"strconv"
	"strings"
	"time"
)

// ScheduleRule is the effective working pattern for one day. Clock values are
// "HH:MM" wall time in Timezone.
type ScheduleRule struct {
	Timezone          string `json:"timezone"`
	WorkStart         string `json:"work_start"`
	WorkEnd           string `json:"work_end"`
	LateGraceMinutes  int    `json:"late_grace_minutes"`
	EarlyGraceMinutes int    `json:"early_grace_minutes"`
	RoundingMinutes   int    `json:"rounding_minutes"`
	WorkingWeekdays   []int  `json:"working_weekdays"` // 0=Sunday ... 6=Saturday
}

// DefaultRule is used when an org has no configured default.
func DefaultRule() ScheduleRule {
	return ScheduleRule{
		Timezone:          "UTC",
		WorkStart:         "09:00",
		WorkEnd:           "18:00",
		LateGraceMinutes:  0,
		EarlyGraceMinutes: 0,
		RoundingMinutes:   1,
		WorkingWeekdays:   []int{1, 2, 3, 4, 5},
	}
}

// Location resolves Timezone, falling back to UTC.
func (r ScheduleRule) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsWorkingWeekday reports weekday membership in WorkingWeekdays.
func (r ScheduleRule) IsWorkingWeekday(wd time.Weekday) bool {
	for _, d := range r.WorkingWeekdays {
		if d == int(wd) {
			return true
		}
	}
	return false
}

// StartMinute and EndMinute return minutes since local midnight, -1 when unparseable.
func (r ScheduleRule) StartMinute() int { return ClockMinutes(r.WorkStart) }
func (r ScheduleRule) EndMinute() int   { return ClockMinutes(r.WorkEnd) }

// ScheduledMinutes is the planned span of the shift. Shifts ending before
// they start cross midnight.
func (r ScheduleRule) ScheduledMinutes() int {
	start, end := r.StartMinute(), r.EndMinute()
	if start < 0 || end < 0 {
		return 0
	}
	if end < start {
		end += 24 * 60
	}
	return end - start
}

// CrossesMidnight reports whether the shift ends on the day after it starts.
func (r ScheduleRule) CrossesMidnight() bool {
	start, end := r.StartMinute(), r.EndMinute()
	return start >= 0 && end >= 0 && end < start
}

// StartAt is the instant the shift starting on date begins.
func (r ScheduleRule) StartAt(date time.Time) (time.Time, bool) {
	start := r.StartMinute()
	if start < 0 {
		return time.Time{}, false
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, start/60, start%60, 0, 0, r.Location()), true
}

// EndAt is the instant the shift starting on date ends.
func (r ScheduleRule) EndAt(date time.Time) (time.Time, bool) {
	end := r.EndMinute()
	if end < 0 || r.StartMinute() < 0 {
		return time.Time{}, false
	}
	y, m, d := date.Date()
	if r.CrossesMidnight() {
		d++
	}
	return time.Date(y, m, d, end/60, end%60, 0, 0, r.Location()), true
}

// ClockMinutes parses "HH:MM" (or "HH:MM:SS") into minutes since midnight.
func ClockMinutes(s string) int {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return -1
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return -1
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return -1
	}
	return h*60 + m
}

// Date truncates t to its calendar date as UTC midnight. Work dates are
// always carried in this form.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LocalDate is the calendar date of instant t in loc.
func LocalDate(t time.Time, loc *time.Location) time.Time {
	return Date(t.In(loc))
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

type Shift struct {
	ID        string
	OrgID     string
	Name      string
	Rule      ScheduleRule
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShiftAssignment covers [StartDate, EndDate]; a nil EndDate is open-ended.
type ShiftAssignment struct {
	ID        string
	OrgID     string
	UserID    string
	ShiftID   string
	StartDate time.Time
	EndDate   *time.Time
	Active    bool
	CreatedAt time.Time
}

type RotationRule struct {
	ID            string
	OrgID         string
	Name          string
	ShiftSequence []string
	CreatedAt     time.Time
}

type RotationAssignment struct {
	ID             string
	OrgID          string
	UserID         string
	RotationRuleID string
	StartDate      time.Time
	EndDate        *time.Time
	Active         bool
	CreatedAt      time.Time
}

// Covers reports whether date falls inside an assignment range.
func Covers(start time.Time, end *time.Time, date time.Time) bool {
	d := Date(date)
	if d.Before(Date(start)) {
		return false
	}
	return end == nil || !d.After(Date(*end))
}

type Holiday struct {
	OrgID        string    `json:"org_id"`
	Date         time.Time `json:"date"`
	Name         string    `json:"name"`
	IsWorkingDay bool      `json:"is_working_day"`
}

type Source string

const (
	SourceRotation Source = "rotation"
	SourceShift    Source = "shift"
	SourceRule     Source = "rule"
)

// WorkContext is the resolved schedule for one (org, user, date).
type WorkContext struct {
	Schedule     ScheduleRule `json:"schedule"`
	ShiftID      string       `json:"shift_id,omitempty"`
	ShiftName    string       `json:"shift_name,omitempty"`
	IsWorkingDay bool         `json:"is_working_day"`
	Holiday      *Holiday     `json:"holiday,omitempty"`
	Source       Source       `json:"source"`
}

func (c WorkContext) IsHoliday() bool {
	return c.Holiday != nil
}
