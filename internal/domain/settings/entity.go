package settings

import (
	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
)

// Settings is the per-org attendance configuration. Nil sections fall back
// to process defaults.
type Settings struct {
	OrgID           string                       `json:"-"`
	DefaultSchedule *schedule.ScheduleRule       `json:"default_schedule,omitempty"`
	Overtime        *attendance.OvertimeRounding `json:"overtime,omitempty"`
	Punch           attendance.PunchConstraints  `json:"punch"`
}

// Defaults are the process-wide fallbacks loaded from configuration.
type Defaults struct {
	Schedule schedule.ScheduleRule
	Overtime attendance.OvertimeRounding
}

// Resolved returns s with nil sections filled from d.
func (s Settings) Resolved(d Defaults) Settings {
	if s.DefaultSchedule == nil {
		rule := d.Schedule
		s.DefaultSchedule = &rule
	}
	if s.Overtime == nil {
		ot := d.Overtime
		s.Overtime = &ot
	}
	return s
}
