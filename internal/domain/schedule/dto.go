package schedule

import (
	"fmt"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/validator"
)

// Validate checks a rule loaded from configuration or a request body.
func (r ScheduleRule) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidTimezone(r.Timezone) {
		errs.Add("timezone", "timezone must be a valid IANA zone")
	}
	if !validator.IsValidClock(r.WorkStart) {
		errs.Add("work_start", "work_start must be HH:MM")
	}
	if !validator.IsValidClock(r.WorkEnd) {
		errs.Add("work_end", "work_end must be HH:MM")
	}
	if r.LateGraceMinutes < 0 {
		errs.Add("late_grace_minutes", "late_grace_minutes must be non-negative")
	}
	if r.EarlyGraceMinutes < 0 {
		errs.Add("early_grace_minutes", "early_grace_minutes must be non-negative")
	}
	if r.RoundingMinutes < 1 {
		errs.Add("rounding_minutes", "rounding_minutes must be at least 1")
	}
	for _, d := range r.WorkingWeekdays {
		if d < 0 || d > 6 {
			errs.Add("working_weekdays", fmt.Sprintf("weekday %d out of range 0-6", d))
			break
		}
	}

	return errs.Err()
}

type UpsertHolidayRequest struct {
	OrgID        string `json:"-"`
	Date         string `json:"date"`
	Name         string `json:"name"`
	IsWorkingDay bool   `json:"is_working_day"`
}

func (r *UpsertHolidayRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.OrgID) {
		errs.Add("org_id", "org_id is required")
	}
	if _, ok := validator.IsValidDate(r.Date); !ok {
		errs.Add("date", "date must be YYYY-MM-DD")
	}

	return errs.Err()
}

type ImportHolidaysResponse struct {
	Imported int       `json:"imported"`
	Skipped  int       `json:"skipped"`
	Holidays []Holiday `json:"holidays"`
}
