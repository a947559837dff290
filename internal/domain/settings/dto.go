package settings

import (
	"net"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/validator"
)

func (s *Settings) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(s.OrgID) {
		errs.Add("org_id", "org_id is required")
	}
	if s.DefaultSchedule != nil {
		if err := s.DefaultSchedule.Validate(); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				for _, e := range ve {
					errs.Add("default_schedule."+e.Field, e.Message)
				}
			}
		}
	}
	if s.Overtime != nil {
		if s.Overtime.MinimumMinutes < 0 || s.Overtime.RoundingMinutes < 0 || s.Overtime.MaxPerDayMinutes < 0 {
			errs.Add("overtime", "overtime values must be non-negative")
		}
	}
	for _, entry := range s.Punch.IPAllowlist {
		if net.ParseIP(entry) == nil {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				errs.Add("punch.ip_allowlist", "invalid IP or CIDR: "+entry)
			}
		}
	}
	for _, g := range s.Punch.Geofences {
		if g.RadiusMeters <= 0 {
			errs.Add("punch.geofences", "geofence radius must be positive")
			break
		}
	}
	if s.Punch.MinIntervalMinutes < 0 {
		errs.Add("punch.min_interval_minutes", "min_interval_minutes must be non-negative")
	}

	return errs.Err()
}
