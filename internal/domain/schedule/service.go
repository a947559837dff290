package schedule

import (
	"context"
	"io"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
)

// Resolver picks the effective schedule for (org, user, date).
type Resolver interface {
	Resolve(ctx context.Context, orgID, userID string, workDate time.Time, orgDefault ScheduleRule) (WorkContext, error)
}

// HolidayService manages the org holiday calendar.
type HolidayService interface {
	Upsert(ctx context.Context, actor user.Actor, req UpsertHolidayRequest) (Holiday, error)
	List(ctx context.Context, orgID string, from, to time.Time) ([]Holiday, error)
	// ImportICS upserts one holiday per VEVENT start date.
	ImportICS(ctx context.Context, actor user.Actor, r io.Reader, working bool) (ImportHolidaysResponse, error)
}
