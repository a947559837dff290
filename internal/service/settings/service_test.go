package settings

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/cache"
	"github.com/cmlabs-hris/attendance-core/internal/repository/memory"
	"github.com/cmlabs-hris/attendance-core/internal/service/permission"
)

func newService(store *memory.Store) *Service {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	defaults := settings.Defaults{
		Schedule: schedule.DefaultRule(),
		Overtime: attendance.OvertimeRounding{MinimumMinutes: 30, RoundingMinutes: 15, MaxPerDayMinutes: 240},
	}
	return NewService(store.Settings(), permission.NewGate(false, logger), cache.New[settings.Settings](time.Minute), defaults, logger)
}

func TestService_GetFallsBackToDefaults(t *testing.T) {
	svc := newService(memory.NewStore())

	got, err := svc.Get(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", got.OrgID)
	assert.Equal(t, "09:00", got.DefaultSchedule.WorkStart)
	assert.Equal(t, 15, got.Overtime.RoundingMinutes)
}

func TestService_GetWhenStoreNotReady(t *testing.T) {
	store := memory.NewStore()
	store.SetNotReady(true)
	svc := newService(store)

	got, err := svc.Get(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "UTC", got.DefaultSchedule.Timezone)

	owner := user.Actor{UserID: "o1", OrgID: "org-1", Role: user.RoleOwner}
	_, err = svc.Save(context.Background(), owner, settings.Settings{})
	assert.Error(t, err)
}

func TestService_SaveInvalidatesCache(t *testing.T) {
	svc := newService(memory.NewStore())
	ctx := context.Background()
	owner := user.Actor{UserID: "o1", OrgID: "org-1", Role: user.RoleOwner}

	_, err := svc.Get(ctx, "org-1")
	require.NoError(t, err)

	rule := schedule.ScheduleRule{Timezone: "Asia/Jakarta", WorkStart: "08:00", WorkEnd: "17:00", RoundingMinutes: 5, WorkingWeekdays: []int{1, 2, 3, 4, 5, 6}}
	saved, err := svc.Save(ctx, owner, settings.Settings{
		DefaultSchedule: &rule,
		Punch:           attendance.PunchConstraints{MinIntervalMinutes: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "org-1", saved.OrgID)
	assert.Equal(t, 240, saved.Overtime.MaxPerDayMinutes)

	got, err := svc.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "08:00", got.DefaultSchedule.WorkStart)
	assert.Equal(t, 2, got.Punch.MinIntervalMinutes)
}

func TestService_SaveValidatesAndAuthorizes(t *testing.T) {
	svc := newService(memory.NewStore())
	ctx := context.Background()

	employee := user.Actor{UserID: "e1", OrgID: "org-1", Role: user.RoleEmployee}
	_, err := svc.Save(ctx, employee, settings.Settings{})
	assert.ErrorIs(t, err, user.ErrForbidden)

	owner := user.Actor{UserID: "o1", OrgID: "org-1", Role: user.RoleOwner}
	_, err = svc.Save(ctx, owner, settings.Settings{Punch: attendance.PunchConstraints{IPAllowlist: []string{"nope"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "punch.ip_allowlist")
}
