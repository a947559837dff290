package workcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/repository/memory"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newResolver(store *memory.Store) *Resolver {
	return NewResolver(store.Rotations(), store.Shifts(), store.ShiftAssignments(), store.Holidays(), nil)
}

func seedShift(t *testing.T, store *memory.Store, name, start, end string, weekdays []int) schedule.Shift {
	t.Helper()
	shift, err := store.Shifts().Create(context.Background(), schedule.Shift{
		OrgID: "org",
		Name:  name,
		Rule: schedule.ScheduleRule{
			WorkStart:       start,
			WorkEnd:         end,
			RoundingMinutes: 1,
			WorkingWeekdays: weekdays,
		},
	})
	require.NoError(t, err)
	return shift
}

func TestResolve_DefaultRule(t *testing.T) {
	store := memory.NewStore()
	r := newResolver(store)

	// 2024-03-04 is a Monday
	wc, err := r.Resolve(context.Background(), "org", "u1", date(2024, 3, 4), schedule.DefaultRule())
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceRule, wc.Source)
	assert.True(t, wc.IsWorkingDay)

	wc, err = r.Resolve(context.Background(), "org", "u1", date(2024, 3, 9), schedule.DefaultRule())
	require.NoError(t, err)
	assert.False(t, wc.IsWorkingDay)
}

func TestResolve_ShiftAssignmentMostRecentWins(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	early := seedShift(t, store, "early", "06:00", "14:00", []int{1, 2, 3, 4, 5})
	late := seedShift(t, store, "late", "14:00", "22:00", []int{0, 6})

	_, err := store.ShiftAssignments().Create(ctx, schedule.ShiftAssignment{OrgID: "org", UserID: "u1", ShiftID: early.ID, StartDate: date(2024, 1, 1), Active: true})
	require.NoError(t, err)
	_, err = store.ShiftAssignments().Create(ctx, schedule.ShiftAssignment{OrgID: "org", UserID: "u1", ShiftID: late.ID, StartDate: date(2024, 3, 1), Active: true})
	require.NoError(t, err)

	def := schedule.DefaultRule()
	def.Timezone = "Asia/Jakarta"
	wc, err := newResolver(store).Resolve(ctx, "org", "u1", date(2024, 3, 4), def)
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceShift, wc.Source)
	assert.Equal(t, "late", wc.ShiftName)
	assert.Equal(t, "Asia/Jakarta", wc.Schedule.Timezone)
	assert.False(t, wc.IsWorkingDay, "monday is not in the late shift's weekdays")
}

func TestResolve_RotationCycle(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	a := seedShift(t, store, "A", "08:00", "16:00", []int{0, 1, 2, 3, 4, 5, 6})
	b := seedShift(t, store, "B", "16:00", "00:00", []int{0, 1, 2, 3, 4, 5, 6})
	c := seedShift(t, store, "C", "00:00", "08:00", []int{0, 1, 2, 3, 4, 5, 6})
	fallback := seedShift(t, store, "fallback", "09:00", "17:00", []int{1, 2, 3, 4, 5})

	rule, err := store.Rotations().CreateRule(ctx, schedule.RotationRule{OrgID: "org", Name: "abc", ShiftSequence: []string{a.ID, b.ID, c.ID}})
	require.NoError(t, err)
	start := date(2024, 3, 1)
	_, err = store.Rotations().CreateAssignment(ctx, schedule.RotationAssignment{OrgID: "org", UserID: "u1", RotationRuleID: rule.ID, StartDate: start, Active: true})
	require.NoError(t, err)
	_, err = store.ShiftAssignments().Create(ctx, schedule.ShiftAssignment{OrgID: "org", UserID: "u1", ShiftID: fallback.ID, StartDate: date(2024, 1, 1), Active: true})
	require.NoError(t, err)

	r := newResolver(store)
	names := []string{"A", "B", "C"}
	for k := 0; k < 10; k++ {
		wc, err := r.Resolve(ctx, "org", "u1", start.AddDate(0, 0, k), schedule.DefaultRule())
		require.NoError(t, err)
		assert.Equal(t, schedule.SourceRotation, wc.Source)
		assert.Equal(t, names[k%3], wc.ShiftName, "day %d", k)
	}

	wc, err := r.Resolve(ctx, "org", "u1", start.AddDate(0, 0, -1), schedule.DefaultRule())
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceShift, wc.Source, "dates before the rotation start fall through")
	assert.Equal(t, "fallback", wc.ShiftName)
}

func TestResolve_MalformedRotationFallsBack(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	empty, err := store.Rotations().CreateRule(ctx, schedule.RotationRule{OrgID: "org", Name: "empty"})
	require.NoError(t, err)
	_, err = store.Rotations().CreateAssignment(ctx, schedule.RotationAssignment{OrgID: "org", UserID: "u1", RotationRuleID: empty.ID, StartDate: date(2024, 1, 1), Active: true})
	require.NoError(t, err)

	missing, err := store.Rotations().CreateRule(ctx, schedule.RotationRule{OrgID: "org", Name: "missing", ShiftSequence: []string{"nope"}})
	require.NoError(t, err)
	_, err = store.Rotations().CreateAssignment(ctx, schedule.RotationAssignment{OrgID: "org", UserID: "u2", RotationRuleID: missing.ID, StartDate: date(2024, 1, 1), Active: true})
	require.NoError(t, err)

	r := newResolver(store)
	for _, userID := range []string{"u1", "u2"} {
		wc, err := r.Resolve(ctx, "org", userID, date(2024, 3, 4), schedule.DefaultRule())
		require.NoError(t, err)
		assert.Equal(t, schedule.SourceRule, wc.Source, userID)
	}
}

func TestResolve_HolidayOverridesWeekday(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Holidays().Upsert(ctx, schedule.Holiday{OrgID: "org", Date: date(2024, 3, 11), Name: "Nyepi"}))
	require.NoError(t, store.Holidays().Upsert(ctx, schedule.Holiday{OrgID: "org", Date: date(2024, 3, 9), Name: "Make-up day", IsWorkingDay: true}))

	r := newResolver(store)

	wc, err := r.Resolve(ctx, "org", "u1", date(2024, 3, 11), schedule.DefaultRule())
	require.NoError(t, err)
	assert.False(t, wc.IsWorkingDay)
	require.NotNil(t, wc.Holiday)
	assert.Equal(t, "Nyepi", wc.Holiday.Name)

	wc, err = r.Resolve(ctx, "org", "u1", date(2024, 3, 9), schedule.DefaultRule())
	require.NoError(t, err)
	assert.True(t, wc.IsWorkingDay, "saturday made a working day by the holiday row")
}

func TestResolve_StoreNotReadyFallsBackToDefault(t *testing.T) {
	store := memory.NewStore()
	store.SetNotReady(true)

	wc, err := newResolver(store).Resolve(context.Background(), "org", "u1", date(2024, 3, 4), schedule.DefaultRule())
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceRule, wc.Source)
	assert.True(t, wc.IsWorkingDay)
}

func TestRotationIndex(t *testing.T) {
	start := date(2024, 1, 1)

	idx, ok := RotationIndex(start, start.AddDate(0, 0, 7), 3)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = RotationIndex(start, start.AddDate(0, 0, -1), 3)
	assert.False(t, ok)

	_, ok = RotationIndex(start, start, 0)
	assert.False(t, ok)
}
