package workcontext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
)

// Resolver applies rotation > shift > org default precedence, then lets a
// holiday row override the working-day flag.
type Resolver struct {
	rotations   schedule.RotationRepository
	shifts      schedule.ShiftRepository
	assignments schedule.ShiftAssignmentRepository
	holidays    schedule.HolidayRepository
	logger      *slog.Logger
}

func NewResolver(
	rotations schedule.RotationRepository,
	shifts schedule.ShiftRepository,
	assignments schedule.ShiftAssignmentRepository,
	holidays schedule.HolidayRepository,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		rotations:   rotations,
		shifts:      shifts,
		assignments: assignments,
		holidays:    holidays,
		logger:      logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, orgID, userID string, workDate time.Time, orgDefault schedule.ScheduleRule) (schedule.WorkContext, error) {
	date := schedule.Date(workDate)

	wc, ok, err := r.fromRotation(ctx, orgID, userID, date, orgDefault)
	if err != nil {
		return schedule.WorkContext{}, err
	}
	if !ok {
		wc, ok, err = r.fromShift(ctx, orgID, userID, date, orgDefault)
		if err != nil {
			return schedule.WorkContext{}, err
		}
	}
	if !ok {
		wc = schedule.WorkContext{Schedule: orgDefault, Source: schedule.SourceRule}
	}

	wc.IsWorkingDay = wc.Schedule.IsWorkingWeekday(date.Weekday())

	holiday, err := r.holidays.Get(ctx, orgID, date)
	switch {
	case database.IsNotReady(err):
		r.logger.Warn("holiday table not ready, using weekday pattern", "org_id", orgID)
	case err != nil:
		return schedule.WorkContext{}, fmt.Errorf("get holiday: %w", err)
	case holiday != nil:
		wc.Holiday = holiday
		wc.IsWorkingDay = holiday.IsWorkingDay
	}

	return wc, nil
}

func (r *Resolver) fromRotation(ctx context.Context, orgID, userID string, date time.Time, orgDefault schedule.ScheduleRule) (schedule.WorkContext, bool, error) {
	assignment, err := r.rotations.FindActiveAssignment(ctx, orgID, userID, date)
	if err != nil {
		if database.IsNotReady(err) {
			return schedule.WorkContext{}, false, nil
		}
		return schedule.WorkContext{}, false, fmt.Errorf("find rotation assignment: %w", err)
	}
	if assignment == nil {
		return schedule.WorkContext{}, false, nil
	}

	rule, err := r.rotations.GetRule(ctx, orgID, assignment.RotationRuleID)
	if err != nil {
		if errors.Is(err, schedule.ErrRotationRuleNotFound) || database.IsNotReady(err) {
			r.logger.Warn("rotation rule unavailable, falling back", "org_id", orgID, "user_id", userID, "rotation_rule_id", assignment.RotationRuleID)
			return schedule.WorkContext{}, false, nil
		}
		return schedule.WorkContext{}, false, fmt.Errorf("get rotation rule: %w", err)
	}

	idx, ok := RotationIndex(assignment.StartDate, date, len(rule.ShiftSequence))
	if !ok {
		r.logger.Warn("rotation not applicable to date, falling back",
			"org_id", orgID, "user_id", userID, "rotation_rule_id", rule.ID, "work_date", date.Format("2006-01-02"))
		return schedule.WorkContext{}, false, nil
	}

	shift, err := r.shifts.GetByID(ctx, orgID, rule.ShiftSequence[idx])
	if err != nil {
		if errors.Is(err, schedule.ErrShiftNotFound) || database.IsNotReady(err) {
			r.logger.Warn("rotation shift missing, falling back", "org_id", orgID, "shift_id", rule.ShiftSequence[idx])
			return schedule.WorkContext{}, false, nil
		}
		return schedule.WorkContext{}, false, fmt.Errorf("get rotation shift: %w", err)
	}

	return schedule.WorkContext{
		Schedule:  inheritTimezone(shift.Rule, orgDefault),
		ShiftID:   shift.ID,
		ShiftName: shift.Name,
		Source:    schedule.SourceRotation,
	}, true, nil
}

func (r *Resolver) fromShift(ctx context.Context, orgID, userID string, date time.Time, orgDefault schedule.ScheduleRule) (schedule.WorkContext, bool, error) {
	assignment, err := r.assignments.FindActive(ctx, orgID, userID, date)
	if err != nil {
		if database.IsNotReady(err) {
			return schedule.WorkContext{}, false, nil
		}
		return schedule.WorkContext{}, false, fmt.Errorf("find shift assignment: %w", err)
	}
	if assignment == nil {
		return schedule.WorkContext{}, false, nil
	}

	shift, err := r.shifts.GetByID(ctx, orgID, assignment.ShiftID)
	if err != nil {
		if errors.Is(err, schedule.ErrShiftNotFound) || database.IsNotReady(err) {
			return schedule.WorkContext{}, false, nil
		}
		return schedule.WorkContext{}, false, fmt.Errorf("get shift: %w", err)
	}

	return schedule.WorkContext{
		Schedule:  inheritTimezone(shift.Rule, orgDefault),
		ShiftID:   shift.ID,
		ShiftName: shift.Name,
		Source:    schedule.SourceShift,
	}, true, nil
}

// RotationIndex is (date - start) mod length. Dates before start and empty
// sequences are not applicable.
func RotationIndex(start, date time.Time, length int) (int, bool) {
	if length <= 0 {
		return 0, false
	}
	offset := schedule.DaysBetween(start, date)
	if offset < 0 {
		return 0, false
	}
	return offset % length, true
}

func inheritTimezone(rule, orgDefault schedule.ScheduleRule) schedule.ScheduleRule {
	if rule.Timezone == "" {
		rule.Timezone = orgDefault.Timezone
	}
	return rule
}
