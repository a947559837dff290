package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/validator"
)

type AttendanceServiceImpl struct {
	tx          database.Transactor
	events      attendance.EventRepository
	records     attendance.RecordRepository
	approved    attendance.ApprovedMinutesSource
	reconciler  attendance.Reconciler
	resolver    schedule.Resolver
	settings    settings.Service
	constraints attendance.ConstraintGate
	gate        user.PermissionGate
	adjuster    attendance.Adjuster
	publisher   events.Publisher
	logger      *slog.Logger
}

// Punch implements attendance.Service.
func (a *AttendanceServiceImpl) Punch(ctx context.Context, actor user.Actor, req attendance.PunchRequest) (attendance.Record, error) {
	req.OrgID = actor.OrgID
	if req.UserID == "" {
		req.UserID = actor.UserID
	}
	if err := req.Validate(); err != nil {
		return attendance.Record{}, err
	}

	permission := user.PermissionAttendanceCreate
	if req.UserID != actor.UserID {
		permission = user.PermissionAttendanceManage
	}
	if err := a.gate.Require(ctx, actor, permission); err != nil {
		return attendance.Record{}, err
	}

	occurredAt, _ := validator.IsValidDateTime(req.OccurredAt)
	occurredAt = occurredAt.UTC()

	orgSettings, err := a.settings.Get(ctx, req.OrgID)
	if err != nil {
		return attendance.Record{}, err
	}
	orgDefault := *orgSettings.DefaultSchedule

	tz := orgDefault.Timezone
	if req.Timezone != "" {
		tz = req.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	workDate := schedule.LocalDate(occurredAt, loc)

	if err := a.constraints.Check(ctx, req.OrgID, req.UserID, occurredAt, req.IP, req.Location, orgSettings.Punch); err != nil {
		return attendance.Record{}, err
	}

	wc, err := a.resolver.Resolve(ctx, req.OrgID, req.UserID, workDate, orgDefault)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to resolve work context: %w", err)
	}

	if req.Type == attendance.EventCheckOut {
		prevDate, prev, carried, err := a.overnightCarry(ctx, req, occurredAt, workDate, wc, orgDefault)
		if err != nil {
			return attendance.Record{}, err
		}
		if carried {
			workDate, wc = prevDate, prev
		}
	}

	key := attendance.Key{OrgID: req.OrgID, UserID: req.UserID, WorkDate: workDate}
	var record attendance.Record
	err = a.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		source := req.Source
		if source == "" {
			source = "api"
		}
		if err := a.events.Append(txCtx, attendance.Event{
			OrgID:      req.OrgID,
			UserID:     req.UserID,
			WorkDate:   workDate,
			OccurredAt: occurredAt,
			Type:       req.Type,
			Timezone:   tz,
			Source:     source,
			Location:   req.Location,
			Meta:       req.Meta,
		}); err != nil {
			return fmt.Errorf("failed to append attendance event: %w", err)
		}

		leave, overtime, err := a.approved.SumApprovedMinutes(txCtx, req.OrgID, req.UserID, workDate)
		if err != nil {
			return fmt.Errorf("failed to sum approved minutes: %w", err)
		}

		in := attendance.ReconcileInput{
			Key:             key,
			Mode:            attendance.ModeAppend,
			Context:         wc,
			LeaveMinutes:    leave,
			OvertimeMinutes: overtime,
			Meta:            map[string]interface{}{"last_source": source},
			Adjuster:        a.adjuster,
		}
		if req.Type == attendance.EventCheckIn {
			in.FirstIn = &occurredAt
		} else {
			in.LastOut = &occurredAt
		}

		record, err = a.reconciler.Reconcile(txCtx, in)
		return err
	})
	if err != nil {
		return attendance.Record{}, err
	}

	a.logger.InfoContext(ctx, "punch recorded",
		"org_id", req.OrgID,
		"user_id", req.UserID,
		"type", string(req.Type),
		"work_date", workDate.Format("2006-01-02"),
		"status", string(record.Status),
	)

	now := time.Now().UTC()
	a.publisher.Publish(events.Event{Topic: events.TopicPunched, OrgID: req.OrgID, UserID: req.UserID, Payload: req.Type, At: now})
	a.publisher.Publish(events.Event{Topic: events.TopicRecordUpdated, OrgID: req.OrgID, UserID: req.UserID, Payload: record, At: now})

	return record, nil
}

// overnightCheckoutWindow is how long after an overnight shift's end a
// check-out still closes that shift.
const overnightCheckoutWindow = 4 * time.Hour

// overnightCarry reports whether a check-out closes the previous day's
// overnight shift. That day's record must already hold a check-in, and the
// punch must land before the window after the shift's end closes (or before
// today's shift starts, whichever is first).
func (a *AttendanceServiceImpl) overnightCarry(
	ctx context.Context,
	req attendance.PunchRequest,
	occurredAt, workDate time.Time,
	today schedule.WorkContext,
	orgDefault schedule.ScheduleRule,
) (time.Time, schedule.WorkContext, bool, error) {
	prevDate := workDate.AddDate(0, 0, -1)
	prev, err := a.resolver.Resolve(ctx, req.OrgID, req.UserID, prevDate, orgDefault)
	if err != nil {
		return time.Time{}, schedule.WorkContext{}, false, fmt.Errorf("failed to resolve previous work context: %w", err)
	}
	if !prev.Schedule.CrossesMidnight() {
		return time.Time{}, schedule.WorkContext{}, false, nil
	}

	end, ok := prev.Schedule.EndAt(prevDate)
	if !ok {
		return time.Time{}, schedule.WorkContext{}, false, nil
	}
	limit := end.Add(overnightCheckoutWindow)
	if start, ok := today.Schedule.StartAt(workDate); ok && start.Before(limit) {
		limit = start
	}
	if !occurredAt.Before(limit) {
		return time.Time{}, schedule.WorkContext{}, false, nil
	}

	rec, err := a.records.Get(ctx, attendance.Key{OrgID: req.OrgID, UserID: req.UserID, WorkDate: prevDate})
	if errors.Is(err, attendance.ErrRecordNotFound) {
		return time.Time{}, schedule.WorkContext{}, false, nil
	}
	if err != nil {
		return time.Time{}, schedule.WorkContext{}, false, fmt.Errorf("failed to read previous attendance record: %w", err)
	}
	if rec.FirstInAt == nil {
		return time.Time{}, schedule.WorkContext{}, false, nil
	}
	return prevDate, prev, true, nil
}

// ListRecords implements attendance.Service. Actors without view_all only
// see their own records.
func (a *AttendanceServiceImpl) ListRecords(ctx context.Context, actor user.Actor, filter attendance.RecordFilter) ([]attendance.Record, error) {
	filter.OrgID = actor.OrgID

	if err := a.gate.Require(ctx, actor, user.PermissionAttendanceViewAll); err != nil {
		if filter.UserID != "" && filter.UserID != actor.UserID {
			return nil, err
		}
		if err := a.gate.Require(ctx, actor, user.PermissionAttendanceViewOwn); err != nil {
			return nil, err
		}
		filter.UserID = actor.UserID
	}

	records, err := a.records.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records: %w", err)
	}
	return records, nil
}

func NewAttendanceService(
	tx database.Transactor,
	eventRepository attendance.EventRepository,
	recordRepository attendance.RecordRepository,
	approved attendance.ApprovedMinutesSource,
	reconciler attendance.Reconciler,
	resolver schedule.Resolver,
	settingsService settings.Service,
	constraints attendance.ConstraintGate,
	gate user.PermissionGate,
	adjuster attendance.Adjuster,
	publisher events.Publisher,
	logger *slog.Logger,
) attendance.Service {
	if publisher == nil {
		publisher = events.Discard
	}
	return &AttendanceServiceImpl{
		tx:          tx,
		events:      eventRepository,
		records:     recordRepository,
		approved:    approved,
		reconciler:  reconciler,
		resolver:    resolver,
		settings:    settingsService,
		constraints: constraints,
		gate:        gate,
		adjuster:    adjuster,
		publisher:   publisher,
		logger:      logger,
	}
}
