// Package importer loads attendance sheets row by row into daily records.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/events"
)

const maxImportRows = 5000

var ErrTooManyRows = fmt.Errorf("import file exceeds %d data rows", maxImportRows)

type Service struct {
	rules      ruleset.Service
	settings   settings.Service
	resolver   schedule.Resolver
	approved   attendance.ApprovedMinutesSource
	reconciler attendance.Reconciler
	adjuster   attendance.Adjuster
	gate       user.PermissionGate
	publisher  events.Publisher
	logger     *slog.Logger
}

func NewService(
	rules ruleset.Service,
	settingsService settings.Service,
	resolver schedule.Resolver,
	approved attendance.ApprovedMinutesSource,
	reconciler attendance.Reconciler,
	adjuster attendance.Adjuster,
	gate user.PermissionGate,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{
		rules:      rules,
		settings:   settingsService,
		resolver:   resolver,
		approved:   approved,
		reconciler: reconciler,
		adjuster:   adjuster,
		gate:       gate,
		publisher:  publisher,
		logger:     logger,
	}
}

var _ attendance.Importer = (*Service)(nil)

// Import implements attendance.Importer. Bad rows are reported in the
// result and never stop the batch; a store that is not ready does.
func (s *Service) Import(ctx context.Context, actor user.Actor, req attendance.ImportRequest) (attendance.ImportResult, error) {
	req.OrgID = actor.OrgID
	if err := req.Validate(); err != nil {
		return attendance.ImportResult{}, err
	}
	if err := s.gate.Require(ctx, actor, user.PermissionAttendanceImport); err != nil {
		return attendance.ImportResult{}, err
	}
	mode := req.Mode
	if mode == "" {
		mode = attendance.ModeMerge
	}

	rows, err := readRows(req.Filename, req.Reader)
	if err != nil {
		return attendance.ImportResult{}, err
	}
	if len(rows) < 2 {
		return attendance.ImportResult{}, attendance.ErrEmptyImport
	}
	if len(rows)-1 > maxImportRows {
		return attendance.ImportResult{}, ErrTooManyRows
	}

	orgSettings, err := s.settings.Get(ctx, req.OrgID)
	if err != nil {
		return attendance.ImportResult{}, err
	}
	compiled, err := s.rules.Get(ctx, req.OrgID)
	if err != nil {
		return attendance.ImportResult{}, err
	}
	var mappings map[string]string
	if compiled != nil {
		mappings = compiled.FieldMappings
	}
	names := columnNames(rows[0], mappings)

	result := attendance.ImportResult{Errors: []attendance.RowError{}}
	for i, cells := range rows[1:] {
		line := i + 2
		r := toRow(names, cells)
		if len(r) == 0 {
			continue
		}
		result.Total++

		rec, err := s.importRow(ctx, req, mode, *orgSettings.DefaultSchedule, r, line)
		if err != nil {
			if database.IsNotReady(err) {
				return result, err
			}
			result.Failed++
			result.Errors = append(result.Errors, attendance.RowError{Row: line, Message: err.Error()})
			continue
		}
		result.Succeeded++
		s.publisher.Publish(events.Event{Topic: events.TopicRecordUpdated, OrgID: rec.OrgID, UserID: rec.UserID, Payload: rec, At: time.Now().UTC()})
	}

	if result.Total == 0 {
		return result, attendance.ErrEmptyImport
	}

	s.logger.InfoContext(ctx, "attendance import finished",
		"org_id", req.OrgID,
		"file", req.Filename,
		"mode", string(mode),
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *Service) importRow(ctx context.Context, req attendance.ImportRequest, mode attendance.Mode, orgDefault schedule.ScheduleRule, r row, line int) (attendance.Record, error) {
	userID := r[colUserID]
	if userID == "" {
		return attendance.Record{}, errors.New("user_id is required")
	}
	rawDate, ok := r[colWorkDate]
	if !ok {
		return attendance.Record{}, errors.New("work_date is required")
	}
	workDate, err := parseDate(rawDate)
	if err != nil {
		return attendance.Record{}, err
	}

	wc, err := s.resolver.Resolve(ctx, req.OrgID, userID, workDate, orgDefault)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to resolve work context: %w", err)
	}
	loc := wc.Schedule.Location()

	in := attendance.ReconcileInput{
		Key:      attendance.Key{OrgID: req.OrgID, UserID: userID, WorkDate: workDate},
		Mode:     mode,
		Context:  wc,
		Adjuster: s.adjuster,
		Fields:   map[string]interface{}{},
		Meta: map[string]interface{}{
			"last_source": "import",
			"import_file": req.Filename,
			"import_row":  line,
		},
	}

	if v, ok := r[colFirstIn]; ok {
		t, err := parsePunch(v, workDate, loc)
		if err != nil {
			return attendance.Record{}, err
		}
		in.FirstIn = &t
	}
	if v, ok := r[colLastOut]; ok {
		t, err := parsePunch(v, workDate, loc)
		if err != nil {
			return attendance.Record{}, err
		}
		// a bare clock before the first-in belongs to the next day
		if in.FirstIn != nil && isClockOnly(v) && t.Before(*in.FirstIn) {
			t = t.AddDate(0, 0, 1)
		}
		in.LastOut = &t
	}

	override := &attendance.Override{}
	if v, ok := r[colStatus]; ok {
		st := attendance.Status(v)
		if !st.Valid() {
			return attendance.Record{}, fmt.Errorf("invalid status %q", v)
		}
		override.Status = &st
	}
	if override.WorkMinutes, err = optionalMinutes(r, colWorkMinutes); err != nil {
		return attendance.Record{}, err
	}
	if override.LateMinutes, err = optionalMinutes(r, colLateMinutes); err != nil {
		return attendance.Record{}, err
	}
	if override.EarlyLeaveMinutes, err = optionalMinutes(r, colEarlyLeaveMinutes); err != nil {
		return attendance.Record{}, err
	}
	if !override.Empty() {
		in.Override = override
	}

	leave, overtime, err := s.approved.SumApprovedMinutes(ctx, req.OrgID, userID, workDate)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to sum approved minutes: %w", err)
	}
	leaveCol, err := optionalMinutes(r, colLeaveMinutes)
	if err != nil {
		return attendance.Record{}, err
	}
	if leaveCol != nil {
		leave = *leaveCol
	}
	overtimeCol, err := optionalMinutes(r, colOvertimeMinutes)
	if err != nil {
		return attendance.Record{}, err
	}
	if overtimeCol != nil {
		overtime = *overtimeCol
	}
	in.LeaveMinutes, in.OvertimeMinutes = leave, overtime

	for k, v := range r {
		if !reserved[k] {
			in.Fields[k] = v
		}
	}

	return s.reconciler.Reconcile(ctx, in)
}
