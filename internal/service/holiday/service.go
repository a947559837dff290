package holiday

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/apperror"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
)

var ErrInvalidCalendar = apperror.New(apperror.CodeValidation, "invalid iCalendar file")

type HolidayServiceImpl struct {
	tx       database.Transactor
	holidays schedule.HolidayRepository
	gate     user.PermissionGate
	logger   *slog.Logger
}

func NewHolidayService(tx database.Transactor, holidays schedule.HolidayRepository, gate user.PermissionGate, logger *slog.Logger) schedule.HolidayService {
	return &HolidayServiceImpl{tx: tx, holidays: holidays, gate: gate, logger: logger}
}

// Upsert implements schedule.HolidayService.
func (s *HolidayServiceImpl) Upsert(ctx context.Context, actor user.Actor, req schedule.UpsertHolidayRequest) (schedule.Holiday, error) {
	req.OrgID = actor.OrgID
	if err := req.Validate(); err != nil {
		return schedule.Holiday{}, err
	}
	if err := s.gate.Require(ctx, actor, user.PermissionHolidayManage); err != nil {
		return schedule.Holiday{}, err
	}

	date, _ := time.Parse("2006-01-02", req.Date)
	h := schedule.Holiday{
		OrgID:        req.OrgID,
		Date:         date,
		Name:         strings.TrimSpace(req.Name),
		IsWorkingDay: req.IsWorkingDay,
	}
	if err := s.holidays.Upsert(ctx, h); err != nil {
		return schedule.Holiday{}, fmt.Errorf("failed to upsert holiday: %w", err)
	}
	return h, nil
}

// List implements schedule.HolidayService.
func (s *HolidayServiceImpl) List(ctx context.Context, orgID string, from, to time.Time) ([]schedule.Holiday, error) {
	out, err := s.holidays.List(ctx, orgID, schedule.Date(from), schedule.Date(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	return out, nil
}

// ImportICS implements schedule.HolidayService. Events without a readable
// DTSTART are skipped; a multi-day event counts for its first day only.
func (s *HolidayServiceImpl) ImportICS(ctx context.Context, actor user.Actor, r io.Reader, working bool) (schedule.ImportHolidaysResponse, error) {
	if err := s.gate.Require(ctx, actor, user.PermissionHolidayManage); err != nil {
		return schedule.ImportHolidaysResponse{}, err
	}

	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return schedule.ImportHolidaysResponse{}, apperror.Wrap(apperror.CodeValidation, ErrInvalidCalendar.Message, err)
	}

	resp := schedule.ImportHolidaysResponse{Holidays: []schedule.Holiday{}}
	byDate := make(map[string]int)
	for _, evt := range cal.Events() {
		date, ok := startDate(evt)
		if !ok {
			resp.Skipped++
			continue
		}
		name := ""
		if p := evt.GetProperty(ics.ComponentPropertySummary); p != nil {
			name = strings.TrimSpace(p.Value)
		}
		h := schedule.Holiday{OrgID: actor.OrgID, Date: date, Name: name, IsWorkingDay: working}

		// later events on the same date replace earlier ones
		key := date.Format("2006-01-02")
		if i, seen := byDate[key]; seen {
			resp.Holidays[i] = h
			resp.Skipped++
			continue
		}
		byDate[key] = len(resp.Holidays)
		resp.Holidays = append(resp.Holidays, h)
	}

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, h := range resp.Holidays {
			if err := s.holidays.Upsert(txCtx, h); err != nil {
				return fmt.Errorf("failed to upsert holiday %s: %w", h.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return schedule.ImportHolidaysResponse{}, err
	}
	resp.Imported = len(resp.Holidays)

	s.logger.InfoContext(ctx, "holidays imported", "org_id", actor.OrgID, "imported", resp.Imported, "skipped", resp.Skipped)
	return resp, nil
}

// startDate reads DTSTART as a calendar date. All-day values are dates
// already; timed values keep the date they carry in their own zone.
func startDate(evt *ics.VEvent) (time.Time, bool) {
	prop := evt.GetProperty(ics.ComponentPropertyDtStart)
	if prop == nil {
		return time.Time{}, false
	}
	val := strings.TrimSpace(prop.Value)

	loc := time.UTC
	if tzid, ok := prop.ICalParameters["TZID"]; ok && len(tzid) > 0 {
		if l, err := time.LoadLocation(tzid[0]); err == nil {
			loc = l
		}
	}

	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		t, err := time.ParseInLocation(layout, val, loc)
		if err != nil {
			continue
		}
		return schedule.Date(t), true
	}
	return time.Time{}, false
}
