package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
)

// Reconciler folds new punches into the daily record under a row lock and
// recomputes its metrics.
type Reconciler struct {
	tx      database.Transactor
	records attendance.RecordRepository
	calc    attendance.MetricsCalculator
	logger  *slog.Logger
}

func NewReconciler(tx database.Transactor, records attendance.RecordRepository, calc attendance.MetricsCalculator, logger *slog.Logger) *Reconciler {
	return &Reconciler{tx: tx, records: records, calc: calc, logger: logger}
}

func (r *Reconciler) Reconcile(ctx context.Context, in attendance.ReconcileInput) (attendance.Record, error) {
	if !in.Mode.Valid() {
		return attendance.Record{}, fmt.Errorf("%w: %q", attendance.ErrInvalidMode, in.Mode)
	}
	if in.Key.OrgID == "" || in.Key.UserID == "" || in.Key.WorkDate.IsZero() {
		return attendance.Record{}, fmt.Errorf("%w: record key is incomplete", attendance.ErrInvalidPunch)
	}
	in.Key.WorkDate = schedule.Date(in.Key.WorkDate)

	var out attendance.Record
	err := r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		rec, err := r.records.EnsureAndLock(txCtx, in.Key, in.Context.Schedule.Timezone, in.Context.IsWorkingDay)
		if err != nil {
			return fmt.Errorf("failed to lock attendance record: %w", err)
		}

		rec.FirstInAt, rec.LastOutAt = mergePunches(in.Mode, rec.FirstInAt, rec.LastOutAt, in.FirstIn, in.LastOut)
		rec.Timezone = in.Context.Schedule.Timezone
		rec.IsWorkday = in.Context.IsWorkingDay

		metrics := r.calc.Calculate(attendance.MetricsInput{
			Schedule:        in.Context.Schedule,
			FirstIn:         rec.FirstInAt,
			LastOut:         rec.LastOutAt,
			IsWorkingDay:    in.Context.IsWorkingDay,
			LeaveMinutes:    in.LeaveMinutes,
			OvertimeMinutes: in.OvertimeMinutes,
		})
		leave, overtime := in.LeaveMinutes, in.OvertimeMinutes

		meta := copyMeta(rec.Meta)
		if in.Adjuster != nil {
			adj, err := in.Adjuster.Adjust(txCtx, attendance.AdjustInput{
				Record:          rec,
				Context:         in.Context,
				Metrics:         metrics,
				LeaveMinutes:    leave,
				OvertimeMinutes: overtime,
				Fields:          in.Fields,
			})
			if err != nil {
				return fmt.Errorf("failed to apply attendance rules: %w", err)
			}
			metrics = adj.Metrics
			leave, overtime = adj.LeaveMinutes, adj.OvertimeMinutes
			mergeMeta(meta, adj.Meta)
		}
		metrics = applyOverride(metrics, in.Override)

		mergeMeta(meta, in.Meta)
		meta["raw_minutes"] = metrics.RawMinutes
		meta["leave_minutes"] = leave
		meta["overtime_minutes"] = overtime
		if in.Context.ShiftName != "" {
			meta["shift"] = in.Context.ShiftName
		}
		if in.Context.Holiday != nil {
			meta["holiday"] = in.Context.Holiday.Name
		}

		rec.WorkMinutes = metrics.WorkMinutes
		rec.LateMinutes = metrics.LateMinutes
		rec.EarlyLeaveMinutes = metrics.EarlyLeaveMinutes
		rec.Status = metrics.Status
		rec.Meta = meta

		out, err = r.records.Upsert(txCtx, rec)
		if err != nil {
			return fmt.Errorf("failed to save attendance record: %w", err)
		}
		return nil
	})
	if err != nil {
		return attendance.Record{}, err
	}

	r.logger.DebugContext(ctx, "attendance record reconciled",
		"org_id", out.OrgID,
		"user_id", out.UserID,
		"work_date", out.WorkDate.Format("2006-01-02"),
		"mode", string(in.Mode),
		"status", string(out.Status),
	)
	return out, nil
}

// mergePunches returns the record's punches after applying mode.
func mergePunches(mode attendance.Mode, curIn, curOut, newIn, newOut *time.Time) (*time.Time, *time.Time) {
	switch mode {
	case attendance.ModeOverride:
		return newIn, newOut
	case attendance.ModeMerge:
		if newIn != nil {
			curIn = newIn
		}
		if newOut != nil {
			curOut = newOut
		}
		return curIn, curOut
	default:
		return earliest(curIn, newIn), latest(curOut, newOut)
	}
}

func earliest(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || !b.Before(*a) {
		return a
	}
	return b
}

func latest(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || !b.After(*a) {
		return a
	}
	return b
}

func applyOverride(m attendance.Metrics, o *attendance.Override) attendance.Metrics {
	if o.Empty() {
		return m
	}
	if o.WorkMinutes != nil {
		m.WorkMinutes = *o.WorkMinutes
	}
	if o.LateMinutes != nil {
		m.LateMinutes = *o.LateMinutes
	}
	if o.EarlyLeaveMinutes != nil {
		m.EarlyLeaveMinutes = *o.EarlyLeaveMinutes
	}
	if o.Status != nil {
		m.Status = *o.Status
	}
	return m
}

func copyMeta(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// mergeMeta overlays src keys onto dst. Nested values are replaced whole.
func mergeMeta(dst, src map[string]interface{}) {
	for k, v := range src {
		dst[k] = v
	}
}

var _ attendance.Reconciler = (*Reconciler)(nil)
