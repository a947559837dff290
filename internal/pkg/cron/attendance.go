package cron

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
	"github.com/cmlabs-hris/attendance-core/internal/pkg/redis"
)

const autoAbsenceJob = "auto_absence"

// RunMarker claims a (job, runKey) pair once across all instances.
type RunMarker interface {
	Claim(ctx context.Context, job, runKey string) (bool, error)
}

type redisMarker struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisMarker claims runs with SETNX; keys expire after ttl.
func RedisMarker(client *redis.Client, ttl time.Duration) RunMarker {
	return &redisMarker{client: client, ttl: ttl}
}

func (m *redisMarker) Claim(ctx context.Context, job, runKey string) (bool, error) {
	return m.client.ClaimRun(ctx, job, runKey, m.ttl)
}

type AttendanceJobs struct {
	members    user.MemberRepository
	settings   settings.Service
	resolver   schedule.Resolver
	records    attendance.RecordRepository
	approved   attendance.ApprovedMinutesSource
	reconciler attendance.Reconciler
	adjuster   attendance.Adjuster
	marker     RunMarker
	logger     *slog.Logger
	now        func() time.Time
}

func NewAttendanceJobs(
	members user.MemberRepository,
	settingsService settings.Service,
	resolver schedule.Resolver,
	records attendance.RecordRepository,
	approved attendance.ApprovedMinutesSource,
	reconciler attendance.Reconciler,
	adjuster attendance.Adjuster,
	marker RunMarker,
	logger *slog.Logger,
) *AttendanceJobs {
	return &AttendanceJobs{
		members:    members,
		settings:   settingsService,
		resolver:   resolver,
		records:    records,
		approved:   approved,
		reconciler: reconciler,
		adjuster:   adjuster,
		marker:     marker,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterJobs checks every interval (hourly by default); the run marker
// keeps each org-date to one run.
func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	scheduler.AddJob(autoAbsenceJob, interval, j.AutoAbsence)
}

// AutoAbsence closes yesterday (in each org's zone) for members who never
// punched on a working day.
func (j *AttendanceJobs) AutoAbsence(ctx context.Context) error {
	orgIDs, err := j.members.ListOrgIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list orgs: %w", err)
	}
	for _, orgID := range orgIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.autoAbsenceForOrg(ctx, orgID); err != nil {
			j.logger.ErrorContext(ctx, "Cron: auto absence failed", "org_id", orgID, "error", err)
		}
	}
	return nil
}

func (j *AttendanceJobs) autoAbsenceForOrg(ctx context.Context, orgID string) error {
	orgSettings, err := j.settings.Get(ctx, orgID)
	if err != nil {
		return err
	}
	orgDefault := *orgSettings.DefaultSchedule
	workDate := schedule.LocalDate(j.now(), orgDefault.Location()).AddDate(0, 0, -1)
	runKey := orgID + ":" + workDate.Format("2006-01-02")

	claimed, err := j.marker.Claim(ctx, autoAbsenceJob, runKey)
	if err != nil {
		return fmt.Errorf("failed to claim run: %w", err)
	}
	if !claimed {
		return nil
	}

	members, err := j.members.ListActive(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}

	marked := 0
	for _, m := range members {
		ok, err := j.markIfAbsent(ctx, orgID, m.UserID, workDate, orgDefault)
		if err != nil {
			j.logger.WarnContext(ctx, "Cron: auto absence skipped member", "org_id", orgID, "user_id", m.UserID, "error", err)
			continue
		}
		if ok {
			marked++
		}
	}

	j.logger.InfoContext(ctx, "Cron: auto absence completed",
		"org_id", orgID,
		"work_date", workDate.Format("2006-01-02"),
		"members", len(members),
		"marked", marked,
	)
	return nil
}

func (j *AttendanceJobs) markIfAbsent(ctx context.Context, orgID, userID string, workDate time.Time, orgDefault schedule.ScheduleRule) (bool, error) {
	wc, err := j.resolver.Resolve(ctx, orgID, userID, workDate, orgDefault)
	if err != nil {
		return false, err
	}
	if !wc.IsWorkingDay {
		return false, nil
	}

	key := attendance.Key{OrgID: orgID, UserID: userID, WorkDate: workDate}
	if _, err := j.records.Get(ctx, key); err == nil {
		return false, nil
	} else if !errors.Is(err, attendance.ErrRecordNotFound) {
		return false, err
	}

	leave, overtime, err := j.approved.SumApprovedMinutes(ctx, orgID, userID, workDate)
	if err != nil {
		return false, err
	}

	_, err = j.reconciler.Reconcile(ctx, attendance.ReconcileInput{
		Key:             key,
		Mode:            attendance.ModeMerge,
		Context:         wc,
		LeaveMinutes:    leave,
		OvertimeMinutes: overtime,
		Meta:            map[string]interface{}{"last_source": autoAbsenceJob},
		Adjuster:        j.adjuster,
	})
	return err == nil, err
}
