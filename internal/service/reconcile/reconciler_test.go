package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-core/internal/repository/memory"
	"github.com/cmlabs-hris/attendance-core/internal/service/metrics"
)

var workDate = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // Monday

func at(clock string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2024-03-04 "+clock)
	if err != nil {
		panic(err)
	}
	return &t
}

func newReconciler(t *testing.T) (*Reconciler, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return NewReconciler(store, store.Records(), metrics.NewCalculator(), logger), store
}

func workday() schedule.WorkContext {
	return schedule.WorkContext{Schedule: schedule.DefaultRule(), IsWorkingDay: true, Source: schedule.SourceRule}
}

func key() attendance.Key {
	return attendance.Key{OrgID: "org-1", UserID: "u1", WorkDate: workDate}
}

func TestReconcile_AppendKeepsEarliestAndLatest(t *testing.T) {
	r, _ := newReconciler(t)
	ctx := context.Background()

	rec, err := r.Reconcile(ctx, attendance.ReconcileInput{Key: key(), FirstIn: at("09:05"), Mode: attendance.ModeAppend, Context: workday()})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPartial, rec.Status)

	rec, err = r.Reconcile(ctx, attendance.ReconcileInput{Key: key(), LastOut: at("18:10"), Mode: attendance.ModeAppend, Context: workday()})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLate, rec.Status)
	assert.Equal(t, 5, rec.LateMinutes)
	assert.Equal(t, 545, rec.WorkMinutes)

	rec, err = r.Reconcile(ctx, attendance.ReconcileInput{Key: key(), FirstIn: at("08:55"), Mode: attendance.ModeAppend, Context: workday()})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusNormal, rec.Status)
	assert.Equal(t, *at("08:55"), *rec.FirstInAt)
	assert.Equal(t, *at("18:10"), *rec.LastOutAt)
	assert.Equal(t, 555, rec.WorkMinutes)
	assert.Equal(t, 0, rec.LateMinutes)

	// A later check-in does not move the first punch.
	rec, err = r.Reconcile(ctx, attendance.ReconcileInput{Key: key(), FirstIn: at("10:00"), Mode: attendance.ModeAppend, Context: workday()})
	require.NoError(t, err)
	assert.Equal(t, *at("08:55"), *rec.FirstInAt)
}

func TestReconcile_MergeAndOverride(t *testing.T) {
	r, _ := newReconciler(t)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, attendance.ReconcileInput{Key: key(), FirstIn: at("09:00"), LastOut: at("18:00"), Mode: attendance.ModeAppend, Context: workday()})
	require.NoError(t, err)

	rec, err := r.Reconcile(ctx, attendance.ReconcileInput{Key: key(), LastOut: at("17:30"), Mode: attendance.ModeMerge, Context: workday()})
	require.NoError(t, err)
	assert.Equal(t, *at("09:00"), *rec.FirstInAt)
	assert.Equal(t, *at("17:30"), *rec.LastOutAt)
	assert.Equal(t, attendance.StatusEarlyLeave, rec.Status)
	assert.Equal(t, 30, rec.EarlyLeaveMinutes)

	rec, err = r.Reconcile(ctx, attendance.ReconcileInput{Key: key(), FirstIn: at("09:30"), Mode: attendance.ModeOverride, Context: workday()})
	require.NoError(t, err)
	assert.Equal(t, *at("09:30"), *rec.FirstInAt)
	assert.Nil(t, rec.LastOutAt)
	assert.Equal(t, attendance.StatusPartial, rec.Status)
}

func TestReconcile_OverrideIsIdempotentAndMetaMerges(t *testing.T) {
	r, store := newReconciler(t)
	ctx := context.Background()

	status := attendance.StatusAdjusted
	work := 480
	in := attendance.ReconcileInput{
		Key:          key(),
		Mode:         attendance.ModeMerge,
		Context:      workday(),
		LeaveMinutes: 480,
		Override:     &attendance.Override{Status: &status, WorkMinutes: &work},
		Meta:         map[string]interface{}{"request_id": "req-1"},
	}

	first, err := r.Reconcile(ctx, in)
	require.NoError(t, err)

	in.Meta = map[string]interface{}{"approved_by": "m1"}
	second, err := r.Reconcile(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, attendance.StatusAdjusted, second.Status)
	assert.Equal(t, 480, second.WorkMinutes)
	assert.Equal(t, "req-1", second.Meta["request_id"])
	assert.Equal(t, "m1", second.Meta["approved_by"])
	assert.Equal(t, 480, second.Meta["leave_minutes"])

	stored, err := store.Records().Get(ctx, key())
	require.NoError(t, err)
	assert.Equal(t, second.Status, stored.Status)
	assert.Equal(t, second.WorkMinutes, stored.WorkMinutes)
}

func TestReconcile_NonWorkingDayWithoutPunches(t *testing.T) {
	r, _ := newReconciler(t)
	wc := workday()
	wc.IsWorkingDay = false
	wc.Holiday = &schedule.Holiday{Name: "Nyepi"}

	rec, err := r.Reconcile(context.Background(), attendance.ReconcileInput{Key: key(), Mode: attendance.ModeMerge, Context: wc})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusOff, rec.Status)
	assert.False(t, rec.IsWorkday)
	assert.Equal(t, "Nyepi", rec.Meta["holiday"])
}

type stubAdjuster struct {
	calls int
	err   error
}

func (s *stubAdjuster) Adjust(ctx context.Context, in attendance.AdjustInput) (attendance.Adjustment, error) {
	s.calls++
	if s.err != nil {
		return attendance.Adjustment{}, s.err
	}
	m := in.Metrics
	m.LateMinutes = 0
	m.Status = attendance.StatusNormal
	return attendance.Adjustment{
		Metrics:         m,
		LeaveMinutes:    in.LeaveMinutes,
		OvertimeMinutes: 60,
		Meta:            map[string]interface{}{"policy": map[string]interface{}{"applied_rule_ids": []string{"grace"}}},
	}, nil
}

func TestReconcile_AdjusterThenOverride(t *testing.T) {
	r, _ := newReconciler(t)
	adj := &stubAdjuster{}

	late := 7
	rec, err := r.Reconcile(context.Background(), attendance.ReconcileInput{
		Key:      key(),
		FirstIn:  at("09:20"),
		LastOut:  at("18:00"),
		Mode:     attendance.ModeAppend,
		Context:  workday(),
		Adjuster: adj,
		Override: &attendance.Override{LateMinutes: &late},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, adj.calls)
	assert.Equal(t, attendance.StatusNormal, rec.Status)
	assert.Equal(t, 7, rec.LateMinutes)
	assert.Equal(t, 60, rec.Meta["overtime_minutes"])
	assert.Contains(t, rec.Meta, "policy")
}

func TestReconcile_AdjusterFailureRollsBack(t *testing.T) {
	r, store := newReconciler(t)
	boom := errors.New("boom")

	_, err := r.Reconcile(context.Background(), attendance.ReconcileInput{
		Key:      key(),
		FirstIn:  at("09:00"),
		Mode:     attendance.ModeAppend,
		Context:  workday(),
		Adjuster: &stubAdjuster{err: boom},
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Records().Get(context.Background(), key())
	assert.ErrorIs(t, err, attendance.ErrRecordNotFound)
}

func TestReconcile_RejectsBadInput(t *testing.T) {
	r, _ := newReconciler(t)

	_, err := r.Reconcile(context.Background(), attendance.ReconcileInput{Key: key(), Mode: "replace", Context: workday()})
	assert.ErrorIs(t, err, attendance.ErrInvalidMode)

	_, err = r.Reconcile(context.Background(), attendance.ReconcileInput{Key: attendance.Key{OrgID: "org-1"}, Mode: attendance.ModeMerge})
	assert.ErrorIs(t, err, attendance.ErrInvalidPunch)
}

func TestReconcile_StoreNotReadySurfaces(t *testing.T) {
	r, store := newReconciler(t)
	store.SetNotReady(true)

	_, err := r.Reconcile(context.Background(), attendance.ReconcileInput{Key: key(), Mode: attendance.ModeMerge, Context: workday()})
	assert.True(t, database.IsNotReady(err))
}

func TestReconcile_ConcurrentAppendsConverge(t *testing.T) {
	r, store := newReconciler(t)
	ctx := context.Background()

	const writers = 12
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := attendance.ReconcileInput{Key: key(), Mode: attendance.ModeAppend, Context: workday()}
			if i%2 == 0 {
				in.FirstIn = at(fmt.Sprintf("08:%02d", 10+i))
			} else {
				in.LastOut = at(fmt.Sprintf("17:%02d", 10+i))
			}
			_, errs[i] = r.Reconcile(ctx, in)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	rec, err := store.Records().Get(ctx, key())
	require.NoError(t, err)
	require.NotNil(t, rec.FirstInAt)
	require.NotNil(t, rec.LastOutAt)
	assert.Equal(t, *at("08:10"), *rec.FirstInAt)
	assert.Equal(t, *at("17:21"), *rec.LastOutAt)
	assert.Equal(t, attendance.StatusEarlyLeave, rec.Status)

	records, err := store.Records().List(ctx, attendance.RecordFilter{OrgID: "org-1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
