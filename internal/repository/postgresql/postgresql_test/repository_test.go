package postgresql_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-core/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-core/internal/repository/postgresql"
)

const testOrg = "org-1"

func TestRecordRepository_EnsureAndLock(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	tx := postgresql.NewTransactor(setup.DB)
	records := postgresql.NewRecordRepository(setup.DB)
	key := attendance.Key{OrgID: testOrg, UserID: "emp-1", WorkDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}

	t.Run("requires a transaction", func(t *testing.T) {
		_, err := records.EnsureAndLock(ctx, key, "Asia/Jakarta", true)
		assert.ErrorIs(t, err, database.ErrNoTransaction)
	})

	t.Run("creates one placeholder per day", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
				rec, err := records.EnsureAndLock(txCtx, key, "Asia/Jakarta", true)
				if err != nil {
					return err
				}
				assert.Equal(t, attendance.StatusAbsent, rec.Status)
				return nil
			})
			require.NoError(t, err)
		}

		list, err := records.List(ctx, attendance.RecordFilter{OrgID: testOrg, UserID: "emp-1"})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("upsert overwrites metrics", func(t *testing.T) {
		in := time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC)
		rec, err := records.Upsert(ctx, attendance.Record{
			OrgID: testOrg, UserID: "emp-1", WorkDate: key.WorkDate, Timezone: "Asia/Jakarta",
			FirstInAt: &in, WorkMinutes: 480, Status: attendance.StatusNormal, IsWorkday: true,
			Meta: map[string]interface{}{"last_source": "punch"},
		})
		require.NoError(t, err)
		assert.Equal(t, 480, rec.WorkMinutes)

		got, err := records.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusNormal, got.Status)
		assert.Equal(t, "punch", got.Meta["last_source"])
	})
}

func TestInstanceRepository_Transition(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	instances := postgresql.NewInstanceRepository(setup.DB)

	inst := approval.Instance{ID: "7d4b6f0e-8f6c-4f1e-9a57-0c1f3f7d2a10", OrgID: testOrg, Status: approval.StatusPending, Version: 1}
	require.NoError(t, instances.Create(ctx, inst))

	next, err := instances.Transition(ctx, inst.ID, 1, approval.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Version)
	assert.Equal(t, approval.StatusApproved, next.Status)

	_, err = instances.Transition(ctx, inst.ID, 1, approval.StatusRejected)
	assert.ErrorIs(t, err, approval.ErrVersionConflict)
}

func TestHolidayRepository_Upsert(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	holidays := postgresql.NewHolidayRepository(setup.DB)
	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	require.NoError(t, holidays.Upsert(ctx, schedule.Holiday{OrgID: testOrg, Date: day, Name: "Nyepi"}))
	require.NoError(t, holidays.Upsert(ctx, schedule.Holiday{OrgID: testOrg, Date: day, Name: "Hari Raya Nyepi"}))

	h, err := holidays.Get(ctx, testOrg, day)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "Hari Raya Nyepi", h.Name)

	none, err := holidays.Get(ctx, testOrg, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRuleSetRepository_VersionConflict(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	rules := postgresql.NewRuleSetRepository(setup.DB)
	doc := json.RawMessage(`{"version":1}`)

	require.NoError(t, rules.Create(ctx, ruleset.Stored{OrgID: testOrg, Version: 1, Document: doc}))
	err := rules.Create(ctx, ruleset.Stored{OrgID: testOrg, Version: 1, Document: doc})
	assert.ErrorIs(t, err, ruleset.ErrVersionConflict)

	latest, err := rules.Latest(ctx, testOrg)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Version)
}

func TestJobRunRepository_Claim(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	runs := postgresql.NewJobRunRepository(setup.DB)

	first, err := runs.Claim(ctx, "auto_absence", "org-1:2024-03-04")
	require.NoError(t, err)
	second, err := runs.Claim(ctx, "auto_absence", "org-1:2024-03-04")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}
