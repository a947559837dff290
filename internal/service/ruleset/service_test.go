package ruleset

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/cache"
	"github.com/cmlabs-hris/attendance-core/internal/repository/memory"
	"github.com/cmlabs-hris/attendance-core/internal/service/permission"
)

const tripDoc = `{
	"version": 1,
	"rule_engine": {"templates": [{"id": "trips", "rules": [
		{"id": "rest-trip", "when": {"shift": "rest", "approval_contains": "trip"}, "then": {"overtime_hours": 8}}
	]}]},
	"field_mappings": {"Emp No": "user_id"},
	"ui": {"colour": "blue"}
}`

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	store := memory.NewStore()
	svc := NewService(store.RuleSets(), permission.NewGate(false, logger), cache.New[*ruleset.Compiled](time.Minute), logger)
	return svc, store
}

var owner = user.Actor{UserID: "owner-1", OrgID: "org-1", Role: user.RoleOwner}

func TestService_SaveAndGet(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	none, err := svc.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Nil(t, none)

	saved, err := svc.Save(ctx, owner, "org-1", []byte(tripDoc))
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)
	assert.Nil(t, saved.Policy)
	assert.Equal(t, map[string]string{"Emp No": "user_id"}, saved.FieldMappings)

	got, err := svc.Get(ctx, "org-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Engine)

	res := got.Engine.Evaluate(ruleset.Facts{"shift": "rest", "approval": "Business Trip"}, ruleset.Hours{})
	assert.True(t, res.Hours.Overtime.Equal(decimal.NewFromInt(8)))

	second, err := svc.Save(ctx, owner, "org-1", []byte(`{"policy": {"rules": [{"id": "p", "effect": {"add_work_minutes": 5}}]}}`))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	got, err = svc.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Nil(t, got.Engine)
	assert.NotNil(t, got.Policy)
}

func TestService_SaveRejectsInvalidDocuments(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, owner, "org-1", []byte(`{"rule_engine": {"templates": [{"rules": [{"when": {"late_minutes_between": [1, 2]}, "then": {}}]}]}}`))
	assert.ErrorIs(t, err, ruleset.ErrUnknownOperator)

	_, err = svc.Save(ctx, owner, "org-1", []byte(`{not json`))
	assert.ErrorIs(t, err, ruleset.ErrInvalidDocument)

	_, err = svc.Save(ctx, owner, "org-1", nil)
	assert.ErrorIs(t, err, ruleset.ErrInvalidDocument)

	none, err := svc.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestService_SaveRequiresPermission(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	manager := user.Actor{UserID: "m1", OrgID: "org-1", Role: user.RoleManager}
	_, err := svc.Save(ctx, manager, "org-1", []byte(tripDoc))
	assert.ErrorIs(t, err, user.ErrForbidden)

	_, err = svc.Save(ctx, owner, "org-2", []byte(tripDoc))
	assert.ErrorIs(t, err, user.ErrForbidden)
}

func TestService_GetCachesUntilInvalidated(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	require.NoError(t, store.RuleSets().Create(ctx, ruleset.Stored{OrgID: "org-1", Version: 1, Document: []byte(`{}`)}))
	first, err := svc.Get(ctx, "org-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, store.RuleSets().Create(ctx, ruleset.Stored{OrgID: "org-1", Version: 2, Document: []byte(`{}`)}))
	cached, err := svc.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Version)

	svc.Invalidate("org-1")
	fresh, err := svc.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Version)
}

func TestService_GetWhenStoreNotReady(t *testing.T) {
	svc, store := newService(t)
	store.SetNotReady(true)

	got, err := svc.Get(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = svc.Save(context.Background(), owner, "org-1", []byte(tripDoc))
	assert.Error(t, err)
}

func TestService_GetSkipsStoredSetThatNoLongerCompiles(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	broken := `{"rule_engine":{"templates":[{"id":"t","rules":[{"when":{"shift_regex":"r.*"},"then":{"overtime_hours":1}}]}]}}`
	require.NoError(t, store.RuleSets().Create(ctx, ruleset.Stored{OrgID: "org-1", Version: 1, Document: []byte(broken)}))

	got, err := svc.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	saved, err := svc.Save(ctx, owner, "org-1", []byte(tripDoc))
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)

	got, err = svc.Get(ctx, "org-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Version)
}
