package attendance

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/cache"
	"github.com/cmlabs-hris/attendance-core/internal/repository/memory"
	"github.com/cmlabs-hris/attendance-core/internal/service/permission"
	rulesetsvc "github.com/cmlabs-hris/attendance-core/internal/service/ruleset"
)

func newAdjuster(t *testing.T, doc string) *RuleAdjuster {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	store := memory.NewStore()
	rules := rulesetsvc.NewService(store.RuleSets(), permission.NewGate(false, logger), cache.New[*ruleset.Compiled](time.Minute), logger)
	if doc != "" {
		_, err := rules.Save(context.Background(), owner, "org-1", []byte(doc))
		require.NoError(t, err)
	}
	return NewRuleAdjuster(rules, store.Members(), logger)
}

func restDayInput(fields map[string]interface{}) attendance.AdjustInput {
	rule := schedule.DefaultRule()
	return attendance.AdjustInput{
		Record:  attendance.Record{OrgID: "org-1", UserID: "emp-1", WorkDate: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		Context: schedule.WorkContext{Schedule: rule, ShiftName: "rest", IsWorkingDay: false, Source: schedule.SourceShift},
		Metrics: attendance.Metrics{Status: attendance.StatusOff},
		Fields:  fields,
	}
}

func TestRuleAdjuster_NoRuleSetPassesThrough(t *testing.T) {
	a := newAdjuster(t, "")
	in := restDayInput(nil)
	in.OvertimeMinutes = 30

	out, err := a.Adjust(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in.Metrics, out.Metrics)
	assert.Equal(t, 30, out.OvertimeMinutes)
	assert.Empty(t, out.Meta)
}

func TestRuleAdjuster_BusinessTripOnRestDay(t *testing.T) {
	a := newAdjuster(t, `{"rule_engine": {"templates": [{"id": "trips", "rules": [
		{"id": "rest-trip", "when": {"shift": "rest", "approval_contains": "trip"}, "then": {"overtime_hours": 8, "reason": "business trip"}}
	]}]}}`)

	out, err := a.Adjust(context.Background(), restDayInput(map[string]interface{}{"Approval": "Business trip to Surabaya"}))
	require.NoError(t, err)
	assert.Equal(t, 480, out.OvertimeMinutes)

	meta := out.Meta["rule_engine"].(map[string]interface{})
	assert.Equal(t, "8", meta["overtime_hours"])
	assert.Equal(t, []string{"rest-trip"}, meta["applied_rule_ids"])
	assert.Equal(t, []string{"business trip"}, meta["reasons"])

	out, err = a.Adjust(context.Background(), restDayInput(map[string]interface{}{"approval": "training"}))
	require.NoError(t, err)
	assert.Equal(t, 0, out.OvertimeMinutes)
}

func TestRuleAdjuster_EngineFeedsOverlay(t *testing.T) {
	a := newAdjuster(t, `{
		"rule_engine": {"templates": [{"rules": [{"when": {"shift": "rest"}, "then": {"overtime_hours": 10}}]}]},
		"policy": {"rules": [{"id": "cap", "match": {"conditions": [{"field": "overtime_minutes", "op": "gt", "value": 480}]},
			"effect": {"set_overtime_minutes": 480, "warnings": ["overtime capped"]}}]}
	}`)

	out, err := a.Adjust(context.Background(), restDayInput(nil))
	require.NoError(t, err)
	assert.Equal(t, 480, out.OvertimeMinutes)
	assert.Equal(t, attendance.StatusOff, out.Metrics.Status)

	policyMeta := out.Meta["policy"].(map[string]interface{})
	assert.Equal(t, []string{"overtime capped"}, policyMeta["warnings"])
}
