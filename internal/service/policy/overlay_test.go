package policy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
)

func compileJSON(t *testing.T, doc string) *Program {
	t.Helper()
	var section ruleset.PolicySection
	require.NoError(t, json.Unmarshal([]byte(doc), &section))
	p, err := Compile(&section)
	require.NoError(t, err)
	return p
}

const groupsDoc = `{
	"user_groups": [
		{"id": "vip", "user_ids": ["u-vip"], "conditions": [{"field": "department", "op": "eq", "value": "never"}]},
		{"id": "ops_leads", "conditions": [
			{"field": "department", "op": "eq", "value": "ops"},
			{"field": "title", "op": "contains", "value": "LEAD"},
			{"field": "remote", "op": "is", "value": false}
		]},
		{"id": "field", "conditions": [{"field": "region", "op": "in", "value": ["north", "south"]}]}
	],
	"rules": []
}`

func TestApply_ResolvesGroups(t *testing.T) {
	p := compileJSON(t, groupsDoc)

	tests := []struct {
		name   string
		in     ruleset.OverlayInput
		groups []string
	}{
		{
			name:   "explicit user id short-circuits conditions",
			in:     ruleset.OverlayInput{UserID: "u-vip", Fields: map[string]interface{}{"department": "sales"}},
			groups: []string{"vip"},
		},
		{
			name: "all conditions hold",
			in: ruleset.OverlayInput{UserID: "u1", Fields: map[string]interface{}{
				"department": "ops", "title": "Shift Lead", "remote": "no", "region": "north",
			}},
			groups: []string{"ops_leads", "field"},
		},
		{
			name:   "one condition fails",
			in:     ruleset.OverlayInput{UserID: "u2", Fields: map[string]interface{}{"department": "ops", "title": "Engineer"}},
			groups: []string{},
		},
		{
			name:   "missing fields never match",
			in:     ruleset.OverlayInput{UserID: "u3"},
			groups: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.groups, p.Apply(tt.in).Groups)
		})
	}
}

func TestApply_RulesSeeEarlierMutations(t *testing.T) {
	p := compileJSON(t, `{
		"user_groups": [{"id": "drivers", "user_ids": ["u1"]}],
		"rules": [
			{"id": "grace", "match": {"user_groups": ["drivers"], "conditions": [{"field": "late_minutes", "op": "lte", "value": 15}]},
			 "effect": {"set_late_minutes": 0, "warnings": ["late forgiven"]}},
			{"id": "normalise", "match": {"status_in": ["late"], "conditions": [{"field": "late_minutes", "op": "eq", "value": 0}]},
			 "effect": {"set_status": "normal"}},
			{"id": "bonus", "match": {"status_in": ["normal"], "is_working_day": true},
			 "effect": {"add_work_minutes": 30, "warnings": ["late forgiven"]}}
		]
	}`)

	res := p.Apply(ruleset.OverlayInput{
		UserID:       "u1",
		IsWorkingDay: true,
		Metrics:      ruleset.OverlayMetrics{WorkMinutes: 470, LateMinutes: 10, Status: "late"},
	})

	assert.Equal(t, []string{"grace", "normalise", "bonus"}, res.AppliedRuleIDs)
	assert.Equal(t, ruleset.OverlayMetrics{WorkMinutes: 500, Status: "normal"}, res.Metrics)
	assert.Equal(t, []string{"late forgiven"}, res.Warnings)
	assert.Equal(t, []string{"drivers"}, res.Groups)
}

func TestApply_OrderMatters(t *testing.T) {
	p := compileJSON(t, `{"rules": [
		{"id": "bonus", "match": {"status_in": ["normal"]}, "effect": {"add_work_minutes": 30}},
		{"id": "fix", "match": {"status_in": ["late"]}, "effect": {"set_status": "normal"}}
	]}`)

	res := p.Apply(ruleset.OverlayInput{Metrics: ruleset.OverlayMetrics{WorkMinutes: 470, Status: "late"}})
	assert.Equal(t, []string{"fix"}, res.AppliedRuleIDs)
	assert.Equal(t, 470, res.Metrics.WorkMinutes)
}

func TestApply_MatchFilters(t *testing.T) {
	yes := true
	section := &ruleset.PolicySection{Rules: []ruleset.PolicyRule{{
		ID: "night-holiday",
		Match: ruleset.PolicyMatch{
			UserIDs:     []string{"u1"},
			ShiftNames:  []string{"night"},
			IsHoliday:   &yes,
			FieldsExist: []string{"site"},
			Conditions: []ruleset.Condition{
				{Field: "work_minutes", Op: "gt", ValueField: "late_minutes"},
			},
		},
		Effect: ruleset.PolicyEffect{AddOvertimeMinutes: intPtr(60)},
	}}}
	p, err := Compile(section)
	require.NoError(t, err)

	base := ruleset.OverlayInput{
		UserID:    "u1",
		ShiftName: "night",
		IsHoliday: true,
		Metrics:   ruleset.OverlayMetrics{WorkMinutes: 480, LateMinutes: 5},
		Fields:    map[string]interface{}{"site": "plant-a"},
	}
	assert.Equal(t, 60, p.Apply(base).Metrics.OvertimeMinutes)

	other := base
	other.UserID = "u2"
	assert.Empty(t, p.Apply(other).AppliedRuleIDs)

	day := base
	day.ShiftName = "day"
	assert.Empty(t, p.Apply(day).AppliedRuleIDs)

	workday := base
	workday.IsHoliday = false
	assert.Empty(t, p.Apply(workday).AppliedRuleIDs)

	noSite := base
	noSite.Fields = map[string]interface{}{"site": ""}
	assert.Empty(t, p.Apply(noSite).AppliedRuleIDs)
}

func TestApply_ClampsAtZero(t *testing.T) {
	p, err := Compile(&ruleset.PolicySection{Rules: []ruleset.PolicyRule{{
		Effect: ruleset.PolicyEffect{AddLateMinutes: intPtr(-30), AddWorkMinutes: intPtr(-1000)},
	}}})
	require.NoError(t, err)

	res := p.Apply(ruleset.OverlayInput{Metrics: ruleset.OverlayMetrics{WorkMinutes: 480, LateMinutes: 10}})
	assert.Equal(t, 0, res.Metrics.LateMinutes)
	assert.Equal(t, 0, res.Metrics.WorkMinutes)
	assert.Equal(t, []string{"policy-0"}, res.AppliedRuleIDs)
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown group reference", `{"rules": [{"match": {"user_groups": ["ghosts"]}}]}`, ruleset.ErrUnknownUserGroup},
		{"unknown group op", `{"user_groups": [{"id": "g", "conditions": [{"field": "dept", "op": "like", "value": "x"}]}]}`, ruleset.ErrUnknownOperator},
		{"rule op reserved for groups", `{"rules": [{"match": {"conditions": [{"field": "work_minutes", "op": "contains", "value": "1"}]}}]}`, ruleset.ErrUnknownOperator},
		{"non numeric comparison", `{"rules": [{"match": {"conditions": [{"field": "work_minutes", "op": "gt", "value": "lots"}]}}]}`, ruleset.ErrInvalidOperand},
		{"is needs boolean", `{"user_groups": [{"id": "g", "conditions": [{"field": "remote", "op": "is", "value": "yes"}]}]}`, ruleset.ErrInvalidOperand},
		{"unknown status", `{"rules": [{"effect": {"set_status": "vacation"}}]}`, ruleset.ErrInvalidOperand},
		{"group without id", `{"user_groups": [{"user_ids": ["u1"]}]}`, ruleset.ErrInvalidDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var section ruleset.PolicySection
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &section))
			_, err := Compile(&section)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestApply_NilProgram(t *testing.T) {
	var p *Program
	in := ruleset.OverlayInput{Metrics: ruleset.OverlayMetrics{WorkMinutes: 10, Status: "normal"}}
	assert.Equal(t, in.Metrics, p.Apply(in).Metrics)
}

func intPtr(v int) *int { return &v }
