package ruleset

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Document is the stored configuration. Every section is optional and
// unknown keys are ignored.
type Document struct {
	Version       int               `json:"version"`
	RuleEngine    *EngineSection    `json:"rule_engine,omitempty"`
	Policy        *PolicySection    `json:"policy,omitempty"`
	FieldMappings map[string]string `json:"field_mappings,omitempty"`
}

type EngineSection struct {
	Templates []Template `json:"templates"`
}

// Template groups rules behind an optional scope.
type Template struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name,omitempty"`
	Scope map[string]interface{} `json:"scope,omitempty"`
	Rules []Rule                 `json:"rules"`
}

type Rule struct {
	ID   string                 `json:"id,omitempty"`
	When map[string]interface{} `json:"when"`
	Then map[string]interface{} `json:"then"`
}

type PolicySection struct {
	UserGroups []UserGroup  `json:"user_groups"`
	Rules      []PolicyRule `json:"rules"`
}

// UserGroup membership: any listed user id, otherwise all Conditions.
type UserGroup struct {
	ID         string      `json:"id"`
	UserIDs    []string    `json:"user_ids,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// Condition compares Field against Value, or against another field's value
// when ValueField is set.
type Condition struct {
	Field      string      `json:"field"`
	Op         string      `json:"op"`
	Value      interface{} `json:"value,omitempty"`
	ValueField string      `json:"value_field,omitempty"`
}

type PolicyRule struct {
	ID     string       `json:"id"`
	Match  PolicyMatch  `json:"match"`
	Effect PolicyEffect `json:"effect"`
}

type PolicyMatch struct {
	UserIDs      []string    `json:"user_ids,omitempty"`
	UserGroups   []string    `json:"user_groups,omitempty"`
	ShiftNames   []string    `json:"shift_names,omitempty"`
	IsHoliday    *bool       `json:"is_holiday,omitempty"`
	IsWorkingDay *bool       `json:"is_working_day,omitempty"`
	StatusIn     []string    `json:"status_in,omitempty"`
	FieldsExist  []string    `json:"fields_exist,omitempty"`
	Conditions   []Condition `json:"conditions,omitempty"`
}

type PolicyEffect struct {
	SetWorkMinutes       *int     `json:"set_work_minutes,omitempty"`
	SetLateMinutes       *int     `json:"set_late_minutes,omitempty"`
	SetEarlyLeaveMinutes *int     `json:"set_early_leave_minutes,omitempty"`
	SetLeaveMinutes      *int     `json:"set_leave_minutes,omitempty"`
	SetOvertimeMinutes   *int     `json:"set_overtime_minutes,omitempty"`
	AddWorkMinutes       *int     `json:"add_work_minutes,omitempty"`
	AddLateMinutes       *int     `json:"add_late_minutes,omitempty"`
	AddEarlyLeaveMinutes *int     `json:"add_early_leave_minutes,omitempty"`
	AddLeaveMinutes      *int     `json:"add_leave_minutes,omitempty"`
	AddOvertimeMinutes   *int     `json:"add_overtime_minutes,omitempty"`
	SetStatus            *string  `json:"set_status,omitempty"`
	Warnings             []string `json:"warnings,omitempty"`
}

// Stored is one persisted version of an org's document.
type Stored struct {
	ID        string
	OrgID     string
	Version   int
	Document  json.RawMessage
	CreatedAt time.Time
}

// ========================================
// EVALUATION CONTRACTS
// ========================================

// Facts is a flattened key/value view used by the rule engine.
type Facts map[string]interface{}

type Hours struct {
	Overtime decimal.Decimal `json:"overtime_hours"`
	Required decimal.Decimal `json:"required_hours"`
	Actual   decimal.Decimal `json:"actual_hours"`
}

type EngineResult struct {
	Hours          Hours    `json:"hours"`
	Warnings       []string `json:"warnings"`
	Reasons        []string `json:"reasons"`
	AppliedRuleIDs []string `json:"applied_rule_ids"`
}

// Evaluator is a compiled rule_engine section.
type Evaluator interface {
	Evaluate(facts Facts, base Hours) EngineResult
}

type OverlayMetrics struct {
	WorkMinutes       int    `json:"work_minutes"`
	LateMinutes       int    `json:"late_minutes"`
	EarlyLeaveMinutes int    `json:"early_leave_minutes"`
	LeaveMinutes      int    `json:"leave_minutes"`
	OvertimeMinutes   int    `json:"overtime_minutes"`
	Status            string `json:"status"`
}

type OverlayInput struct {
	UserID       string
	ShiftName    string
	IsHoliday    bool
	IsWorkingDay bool
	Metrics      OverlayMetrics
	// Fields holds profile and row values for group and field predicates.
	Fields map[string]interface{}
}

type OverlayResult struct {
	Metrics        OverlayMetrics `json:"metrics"`
	Groups         []string       `json:"groups"`
	Warnings       []string       `json:"warnings"`
	AppliedRuleIDs []string       `json:"applied_rule_ids"`
}

// Overlay is a compiled policy section.
type Overlay interface {
	Apply(in OverlayInput) OverlayResult
}

// Compiled is an org's active rule set, ready to evaluate. Engine and
// Policy are nil when their sections are absent.
type Compiled struct {
	OrgID         string
	Version       int
	Document      Document
	Engine        Evaluator
	Policy        Overlay
	FieldMappings map[string]string
}
