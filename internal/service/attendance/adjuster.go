package attendance

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
	"github.com/cmlabs-hris/attendance-core/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-core/internal/service/ruleengine"
)

var sixty = decimal.NewFromInt(60)

// RuleAdjuster runs the org's rule engine and policy overlay over freshly
// calculated metrics. Orgs without a rule set pass through unchanged.
type RuleAdjuster struct {
	rules   ruleset.Service
	members user.MemberRepository
	logger  *slog.Logger
}

func NewRuleAdjuster(rules ruleset.Service, members user.MemberRepository, logger *slog.Logger) *RuleAdjuster {
	return &RuleAdjuster{rules: rules, members: members, logger: logger}
}

func (a *RuleAdjuster) Adjust(ctx context.Context, in attendance.AdjustInput) (attendance.Adjustment, error) {
	out := attendance.Adjustment{
		Metrics:         in.Metrics,
		LeaveMinutes:    in.LeaveMinutes,
		OvertimeMinutes: in.OvertimeMinutes,
		Meta:            map[string]interface{}{},
	}

	compiled, err := a.rules.Get(ctx, in.Record.OrgID)
	if err != nil {
		return out, err
	}
	if compiled == nil || (compiled.Engine == nil && compiled.Policy == nil) {
		return out, nil
	}

	profile := a.profile(ctx, in.Record.OrgID, in.Record.UserID)
	facts := ruleengine.BuildFacts(recordFacts(in), profile, calcFacts(in))

	if compiled.Engine != nil {
		base := ruleset.Hours{
			Required: decimal.NewFromInt(int64(in.Context.Schedule.ScheduledMinutes())).Div(sixty),
			Actual:   decimal.NewFromInt(int64(in.Metrics.WorkMinutes)).Div(sixty),
			Overtime: decimal.NewFromInt(int64(in.OvertimeMinutes)).Div(sixty),
		}
		res := compiled.Engine.Evaluate(facts, base)
		if len(res.AppliedRuleIDs) > 0 {
			out.OvertimeMinutes = int(res.Hours.Overtime.Mul(sixty).Round(0).IntPart())
		}
		out.Meta["rule_engine"] = map[string]interface{}{
			"version":          compiled.Version,
			"overtime_hours":   res.Hours.Overtime.String(),
			"required_hours":   res.Hours.Required.String(),
			"actual_hours":     res.Hours.Actual.String(),
			"warnings":         res.Warnings,
			"reasons":          res.Reasons,
			"applied_rule_ids": res.AppliedRuleIDs,
		}
	}

	if compiled.Policy != nil {
		res := compiled.Policy.Apply(ruleset.OverlayInput{
			UserID:       in.Record.UserID,
			ShiftName:    in.Context.ShiftName,
			IsHoliday:    in.Context.IsHoliday(),
			IsWorkingDay: in.Context.IsWorkingDay,
			Metrics: ruleset.OverlayMetrics{
				WorkMinutes:       out.Metrics.WorkMinutes,
				LateMinutes:       out.Metrics.LateMinutes,
				EarlyLeaveMinutes: out.Metrics.EarlyLeaveMinutes,
				LeaveMinutes:      out.LeaveMinutes,
				OvertimeMinutes:   out.OvertimeMinutes,
				Status:            string(out.Metrics.Status),
			},
			Fields: facts,
		})
		out.Metrics.WorkMinutes = res.Metrics.WorkMinutes
		out.Metrics.LateMinutes = res.Metrics.LateMinutes
		out.Metrics.EarlyLeaveMinutes = res.Metrics.EarlyLeaveMinutes
		out.Metrics.Status = attendance.Status(res.Metrics.Status)
		out.LeaveMinutes = res.Metrics.LeaveMinutes
		out.OvertimeMinutes = res.Metrics.OvertimeMinutes
		out.Meta["policy"] = map[string]interface{}{
			"version":          compiled.Version,
			"groups":           res.Groups,
			"warnings":         res.Warnings,
			"applied_rule_ids": res.AppliedRuleIDs,
		}
	}
	return out, nil
}

// profile returns the member's profile fields, or nil when the member is
// unknown.
func (a *RuleAdjuster) profile(ctx context.Context, orgID, userID string) map[string]interface{} {
	m, err := a.members.Get(ctx, orgID, userID)
	if err != nil {
		if !errors.Is(err, user.ErrMemberNotFound) && !database.IsNotReady(err) {
			a.logger.WarnContext(ctx, "failed to load member profile for rules", "org_id", orgID, "user_id", userID, "error", err)
		}
		return nil
	}

	out := make(map[string]interface{}, len(m.Profile)+4)
	for k, v := range m.Profile {
		out[k] = v
	}
	out["display_name"] = m.DisplayName
	out["department"] = m.Department
	out["title"] = m.Title
	tags := make([]interface{}, 0, len(m.RoleTags))
	for _, t := range m.RoleTags {
		tags = append(tags, t)
	}
	out["role_tags"] = tags
	return out
}

func recordFacts(in attendance.AdjustInput) map[string]interface{} {
	loc := in.Context.Schedule.Location()
	facts := map[string]interface{}{
		"user_id":    in.Record.UserID,
		"org_id":     in.Record.OrgID,
		"work_date":  in.Record.WorkDate.Format("2006-01-02"),
		"shift":      in.Context.ShiftName,
		"is_workday": in.Context.IsWorkingDay,
		"is_holiday": in.Context.IsHoliday(),
	}
	if in.Record.FirstInAt != nil {
		facts["first_in"] = in.Record.FirstInAt.In(loc).Format("15:04")
	}
	if in.Record.LastOutAt != nil {
		facts["last_out"] = in.Record.LastOutAt.In(loc).Format("15:04")
	}
	if in.Context.Holiday != nil {
		facts["holiday_name"] = in.Context.Holiday.Name
	}
	for k, v := range in.Fields {
		facts[k] = v
	}
	return facts
}

func calcFacts(in attendance.AdjustInput) map[string]interface{} {
	return map[string]interface{}{
		"raw_minutes":         in.Metrics.RawMinutes,
		"work_minutes":        in.Metrics.WorkMinutes,
		"late_minutes":        in.Metrics.LateMinutes,
		"early_leave_minutes": in.Metrics.EarlyLeaveMinutes,
		"leave_minutes":       in.LeaveMinutes,
		"overtime_minutes":    in.OvertimeMinutes,
		"status":              string(in.Metrics.Status),
		"work_hours":          decimal.NewFromInt(int64(in.Metrics.WorkMinutes)).Div(sixty).String(),
	}
}

var _ attendance.Adjuster = (*RuleAdjuster)(nil)
