// Package policy applies the org's policy overlay: user groups resolved from
// profile fields, then ordered rules that adjust minute metrics.
package policy

import (
	"fmt"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
)

type group struct {
	id         string
	userIDs    map[string]bool
	conditions []condition
}

func (g group) contains(in ruleset.OverlayInput) bool {
	if g.userIDs[in.UserID] {
		return true
	}
	if len(g.conditions) == 0 {
		return false
	}
	lookup := fieldLookup(in)
	for _, c := range g.conditions {
		if !c.match(lookup) {
			return false
		}
	}
	return true
}

type rule struct {
	id         string
	match      ruleset.PolicyMatch
	conditions []condition
	effect     ruleset.PolicyEffect
}

// Program is a compiled policy section. Rules keep their authored order.
type Program struct {
	groups []group
	rules  []rule
}

// Compile validates group references, operators and statuses.
func Compile(section *ruleset.PolicySection) (*Program, error) {
	p := &Program{}
	if section == nil {
		return p, nil
	}

	known := map[string]bool{}
	for i, g := range section.UserGroups {
		if g.ID == "" {
			return nil, fmt.Errorf("%w: user_groups[%d] has no id", ruleset.ErrInvalidDocument, i)
		}
		cg := group{id: g.ID, userIDs: map[string]bool{}}
		for _, id := range g.UserIDs {
			cg.userIDs[id] = true
		}
		for _, c := range g.Conditions {
			cc, err := compileCondition(c, groupOps)
			if err != nil {
				return nil, fmt.Errorf("user group %s: %w", g.ID, err)
			}
			cg.conditions = append(cg.conditions, cc)
		}
		known[g.ID] = true
		p.groups = append(p.groups, cg)
	}

	for i, r := range section.Rules {
		cr := rule{id: r.ID, match: r.Match, effect: r.Effect}
		if cr.id == "" {
			cr.id = fmt.Sprintf("policy-%d", i)
		}
		for _, ref := range r.Match.UserGroups {
			if !known[ref] {
				return nil, fmt.Errorf("%w: rule %s references %q", ruleset.ErrUnknownUserGroup, cr.id, ref)
			}
		}
		for _, c := range r.Match.Conditions {
			cc, err := compileCondition(c, ruleOps)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", cr.id, err)
			}
			cr.conditions = append(cr.conditions, cc)
		}
		if s := r.Effect.SetStatus; s != nil && !attendance.Status(*s).Valid() {
			return nil, fmt.Errorf("%w: rule %s sets unknown status %q", ruleset.ErrInvalidOperand, cr.id, *s)
		}
		p.rules = append(p.rules, cr)
	}
	return p, nil
}

// Apply resolves groups, then runs every rule in order against the current
// metrics. Minutes never go below zero.
func (p *Program) Apply(in ruleset.OverlayInput) ruleset.OverlayResult {
	res := ruleset.OverlayResult{
		Metrics:        in.Metrics,
		Groups:         []string{},
		Warnings:       []string{},
		AppliedRuleIDs: []string{},
	}
	if p == nil {
		return res
	}

	member := map[string]bool{}
	for _, g := range p.groups {
		if g.contains(in) {
			member[g.id] = true
			res.Groups = append(res.Groups, g.id)
		}
	}

	for _, r := range p.rules {
		current := in
		current.Metrics = res.Metrics
		if !r.matches(current, member) {
			continue
		}
		res.Metrics = applyEffect(res.Metrics, r.effect)
		for _, w := range r.effect.Warnings {
			if !inList(w, res.Warnings) {
				res.Warnings = append(res.Warnings, w)
			}
		}
		res.AppliedRuleIDs = append(res.AppliedRuleIDs, r.id)
	}
	return res
}

func (r rule) matches(in ruleset.OverlayInput, member map[string]bool) bool {
	m := r.match
	if len(m.UserIDs) > 0 && !inList(in.UserID, m.UserIDs) {
		return false
	}
	if len(m.UserGroups) > 0 {
		inGroup := false
		for _, g := range m.UserGroups {
			if member[g] {
				inGroup = true
				break
			}
		}
		if !inGroup {
			return false
		}
	}
	if len(m.ShiftNames) > 0 && !inList(in.ShiftName, m.ShiftNames) {
		return false
	}
	if m.IsHoliday != nil && *m.IsHoliday != in.IsHoliday {
		return false
	}
	if m.IsWorkingDay != nil && *m.IsWorkingDay != in.IsWorkingDay {
		return false
	}
	if len(m.StatusIn) > 0 && !inList(in.Metrics.Status, m.StatusIn) {
		return false
	}

	lookup := fieldLookup(in)
	for _, f := range m.FieldsExist {
		v, ok := lookup(f)
		if !ok || scalarString(v) == "" {
			return false
		}
	}
	for _, c := range r.conditions {
		if !c.match(lookup) {
			return false
		}
	}
	return true
}

func applyEffect(m ruleset.OverlayMetrics, e ruleset.PolicyEffect) ruleset.OverlayMetrics {
	set := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	add := func(dst *int, v *int) {
		if v != nil {
			*dst += *v
		}
	}

	set(&m.WorkMinutes, e.SetWorkMinutes)
	set(&m.LateMinutes, e.SetLateMinutes)
	set(&m.EarlyLeaveMinutes, e.SetEarlyLeaveMinutes)
	set(&m.LeaveMinutes, e.SetLeaveMinutes)
	set(&m.OvertimeMinutes, e.SetOvertimeMinutes)

	add(&m.WorkMinutes, e.AddWorkMinutes)
	add(&m.LateMinutes, e.AddLateMinutes)
	add(&m.EarlyLeaveMinutes, e.AddEarlyLeaveMinutes)
	add(&m.LeaveMinutes, e.AddLeaveMinutes)
	add(&m.OvertimeMinutes, e.AddOvertimeMinutes)

	for _, v := range []*int{&m.WorkMinutes, &m.LateMinutes, &m.EarlyLeaveMinutes, &m.LeaveMinutes, &m.OvertimeMinutes} {
		if *v < 0 {
			*v = 0
		}
	}
	if e.SetStatus != nil {
		m.Status = *e.SetStatus
	}
	return m
}

// fieldLookup exposes metrics and derived facts ahead of free-form fields.
func fieldLookup(in ruleset.OverlayInput) func(string) (interface{}, bool) {
	return func(name string) (interface{}, bool) {
		switch name {
		case "user_id":
			return in.UserID, true
		case "shift_name", "shift":
			return in.ShiftName, in.ShiftName != ""
		case "is_holiday":
			return in.IsHoliday, true
		case "is_working_day", "is_workday":
			return in.IsWorkingDay, true
		case "work_minutes":
			return in.Metrics.WorkMinutes, true
		case "late_minutes":
			return in.Metrics.LateMinutes, true
		case "early_leave_minutes":
			return in.Metrics.EarlyLeaveMinutes, true
		case "leave_minutes":
			return in.Metrics.LeaveMinutes, true
		case "overtime_minutes":
			return in.Metrics.OvertimeMinutes, true
		case "status":
			return in.Metrics.Status, true
		}
		v, ok := in.Fields[name]
		if ok && v == nil {
			return nil, false
		}
		return v, ok
	}
}

var _ ruleset.Overlay = (*Program)(nil)
