// Package ruleengine evaluates scoped condition/effect templates against a
// flat fact map. It knows nothing about attendance beyond fact names.
package ruleengine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
)

type effectKind int

const (
	setHours effectKind = iota
	addHours
	addWarning
	addReason
)

type hoursField int

const (
	fieldOvertime hoursField = iota
	fieldRequired
	fieldActual
)

type effect struct {
	kind  effectKind
	field hoursField
	value decimal.Decimal
	texts []string
}

type compiledRule struct {
	id      string
	when    []Predicate
	effects []effect
}

type compiledTemplate struct {
	id    string
	scope []Predicate
	rules []compiledRule
}

// Program is a compiled rule_engine section. It is immutable and safe for
// concurrent use.
type Program struct {
	templates []compiledTemplate
}

var hoursEffects = map[string]struct {
	kind  effectKind
	field hoursField
}{
	"overtime_hours":     {setHours, fieldOvertime},
	"required_hours":     {setHours, fieldRequired},
	"actual_hours":       {setHours, fieldActual},
	"add_overtime_hours": {addHours, fieldOvertime},
	"add_required_hours": {addHours, fieldRequired},
	"add_actual_hours":   {addHours, fieldActual},
}

// Compile validates every key and operand up front. Unknown operators and
// effects are errors.
func Compile(section *ruleset.EngineSection) (*Program, error) {
	p := &Program{}
	if section == nil {
		return p, nil
	}

	for ti, tpl := range section.Templates {
		ct := compiledTemplate{id: tpl.ID}
		if ct.id == "" {
			ct.id = fmt.Sprintf("template-%d", ti)
		}

		scope, err := compileConditions(tpl.Scope)
		if err != nil {
			return nil, fmt.Errorf("template %s scope: %w", ct.id, err)
		}
		ct.scope = scope

		for ri, rule := range tpl.Rules {
			cr := compiledRule{id: rule.ID}
			if cr.id == "" {
				cr.id = fmt.Sprintf("%s#%d", ct.id, ri)
			}
			if cr.when, err = compileConditions(rule.When); err != nil {
				return nil, fmt.Errorf("rule %s when: %w", cr.id, err)
			}
			if cr.effects, err = compileEffects(rule.Then); err != nil {
				return nil, fmt.Errorf("rule %s then: %w", cr.id, err)
			}
			ct.rules = append(ct.rules, cr)
		}
		p.templates = append(p.templates, ct)
	}
	return p, nil
}

func compileConditions(m map[string]interface{}) ([]Predicate, error) {
	keys := sortedKeys(m)
	preds := make([]Predicate, 0, len(keys))
	for _, k := range keys {
		pred, err := compilePredicate(k, m[k])
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

// compileEffects orders effects as: absolute sets, deltas, warnings, reasons.
func compileEffects(m map[string]interface{}) ([]effect, error) {
	var sets, adds, texts []effect
	for _, k := range sortedKeys(m) {
		v := m[k]
		if spec, ok := hoursEffects[k]; ok {
			d, ok := toDecimal(v)
			if !ok {
				return nil, fmt.Errorf("%w: %q expects a number", ruleset.ErrInvalidOperand, k)
			}
			e := effect{kind: spec.kind, field: spec.field, value: d}
			if spec.kind == setHours {
				sets = append(sets, e)
			} else {
				adds = append(adds, e)
			}
			continue
		}

		var kind effectKind
		switch k {
		case "warning", "warnings":
			kind = addWarning
		case "reason", "reasons":
			kind = addReason
		default:
			return nil, fmt.Errorf("%w: unknown effect %q", ruleset.ErrUnknownOperator, k)
		}
		strs, ok := stringList(v)
		if !ok {
			return nil, fmt.Errorf("%w: %q expects a string or list of strings", ruleset.ErrInvalidOperand, k)
		}
		texts = append(texts, effect{kind: kind, texts: strs})
	}

	out := append(sets, adds...)
	return append(out, texts...), nil
}

// Evaluate applies matching rules in template-then-rule order starting
// from base.
func (p *Program) Evaluate(facts ruleset.Facts, base ruleset.Hours) ruleset.EngineResult {
	res := ruleset.EngineResult{
		Hours:          base,
		Warnings:       []string{},
		Reasons:        []string{},
		AppliedRuleIDs: []string{},
	}
	if p == nil {
		return res
	}

	for _, tpl := range p.templates {
		if !matchAll(tpl.scope, facts) {
			continue
		}
		for _, rule := range tpl.rules {
			if !matchAll(rule.when, facts) {
				continue
			}
			for _, e := range rule.effects {
				apply(&res, e)
			}
			res.AppliedRuleIDs = append(res.AppliedRuleIDs, rule.id)
		}
	}
	return res
}

func matchAll(preds []Predicate, facts ruleset.Facts) bool {
	for _, p := range preds {
		if !p.Match(facts) {
			return false
		}
	}
	return true
}

func apply(res *ruleset.EngineResult, e effect) {
	switch e.kind {
	case setHours:
		*hoursRef(&res.Hours, e.field) = e.value
	case addHours:
		ref := hoursRef(&res.Hours, e.field)
		*ref = ref.Add(e.value)
	case addWarning:
		res.Warnings = appendUnique(res.Warnings, e.texts...)
	case addReason:
		res.Reasons = appendUnique(res.Reasons, e.texts...)
	}
}

func hoursRef(h *ruleset.Hours, f hoursField) *decimal.Decimal {
	switch f {
	case fieldRequired:
		return &h.Required
	case fieldActual:
		return &h.Actual
	default:
		return &h.Overtime
	}
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if !inList(item, list) {
			list = append(list, item)
		}
	}
	return list
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ ruleset.Evaluator = (*Program)(nil)
