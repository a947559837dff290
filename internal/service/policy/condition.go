package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
)

type condOp string

const (
	opEq       condOp = "eq"
	opNe       condOp = "ne"
	opGt       condOp = "gt"
	opGte      condOp = "gte"
	opLt       condOp = "lt"
	opLte      condOp = "lte"
	opIn       condOp = "in"
	opContains condOp = "contains"
	opIs       condOp = "is"
)

// Group predicates test profile values; rule predicates compare metrics.
var (
	groupOps = map[condOp]bool{opEq: true, opIn: true, opContains: true, opIs: true}
	ruleOps  = map[condOp]bool{opEq: true, opNe: true, opGt: true, opGte: true, opLt: true, opLte: true}
)

type condition struct {
	field      string
	op         condOp
	value      interface{}
	number     decimal.Decimal
	list       []string
	valueField string
}

func compileCondition(c ruleset.Condition, allowed map[condOp]bool) (condition, error) {
	op := condOp(strings.ToLower(strings.TrimSpace(c.Op)))
	if op == "" {
		op = opEq
	}
	if !allowed[op] {
		return condition{}, fmt.Errorf("%w: %q", ruleset.ErrUnknownOperator, c.Op)
	}
	if strings.TrimSpace(c.Field) == "" {
		return condition{}, fmt.Errorf("%w: condition field is required", ruleset.ErrInvalidOperand)
	}

	cc := condition{field: c.Field, op: op, value: c.Value, valueField: c.ValueField}
	if cc.valueField != "" {
		return cc, nil
	}

	switch op {
	case opGt, opGte, opLt, opLte:
		d, ok := toDecimal(c.Value)
		if !ok {
			return condition{}, fmt.Errorf("%w: %s %s expects a number", ruleset.ErrInvalidOperand, c.Field, op)
		}
		cc.number = d
	case opIn, opContains:
		list, ok := stringList(c.Value)
		if !ok || len(list) == 0 {
			return condition{}, fmt.Errorf("%w: %s %s expects a string or list", ruleset.ErrInvalidOperand, c.Field, op)
		}
		cc.list = list
	case opIs:
		if _, ok := c.Value.(bool); !ok {
			return condition{}, fmt.Errorf("%w: %s is expects a boolean", ruleset.ErrInvalidOperand, c.Field)
		}
	case opEq, opNe:
		if c.Value == nil {
			return condition{}, fmt.Errorf("%w: %s %s expects a value", ruleset.ErrInvalidOperand, c.Field, op)
		}
	}
	return cc, nil
}

// match resolves field values through lookup. Missing values never match,
// except for ne.
func (c condition) match(lookup func(string) (interface{}, bool)) bool {
	v, ok := lookup(c.field)

	want := c.value
	if c.valueField != "" {
		other, found := lookup(c.valueField)
		if !found {
			return c.op == opNe && ok
		}
		want = other
	}
	if !ok {
		return c.op == opNe
	}

	switch c.op {
	case opEq:
		return scalarEqual(v, want)
	case opNe:
		return !scalarEqual(v, want)
	case opGt, opGte, opLt, opLte:
		left, ok := toDecimal(v)
		if !ok {
			return false
		}
		right := c.number
		if c.valueField != "" {
			if right, ok = toDecimal(want); !ok {
				return false
			}
		}
		cmp := left.Cmp(right)
		switch c.op {
		case opGt:
			return cmp > 0
		case opGte:
			return cmp >= 0
		case opLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case opIn:
		switch v.(type) {
		case []string, []interface{}:
			list, _ := stringList(v)
			return overlaps(list, c.list)
		}
		return inList(scalarString(v), c.list)
	case opContains:
		for _, needle := range c.list {
			if !containsOne(v, needle) {
				return false
			}
		}
		return true
	case opIs:
		return truthy(v) == want.(bool)
	}
	return false
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case float64:
		return decimal.NewFromFloat(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	case decimal.Decimal:
		return t, true
	}
	return decimal.Decimal{}, false
}

func stringList(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, scalarString(item))
		}
		return out, true
	case string:
		return []string{t}, true
	}
	return nil, false
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return decimal.NewFromFloat(t).String()
	}
	return fmt.Sprint(v)
}

func scalarEqual(a, b interface{}) bool {
	if da, ok := toDecimal(a); ok {
		if db, ok := toDecimal(b); ok {
			return da.Equal(db)
		}
	}
	if bb, ok := b.(bool); ok {
		return truthy(a) == bb
	}
	return scalarString(a) == scalarString(b)
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "0", "false", "no":
			return false
		}
		return true
	}
	if d, ok := toDecimal(v); ok {
		return !d.IsZero()
	}
	return true
}

func inList(s string, list []string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if inList(x, b) {
			return true
		}
	}
	return false
}

func containsOne(v interface{}, needle string) bool {
	switch t := v.(type) {
	case []string, []interface{}:
		list, _ := stringList(t)
		return inList(needle, list)
	}
	return strings.Contains(strings.ToLower(scalarString(v)), strings.ToLower(needle))
}
