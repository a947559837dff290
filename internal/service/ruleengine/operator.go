package ruleengine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
)

// OpKind is the closed set of predicate operators.
type OpKind int

const (
	OpEquals OpKind = iota // plain key: boolean, membership or equality
	OpExists
	OpContains
	OpContainsAny
	OpNotContains
	OpBefore
	OpAfter
	OpGreater
	OpLess
	OpGreaterEq
	OpLessEq
	OpEq
	OpNe
	OpRole
	OpTagsOverlap
)

func (k OpKind) String() string {
	switch k {
	case OpExists:
		return "exists"
	case OpContains:
		return "contains"
	case OpContainsAny:
		return "contains_any"
	case OpNotContains:
		return "not_contains"
	case OpBefore:
		return "before"
	case OpAfter:
		return "after"
	case OpGreater:
		return "gt"
	case OpLess:
		return "lt"
	case OpGreaterEq:
		return "gte"
	case OpLessEq:
		return "lte"
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpRole:
		return "role"
	case OpTagsOverlap:
		return "tags_overlap"
	default:
		return "equals"
	}
}

// suffixes are matched longest-first so "_not_contains" wins over "_contains".
var suffixes = []struct {
	suffix string
	kind   OpKind
}{
	{"_not_contains", OpNotContains},
	{"_contains_any", OpContainsAny},
	{"_contains", OpContains},
	{"_exists", OpExists},
	{"_before", OpBefore},
	{"_after", OpAfter},
	{"_gte", OpGreaterEq},
	{"_lte", OpLessEq},
	{"_gt", OpGreater},
	{"_lt", OpLess},
	{"_eq", OpEq},
	{"_ne", OpNe},
}

// Operator-looking suffixes that are not supported. Keys ending in these
// are rejected instead of being treated as plain field names.
var unsupportedSuffixes = []string{
	"_not_in", "_between", "_regex", "_matches", "_starts_with", "_ends_with",
	"_neq", "_ge", "_le", "_like", "_not_exists",
}

// Predicate is one compiled condition with a typed operand.
type Predicate struct {
	Field string
	Op    OpKind

	flag   bool
	number decimal.Decimal
	clock  int
	strs   []string
	scalar interface{}
}

func parseKey(key string) (string, OpKind, error) {
	if key == "role" {
		return "role", OpRole, nil
	}
	if key == "role_tags" {
		return "role_tags", OpTagsOverlap, nil
	}
	for _, s := range unsupportedSuffixes {
		if strings.HasSuffix(key, s) {
			return "", 0, fmt.Errorf("%w: %q", ruleset.ErrUnknownOperator, key)
		}
	}
	for _, s := range suffixes {
		if strings.HasSuffix(key, s.suffix) && len(key) > len(s.suffix) {
			return CanonicalKey(strings.TrimSuffix(key, s.suffix)), s.kind, nil
		}
	}
	return CanonicalKey(key), OpEquals, nil
}

// compilePredicate validates the operand type for the operator.
func compilePredicate(key string, value interface{}) (Predicate, error) {
	field, op, err := parseKey(key)
	if err != nil {
		return Predicate{}, err
	}
	p := Predicate{Field: field, Op: op}
	bad := func(want string) error {
		return fmt.Errorf("%w: %q expects %s", ruleset.ErrInvalidOperand, key, want)
	}

	switch op {
	case OpExists:
		b, ok := value.(bool)
		if !ok {
			return Predicate{}, bad("a boolean")
		}
		p.flag = b
	case OpContains, OpContainsAny, OpNotContains, OpRole, OpTagsOverlap:
		strs, ok := stringList(value)
		if !ok || len(strs) == 0 {
			return Predicate{}, bad("a string or list of strings")
		}
		p.strs = strs
	case OpBefore, OpAfter:
		s, ok := value.(string)
		if !ok || schedule.ClockMinutes(s) < 0 {
			return Predicate{}, bad(`an "HH:MM" time`)
		}
		p.clock = schedule.ClockMinutes(s)
	case OpGreater, OpLess, OpGreaterEq, OpLessEq:
		d, ok := toDecimal(value)
		if !ok {
			return Predicate{}, bad("a number")
		}
		p.number = d
	case OpEq, OpNe:
		if !isScalar(value) {
			return Predicate{}, bad("a string, number or boolean")
		}
		p.scalar = value
	case OpEquals:
		switch v := value.(type) {
		case []interface{}, []string:
			strs, ok := stringList(v)
			if !ok {
				return Predicate{}, bad("a list of scalars")
			}
			p.strs = strs
		default:
			if !isScalar(value) {
				return Predicate{}, bad("a scalar or list")
			}
			p.scalar = value
		}
	}
	return p, nil
}

// Match never fails: missing or malformed facts simply do not match.
func (p Predicate) Match(facts ruleset.Facts) bool {
	v, exists := facts[p.Field]
	if exists && v == nil {
		exists = false
	}

	switch p.Op {
	case OpExists:
		return present(v) == p.flag
	case OpContains:
		return exists && containsAll(v, p.strs)
	case OpContainsAny:
		return exists && containsAny(v, p.strs)
	case OpNotContains:
		return !exists || !containsAny(v, p.strs)
	case OpBefore, OpAfter:
		m, ok := clockOf(v)
		if !ok {
			return false
		}
		if p.Op == OpBefore {
			return m < p.clock
		}
		return m > p.clock
	case OpGreater, OpLess, OpGreaterEq, OpLessEq:
		d, ok := toDecimal(v)
		if !ok {
			return false
		}
		c := d.Cmp(p.number)
		switch p.Op {
		case OpGreater:
			return c > 0
		case OpLess:
			return c < 0
		case OpGreaterEq:
			return c >= 0
		default:
			return c <= 0
		}
	case OpEq:
		return exists && scalarEqual(v, p.scalar)
	case OpNe:
		return !exists || !scalarEqual(v, p.scalar)
	case OpRole:
		if role, ok := v.(string); ok && inList(role, p.strs) {
			return true
		}
		tags, _ := stringList(facts["role_tags"])
		return overlaps(tags, p.strs)
	case OpTagsOverlap:
		tags, _ := stringList(v)
		return overlaps(tags, p.strs)
	default:
		if p.strs != nil {
			if list, ok := stringList(v); ok && isList(v) {
				return overlaps(list, p.strs)
			}
			return exists && inList(scalarString(v), p.strs)
		}
		if want, ok := p.scalar.(bool); ok {
			return truthy(v) == want
		}
		if list, ok := stringList(v); ok && isList(v) {
			return inList(scalarString(p.scalar), list)
		}
		return exists && scalarEqual(v, p.scalar)
	}
}
