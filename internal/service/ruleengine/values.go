package ruleengine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
)

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case int32:
		return decimal.NewFromInt32(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int64, int32, json.Number, decimal.Decimal:
		return true
	}
	return false
}

func isList(v interface{}) bool {
	switch v.(type) {
	case []interface{}, []string:
		return true
	}
	return false
}

// stringList accepts a string or a list of scalars.
func stringList(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case string:
		return []string{t}, true
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if !isScalar(item) {
				return nil, false
			}
			out = append(out, scalarString(item))
		}
		return out, true
	default:
		return nil, false
	}
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case decimal.Decimal:
		return t.String()
	case float64:
		return decimal.NewFromFloat(t).String()
	default:
		return fmt.Sprint(t)
	}
}

func scalarEqual(a, b interface{}) bool {
	if da, ok := toDecimal(a); ok {
		if db, ok := toDecimal(b); ok {
			return da.Equal(db)
		}
	}
	if ba, ok := a.(bool); ok {
		return truthy(b) == ba
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
		case "", "0", "false", "no", "n":
			return false
		}
		return true
	case []interface{}:
		return len(t) > 0
	case []string:
		return len(t) > 0
	default:
		if d, ok := toDecimal(v); ok {
			return !d.IsZero()
		}
		return true
	}
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

// containsAll: substring match for strings, membership for lists.
func containsAll(v interface{}, needles []string) bool {
	for _, n := range needles {
		if !containsOne(v, n) {
			return false
		}
	}
	return true
}

func containsAny(v interface{}, needles []string) bool {
	for _, n := range needles {
		if containsOne(v, n) {
			return true
		}
	}
	return false
}

func containsOne(v interface{}, needle string) bool {
	if isList(v) {
		list, _ := stringList(v)
		return inList(needle, list)
	}
	if !isScalar(v) {
		return false
	}
	return strings.Contains(strings.ToLower(scalarString(v)), strings.ToLower(needle))
}

// clockOf reads "HH:MM" or an RFC3339 timestamp as minutes since midnight.
func clockOf(v interface{}) (int, bool) {
	switch t := v.(type) {
	case string:
		if m := schedule.ClockMinutes(t); m >= 0 && len(t) <= 8 {
			return m, true
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.Hour()*60 + ts.Minute(), true
		}
	case time.Time:
		return t.Hour()*60 + t.Minute(), true
	}
	return 0, false
}
