package ruleengine

import (
	"strings"
	"unicode"

	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
)

// aliases maps accepted spellings (after snake_case conversion) to the
// canonical fact name.
var aliases = map[string]string{
	"employee_id":     "user_id",
	"userid":          "user_id",
	"user":            "user_id",
	"date":            "work_date",
	"day":             "work_date",
	"attendance_date": "work_date",
	"clock_in":        "first_in",
	"check_in":        "first_in",
	"time_in":         "first_in",
	"in":              "first_in",
	"first_in_at":     "first_in",
	"clock_out":       "last_out",
	"check_out":       "last_out",
	"time_out":        "last_out",
	"out":             "last_out",
	"last_out_at":     "last_out",
	"shift_name":      "shift",
	"roles":           "role_tags",
	"role_tag":        "role_tags",
	"tags":            "role_tags",
	"dept":            "department",
	"job_title":       "title",
	"position":        "title",
	"is_work_day":     "is_workday",
	"is_working_day":  "is_workday",
	"early_minutes":   "early_leave_minutes",
	"ot_minutes":      "overtime_minutes",
	"ot_hours":        "overtime_hours",
}

// CanonicalKey converts a source column or JSON key into the canonical fact
// name: camelCase and spaces become snake_case, then aliases apply.
func CanonicalKey(key string) string {
	snake := toSnake(strings.TrimSpace(key))
	if canonical, ok := aliases[snake]; ok {
		return canonical
	}
	return snake
}

func toSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == ' ' || r == '-' || r == '.':
			b.WriteRune('_')
		case unicode.IsUpper(r):
			if i > 0 && runes[i-1] != '_' && runes[i-1] != ' ' && !unicode.IsUpper(runes[i-1]) {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

// BuildFacts flattens record, profile and calc into one fact map. Later
// sources win on key collisions; nested objects are flattened with "_".
// has_punch is derived from first_in/last_out.
func BuildFacts(record, profile, calc map[string]interface{}) ruleset.Facts {
	facts := ruleset.Facts{}
	for _, src := range []map[string]interface{}{record, profile, calc} {
		flatten(facts, "", src)
	}

	facts["has_punch"] = present(facts["first_in"]) || present(facts["last_out"])
	return facts
}

func flatten(dst ruleset.Facts, prefix string, src map[string]interface{}) {
	for k, v := range src {
		key := CanonicalKey(k)
		if prefix != "" {
			key = prefix + "_" + toSnake(k)
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(dst, key, nested)
			continue
		}
		dst[key] = v
	}
}

func present(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	default:
		return true
	}
}
