package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/cmlabs-hris/attendance-core/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-core/internal/service/ruleengine"
)

// readRows returns the header and data rows of an xlsx (first sheet) or
// csv file.
func readRows(filename string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		defer f.Close()

		rows, err := f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet: %w", err)
		}
		return rows, nil
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		return rows, nil
	}
	return nil, attendance.ErrUnsupportedFile
}

// columnNames maps each header cell to its field name. Configured
// mappings win over built-in aliases; both are matched case-insensitively.
func columnNames(header []string, mappings map[string]string) []string {
	normalized := make(map[string]string, len(mappings))
	for from, to := range mappings {
		normalized[ruleengine.CanonicalKey(from)] = ruleengine.CanonicalKey(to)
	}

	names := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if to, ok := mappings[h]; ok {
			names[i] = ruleengine.CanonicalKey(to)
			continue
		}
		key := ruleengine.CanonicalKey(h)
		if to, ok := normalized[key]; ok {
			key = to
		}
		names[i] = key
	}
	return names
}

const (
	colUserID            = "user_id"
	colWorkDate          = "work_date"
	colFirstIn           = "first_in"
	colLastOut           = "last_out"
	colStatus            = "status"
	colWorkMinutes       = "work_minutes"
	colLateMinutes       = "late_minutes"
	colEarlyLeaveMinutes = "early_leave_minutes"
	colLeaveMinutes      = "leave_minutes"
	colOvertimeMinutes   = "overtime_minutes"
)

var reserved = map[string]bool{
	colUserID: true, colWorkDate: true, colFirstIn: true, colLastOut: true, colStatus: true,
	colWorkMinutes: true, colLateMinutes: true, colEarlyLeaveMinutes: true,
	colLeaveMinutes: true, colOvertimeMinutes: true,
}

// row is one data line keyed by field name. Empty cells are dropped.
type row map[string]string

func toRow(names, cells []string) row {
	r := make(row, len(names))
	for i, name := range names {
		if i >= len(cells) || name == "" {
			continue
		}
		if v := strings.TrimSpace(cells[i]); v != "" {
			r[name] = v
		}
	}
	return r
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "02/01/2006", "2-Jan-2006", time.RFC3339}

func parseDate(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid work_date %q", v)
}

var (
	stampLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05", "2006-01-02T15:04"}
	clockLayouts = []string{"15:04:05", "15:04"}
)

// parsePunch reads a full timestamp, or a wall clock on workDate in loc.
// Zoneless timestamps are read in loc as well.
func parsePunch(v string, workDate time.Time, loc *time.Location) (time.Time, error) {
	for _, layout := range stampLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, v); err == nil {
			t := time.Date(workDate.Year(), workDate.Month(), workDate.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc)
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", v)
}

func isClockOnly(v string) bool {
	return !strings.ContainsAny(v, "-/T")
}

// parseMinutes accepts integers and decimals as spreadsheets render them.
func parseMinutes(field, v string) (int, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, v)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%s must be non-negative", field)
	}
	return int(d.Round(0).IntPart()), nil
}

func optionalMinutes(r row, field string) (*int, error) {
	v, ok := r[field]
	if !ok {
		return nil, nil
	}
	m, err := parseMinutes(field, v)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
