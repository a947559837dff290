package attendance

import (
	"io"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/validator"
)

// ========================================
// PUNCH
// ========================================

type PunchRequest struct {
	OrgID      string                 `json:"-"`
	UserID     string                 `json:"user_id"`
	Type       EventType              `json:"type"`
	OccurredAt string                 `json:"occurred_at"`
	Timezone   string                 `json:"timezone"`
	Source     string                 `json:"source"`
	Location   *Location              `json:"location"`
	IP         string                 `json:"-"`
	Meta       map[string]interface{} `json:"meta"`
}

func (r *PunchRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.OrgID) {
		errs.Add("org_id", "org_id is required")
	}
	if validator.IsEmpty(r.UserID) {
		errs.Add("user_id", "user_id is required")
	}
	if r.Type != EventCheckIn && r.Type != EventCheckOut {
		errs.Add("type", "type must be one of: check_in, check_out")
	}
	if _, ok := validator.IsValidDateTime(r.OccurredAt); !ok {
		errs.Add("occurred_at", "occurred_at must be an RFC3339 timestamp")
	}
	if r.Timezone != "" && !validator.IsValidTimezone(r.Timezone) {
		errs.Add("timezone", "timezone must be a valid IANA zone")
	}
	if r.Location != nil {
		if r.Location.Latitude < -90 || r.Location.Latitude > 90 {
			errs.Add("location.lat", "latitude must be between -90 and 90")
		}
		if r.Location.Longitude < -180 || r.Location.Longitude > 180 {
			errs.Add("location.lng", "longitude must be between -180 and 180")
		}
	}

	return errs.Err()
}

// ========================================
// QUERIES
// ========================================

type RecordFilter struct {
	OrgID  string
	UserID string
	From   *time.Time
	To     *time.Time
	Limit  int
}

type RecordResponse struct {
	ID                string                 `json:"id"`
	UserID            string                 `json:"user_id"`
	OrgID             string                 `json:"org_id"`
	WorkDate          string                 `json:"work_date"`
	Timezone          string                 `json:"timezone"`
	FirstInAt         *time.Time             `json:"first_in_at"`
	LastOutAt         *time.Time             `json:"last_out_at"`
	WorkMinutes       int                    `json:"work_minutes"`
	LateMinutes       int                    `json:"late_minutes"`
	EarlyLeaveMinutes int                    `json:"early_leave_minutes"`
	Status            Status                 `json:"status"`
	IsWorkday         bool                   `json:"is_workday"`
	Meta              map[string]interface{} `json:"meta"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

func NewRecordResponse(r Record) RecordResponse {
	return RecordResponse{
		ID:                r.ID,
		UserID:            r.UserID,
		OrgID:             r.OrgID,
		WorkDate:          r.WorkDate.Format("2006-01-02"),
		Timezone:          r.Timezone,
		FirstInAt:         r.FirstInAt,
		LastOutAt:         r.LastOutAt,
		WorkMinutes:       r.WorkMinutes,
		LateMinutes:       r.LateMinutes,
		EarlyLeaveMinutes: r.EarlyLeaveMinutes,
		Status:            r.Status,
		IsWorkday:         r.IsWorkday,
		Meta:              r.Meta,
		UpdatedAt:         r.UpdatedAt,
	}
}

// ========================================
// BULK IMPORT
// ========================================

type ImportRequest struct {
	OrgID    string
	Filename string
	Reader   io.Reader
	Mode     Mode
}

func (r *ImportRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.OrgID) {
		errs.Add("org_id", "org_id is required")
	}
	if r.Reader == nil {
		errs.Add("file", "file is required")
	}
	ext := ""
	if i := strings.LastIndex(r.Filename, "."); i >= 0 {
		ext = strings.ToLower(r.Filename[i:])
	}
	if ext != ".xlsx" && ext != ".csv" {
		errs.Add("file", "invalid file type: only xlsx, csv allowed")
	}
	if r.Mode != "" && !r.Mode.Valid() {
		errs.Add("mode", "mode must be one of: append, merge, override")
	}

	return errs.Err()
}

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Errors    []RowError `json:"errors"`
}
