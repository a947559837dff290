package approval

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/pkg/validator"
)

type CreateRequestRequest struct {
	OrgID           string                 `json:"-"`
	UserID          string                 `json:"user_id"`
	WorkDate        string                 `json:"work_date"`
	Type            RequestType            `json:"type"`
	RequestedIn     string                 `json:"requested_in"`
	RequestedOut    string                 `json:"requested_out"`
	DurationMinutes int                    `json:"duration_minutes"`
	Reason          string                 `json:"reason"`
	Extra           map[string]interface{} `json:"extra"`

	// Parsed by Validate
	ParsedWorkDate     time.Time  `json:"-"`
	ParsedRequestedIn  *time.Time `json:"-"`
	ParsedRequestedOut *time.Time `json:"-"`
}

func (r *CreateRequestRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.OrgID) {
		errs.Add("org_id", "org_id is required")
	}
	if validator.IsEmpty(r.UserID) {
		errs.Add("user_id", "user_id is required")
	}
	if d, ok := validator.IsValidDate(r.WorkDate); ok {
		r.ParsedWorkDate = d
	} else {
		errs.Add("work_date", "work_date must be YYYY-MM-DD")
	}
	if !validator.IsInSlice(string(r.Type), RequestTypeValues) {
		errs.Add("type", "type must be one of: "+strings.Join(RequestTypeValues, ", "))
	}

	r.ParsedRequestedIn = parseOptionalTime(&errs, "requested_in", r.RequestedIn)
	r.ParsedRequestedOut = parseOptionalTime(&errs, "requested_out", r.RequestedOut)
	if r.DurationMinutes < 0 {
		errs.Add("duration_minutes", "duration_minutes must be non-negative")
	}

	in, out := r.ParsedRequestedIn, r.ParsedRequestedOut
	switch r.Type {
	case TypeMissedCheckIn:
		if in == nil {
			errs.Add("requested_in", "requested_in is required for missed_check_in")
		}
	case TypeMissedCheckOut:
		if out == nil {
			errs.Add("requested_out", "requested_out is required for missed_check_out")
		}
	case TypeTimeCorrection:
		if in == nil || out == nil {
			errs.Add("requested_in", "requested_in and requested_out are required for time_correction")
		} else if !in.Before(*out) {
			errs.Add("requested_out", "requested_out must be after requested_in")
		}
	case TypeLeave, TypeOvertime:
		hasSpan := in != nil && out != nil
		if hasSpan && !in.Before(*out) {
			errs.Add("requested_out", "requested_out must be after requested_in")
		}
		if !hasSpan && r.DurationMinutes <= 0 {
			errs.Add("duration_minutes", "a positive duration_minutes or both requested_in and requested_out are required")
		}
	}

	return errs.Err()
}

func parseOptionalTime(errs *validator.ValidationErrors, field, value string) *time.Time {
	if validator.IsEmpty(value) {
		return nil
	}
	t, ok := validator.IsValidDateTime(value)
	if !ok {
		errs.Add(field, field+" must be an RFC3339 timestamp")
		return nil
	}
	return &t
}

type ResolveRequest struct {
	RequestID string `json:"-"`
	Comment   string `json:"comment"`
}

func (r *ResolveRequest) Validate() error {
	var errs validator.ValidationErrors
	if !validator.IsValidUUID(r.RequestID) {
		errs.Add("id", "id must be a valid UUID")
	}
	return errs.Err()
}

type RequestFilter struct {
	OrgID  string
	UserID string
	Status Status
	From   *time.Time
	To     *time.Time
	Limit  int
}

type RequestResponse struct {
	ID                 string          `json:"id"`
	OrgID              string          `json:"org_id"`
	UserID             string          `json:"user_id"`
	WorkDate           string          `json:"work_date"`
	Type               RequestType     `json:"type"`
	RequestedIn        *time.Time      `json:"requested_in"`
	RequestedOut       *time.Time      `json:"requested_out"`
	Reason             string          `json:"reason"`
	Status             Status          `json:"status"`
	ApprovalInstanceID string          `json:"approval_instance_id"`
	Metadata           RequestMetadata `json:"metadata"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func NewRequestResponse(r Request) RequestResponse {
	return RequestResponse{
		ID:                 r.ID,
		OrgID:              r.OrgID,
		UserID:             r.UserID,
		WorkDate:           r.WorkDate.Format("2006-01-02"),
		Type:               r.Type,
		RequestedIn:        r.RequestedIn,
		RequestedOut:       r.RequestedOut,
		Reason:             r.Reason,
		Status:             r.Status,
		ApprovalInstanceID: r.ApprovalInstanceID,
		Metadata:           r.Metadata,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}
