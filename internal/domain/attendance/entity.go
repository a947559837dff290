package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-core/internal/domain/schedule"
)

type Status string

const (
	StatusNormal     Status = "normal"
	StatusLate       Status = "late"
	StatusEarlyLeave Status = "early_leave"
	StatusLateEarly  Status = "late_early"
	StatusPartial    Status = "partial"
	StatusAbsent     Status = "absent"
	StatusAdjusted   Status = "adjusted"
	StatusOff        Status = "off"
)

var StatusValues = []string{
	string(StatusNormal),
	string(StatusLate),
	string(StatusEarlyLeave),
	string(StatusLateEarly),
	string(StatusPartial),
	string(StatusAbsent),
	string(StatusAdjusted),
	string(StatusOff),
}

func (s Status) Valid() bool {
	for _, v := range StatusValues {
		if v == string(s) {
			return true
		}
	}
	return false
}

type EventType string

const (
	EventCheckIn    EventType = "check_in"
	EventCheckOut   EventType = "check_out"
	EventAdjustment EventType = "adjustment"
)

type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

type Geofence struct {
	Name         string  `json:"name"`
	Latitude     float64 `json:"lat"`
	Longitude    float64 `json:"lng"`
	RadiusMeters float64 `json:"radius_meters"`
}

// PunchConstraints restrict where and how often live punches are accepted.
// Empty lists disable the corresponding check.
type PunchConstraints struct {
	IPAllowlist        []string   `json:"ip_allowlist"`
	Geofences          []Geofence `json:"geofences"`
	MinIntervalMinutes int        `json:"min_interval_minutes"`
}

// Event is an immutable punch. Events are appended, never updated.
type Event struct {
	ID         string
	OrgID      string
	UserID     string
	WorkDate   time.Time
	OccurredAt time.Time
	Type       EventType
	Timezone   string
	Source     string
	Location   *Location
	Meta       map[string]interface{}
	CreatedAt  time.Time
}

// Key identifies the single daily record of a user in an org.
type Key struct {
	OrgID    string
	UserID   string
	WorkDate time.Time
}

// Record is the mutable daily aggregate. There is exactly one per Key.
type Record struct {
	ID                string
	OrgID             string
	UserID            string
	WorkDate          time.Time
	Timezone          string
	FirstInAt         *time.Time
	LastOutAt         *time.Time
	WorkMinutes       int
	LateMinutes       int
	EarlyLeaveMinutes int
	Status            Status
	IsWorkday         bool
	Meta              map[string]interface{}
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (r Record) Key() Key {
	return Key{OrgID: r.OrgID, UserID: r.UserID, WorkDate: r.WorkDate}
}

// Metrics is the classified outcome of one day's punches.
type Metrics struct {
	RawMinutes        int
	WorkMinutes       int
	LateMinutes       int
	EarlyLeaveMinutes int
	Status            Status
}

// MetricsInput feeds the calculator.
type MetricsInput struct {
	Schedule        schedule.ScheduleRule
	FirstIn         *time.Time
	LastOut         *time.Time
	IsWorkingDay    bool
	LeaveMinutes    int
	OvertimeMinutes int
}

// OvertimeRounding quantizes requested overtime: raise to MinimumMinutes,
// round up to RoundingMinutes, cap at MaxPerDayMinutes (0 = no cap).
type OvertimeRounding struct {
	MinimumMinutes   int `json:"minimum_minutes"`
	RoundingMinutes  int `json:"rounding_minutes"`
	MaxPerDayMinutes int `json:"max_per_day_minutes"`
}

type Mode string

const (
	// ModeAppend keeps the earliest first-in and latest last-out.
	ModeAppend Mode = "append"
	// ModeMerge overwrites only the punches provided.
	ModeMerge Mode = "merge"
	// ModeOverride replaces both punches unconditionally.
	ModeOverride Mode = "override"
)

func (m Mode) Valid() bool {
	return m == ModeAppend || m == ModeMerge || m == ModeOverride
}

// Override forces individual metrics after calculation. Nil fields keep
// the computed value.
type Override struct {
	WorkMinutes       *int
	LateMinutes       *int
	EarlyLeaveMinutes *int
	Status            *Status
}

func (o *Override) Empty() bool {
	return o == nil || (o.WorkMinutes == nil && o.LateMinutes == nil && o.EarlyLeaveMinutes == nil && o.Status == nil)
}

// ReconcileInput is one unit of new data for a daily record.
type ReconcileInput struct {
	Key             Key
	FirstIn         *time.Time
	LastOut         *time.Time
	Mode            Mode
	Context         schedule.WorkContext
	LeaveMinutes    int
	OvertimeMinutes int
	Override        *Override
	Meta            map[string]interface{}
	// Fields are extra facts (e.g. import columns) visible to rule evaluation.
	Fields   map[string]interface{}
	Adjuster Adjuster
}

// AdjustInput is what rule layers see after metrics are calculated.
type AdjustInput struct {
	Record          Record
	Context         schedule.WorkContext
	Metrics         Metrics
	LeaveMinutes    int
	OvertimeMinutes int
	Fields          map[string]interface{}
}

// Adjustment is the rule layers' result. Meta is merged into the record.
type Adjustment struct {
	Metrics         Metrics
	LeaveMinutes    int
	OvertimeMinutes int
	Meta            map[string]interface{}
}
