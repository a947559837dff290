package approval

import "time"

type RequestType string

const (
	TypeMissedCheckIn  RequestType = "missed_check_in"
	TypeMissedCheckOut RequestType = "missed_check_out"
	TypeTimeCorrection RequestType = "time_correction"
	TypeLeave          RequestType = "leave"
	TypeOvertime       RequestType = "overtime"
)

var RequestTypeValues = []string{
	string(TypeMissedCheckIn),
	string(TypeMissedCheckOut),
	string(TypeTimeCorrection),
	string(TypeLeave),
	string(TypeOvertime),
}

// IsPunch reports request types that rewrite punches.
func (t RequestType) IsPunch() bool {
	return t == TypeMissedCheckIn || t == TypeMissedCheckOut || t == TypeTimeCorrection
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// Step lists who may approve at one position of a flow. A step with
// neither list accepts any approver.
type Step struct {
	ApproverUserIDs []string `json:"approver_user_ids"`
	ApproverRoleIDs []string `json:"approver_role_ids"`
}

func (s Step) IsOpen() bool {
	return len(s.ApproverUserIDs) == 0 && len(s.ApproverRoleIDs) == 0
}

// Flow is an org's approval chain. A nil RequestType applies to every type
// without a specific flow.
type Flow struct {
	ID          string
	OrgID       string
	Name        string
	RequestType *RequestType
	Steps       []Step
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FlowSnapshot is the copy of a flow frozen into a request at submission.
type FlowSnapshot struct {
	FlowID      string `json:"flow_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Steps       []Step `json:"steps"`
	CurrentStep int    `json:"current_step"`
}

// IsLastStep is true when approving the current step resolves the request.
func (f FlowSnapshot) IsLastStep() bool {
	return len(f.Steps) == 0 || f.CurrentStep >= len(f.Steps)-1
}

// Current returns the step awaiting approval.
func (f FlowSnapshot) Current() (Step, bool) {
	if f.CurrentStep < 0 || f.CurrentStep >= len(f.Steps) {
		return Step{}, false
	}
	return f.Steps[f.CurrentStep], true
}

type RequestMetadata struct {
	DurationMinutes int                    `json:"duration_minutes"`
	Timezone        string                 `json:"timezone,omitempty"`
	Flow            FlowSnapshot           `json:"approval_flow"`
	Extra           map[string]interface{} `json:"extra,omitempty"`
}

type Request struct {
	ID                 string
	OrgID              string
	UserID             string
	WorkDate           time.Time
	Type               RequestType
	RequestedIn        *time.Time
	RequestedOut       *time.Time
	Reason             string
	Status             Status
	ApprovalInstanceID string
	Metadata           RequestMetadata
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Instance is the versioned state behind one approval decision.
type Instance struct {
	ID        string
	OrgID     string
	Status    Status
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Audit is an immutable record of one transition.
type Audit struct {
	ID          string                 `json:"id"`
	InstanceID  string                 `json:"instance_id"`
	Action      Action                 `json:"action"`
	ActorID     string                 `json:"actor_id"`
	FromStatus  Status                 `json:"from_status"`
	ToStatus    Status                 `json:"to_status"`
	FromVersion int                    `json:"from_version"`
	ToVersion   int                    `json:"to_version"`
	Comment     string                 `json:"comment"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   time.Time              `json:"created_at"`
}
