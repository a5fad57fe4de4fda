package domain

// Status is a membership status. The value is the short tag used on the wire
// and in the database.
type Status string

const (
	StatusDC         Status = "dc"    // contributor
	StatusDCGA       Status = "dc_ga" // contributor with guest account
	StatusDM         Status = "dm"    // maintainer
	StatusDMGA       Status = "dm_ga" // maintainer with guest account
	StatusDDU        Status = "dd_u"  // uploading developer
	StatusDDNU       Status = "dd_nu" // non-uploading developer
	StatusDDEmeritus Status = "dd_e"  // emeritus developer
	StatusDDRemoved  Status = "dd_r"  // removed developer
)

// AllStatuses lists every valid status in ascending order of membership.
var AllStatuses = []Status{
	StatusDC, StatusDCGA, StatusDM, StatusDMGA,
	StatusDDU, StatusDDNU, StatusDDEmeritus, StatusDDRemoved,
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsDD reports whether the status denotes an active Debian Developer.
func (s Status) IsDD() bool {
	return s == StatusDDU || s == StatusDDNU
}

// Sibling returns the other uploading/non-uploading developer status, or ""
// when the status has no sibling.
func (s Status) Sibling() Status {
	switch s {
	case StatusDDU:
		return StatusDDNU
	case StatusDDNU:
		return StatusDDU
	}
	return ""
}

// RequirementType identifies one of the five conditions gating a Process.
type RequirementType string

const (
	ReqIntent   RequirementType = "intent"   // declaration of intent
	ReqSCDMUP   RequirementType = "sc_dmup"  // SC/DFSG/DMUP agreement
	ReqAdvocate RequirementType = "advocate" // advocacy statement
	ReqKeycheck RequirementType = "keycheck" // key consistency check
	ReqAMOK     RequirementType = "am_ok"    // Application Manager report
)

// AllRequirementTypes lists requirement types in presentation order.
var AllRequirementTypes = []RequirementType{
	ReqIntent, ReqSCDMUP, ReqAdvocate, ReqKeycheck, ReqAMOK,
}

func (t RequirementType) Valid() bool {
	for _, v := range AllRequirementTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Person is a human tracked by the system. Only the attributes the workflow
// touches are modeled here; the directory entry lives elsewhere.
type Person struct {
	ID            int64  `json:"id"`
	UID           string `json:"uid,omitempty"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	Fingerprint   string `json:"fingerprint,omitempty"`
	Status        Status `json:"status"`
	StatusChanged string `json:"status_changed" format:"date-time"`
	Pending       string `json:"pending,omitempty"` // nonempty until the account is confirmed
	CreatedAt     string `json:"created_at" format:"date-time"`
}

// Key returns the natural key used to reference the person on the wire.
func (p Person) Key() string {
	if p.Email != "" {
		return p.Email
	}
	if p.UID != "" {
		return p.UID
	}
	return p.Fingerprint
}

// AM is the Application Manager profile of a Person. FD and DAM membership are
// flags on the profile, matching how the admin teams are tracked.
type AM struct {
	ID        int64  `json:"id"`
	PersonID  int64  `json:"person_id"`
	Slots     int    `json:"slots"`
	IsAM      bool   `json:"is_am"`
	IsFD      bool   `json:"is_fd"`
	IsDAM     bool   `json:"is_dam"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Admin reports whether the profile grants administrator capabilities.
func (a AM) Admin() bool { return a.IsFD || a.IsDAM }

// Process is one attempt to move a Person to a target status.
// Phase fields are set in pairs and cleared in pairs; a nil time means the
// phase has not been entered.
type Process struct {
	ID           int64   `json:"id"`
	PersonID     int64   `json:"person_id"`
	ApplyingFor  Status  `json:"applying_for"`
	Started      string  `json:"started" format:"date-time"`
	FrozenBy     *int64  `json:"frozen_by,omitempty"`
	FrozenTime   *string `json:"frozen_time,omitempty" format:"date-time"`
	ApprovedBy   *int64  `json:"approved_by,omitempty"`
	ApprovedTime *string `json:"approved_time,omitempty" format:"date-time"`
	ClosedBy     *int64  `json:"closed_by,omitempty"`
	ClosedTime   *string `json:"closed_time,omitempty" format:"date-time"`
	RTTicket     int64   `json:"rt_ticket,omitempty"`
}

func (p Process) Frozen() bool   { return p.FrozenTime != nil }
func (p Process) Approved() bool { return p.ApprovedTime != nil }
func (p Process) Closed() bool   { return p.ClosedTime != nil }

// Requirement is one condition gating a Process's completion.
type Requirement struct {
	ID           int64           `json:"id"`
	ProcessID    int64           `json:"process_id"`
	Type         RequirementType `json:"type"`
	ApprovedBy   *int64          `json:"approved_by,omitempty"`
	ApprovedTime *string         `json:"approved_time,omitempty" format:"date-time"`
}

func (r Requirement) Approved() bool { return r.ApprovedTime != nil }

// Statement is a signed piece of evidence attached to a Requirement.
type Statement struct {
	ID            int64  `json:"id"`
	RequirementID int64  `json:"requirement_id"`
	Fingerprint   string `json:"fingerprint"` // key that signed the statement
	Statement     string `json:"statement"`   // raw signed text
	UploadedBy    int64  `json:"uploaded_by"`
	UploadedTime  string `json:"uploaded_time" format:"date-time"`
}

// AMAssignment is a time-bounded assignment of an AM to a Process. The current
// assignment is the one with a null unassigned time; at most one may exist per
// Process.
type AMAssignment struct {
	ID             int64   `json:"id"`
	ProcessID      int64   `json:"process_id"`
	AMID           int64   `json:"am_id"`
	Paused         bool    `json:"paused"`
	AssignedBy     int64   `json:"assigned_by"`
	AssignedTime   string  `json:"assigned_time" format:"date-time"`
	UnassignedBy   *int64  `json:"unassigned_by,omitempty"`
	UnassignedTime *string `json:"unassigned_time,omitempty" format:"date-time"`
}

func (a AMAssignment) Current() bool { return a.UnassignedTime == nil }

// Log action tags.
const (
	ActionPersonCreate    = "person_create"
	ActionStatusChange    = "status_change"
	ActionFprChange       = "fpr_change"
	ActionProcCreate      = "proc_create"
	ActionProcFreeze      = "proc_freeze"
	ActionProcUnfreeze    = "proc_unfreeze"
	ActionProcApprove     = "proc_approve"
	ActionProcUnapprove   = "proc_unapprove"
	ActionProcClose       = "proc_close"
	ActionAMAssign        = "am_assign"
	ActionAMUnassign      = "am_unassign"
	ActionReqApprove      = "req_approve"
	ActionReqUnapprove    = "req_unapprove"
	ActionStatementAdd    = "statement_add"
	ActionStatementRemove = "statement_remove"
	ActionRTApprove       = "rt_approve"
)

// Log is one append-only audit trail entry. Entries are never mutated or
// deleted and are totally ordered by (logdate, id).
type Log struct {
	ID            int64  `json:"id"`
	ProcessID     *int64 `json:"process_id,omitempty"`
	RequirementID *int64 `json:"requirement_id,omitempty"`
	ChangedBy     int64  `json:"changed_by"`
	IsPublic      bool   `json:"is_public"`
	Action        string `json:"action"`
	Text          string `json:"text,omitempty"`
	Logdate       string `json:"logdate" format:"date-time"`
}
