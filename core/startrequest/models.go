package startrequest

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/user"
)

type Status string

const (
	StatusRequested         Status = "requested"
	StatusSecretaryAccepted Status = "secretary_accepted"
	StatusSecretaryRejected Status = "secretary_rejected"
	StatusChangesRequested  Status = "changes_requested"
	StatusChanged           Status = "changed"
	StatusTeacherRejected   Status = "teacher_rejected"
	StatusStarted           Status = "started"
)

var AllStatuses = []Status{
	StatusRequested, StatusSecretaryAccepted, StatusSecretaryRejected,
	StatusChangesRequested, StatusChanged, StatusTeacherRejected, StatusStarted,
}

// Outstanding statuses block a student from creating another request.
var Outstanding = []Status{
	StatusRequested, StatusSecretaryAccepted, StatusChangesRequested, StatusChanged, StatusStarted,
}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type Decision string

const (
	DecisionApprove        Decision = "approve"
	DecisionReject         Decision = "reject"
	DecisionRequestChanges Decision = "request_changes"
	// DecisionResubmit is the student answering a change request.
	DecisionResubmit Decision = "resubmit"
)

// IsEvaluation reports whether d is a decision secretaries and teachers take.
func (d Decision) IsEvaluation() bool {
	return d == DecisionApprove || d == DecisionReject || d == DecisionRequestChanges
}

type transitionKey struct {
	From     Status
	Role     user.Role
	Decision Decision
}

// transitions is the complete lifecycle. Every triple missing here is illegal.
// changed re-enters teacher review exactly like secretary_accepted.
var transitions = map[transitionKey]Status{
	{StatusRequested, user.RoleSecretary, DecisionApprove}: StatusSecretaryAccepted,
	{StatusRequested, user.RoleSecretary, DecisionReject}:  StatusSecretaryRejected,

	{StatusSecretaryAccepted, user.RoleTeacher, DecisionApprove}:        StatusStarted,
	{StatusSecretaryAccepted, user.RoleTeacher, DecisionReject}:         StatusTeacherRejected,
	{StatusSecretaryAccepted, user.RoleTeacher, DecisionRequestChanges}: StatusChangesRequested,

	{StatusChanged, user.RoleTeacher, DecisionApprove}:        StatusStarted,
	{StatusChanged, user.RoleTeacher, DecisionReject}:         StatusTeacherRejected,
	{StatusChanged, user.RoleTeacher, DecisionRequestChanges}: StatusChangesRequested,

	{StatusChangesRequested, user.RoleStudent, DecisionResubmit}: StatusChanged,
}

var (
	// errors
	ErrInvalidDecision    = core.NewError(core.KindInvalidInput, "decision must be one of approve, reject, request_changes")
	ErrSecretaryNoChanges = core.NewError(core.KindInvalidInput, "secretaries can only approve or reject")
	ErrRoleCannotEvaluate = core.NewError(core.KindForbidden, "your role cannot act on start requests")
	ErrAlreadyEvaluated   = core.NewError(core.KindInvalidState, "the start request was already approved or rejected")
	ErrNotAwaitingTeacher = core.NewError(core.KindInvalidState, "the start request is not awaiting the supervisor's evaluation")
	ErrNotAwaitingChanges = core.NewError(core.KindInvalidState, "no changes were requested on the start request")
)

// Next returns the status reached when role takes decision on a request in from.
// It fails for every triple missing from the transition table.
func Next(from Status, role user.Role, decision Decision) (Status, error) {
	switch decision {
	case DecisionApprove, DecisionReject, DecisionRequestChanges, DecisionResubmit:
	default:
		return "", ErrInvalidDecision
	}

	if next, ok := transitions[transitionKey{from, role, decision}]; ok {
		return next, nil
	}

	switch role {
	case user.RoleSecretary:
		if from != StatusRequested {
			return "", ErrAlreadyEvaluated
		}
		return "", ErrSecretaryNoChanges
	case user.RoleTeacher:
		if decision == DecisionResubmit {
			return "", ErrInvalidDecision
		}
		return "", ErrNotAwaitingTeacher
	case user.RoleStudent:
		if decision != DecisionResubmit {
			return "", ErrRoleCannotEvaluate
		}
		return "", ErrNotAwaitingChanges
	}
	return "", ErrRoleCannotEvaluate
}

type StartRequest struct {
	ID               string      `json:"id"`
	StudentID        string      `json:"student_id"`
	SupervisorID     string      `json:"supervisor_id"`
	CoSupervisors    []string    `json:"co_supervisors"` // teacher emails
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Status           Status      `json:"status"`
	ChangesRequested null.String `json:"changes_requested"`
	ApprovalDate     null.Time   `json:"approval_date"` // calendar date, midnight UTC
	CreatedAt        time.Time   `json:"created_at"`    // virtual clock time
}

// NewStartRequest contains information needed to create a new StartRequest.
type NewStartRequest struct {
	SupervisorID  string   `json:"supervisor_id" validate:"required"`
	CoSupervisors []string `json:"co_supervisors" validate:"omitempty,dive,email"`
	Title         string   `json:"title" validate:"required"`
	Description   string   `json:"description" validate:"required"`
}

func (nsr *NewStartRequest) Clean() {
	nsr.SupervisorID = core.CleanString(nsr.SupervisorID)
	nsr.CoSupervisors = core.CleanList(nsr.CoSupervisors, true /* lower */)
	nsr.Title = core.CleanString(nsr.Title)
	nsr.Description = core.CleanString(nsr.Description)
}

// UpdateStartRequest is what a student may change when resubmitting.
type UpdateStartRequest struct {
	CoSupervisors []string `json:"co_supervisors" validate:"omitempty,dive,email"`
	Title         string   `json:"title" validate:"required"`
	Description   string   `json:"description" validate:"required"`
}

func (usr *UpdateStartRequest) Clean() {
	usr.CoSupervisors = core.CleanList(usr.CoSupervisors, true /* lower */)
	usr.Title = core.CleanString(usr.Title)
	usr.Description = core.CleanString(usr.Description)
}

type Evaluation struct {
	Decision Decision `json:"decision" validate:"required"`
	Message  string   `json:"message"`
}

type QueryFilter struct {
	StudentID string
	// TeacherID and TeacherEmail keep the requests a teacher supervises or co-supervises.
	TeacherID    string
	TeacherEmail string
	Statuses     []Status
}
