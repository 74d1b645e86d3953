package startrequest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/user"
)

func TestNext_exhaustive(t *testing.T) {
	allowed := map[transitionKey]Status{
		{StatusRequested, user.RoleSecretary, DecisionApprove}:              StatusSecretaryAccepted,
		{StatusRequested, user.RoleSecretary, DecisionReject}:               StatusSecretaryRejected,
		{StatusSecretaryAccepted, user.RoleTeacher, DecisionApprove}:        StatusStarted,
		{StatusSecretaryAccepted, user.RoleTeacher, DecisionReject}:         StatusTeacherRejected,
		{StatusSecretaryAccepted, user.RoleTeacher, DecisionRequestChanges}: StatusChangesRequested,
		{StatusChanged, user.RoleTeacher, DecisionApprove}:                  StatusStarted,
		{StatusChanged, user.RoleTeacher, DecisionReject}:                   StatusTeacherRejected,
		{StatusChanged, user.RoleTeacher, DecisionRequestChanges}:           StatusChangesRequested,
		{StatusChangesRequested, user.RoleStudent, DecisionResubmit}:        StatusChanged,
	}
	roles := append([]user.Role{""}, user.AllRoles...)
	decisions := []Decision{DecisionApprove, DecisionReject, DecisionRequestChanges, DecisionResubmit, "", "maybe"}

	for _, from := range AllStatuses {
		for _, role := range roles {
			for _, decision := range decisions {
				key := transitionKey{from, role, decision}
				next, err := Next(from, role, decision)
				if want, ok := allowed[key]; ok {
					assert.NoError(t, err, "%+v", key)
					assert.Equal(t, want, next, "%+v", key)
					continue
				}
				// every other triple fails with a caller-facing error
				if assert.Error(t, err, "%+v", key) {
					assert.NotEqual(t, core.KindUnknown, core.ErrorKind(err), "%+v", key)
				}
				assert.Empty(t, next, "%+v", key)
			}
		}
	}
}

func TestNext_errors(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		role     user.Role
		decision Decision
		wantErr  error
	}{
		{name: "unknown decision", from: StatusRequested, role: user.RoleSecretary, decision: "maybe", wantErr: ErrInvalidDecision},
		{name: "secretary acts twice", from: StatusSecretaryAccepted, role: user.RoleSecretary, decision: DecisionApprove, wantErr: ErrAlreadyEvaluated},
		{name: "secretary on rejected", from: StatusSecretaryRejected, role: user.RoleSecretary, decision: DecisionReject, wantErr: ErrAlreadyEvaluated},
		{name: "secretary requests changes", from: StatusRequested, role: user.RoleSecretary, decision: DecisionRequestChanges, wantErr: ErrSecretaryNoChanges},
		{name: "secretary requests changes once accepted", from: StatusSecretaryAccepted, role: user.RoleSecretary, decision: DecisionRequestChanges, wantErr: ErrAlreadyEvaluated},
		{name: "secretary requests changes on started", from: StatusStarted, role: user.RoleSecretary, decision: DecisionRequestChanges, wantErr: ErrAlreadyEvaluated},
		{name: "secretary requests changes while waiting on student", from: StatusChangesRequested, role: user.RoleSecretary, decision: DecisionRequestChanges, wantErr: ErrAlreadyEvaluated},
		{name: "secretary resubmits", from: StatusRequested, role: user.RoleSecretary, decision: DecisionResubmit, wantErr: ErrSecretaryNoChanges},
		{name: "teacher before secretary", from: StatusRequested, role: user.RoleTeacher, decision: DecisionApprove, wantErr: ErrNotAwaitingTeacher},
		{name: "teacher waits on student", from: StatusChangesRequested, role: user.RoleTeacher, decision: DecisionApprove, wantErr: ErrNotAwaitingTeacher},
		{name: "teacher on started", from: StatusStarted, role: user.RoleTeacher, decision: DecisionReject, wantErr: ErrNotAwaitingTeacher},
		{name: "teacher on teacher_rejected", from: StatusTeacherRejected, role: user.RoleTeacher, decision: DecisionApprove, wantErr: ErrNotAwaitingTeacher},
		{name: "student evaluates", from: StatusRequested, role: user.RoleStudent, decision: DecisionApprove, wantErr: ErrRoleCannotEvaluate},
		{name: "student resubmits unasked", from: StatusSecretaryAccepted, role: user.RoleStudent, decision: DecisionResubmit, wantErr: ErrNotAwaitingChanges},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Next(tt.from, tt.role, tt.decision)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, st := range AllStatuses {
		assert.True(t, st.Valid(), st)
	}
	assert.False(t, Status("approved").Valid())
}
