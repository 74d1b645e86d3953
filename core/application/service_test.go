package application_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/application"
	"github.com/thesisman/backend/core/proposal"
	"github.com/thesisman/backend/core/user"
	"github.com/thesisman/backend/testutil"
)

func state(t *testing.T, env *testutil.Env, id string) application.State {
	t.Helper()
	app, err := env.ApplicationRepo.GetApplication(context.Background(), id)
	require.NoError(t, err)
	return app.State
}

func TestState_transitions(t *testing.T) {
	all := []application.State{application.StatePending, application.StateAccepted, application.StateRejected, application.StateCanceled}

	for _, from := range all {
		for _, to := range all {
			want := from == application.StatePending && to != application.StatePending
			assert.Equal(t, want, from.CanBecome(to), "%s -> %s", from, to)
		}
		assert.Equal(t, from != application.StatePending, from.IsTerminal(), from)
	}
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	prop := env.CreateProposal(t, testutil.Teacher1, "First", 30)
	other := env.CreateProposal(t, testutil.Teacher2, "Second", 30)

	tests := []struct {
		name       string
		actor      user.User
		proposalID string
		wantErr    error
	}{
		{name: "teachers cannot apply", actor: testutil.Teacher2, proposalID: prop.ID, wantErr: application.ErrStudentsOnly},
		{name: "unknown proposal", actor: testutil.Student1, proposalID: "nope", wantErr: proposal.ErrNotFound},
		{name: "first application", actor: testutil.Student1, proposalID: prop.ID},
		{name: "second live application", actor: testutil.Student1, proposalID: other.ID, wantErr: application.ErrAlreadyApplied},
		{name: "same proposal again", actor: testutil.Student1, proposalID: prop.ID, wantErr: application.ErrAlreadyApplied},
		{name: "another student", actor: testutil.Student2, proposalID: prop.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := env.Applications.Submit(ctx, testutil.Actor(tt.actor), tt.proposalID)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, application.StatePending, app.State)
			assert.Equal(t, tt.actor.ID, app.StudentID)
		})
	}

	t.Run("notifies the supervisor", func(t *testing.T) {
		notes := env.NotificationsOf(t, testutil.Teacher1)
		assert.Len(t, notes, 2)
	})
}

func TestService_Submit_inactiveProposal(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teacher := testutil.Actor(testutil.Teacher1)

	archived := env.CreateProposal(t, testutil.Teacher1, "Archived", 30)
	_, err := env.Proposals.Archive(ctx, teacher, archived.ID)
	require.NoError(t, err)

	deleted := env.CreateProposal(t, testutil.Teacher1, "Deleted", 30)
	require.NoError(t, env.Proposals.Delete(ctx, teacher, deleted.ID))

	expired := env.CreateProposal(t, testutil.Teacher1, "Expired", 1)
	_, err = env.Clock.SetDelta(ctx, "2")
	require.NoError(t, err)

	for _, id := range []string{archived.ID, deleted.ID, expired.ID} {
		_, err := env.Applications.Submit(ctx, testutil.Actor(testutil.Student1), id)
		assert.Equal(t, proposal.ErrNotFound, err)
		assert.True(t, core.IsKind(err, core.KindNotFound))
	}
}

func TestService_Submit_afterRejection(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teacher := testutil.Actor(testutil.Teacher1)
	student := testutil.Actor(testutil.Student1)

	prop := env.CreateProposal(t, testutil.Teacher1, "Picky", 30)
	other := env.CreateProposal(t, testutil.Teacher1, "Fallback", 30)

	app := env.Apply(t, testutil.Student1, prop)
	_, err := env.Applications.Decide(ctx, teacher, app.ID, application.DecisionRejected)
	require.NoError(t, err)

	_, err = env.Applications.Submit(ctx, student, prop.ID)
	assert.Equal(t, application.ErrPreviouslyRefused, err)
	assert.True(t, core.IsKind(err, core.KindConflict))

	// a rejection frees the student for other proposals
	_, err = env.Applications.Submit(ctx, student, other.ID)
	assert.NoError(t, err)
}

func TestService_Decide_acceptCascade(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teacher := testutil.Actor(testutil.Teacher1)

	prop := env.CreateProposal(t, testutil.Teacher1, "Popular", 30, "t2@example.com")
	a1 := env.Apply(t, testutil.Student1, prop)
	a2 := env.Apply(t, testutil.Student2, prop)
	a3 := env.Apply(t, testutil.Student3, prop)
	_, err := env.Applications.Decide(ctx, teacher, a3.ID, application.DecisionRejected)
	require.NoError(t, err)
	env.Reset()

	accepted, err := env.Applications.Decide(ctx, teacher, a1.ID, application.DecisionAccepted)
	require.NoError(t, err)
	assert.Equal(t, application.StateAccepted, accepted.State)

	assert.Equal(t, application.StateAccepted, state(t, env, a1.ID))
	assert.Equal(t, application.StateCanceled, state(t, env, a2.ID))
	assert.Equal(t, application.StateRejected, state(t, env, a3.ID))

	got, err := env.Proposals.Get(ctx, prop.ID)
	require.NoError(t, err)
	assert.True(t, got.ManuallyArchived)

	// decision to the student and the co-supervisor, cancellation to the sibling
	assert.Len(t, env.Email.SentTo(testutil.Student1.Email), 1)
	assert.Len(t, env.Email.SentTo(testutil.Teacher2.Email), 1)
	assert.Len(t, env.Email.SentTo(testutil.Student2.Email), 1)
	assert.Empty(t, env.Email.SentTo(testutil.Student3.Email))

	t.Run("a decided application cannot be decided again", func(t *testing.T) {
		_, err := env.Applications.Decide(ctx, teacher, a1.ID, application.DecisionRejected)
		assert.Equal(t, application.ErrNotPending, err)
		_, err = env.Applications.Decide(ctx, teacher, a2.ID, application.DecisionAccepted)
		assert.Equal(t, application.ErrNotPending, err)
		assert.True(t, core.IsKind(err, core.KindInvalidState))
	})
}

func TestService_Decide_guards(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	prop := env.CreateProposal(t, testutil.Teacher1, "Guarded", 30)
	app := env.Apply(t, testutil.Student1, prop)

	tests := []struct {
		name     string
		actor    user.User
		id       string
		decision application.Decision
		wantErr  error
	}{
		{name: "invalid decision", actor: testutil.Teacher1, id: app.ID, decision: "canceled", wantErr: application.ErrInvalidDecision},
		{name: "students cannot decide", actor: testutil.Student1, id: app.ID, decision: application.DecisionAccepted, wantErr: application.ErrTeachersOnly},
		{name: "not the supervisor", actor: testutil.Teacher2, id: app.ID, decision: application.DecisionAccepted, wantErr: application.ErrNotSupervisor},
		{name: "unknown application", actor: testutil.Teacher1, id: "nope", decision: application.DecisionAccepted, wantErr: application.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Applications.Decide(ctx, testutil.Actor(tt.actor), tt.id, tt.decision)
			assert.Equal(t, tt.wantErr, err)
		})
	}
	assert.Equal(t, application.StatePending, state(t, env, app.ID))
}

func TestService_Decide_concurrentAccepts(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	teacher := testutil.Actor(testutil.Teacher1)

	prop := env.CreateProposal(t, testutil.Teacher1, "Race", 30)
	apps := []application.Application{
		env.Apply(t, testutil.Student1, prop),
		env.Apply(t, testutil.Student2, prop),
		env.Apply(t, testutil.Student3, prop),
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, app := range apps {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := env.Applications.Decide(ctx, teacher, id, application.DecisionAccepted); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(app.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	var accepted, canceled int
	for _, app := range apps {
		switch state(t, env, app.ID) {
		case application.StateAccepted:
			accepted++
		case application.StateCanceled:
			canceled++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 2, canceled)
}

func TestService_oneLiveApplicationPerStudent(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	props := []proposal.Proposal{
		env.CreateProposal(t, testutil.Teacher1, "P1", 30),
		env.CreateProposal(t, testutil.Teacher1, "P2", 30),
		env.CreateProposal(t, testutil.Teacher2, "P3", 30),
	}
	students := []user.User{testutil.Student1, testutil.Student2}

	for i := 0; i < 3; i++ {
		for _, s := range students {
			for _, p := range props {
				_, _ = env.Applications.Submit(ctx, testutil.Actor(s), p.ID)
			}
		}
	}

	for _, s := range students {
		apps, err := env.Applications.ListForStudent(ctx, testutil.Actor(s))
		require.NoError(t, err)
		live := 0
		for _, app := range apps {
			if app.State == application.StatePending || app.State == application.StateAccepted {
				live++
			}
		}
		assert.Equal(t, 1, live, s.ID)
	}
}

func TestService_visibility(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	prop := env.CreateProposal(t, testutil.Teacher1, "Private", 30)
	app := env.Apply(t, testutil.Student1, prop)

	_, err := env.Applications.Get(ctx, testutil.Actor(testutil.Student1), app.ID)
	assert.NoError(t, err)
	_, err = env.Applications.Get(ctx, testutil.Actor(testutil.Teacher1), app.ID)
	assert.NoError(t, err)
	_, err = env.Applications.Get(ctx, testutil.Actor(testutil.Student2), app.ID)
	assert.Equal(t, application.ErrForbidden, err)
	_, err = env.Applications.Get(ctx, testutil.Actor(testutil.Teacher2), app.ID)
	assert.Equal(t, application.ErrForbidden, err)

	_, err = env.Applications.ListForProposal(ctx, testutil.Actor(testutil.Teacher2), prop.ID)
	assert.Equal(t, application.ErrNotSupervisor, err)
	apps, err := env.Applications.ListForProposal(ctx, testutil.Actor(testutil.Teacher1), prop.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}
