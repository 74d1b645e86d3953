package sweeper_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesisman/backend/core/application"
	"github.com/thesisman/backend/core/notification"
	"github.com/thesisman/backend/core/proposal"
	"github.com/thesisman/backend/core/sweeper"
	"github.com/thesisman/backend/core/user"
	"github.com/thesisman/backend/testutil"
)

const expiringSubject = "Your thesis proposal is expiring"

func expiringNotes(t *testing.T, env *testutil.Env, usr user.User) []notification.Notification {
	t.Helper()
	var out []notification.Notification
	for _, n := range env.NotificationsOf(t, usr) {
		if n.Object == expiringSubject {
			out = append(out, n)
		}
	}
	return out
}

func appState(t *testing.T, env *testutil.Env, id string) application.State {
	t.Helper()
	app, err := env.ApplicationRepo.GetApplication(context.Background(), id)
	require.NoError(t, err)
	return app.State
}

func TestSweeper_expiration(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	expiring := env.CreateProposal(t, testutil.Teacher1, "Short lived", 7)
	lasting := env.CreateProposal(t, testutil.Teacher1, "Long lived", 30)
	a1 := env.Apply(t, testutil.Student1, expiring)
	a2 := env.Apply(t, testutil.Student2, expiring)
	a3 := env.Apply(t, testutil.Student3, lasting)
	env.Reset()

	_, err := env.Clock.SetDelta(ctx, "7")
	require.NoError(t, err)

	notes := expiringNotes(t, env, testutil.Teacher1)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Content, "Short lived")
	assert.Len(t, env.Email.SentTo(testutil.Teacher1.Email), 1)

	got, err := env.Proposals.Get(ctx, expiring.ID)
	require.NoError(t, err)
	assert.True(t, got.ManuallyArchived)
	got, err = env.Proposals.Get(ctx, lasting.ID)
	require.NoError(t, err)
	assert.False(t, got.ManuallyArchived)

	assert.Equal(t, application.StateCanceled, appState(t, env, a1.ID))
	assert.Equal(t, application.StateCanceled, appState(t, env, a2.ID))
	assert.Equal(t, application.StatePending, appState(t, env, a3.ID))
	assert.Len(t, env.Email.SentTo(testutil.Student1.Email), 1)
	assert.Len(t, env.Email.SentTo(testutil.Student2.Email), 1)
	assert.Empty(t, env.Email.SentTo(testutil.Student3.Email))

	active, err := env.Proposals.QueryActive(ctx, proposal.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, lasting.ID, active[0].ID)

	t.Run("running again changes nothing", func(t *testing.T) {
		env.Reset()
		require.NoError(t, env.Sweeper.ForceRun(ctx))
		require.NoError(t, env.Sweeper.ForceRun(ctx))
		assert.Empty(t, env.Email.Attempts())
		assert.Len(t, expiringNotes(t, env, testutil.Teacher1), 1)
	})
}

func TestSweeper_warningBeforeJump(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	prop := env.CreateProposal(t, testutil.Teacher2, "Warned early", 7)

	require.NoError(t, env.Sweeper.RunDailyPass(ctx))
	assert.Len(t, expiringNotes(t, env, testutil.Teacher2), 1)
	got, err := env.Proposals.Get(ctx, prop.ID)
	require.NoError(t, err)
	assert.False(t, got.ManuallyArchived)

	// the jump covers the same warning day again
	_, err = env.Clock.SetDelta(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, expiringNotes(t, env, testutil.Teacher2), 1)
	got, err = env.Proposals.Get(ctx, prop.ID)
	require.NoError(t, err)
	assert.True(t, got.ManuallyArchived)
}

func TestSweeper_catchUpWindow(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	var titles []string
	for _, days := range []int{3, 10, 16, 17} {
		p := env.CreateProposal(t, testutil.Teacher1, "Expires in "+strconv.Itoa(days), days)
		titles = append(titles, p.Title)
	}

	// days 0..9 are swept: warnings cover expirations from day 7 to day 16
	_, err := env.Clock.SetDelta(ctx, "9")
	require.NoError(t, err)

	notes := expiringNotes(t, env, testutil.Teacher1)
	require.Len(t, notes, 2)
	var joined string
	for _, n := range notes {
		joined += n.Content
	}
	quoted := func(s string) string { return `"` + s + `"` }
	assert.Contains(t, joined, quoted(titles[1]))
	assert.Contains(t, joined, quoted(titles[2]))
	assert.NotContains(t, joined, quoted(titles[0]))
	assert.NotContains(t, joined, quoted(titles[3]))

	props, err := env.Proposals.ListForSupervisor(ctx, testutil.Actor(testutil.Teacher1))
	require.NoError(t, err)
	var archived int
	for _, p := range props {
		if p.ManuallyArchived {
			archived++
		}
	}
	assert.Equal(t, 1, archived)
}

func TestSweeper_skipsDeleted(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	prop := env.CreateProposal(t, testutil.Teacher1, "Gone", 2)
	require.NoError(t, env.Proposals.Delete(ctx, testutil.Actor(testutil.Teacher1), prop.ID))
	env.Reset()

	_, err := env.Clock.SetDelta(ctx, "5")
	require.NoError(t, err)
	assert.Empty(t, env.Email.Attempts())
}

// failingProposals fails the next archive attempts.
type failingProposals struct {
	proposal.Repository
	failures int
}

func (r *failingProposals) UpdateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	if r.failures > 0 {
		r.failures--
		return proposal.Proposal{}, assert.AnError
	}
	return r.Repository.UpdateProposal(ctx, p)
}

func TestSweeper_failureKeepsClock(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	repo := &failingProposals{Repository: env.ProposalRepo, failures: 1}
	env.Sweeper = sweeper.NewService(repo, env.Applications, env.DB, env.Clock, env.Dispatcher, env.Logger)
	env.Clock.SetSweeper(env.Sweeper)

	prop := env.CreateProposal(t, testutil.Teacher1, "Short lived", 7)
	app := env.Apply(t, testutil.Student1, prop)
	env.Reset()

	_, err := env.Clock.SetDelta(ctx, "7")
	assert.ErrorIs(t, err, assert.AnError)

	state, err := env.Clock.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, state.DeltaDays)
	assert.Empty(t, expiringNotes(t, env, testutil.Teacher1))
	assert.Empty(t, env.Email.Attempts())
	assert.Equal(t, application.StatePending, appState(t, env, app.ID))

	t.Run("retry warns and archives", func(t *testing.T) {
		state, err := env.Clock.SetDelta(ctx, "7")
		require.NoError(t, err)
		assert.Equal(t, 7, state.DeltaDays)

		assert.Len(t, expiringNotes(t, env, testutil.Teacher1), 1)
		got, err := env.Proposals.Get(ctx, prop.ID)
		require.NoError(t, err)
		assert.True(t, got.ManuallyArchived)
		assert.Equal(t, application.StateCanceled, appState(t, env, app.ID))
	})
}

func TestNewScheduler(t *testing.T) {
	env := testutil.NewEnv(t)

	_, err := sweeper.NewScheduler(env.Sweeper, "not a schedule", testutil.Rome, env.Logger)
	assert.Error(t, err)

	s, err := sweeper.NewScheduler(env.Sweeper, "", nil, env.Logger)
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
