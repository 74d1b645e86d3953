// Package testutil wires the workflow services on the in-memory store for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/application"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/notification"
	"github.com/thesisman/backend/core/proposal"
	"github.com/thesisman/backend/core/startrequest"
	"github.com/thesisman/backend/core/sweeper"
	"github.com/thesisman/backend/core/user"
	dedupsvc "github.com/thesisman/backend/services/dedup"
	emailsvc "github.com/thesisman/backend/services/email"
	logsvc "github.com/thesisman/backend/services/logger"
	inmemdb "github.com/thesisman/backend/storage/database/inmem"
)

// Directory users every Env starts with.
var (
	Student1  = user.User{ID: "s1", Name: "Mario", Surname: "Rossi", Email: "s1@studenti.example.com", Role: user.RoleStudent}
	Student2  = user.User{ID: "s2", Name: "Anna", Surname: "Bianchi", Email: "s2@studenti.example.com", Role: user.RoleStudent}
	Student3  = user.User{ID: "s3", Name: "Luca", Surname: "Verdi", Email: "s3@studenti.example.com", Role: user.RoleStudent}
	Teacher1  = user.User{ID: "t1", Name: "Giulia", Surname: "Neri", Email: "t1@example.com", Role: user.RoleTeacher}
	Teacher2  = user.User{ID: "t2", Name: "Paolo", Surname: "Gallo", Email: "t2@example.com", Role: user.RoleTeacher}
	Secretary = user.User{ID: "c1", Name: "Sara", Surname: "Conti", Email: "c1@example.com", Role: user.RoleSecretary}

	AllUsers = []user.User{Student1, Student2, Student3, Teacher1, Teacher2, Secretary}
)

// RealNow is the real instant an Env starts at: 2024-03-01 09:00 in Rome.
var RealNow = time.Date(2024, time.March, 1, 9, 0, 0, 0, Rome)

// Rome is the reference timezone of the tests.
var Rome = mustLoadLocation("Europe/Rome")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// Env is a fully wired workflow core on the in-memory store.
type Env struct {
	DB     *inmemdb.DB
	Email  *emailsvc.Mock
	Logger *logsvc.Mock
	Dedup  *dedupsvc.MemoryDeduper

	ProposalRepo     proposal.Repository
	ApplicationRepo  application.Repository
	StartRequestRepo startrequest.Repository
	NotificationRepo notification.Repository

	Users         *user.Service
	Clock         *clock.Service
	Dispatcher    *notification.Dispatcher
	Proposals     *proposal.Service
	Applications  *application.Service
	StartRequests *startrequest.Service
	Notifications *notification.Service
	Sweeper       *sweeper.Service

	realNow time.Time
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	env := &Env{
		DB:      inmemdb.Open(),
		Logger:  logsvc.NewMock(),
		Dedup:   dedupsvc.NewMemoryDeduper(),
		realNow: RealNow,
	}
	env.Email = emailsvc.NewMock(env.Logger)
	env.DB.AddUsers(AllUsers...)

	env.ProposalRepo = inmemdb.NewProposalRepository(env.DB)
	env.ApplicationRepo = inmemdb.NewApplicationRepository(env.DB)
	env.StartRequestRepo = inmemdb.NewStartRequestRepository(env.DB)
	env.NotificationRepo = inmemdb.NewNotificationRepository(env.DB)

	env.Users = user.NewService(inmemdb.NewUserRepository(env.DB))
	env.Clock = clock.NewService(inmemdb.NewClockRepository(env.DB), env.DB, Rome, env.Logger)
	env.Clock.SetNowFunc(func() time.Time { return env.realNow })

	env.Dispatcher = notification.NewDispatcher(env.NotificationRepo, env.Users, env.Dedup, env.Clock, env.Email, env.Logger)
	env.Applications = application.NewService(env.ApplicationRepo, env.ProposalRepo, env.DB, env.Clock, env.Dispatcher)
	env.Proposals = proposal.NewService(env.ProposalRepo, env.Applications, env.DB, env.Clock, env.Dispatcher)
	env.StartRequests = startrequest.NewService(env.StartRequestRepo, env.Users, env.DB, env.Clock, env.Dispatcher)
	env.Notifications = notification.NewService(env.NotificationRepo)
	env.Sweeper = sweeper.NewService(env.ProposalRepo, env.Applications, env.DB, env.Clock, env.Dispatcher, env.Logger)
	env.Clock.SetSweeper(env.Sweeper)

	return env
}

// SetRealNow moves the real time seen by the virtual clock.
func (env *Env) SetRealNow(t time.Time) { env.realNow = t }

// Today returns the current simulated date.
func (env *Env) Today(t *testing.T) time.Time {
	t.Helper()
	today, err := env.Clock.Today(context.Background())
	if err != nil {
		t.Fatalf("Clock.Today(): %v", err)
	}
	return today
}

// DateIn returns the simulated date `days` days from today, formatted for the API.
func (env *Env) DateIn(t *testing.T, days int) string {
	t.Helper()
	return env.Today(t).AddDate(0, 0, days).Format(core.DateLayout)
}

// CreateProposal creates a proposal of teacher expiring in `days` days.
func (env *Env) CreateProposal(t *testing.T, teacher user.User, title string, days int, coSupervisors ...string) proposal.Proposal {
	t.Helper()
	prop, err := env.Proposals.Create(context.Background(), Actor(teacher), proposal.NewProposal{
		Title:          title,
		Description:    title + " description",
		CoSupervisors:  coSupervisors,
		Groups:         []string{"G1"},
		Keywords:       []string{"thesis"},
		Level:          proposal.LevelMaster,
		CdS:            "LM-32",
		ExpirationDate: env.DateIn(t, days),
	})
	if err != nil {
		t.Fatalf("Proposals.Create(): %v", err)
	}
	return prop
}

// Apply submits an application of student to prop.
func (env *Env) Apply(t *testing.T, student user.User, prop proposal.Proposal) application.Application {
	t.Helper()
	app, err := env.Applications.Submit(context.Background(), Actor(student), prop.ID)
	if err != nil {
		t.Fatalf("Applications.Submit(): %v", err)
	}
	return app
}

// NotificationsOf returns every notification addressed to usr.
func (env *Env) NotificationsOf(t *testing.T, usr user.User) []notification.Notification {
	t.Helper()
	notes, err := env.Notifications.ListForUser(context.Background(), Actor(usr), false)
	if err != nil {
		t.Fatalf("Notifications.ListForUser(): %v", err)
	}
	return notes
}

// Reset forgets the emails recorded so far.
func (env *Env) Reset() {
	env.Email.Reset()
}

func Actor(usr user.User) user.Actor {
	return user.Actor{ID: usr.ID, Email: usr.Email, Role: usr.Role}
}
