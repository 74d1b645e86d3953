package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/event"
	"github.com/thesisman/backend/core/proposal"
	"github.com/thesisman/backend/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewError(core.KindNotFound, "application not found")
	ErrStudentsOnly      = core.NewError(core.KindForbidden, "only students can apply to proposals")
	ErrTeachersOnly      = core.NewError(core.KindForbidden, "only teachers can evaluate applications")
	ErrNotSupervisor     = core.NewError(core.KindForbidden, "only the proposal supervisor can evaluate its applications")
	ErrForbidden         = core.NewError(core.KindForbidden, "you cannot access this application")
	ErrInvalidDecision   = core.NewError(core.KindInvalidInput, "decision must be one of accepted, rejected")
	ErrNotPending        = core.NewError(core.KindInvalidState, "the application has already been evaluated")
	ErrAlreadyApplied    = core.NewError(core.KindConflict, "you already have a pending or accepted application")
	ErrPreviouslyRefused = core.NewError(core.KindConflict, "your application to this proposal was already rejected")
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, app Application) (Application, error)
		GetApplication(ctx context.Context, id string) (Application, error)
		QueryApplications(ctx context.Context, filter QueryFilter) ([]Application, error)
		UpdateApplicationState(ctx context.Context, id string, state State) (Application, error)
		// UpdateStates moves every application matching filter to state in a single pass
		// and returns the updated applications.
		UpdateStates(ctx context.Context, filter QueryFilter, state State) ([]Application, error)
	}

	Service struct {
		repo      Repository
		proposals proposal.Repository
		tx        core.Transactor
		clock     clock.Source
		events    event.Publisher
	}
)

var _ proposal.Applications = (*Service)(nil)

func NewService(repo Repository, proposals proposal.Repository, tx core.Transactor, clk clock.Source, events event.Publisher) *Service {
	return &Service{repo: repo, proposals: proposals, tx: tx, clock: clk, events: events}
}

// Submit creates a pending application of the acting student to an active proposal.
func (svc *Service) Submit(ctx context.Context, actor user.Actor, proposalID string) (Application, error) {
	if !actor.IsStudent() {
		return Application{}, ErrStudentsOnly
	}

	var (
		app  Application
		prop proposal.Proposal
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if prop, err = svc.proposals.LockProposal(ctx, core.CleanString(proposalID)); err != nil {
			return err
		}
		today, err := svc.clock.Today(ctx)
		if err != nil {
			return err
		}
		accepted, err := svc.HasAccepted(ctx, prop.ID)
		if err != nil {
			return err
		}
		if !prop.IsActive(today, accepted) {
			return proposal.ErrNotFound
		}

		live, err := svc.repo.QueryApplications(ctx, QueryFilter{
			StudentID: actor.ID,
			States:    []State{StatePending, StateAccepted},
		})
		if err != nil {
			return errors.Wrap(err, "querying student applications")
		}
		if len(live) > 0 {
			return ErrAlreadyApplied
		}
		rejected, err := svc.repo.QueryApplications(ctx, QueryFilter{
			ProposalIDs: []string{prop.ID},
			StudentID:   actor.ID,
			States:      []State{StateRejected},
		})
		if err != nil {
			return errors.Wrap(err, "querying rejected applications")
		}
		if len(rejected) > 0 {
			return ErrPreviouslyRefused
		}

		now, err := svc.clock.Now(ctx)
		if err != nil {
			return err
		}
		app, err = svc.repo.CreateApplication(ctx, Application{
			ID:         uuid.New().String(),
			ProposalID: prop.ID,
			StudentID:  actor.ID,
			State:      StatePending,
			CreatedAt:  now.UTC(),
		})
		return errors.Wrap(err, "creating application")
	})
	if err != nil {
		return Application{}, err
	}

	svc.events.Publish(ctx, event.New(event.NewApplication, payload(prop, app), event.ToUser(prop.SupervisorID)))
	return app, nil
}

// Decide accepts or rejects a pending application. Accepting it archives the
// proposal and cancels every other pending application of the proposal, then
// the remaining pending applications of the same student.
func (svc *Service) Decide(ctx context.Context, actor user.Actor, id string, decision Decision) (Application, error) {
	target, ok := decision.State()
	if !ok {
		return Application{}, ErrInvalidDecision
	}
	if !actor.IsTeacher() {
		return Application{}, ErrTeachersOnly
	}
	app, err := svc.repo.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}

	var (
		prop     proposal.Proposal
		canceled []Application
	)
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		// Locking the proposal serializes decisions on sibling applications.
		if prop, err = svc.proposals.LockProposal(ctx, app.ProposalID); err != nil {
			return err
		}
		if prop.SupervisorID != actor.ID {
			return ErrNotSupervisor
		}
		if app, err = svc.repo.GetApplication(ctx, id); err != nil {
			return err
		}
		if !app.State.CanBecome(target) {
			return ErrNotPending
		}
		if app, err = svc.repo.UpdateApplicationState(ctx, app.ID, target); err != nil {
			return errors.Wrap(err, "updating application")
		}
		if target != StateAccepted {
			return nil
		}

		prop.ManuallyArchived = true
		if prop, err = svc.proposals.UpdateProposal(ctx, prop); err != nil {
			return errors.Wrap(err, "archiving proposal")
		}
		siblings, err := svc.repo.UpdateStates(ctx, QueryFilter{
			ProposalIDs: []string{prop.ID},
			States:      []State{StatePending},
		}, StateCanceled)
		if err != nil {
			return errors.Wrap(err, "canceling sibling applications")
		}
		others, err := svc.repo.UpdateStates(ctx, QueryFilter{
			StudentID: app.StudentID,
			States:    []State{StatePending},
		}, StateCanceled)
		if err != nil {
			return errors.Wrap(err, "canceling student applications")
		}
		canceled = append(siblings, others...)
		return nil
	})
	if err != nil {
		return Application{}, err
	}

	pl := payload(prop, app)
	pl.Decision = string(decision)
	rcpts := append([]event.Recipient{event.ToUser(app.StudentID)}, event.ToEmails(prop.CoSupervisors)...)
	evts := []event.Event{event.New(event.ApplicationDecided, pl, rcpts...)}

	cancelEvts, err := svc.canceledEvents(ctx, canceled, map[string]proposal.Proposal{prop.ID: prop})
	if err != nil {
		return Application{}, err
	}
	svc.events.Publish(ctx, append(evts, cancelEvts...)...)
	return app, nil
}

// CancelPending cancels every pending application of the given proposals.
// It joins the caller's unit of work; the returned events are the caller's to publish.
func (svc *Service) CancelPending(ctx context.Context, props ...proposal.Proposal) ([]event.Event, error) {
	if len(props) == 0 {
		return nil, nil
	}
	byID := make(map[string]proposal.Proposal, len(props))
	ids := make([]string, 0, len(props))
	for _, p := range props {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	var evts []event.Event
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		canceled, err := svc.repo.UpdateStates(ctx, QueryFilter{ProposalIDs: ids, States: []State{StatePending}}, StateCanceled)
		if err != nil {
			return errors.Wrap(err, "canceling pending applications")
		}
		evts, err = svc.canceledEvents(ctx, canceled, byID)
		return err
	})
	return evts, err
}

func (svc *Service) HasAccepted(ctx context.Context, proposalID string) (bool, error) {
	apps, err := svc.repo.QueryApplications(ctx, QueryFilter{
		ProposalIDs: []string{proposalID},
		States:      []State{StateAccepted},
	})
	if err != nil {
		return false, errors.Wrap(err, "querying accepted applications")
	}
	return len(apps) > 0, nil
}

// Get returns an application visible to the actor: its student or the proposal supervisor.
func (svc *Service) Get(ctx context.Context, actor user.Actor, id string) (Application, error) {
	app, err := svc.repo.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if actor.IsStudent() && app.StudentID == actor.ID {
		return app, nil
	}
	if actor.IsTeacher() {
		prop, err := svc.proposals.GetProposal(ctx, app.ProposalID)
		if err != nil {
			return Application{}, err
		}
		if prop.SupervisorID == actor.ID {
			return app, nil
		}
	}
	return Application{}, ErrForbidden
}

func (svc *Service) ListForStudent(ctx context.Context, actor user.Actor) ([]Application, error) {
	if !actor.IsStudent() {
		return nil, ErrStudentsOnly
	}
	apps, err := svc.repo.QueryApplications(ctx, QueryFilter{StudentID: actor.ID})
	return apps, errors.Wrap(err, "querying student applications")
}

func (svc *Service) ListForProposal(ctx context.Context, actor user.Actor, proposalID string) ([]Application, error) {
	if !actor.IsTeacher() {
		return nil, ErrTeachersOnly
	}
	prop, err := svc.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if prop.SupervisorID != actor.ID {
		return nil, ErrNotSupervisor
	}
	apps, err := svc.repo.QueryApplications(ctx, QueryFilter{ProposalIDs: []string{prop.ID}})
	return apps, errors.Wrap(err, "querying proposal applications")
}

// canceledEvents builds one ApplicationCanceled event per canceled application.
// known holds the proposals already loaded.
func (svc *Service) canceledEvents(ctx context.Context, canceled []Application, known map[string]proposal.Proposal) ([]event.Event, error) {
	evts := make([]event.Event, 0, len(canceled))
	for _, app := range canceled {
		prop, ok := known[app.ProposalID]
		if !ok {
			var err error
			if prop, err = svc.proposals.GetProposal(ctx, app.ProposalID); err != nil {
				return nil, errors.Wrap(err, "getting canceled application proposal")
			}
			known[prop.ID] = prop
		}
		evts = append(evts, event.New(event.ApplicationCanceled, payload(prop, app), event.ToUser(app.StudentID)))
	}
	return evts, nil
}

func payload(prop proposal.Proposal, app Application) event.Payload {
	return event.Payload{
		ProposalID:    prop.ID,
		ProposalTitle: prop.Title,
		ApplicationID: app.ID,
		StudentID:     app.StudentID,
	}
}
