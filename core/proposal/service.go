package proposal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/event"
	"github.com/thesisman/backend/core/notification"
	"github.com/thesisman/backend/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewError(core.KindNotFound, "proposal not found")
	ErrNotSupervisor     = core.NewError(core.KindForbidden, "only the supervisor can change this proposal")
	ErrTeachersOnly      = core.NewError(core.KindForbidden, "only teachers can manage proposals")
	ErrHasAccepted       = core.NewError(core.KindInvalidState, "the proposal has an accepted application")
	ErrAlreadyArchived   = core.NewError(core.KindInvalidState, "the proposal is already archived")
	ErrExpirationInPast  = core.NewError(core.KindInvalidInput, "the expiration date cannot be in the past")
	errInvalidExpiration = core.NewError(core.KindInvalidInput, "expiration_date must be formatted as YYYY-MM-DD")
)

type (
	Repository interface {
		CreateProposal(ctx context.Context, p Proposal) (Proposal, error)
		GetProposal(ctx context.Context, id string) (Proposal, error)
		// LockProposal is GetProposal holding the row until the unit of work ends.
		LockProposal(ctx context.Context, id string) (Proposal, error)
		QueryProposals(ctx context.Context, filter QueryFilter) ([]Proposal, error)
		UpdateProposal(ctx context.Context, p Proposal) (Proposal, error)
	}

	// Applications is the part of the application workflow the proposal workflow cascades into.
	Applications interface {
		HasAccepted(ctx context.Context, proposalID string) (bool, error)
		// CancelPending cancels the pending applications of the given proposals.
		// It must run inside the caller's unit of work.
		CancelPending(ctx context.Context, proposals ...Proposal) ([]event.Event, error)
	}

	Service struct {
		repo   Repository
		apps   Applications
		tx     core.Transactor
		clock  clock.Source
		events event.Publisher
	}
)

func NewService(repo Repository, apps Applications, tx core.Transactor, clk clock.Source, events event.Publisher) *Service {
	return &Service{repo: repo, apps: apps, tx: tx, clock: clk, events: events}
}

func (svc *Service) Create(ctx context.Context, actor user.Actor, np NewProposal) (Proposal, error) {
	if !actor.IsTeacher() {
		return Proposal{}, ErrTeachersOnly
	}
	np.Clean()
	exp, err := svc.checkExpiration(ctx, np.ExpirationDate)
	if err != nil {
		return Proposal{}, err
	}

	var prop Proposal
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now, err := svc.clock.Now(ctx)
		if err != nil {
			return err
		}
		prop, err = svc.repo.CreateProposal(ctx, Proposal{
			ID:             uuid.New().String(),
			Title:          np.Title,
			Description:    np.Description,
			SupervisorID:   actor.ID,
			CoSupervisors:  np.CoSupervisors,
			Groups:         np.Groups,
			Keywords:       np.Keywords,
			Level:          np.Level,
			CdS:            np.CdS,
			ExpirationDate: exp,
			CreatedAt:      now.UTC(),
		})
		return errors.Wrap(err, "creating proposal")
	})
	if err != nil {
		return Proposal{}, err
	}

	svc.events.Publish(ctx, coSupervisorEvents(prop, nil, prop.CoSupervisors)...)
	return prop, nil
}

// Get returns a proposal that has not been deleted.
func (svc *Service) Get(ctx context.Context, id string) (Proposal, error) {
	prop, err := svc.repo.GetProposal(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if prop.Deleted {
		return Proposal{}, ErrNotFound
	}
	return prop, nil
}

// QueryActive returns the proposals students can currently apply to.
func (svc *Service) QueryActive(ctx context.Context, filter QueryFilter) ([]Proposal, error) {
	today, err := svc.clock.Today(ctx)
	if err != nil {
		return nil, err
	}
	filter.Clean()
	filter.ActiveOn = today
	filter.IncludeDeleted = false
	props, err := svc.repo.QueryProposals(ctx, filter)
	return props, errors.Wrap(err, "querying active proposals")
}

// ListForSupervisor returns every non-deleted proposal of the acting teacher, archived ones included.
func (svc *Service) ListForSupervisor(ctx context.Context, actor user.Actor) ([]Proposal, error) {
	if !actor.IsTeacher() {
		return nil, ErrTeachersOnly
	}
	props, err := svc.repo.QueryProposals(ctx, QueryFilter{SupervisorID: actor.ID})
	return props, errors.Wrap(err, "querying supervisor proposals")
}

func (svc *Service) Update(ctx context.Context, actor user.Actor, id string, up UpdateProposal) (Proposal, error) {
	up.Clean()
	exp, err := svc.checkExpiration(ctx, up.ExpirationDate)
	if err != nil {
		return Proposal{}, err
	}

	var old, prop Proposal
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if old, err = svc.lockOwned(ctx, actor, id); err != nil {
			return err
		}

		prop = old
		prop.Title = up.Title
		prop.Description = up.Description
		prop.CoSupervisors = up.CoSupervisors
		prop.Groups = up.Groups
		prop.Keywords = up.Keywords
		prop.Level = up.Level
		prop.CdS = up.CdS
		prop.ExpirationDate = exp

		prop, err = svc.repo.UpdateProposal(ctx, prop)
		return errors.Wrap(err, "updating proposal")
	})
	if err != nil {
		return Proposal{}, err
	}

	svc.events.Publish(ctx, coSupervisorEvents(prop, old.CoSupervisors, prop.CoSupervisors)...)
	return prop, nil
}

// Delete soft deletes the proposal and cancels its pending applications.
func (svc *Service) Delete(ctx context.Context, actor user.Actor, id string) error {
	var evts []event.Event
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		prop, err := svc.lockOwned(ctx, actor, id)
		if err != nil {
			return err
		}
		prop.Deleted = true
		if _, err = svc.repo.UpdateProposal(ctx, prop); err != nil {
			return errors.Wrap(err, "deleting proposal")
		}
		evts, err = svc.apps.CancelPending(ctx, prop)
		return err
	})
	if err != nil {
		return err
	}

	svc.events.Publish(ctx, evts...)
	return nil
}

// Archive manually archives the proposal and cancels its pending applications.
func (svc *Service) Archive(ctx context.Context, actor user.Actor, id string) (Proposal, error) {
	var prop Proposal
	var evts []event.Event
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if prop, err = svc.lockOwned(ctx, actor, id); err != nil {
			return err
		}
		if prop.ManuallyArchived {
			return ErrAlreadyArchived
		}
		prop.ManuallyArchived = true
		if prop, err = svc.repo.UpdateProposal(ctx, prop); err != nil {
			return errors.Wrap(err, "archiving proposal")
		}
		evts, err = svc.apps.CancelPending(ctx, prop)
		return err
	})
	if err != nil {
		return Proposal{}, err
	}

	svc.events.Publish(ctx, evts...)
	return prop, nil
}

// lockOwned locks a live proposal of the acting teacher that has no accepted application.
func (svc *Service) lockOwned(ctx context.Context, actor user.Actor, id string) (Proposal, error) {
	if !actor.IsTeacher() {
		return Proposal{}, ErrTeachersOnly
	}
	prop, err := svc.repo.LockProposal(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if prop.Deleted {
		return Proposal{}, ErrNotFound
	}
	if prop.SupervisorID != actor.ID {
		return Proposal{}, ErrNotSupervisor
	}
	accepted, err := svc.apps.HasAccepted(ctx, prop.ID)
	if err != nil {
		return Proposal{}, errors.Wrap(err, "checking accepted applications")
	}
	if accepted {
		return Proposal{}, ErrHasAccepted
	}
	return prop, nil
}

func (svc *Service) checkExpiration(ctx context.Context, raw string) (time.Time, error) {
	exp, err := time.Parse(core.DateLayout, raw)
	if err != nil {
		return time.Time{}, errInvalidExpiration
	}
	today, err := svc.clock.Today(ctx)
	if err != nil {
		return time.Time{}, err
	}
	exp = clock.Date(exp)
	if exp.Before(today) {
		return time.Time{}, ErrExpirationInPast
	}
	return exp, nil
}

func coSupervisorEvents(prop Proposal, old, new []string) []event.Event {
	added, removed := notification.DiffCoSupervisors(old, new)
	payload := event.Payload{ProposalID: prop.ID, ProposalTitle: prop.Title}

	evts := make([]event.Event, 0, len(added)+len(removed))
	for _, email := range added {
		evts = append(evts, event.New(event.AddedCoSupervisor, payload, event.ToEmail(email)))
	}
	for _, email := range removed {
		evts = append(evts, event.New(event.RemovedCoSupervisor, payload, event.ToEmail(email)))
	}
	return evts
}
