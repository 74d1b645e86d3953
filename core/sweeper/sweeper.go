// Package sweeper runs the daily expiration work: warning supervisors of
// proposals about to expire and archiving the expired ones.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/event"
	"github.com/thesisman/backend/core/proposal"
)

// ExpiringNotice is how many days before expiration supervisors are warned.
const ExpiringNotice = 7

type (
	// Canceler cancels the pending applications of proposals inside the caller's unit of work.
	Canceler interface {
		CancelPending(ctx context.Context, props ...proposal.Proposal) ([]event.Event, error)
	}

	Service struct {
		proposals proposal.Repository
		apps      Canceler
		tx        core.Transactor
		clock     clock.Source
		events    event.Publisher
		logger    core.Logger
	}
)

var _ clock.Sweeper = (*Service)(nil)

func NewService(proposals proposal.Repository, apps Canceler, tx core.Transactor, clk clock.Source, events event.Publisher, logger core.Logger) *Service {
	return &Service{
		proposals: proposals,
		apps:      apps,
		tx:        tx,
		clock:     clk,
		events:    events,
		logger:    logger,
	}
}

// RunDailyPass sweeps the current simulated day.
func (svc *Service) RunDailyPass(ctx context.Context) error {
	today, err := svc.clock.Today(ctx)
	if err != nil {
		return errors.Wrap(err, "reading clock")
	}
	return svc.CatchUp(ctx, today, today)
}

// ForceRun runs the daily pass on demand.
func (svc *Service) ForceRun(ctx context.Context) error {
	svc.logger.Info("sweeper: forced run")
	return svc.RunDailyPass(ctx)
}

// CatchUp sweeps every simulated day in [from, to] as one unit of work and
// publishes the resulting events once it commits.
func (svc *Service) CatchUp(ctx context.Context, from, to time.Time) error {
	var evts []event.Event
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		evts, err = svc.Sweep(ctx, from, to)
		return err
	})
	if err != nil {
		return err
	}
	svc.Publish(ctx, evts...)
	return nil
}

// Sweep does the expiration work of every simulated day in [from, to] inside
// the caller's unit of work. The returned events must only be published once
// that unit of work has committed.
func (svc *Service) Sweep(ctx context.Context, from, to time.Time) ([]event.Event, error) {
	from, to = clock.Date(from), clock.Date(to)
	if to.Before(from) {
		from, to = to, from
	}

	evts, err := svc.expiringEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}
	archived, cancelEvts, err := svc.archiveExpired(ctx, to)
	if err != nil {
		return nil, err
	}
	if archived > 0 {
		svc.logger.Info(fmt.Sprintf("sweeper: archived %d expired proposal(s) as of %s", archived, to.Format(core.DateLayout)))
	}
	return append(evts, cancelEvts...), nil
}

// Publish hands events returned by Sweep to the dispatcher.
func (svc *Service) Publish(ctx context.Context, evts ...event.Event) {
	if len(evts) > 0 {
		svc.events.Publish(ctx, evts...)
	}
}

// expiringEvents warns the supervisors of the live proposals expiring
// ExpiringNotice days after any day in [from, to].
func (svc *Service) expiringEvents(ctx context.Context, from, to time.Time) ([]event.Event, error) {
	props, err := svc.proposals.QueryProposals(ctx, proposal.QueryFilter{
		ExpiringFrom:    from.AddDate(0, 0, ExpiringNotice),
		ExpiringTo:      to.AddDate(0, 0, ExpiringNotice),
		ExcludeArchived: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying expiring proposals")
	}

	evts := make([]event.Event, 0, len(props))
	for _, p := range props {
		exp := p.ExpirationDate.Format(core.DateLayout)
		evts = append(evts, event.NewKeyed(p.ID+":"+exp, event.ProposalExpiringSoon, event.Payload{
			ProposalID:     p.ID,
			ProposalTitle:  p.Title,
			ExpirationDate: p.ExpirationDate,
		}, event.ToUser(p.SupervisorID)))
	}
	return evts, nil
}

// archiveExpired archives the proposals expiring on or before day and
// cancels their pending applications.
func (svc *Service) archiveExpired(ctx context.Context, day time.Time) (int, []event.Event, error) {
	expired, err := svc.proposals.QueryProposals(ctx, proposal.QueryFilter{
		ExpiringTo:      day,
		ExcludeArchived: true,
	})
	if err != nil {
		return 0, nil, errors.Wrap(err, "querying expired proposals")
	}

	var archived []proposal.Proposal
	for _, p := range expired {
		if p, err = svc.proposals.LockProposal(ctx, p.ID); err != nil {
			return 0, nil, errors.Wrap(err, "locking expired proposal")
		}
		if p.ManuallyArchived || p.Deleted {
			continue
		}
		p.ManuallyArchived = true
		if p, err = svc.proposals.UpdateProposal(ctx, p); err != nil {
			return 0, nil, errors.Wrap(err, "archiving expired proposal")
		}
		archived = append(archived, p)
	}
	evts, err := svc.apps.CancelPending(ctx, archived...)
	if err != nil {
		return 0, nil, err
	}
	return len(archived), evts, nil
}
