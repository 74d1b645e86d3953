package clock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/event"
)

// MaxDeltaDays bounds the virtual clock offset, in either direction.
const MaxDeltaDays = 36500

var (
	// errors
	ErrInvalidDelta  = core.NewError(core.KindInvalidInput, "delta must be a whole number of days or a YYYY-MM-DD date")
	ErrClockBackward = core.NewError(core.KindInvalidInput, "the virtual clock cannot move backward")

	ErrNoSweeper = errors.New("clock: no expiration sweeper wired")
)

type (
	Repository interface {
		// GetState returns the zero State when none was saved yet.
		GetState(ctx context.Context) (State, error)
		// LockState is GetState holding the singleton until the unit of work ends.
		LockState(ctx context.Context) (State, error)
		SaveState(ctx context.Context, state State) error
	}

	// Sweeper does the expiration work of the simulated days in [from, to].
	Sweeper interface {
		// Sweep runs inside the caller's unit of work.
		Sweep(ctx context.Context, from, to time.Time) ([]event.Event, error)
		// Publish delivers the events of a committed Sweep.
		Publish(ctx context.Context, evts ...event.Event)
	}

	Service struct {
		repo    Repository
		tx      core.Transactor
		loc     *time.Location
		sweeper Sweeper
		logger  core.Logger
		nowFunc func() time.Time // mockable
	}
)

var _ Source = (*Service)(nil)

func NewService(repo Repository, tx core.Transactor, loc *time.Location, logger core.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:    repo,
		tx:      tx,
		loc:     loc,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// SetSweeper wires the sweeper run by SetDelta, which fails until one is set.
// The sweeper itself reads the clock, hence the setter.
func (svc *Service) SetSweeper(s Sweeper) { svc.sweeper = s }

// SetNowFunc replaces the real-time source.
func (svc *Service) SetNowFunc(f func() time.Time) { svc.nowFunc = f }

func (svc *Service) Location() *time.Location { return svc.loc }

func (svc *Service) Current(ctx context.Context) (State, error) {
	state, err := svc.repo.GetState(ctx)
	return state, errors.Wrap(err, "getting clock state")
}

func (svc *Service) Now(ctx context.Context) (time.Time, error) {
	state, err := svc.Current(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return state.Now(svc.nowFunc()), nil
}

func (svc *Service) Today(ctx context.Context) (time.Time, error) {
	state, err := svc.Current(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return state.Today(svc.nowFunc(), svc.loc), nil
}

// ParseDelta accepts either a whole number of days or a target YYYY-MM-DD date,
// which is converted to a delta against realToday.
func ParseDelta(raw string, realToday time.Time) (int, error) {
	raw = core.CleanString(raw)
	if raw == "" {
		return 0, ErrInvalidDelta
	}

	days, err := strconv.Atoi(raw)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, ErrInvalidDelta
		}
		target, err := time.Parse(core.DateLayout, raw)
		if err != nil {
			return 0, ErrInvalidDelta
		}
		days = int(Date(target).Sub(realToday).Hours() / 24)
	}
	if days > MaxDeltaDays || days < -MaxDeltaDays {
		return 0, ErrInvalidDelta
	}
	return days, nil
}

// SetDelta moves the virtual clock forward (or keeps it).
// The expiration sweep of the crossed days is part of the same unit of work:
// if it fails the clock does not move.
func (svc *Service) SetDelta(ctx context.Context, raw string) (State, error) {
	if svc.sweeper == nil {
		return State{}, ErrNoSweeper
	}
	real := svc.nowFunc()
	delta, err := ParseDelta(raw, DateOf(real, svc.loc))
	if err != nil {
		return State{}, err
	}

	var (
		oldState, newState State
		evts               []event.Event
	)
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if oldState, err = svc.repo.LockState(ctx); err != nil {
			return errors.Wrap(err, "locking clock state")
		}
		newState = State{DeltaDays: delta}
		from, to := oldState.Today(real, svc.loc), newState.Today(real, svc.loc)
		if to.Before(from) {
			return ErrClockBackward
		}
		if err = svc.repo.SaveState(ctx, newState); err != nil {
			return errors.Wrap(err, "saving clock state")
		}
		evts, err = svc.sweeper.Sweep(ctx, from, to)
		return errors.Wrap(err, "sweeping expired proposals")
	})
	if err != nil {
		return State{}, err
	}

	if svc.logger != nil {
		svc.logger.Info(fmt.Sprintf("virtual clock moved: delta %d -> %d days", oldState.DeltaDays, newState.DeltaDays))
	}
	svc.sweeper.Publish(ctx, evts...)
	return newState, nil
}
