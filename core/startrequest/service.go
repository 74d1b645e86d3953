package startrequest

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/event"
	"github.com/thesisman/backend/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewError(core.KindNotFound, "start request not found")
	ErrSupervisorNotFound = core.NewError(core.KindInvalidInput, "supervisor_id is not a teacher")
	ErrStudentsOnly       = core.NewError(core.KindForbidden, "only students can submit start requests")
	ErrNotSupervisor      = core.NewError(core.KindForbidden, "only the supervisor can evaluate this start request")
	ErrNotOwner           = core.NewError(core.KindForbidden, "only the requesting student can change this start request")
	ErrForbidden          = core.NewError(core.KindForbidden, "you cannot access this start request")
	ErrMissingMessage     = core.NewError(core.KindInvalidInput, "a message is required when requesting changes")
	ErrOutstanding        = core.NewError(core.KindConflict, "you already have an outstanding start request")
)

type (
	Repository interface {
		CreateStartRequest(ctx context.Context, sr StartRequest) (StartRequest, error)
		GetStartRequest(ctx context.Context, id string) (StartRequest, error)
		// LockStartRequest is GetStartRequest holding the row until the unit of work ends.
		LockStartRequest(ctx context.Context, id string) (StartRequest, error)
		QueryStartRequests(ctx context.Context, filter QueryFilter) ([]StartRequest, error)
		UpdateStartRequest(ctx context.Context, sr StartRequest) (StartRequest, error)
	}

	Users interface {
		Teacher(ctx context.Context, id string) (user.User, error)
		Query(ctx context.Context, filter user.QueryFilter) ([]user.User, error)
	}

	Service struct {
		repo   Repository
		users  Users
		tx     core.Transactor
		clock  clock.Source
		events event.Publisher
	}
)

func NewService(repo Repository, users Users, tx core.Transactor, clk clock.Source, events event.Publisher) *Service {
	return &Service{repo: repo, users: users, tx: tx, clock: clk, events: events}
}

func (svc *Service) Create(ctx context.Context, actor user.Actor, nsr NewStartRequest) (StartRequest, error) {
	if !actor.IsStudent() {
		return StartRequest{}, ErrStudentsOnly
	}
	nsr.Clean()
	if _, err := svc.users.Teacher(ctx, nsr.SupervisorID); err != nil {
		if core.IsKind(err, core.KindNotFound) {
			return StartRequest{}, ErrSupervisorNotFound
		}
		return StartRequest{}, errors.Wrap(err, "getting supervisor")
	}

	var sr StartRequest
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := svc.repo.QueryStartRequests(ctx, QueryFilter{StudentID: actor.ID, Statuses: Outstanding})
		if err != nil {
			return errors.Wrap(err, "querying student start requests")
		}
		if len(existing) > 0 {
			return ErrOutstanding
		}
		now, err := svc.clock.Now(ctx)
		if err != nil {
			return err
		}
		sr, err = svc.repo.CreateStartRequest(ctx, StartRequest{
			ID:            uuid.New().String(),
			StudentID:     actor.ID,
			SupervisorID:  nsr.SupervisorID,
			CoSupervisors: nsr.CoSupervisors,
			Title:         nsr.Title,
			Description:   nsr.Description,
			Status:        StatusRequested,
			CreatedAt:     now.UTC(),
		})
		return errors.Wrap(err, "creating start request")
	})
	if err != nil {
		return StartRequest{}, err
	}

	secretaries, err := svc.users.Query(ctx, user.QueryFilter{Role: user.RoleSecretary})
	if err != nil {
		// the request is committed; only the notification is lost
		secretaries = nil
	}
	rcpts := make([]event.Recipient, 0, len(secretaries))
	for _, s := range secretaries {
		rcpts = append(rcpts, event.ToUser(s.ID))
	}
	svc.events.Publish(ctx, event.New(event.StartRequestCreated, payload(sr), rcpts...))
	return sr, nil
}

// Evaluate applies a secretary or supervisor decision.
func (svc *Service) Evaluate(ctx context.Context, actor user.Actor, id string, eval Evaluation) (StartRequest, error) {
	if !eval.Decision.IsEvaluation() {
		return StartRequest{}, ErrInvalidDecision
	}
	if !actor.Is(user.RoleSecretary, user.RoleTeacher) {
		return StartRequest{}, ErrRoleCannotEvaluate
	}
	message := core.CleanString(eval.Message)

	var sr StartRequest
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if sr, err = svc.repo.LockStartRequest(ctx, id); err != nil {
			return err
		}
		if actor.IsTeacher() && sr.SupervisorID != actor.ID {
			return ErrNotSupervisor
		}
		next, err := Next(sr.Status, actor.Role, eval.Decision)
		if err != nil {
			return err
		}
		if eval.Decision == DecisionRequestChanges && message == "" {
			return ErrMissingMessage
		}

		sr.Status = next
		switch next {
		case StatusChangesRequested:
			sr.ChangesRequested = null.StringFrom(message)
		case StatusStarted:
			today, err := svc.clock.Today(ctx)
			if err != nil {
				return err
			}
			sr.ApprovalDate = null.TimeFrom(today)
		}
		sr, err = svc.repo.UpdateStartRequest(ctx, sr)
		return errors.Wrap(err, "updating start request")
	})
	if err != nil {
		return StartRequest{}, err
	}

	pl := payload(sr)
	pl.Decision = string(eval.Decision)
	pl.Message = message
	rcpts := append([]event.Recipient{event.ToUser(sr.StudentID)}, event.ToEmails(sr.CoSupervisors)...)
	typ := event.StartRequestDecided
	switch sr.Status {
	case StatusChangesRequested:
		typ = event.StartRequestChangesRequested
	case StatusSecretaryAccepted:
		// the supervisor can now review it
		rcpts = append(rcpts, event.ToUser(sr.SupervisorID))
	}
	svc.events.Publish(ctx, event.New(typ, pl, rcpts...))
	return sr, nil
}

// Resubmit answers a change request, sending the request back to the supervisor.
func (svc *Service) Resubmit(ctx context.Context, actor user.Actor, id string, usr UpdateStartRequest) (StartRequest, error) {
	if !actor.IsStudent() {
		return StartRequest{}, ErrStudentsOnly
	}
	usr.Clean()

	var sr StartRequest
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if sr, err = svc.repo.LockStartRequest(ctx, id); err != nil {
			return err
		}
		if sr.StudentID != actor.ID {
			return ErrNotOwner
		}
		next, err := Next(sr.Status, actor.Role, DecisionResubmit)
		if err != nil {
			return err
		}
		sr.Status = next
		sr.Title = usr.Title
		sr.Description = usr.Description
		sr.CoSupervisors = usr.CoSupervisors
		sr.ChangesRequested = null.String{}
		sr, err = svc.repo.UpdateStartRequest(ctx, sr)
		return errors.Wrap(err, "updating start request")
	})
	if err != nil {
		return StartRequest{}, err
	}

	svc.events.Publish(ctx, event.New(event.StartRequestChanged, payload(sr), event.ToUser(sr.SupervisorID)))
	return sr, nil
}

// Get returns a start request visible to the actor.
func (svc *Service) Get(ctx context.Context, actor user.Actor, id string) (StartRequest, error) {
	sr, err := svc.repo.GetStartRequest(ctx, id)
	if err != nil {
		return StartRequest{}, err
	}
	switch {
	case actor.IsSecretary():
		return sr, nil
	case actor.IsStudent() && sr.StudentID == actor.ID:
		return sr, nil
	case actor.IsTeacher() && visibleToTeachers(sr.Status) && isTeacherOf(actor, sr):
		return sr, nil
	}
	return StartRequest{}, ErrForbidden
}

func (svc *Service) ListForStudent(ctx context.Context, actor user.Actor) ([]StartRequest, error) {
	if !actor.IsStudent() {
		return nil, ErrStudentsOnly
	}
	srs, err := svc.repo.QueryStartRequests(ctx, QueryFilter{StudentID: actor.ID})
	return srs, errors.Wrap(err, "querying start requests")
}

func (svc *Service) ListForSecretary(ctx context.Context, actor user.Actor) ([]StartRequest, error) {
	if !actor.IsSecretary() {
		return nil, ErrForbidden
	}
	srs, err := svc.repo.QueryStartRequests(ctx, QueryFilter{})
	return srs, errors.Wrap(err, "querying start requests")
}

// ListForTeacher returns the requests the teacher supervises or co-supervises,
// once the secretary has let them through.
func (svc *Service) ListForTeacher(ctx context.Context, actor user.Actor) ([]StartRequest, error) {
	if !actor.IsTeacher() {
		return nil, ErrForbidden
	}
	var statuses []Status
	for _, st := range AllStatuses {
		if visibleToTeachers(st) {
			statuses = append(statuses, st)
		}
	}
	srs, err := svc.repo.QueryStartRequests(ctx, QueryFilter{
		TeacherID:    actor.ID,
		TeacherEmail: core.CleanString(actor.Email, true /* lower */),
		Statuses:     statuses,
	})
	return srs, errors.Wrap(err, "querying start requests")
}

func isTeacherOf(actor user.Actor, sr StartRequest) bool {
	if sr.SupervisorID == actor.ID {
		return true
	}
	email := core.CleanString(actor.Email, true /* lower */)
	for _, co := range sr.CoSupervisors {
		if co == email {
			return true
		}
	}
	return false
}

func visibleToTeachers(st Status) bool {
	return st != StatusRequested && st != StatusSecretaryRejected
}

func payload(sr StartRequest) event.Payload {
	return event.Payload{
		StartRequestID:    sr.ID,
		StartRequestTitle: sr.Title,
		StudentID:         sr.StudentID,
	}
}
