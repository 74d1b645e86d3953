package notification

import (
	"context"

	"github.com/pkg/errors"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/user"
)

var (
	// errors
	ErrNotFound = core.NewError(core.KindNotFound, "notification not found")
)

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notes ...Notification) error
		GetNotification(ctx context.Context, id string) (Notification, error)
		QueryNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
		MarkRead(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListForUser returns the notifications of the acting student or teacher, newest first.
func (svc *Service) ListForUser(ctx context.Context, actor user.Actor, unreadOnly bool) ([]Notification, error) {
	filter := QueryFilter{UnreadOnly: unreadOnly}
	switch actor.Role {
	case user.RoleStudent:
		filter.StudentID = actor.ID
	case user.RoleTeacher:
		filter.TeacherID = actor.ID
	default:
		return []Notification{}, nil
	}
	notes, err := svc.repo.QueryNotifications(ctx, filter)
	return notes, errors.Wrap(err, "querying notifications")
}

// MarkRead flags one of the actor's notifications as read.
// Notifications of other users are reported as not found.
func (svc *Service) MarkRead(ctx context.Context, actor user.Actor, id string) error {
	note, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if !note.OwnedBy(actor.ID) {
		return ErrNotFound
	}
	if note.Read {
		return nil
	}
	return errors.Wrap(svc.repo.MarkRead(ctx, id), "marking notification read")
}
