package notification

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/google/uuid"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/event"
	"github.com/thesisman/backend/core/user"
)

var subjects = map[event.Type]string{
	event.NewApplication:               "New application",
	event.ApplicationDecided:           "Your application has been evaluated",
	event.ApplicationCanceled:          "Your application has been canceled",
	event.StartRequestCreated:          "New thesis start request",
	event.StartRequestDecided:          "Your thesis start request has been evaluated",
	event.StartRequestChangesRequested: "Changes requested on your thesis start request",
	event.StartRequestChanged:          "A thesis start request has been updated",
	event.ProposalExpiringSoon:         "Your thesis proposal is expiring",
	event.AddedCoSupervisor:            "You were added as co-supervisor",
	event.RemovedCoSupervisor:          "You were removed as co-supervisor",
}

type (
	// Users resolves event recipients.
	Users interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		GetByEmail(ctx context.Context, email string) (user.User, error)
	}

	// Deduper records which events were already dispatched.
	Deduper interface {
		// Claim returns true the first time it is called with key.
		Claim(ctx context.Context, key string) (bool, error)
	}

	// TemplateData is what the message templates receive as .Data.
	TemplateData struct {
		RecipientName string
		Event         event.Type
		Payload       event.Payload
	}

	Dispatcher struct {
		repo    Repository
		users   Users
		dedup   Deduper
		clock   clock.Source
		email   core.EmailService
		logger  core.Logger
		newUUID func() string // mockable
	}
)

var _ event.Publisher = (*Dispatcher)(nil)

func NewDispatcher(repo Repository, users Users, dedup Deduper, clk clock.Source, email core.EmailService, logger core.Logger) *Dispatcher {
	return &Dispatcher{
		repo:    repo,
		users:   users,
		dedup:   dedup,
		clock:   clk,
		email:   email,
		logger:  logger,
		newUUID: func() string { return uuid.New().String() },
	}
}

// Publish dispatches events in order. It never fails: problems are logged.
func (d *Dispatcher) Publish(ctx context.Context, events ...event.Event) {
	for _, evt := range events {
		d.Dispatch(ctx, evt)
	}
}

// Dispatch delivers evt to each of its recipients, once per event ID:
// known students and teachers get an in-app notification, everyone gets an email.
func (d *Dispatcher) Dispatch(ctx context.Context, evt event.Event) {
	if len(evt.Recipients) == 0 {
		return
	}
	if d.dedup != nil {
		claimed, err := d.dedup.Claim(ctx, evt.ID)
		if err != nil {
			d.logger.Error(fmt.Sprintf("notification.Dispatch: claiming event %s: %v", evt.ID, err), err)
		} else if !claimed {
			d.logger.Debug(fmt.Sprintf("notification.Dispatch: event %s already dispatched", evt.ID))
			return
		}
	}

	// without the simulated date the in-app notifications cannot be dated; emails still go out
	now, err := d.clock.Now(ctx)
	if err != nil {
		d.logger.Error(fmt.Sprintf("notification.Dispatch: reading clock, skipping in-app notifications of %s: %v", evt.ID, err), err)
	}
	inApp := err == nil

	var (
		notes    []Notification
		messages []*core.EmailMessage
	)
	for _, rcpt := range d.uniqueRecipients(ctx, evt.Recipients) {
		msg := &core.EmailMessage{
			To:           []mail.Address{rcpt.address},
			Subject:      subjectOf(evt.Type),
			TemplateName: string(evt.Type),
			TemplateData: TemplateData{RecipientName: rcpt.address.Name, Event: evt.Type, Payload: evt.Payload},
		}
		if err := msg.Render(); err != nil {
			d.logger.Error(fmt.Sprintf("notification.Dispatch: rendering %s, sending plain text: %v", evt.Type, err), err)
			msg.TemplateName = ""
			msg.HTMLContent = ""
			msg.BodyStr = plainBody(evt)
			_ = msg.Render()
		}

		if note, ok := rcpt.notification(); ok && inApp {
			note.ID = d.newUUID()
			note.Object = msg.Subject
			note.Content = msg.TextContent
			note.Date = now.UTC()
			notes = append(notes, note)
		}
		messages = append(messages, msg)
	}

	if len(notes) > 0 {
		if err := d.repo.CreateNotifications(ctx, notes...); err != nil {
			d.logger.Error(fmt.Sprintf("notification.Dispatch: saving notifications: %v", err), err)
		}
	}
	if len(messages) > 0 {
		d.email.SendMessages(messages...)
	}
}

func subjectOf(t event.Type) string {
	if subject, ok := subjects[t]; ok {
		return subject
	}
	return "New notification"
}

// plainBody is the message sent when the event template cannot be rendered.
func plainBody(evt event.Event) string {
	body := subjectOf(evt.Type) + "."
	if evt.Payload.ProposalTitle != "" {
		body += fmt.Sprintf("\nThesis proposal: %q", evt.Payload.ProposalTitle)
	}
	if evt.Payload.StartRequestTitle != "" {
		body += fmt.Sprintf("\nThesis start request: %q", evt.Payload.StartRequestTitle)
	}
	return body
}

type resolved struct {
	address mail.Address
	user    *user.User // nil when the email is not in the directory
}

func (r resolved) notification() (Notification, bool) {
	if r.user == nil {
		return Notification{}, false
	}
	switch r.user.Role {
	case user.RoleStudent:
		return Notification{StudentID: r.user.ID}, true
	case user.RoleTeacher:
		return Notification{TeacherID: r.user.ID}, true
	}
	return Notification{}, false
}

// uniqueRecipients resolves recipients against the user directory,
// dropping unknown IDs and duplicate addresses.
func (d *Dispatcher) uniqueRecipients(ctx context.Context, rcpts []event.Recipient) []resolved {
	seen := make(map[string]struct{}, len(rcpts))
	out := make([]resolved, 0, len(rcpts))
	for _, rcpt := range rcpts {
		var (
			usr user.User
			err error
		)
		if rcpt.UserID != "" {
			usr, err = d.users.GetByID(ctx, rcpt.UserID)
		} else {
			usr, err = d.users.GetByEmail(ctx, rcpt.Email)
		}

		var r resolved
		switch {
		case err == nil:
			r = resolved{address: usr.Address(), user: &usr}
		case core.IsKind(err, core.KindNotFound) && rcpt.UserID == "" && rcpt.Email != "":
			r = resolved{address: mail.Address{Address: core.CleanString(rcpt.Email, true /* lower */)}}
		default:
			d.logger.Warn(fmt.Sprintf("notification.Dispatch: skipping recipient %+v: %v", rcpt, err))
			continue
		}

		key := core.CleanString(r.address.Address, true /* lower */)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
