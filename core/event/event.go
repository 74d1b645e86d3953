// Package event defines the events emitted by the workflow services once a
// unit of work has committed.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	NewApplication               Type = "new_application"
	ApplicationDecided           Type = "application_decided"
	ApplicationCanceled          Type = "application_canceled"
	StartRequestCreated          Type = "start_request_created"
	StartRequestDecided          Type = "start_request_decided"
	StartRequestChangesRequested Type = "start_request_changes_requested"
	StartRequestChanged          Type = "start_request_changed"
	ProposalExpiringSoon         Type = "proposal_expiring_soon"
	AddedCoSupervisor            Type = "added_cosupervisor"
	RemovedCoSupervisor          Type = "removed_cosupervisor"
)

// Recipient references a user either by ID or by email.
// Co-supervisors are only known by email.
type Recipient struct {
	UserID string
	Email  string
}

func ToUser(id string) Recipient { return Recipient{UserID: id} }

func ToEmail(email string) Recipient { return Recipient{Email: email} }

func ToEmails(emails []string) []Recipient {
	rs := make([]Recipient, 0, len(emails))
	for _, e := range emails {
		rs = append(rs, ToEmail(e))
	}
	return rs
}

// Payload holds what the message templates need; unused fields stay empty.
type Payload struct {
	ProposalID        string
	ProposalTitle     string
	ApplicationID     string
	StartRequestID    string
	StartRequestTitle string
	StudentID         string
	Decision          string
	Message           string
	ExpirationDate    time.Time
}

type Event struct {
	ID         string
	Type       Type
	Recipients []Recipient
	Payload    Payload
}

// New returns an Event with a fresh random ID.
func New(t Type, payload Payload, recipients ...Recipient) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		Recipients: recipients,
		Payload:    payload,
	}
}

// NewKeyed returns an Event whose ID is derived from key, so that publishing
// it again for the same key is recognized as the same event.
func NewKeyed(key string, t Type, payload Payload, recipients ...Recipient) Event {
	evt := New(t, payload, recipients...)
	evt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(string(t)+":"+key)).String()
	return evt
}

// Publisher delivers committed events. Delivery problems are the publisher's
// to log; they never fail the operation that emitted the events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event)
}

// PublisherFunc adapts a function to a Publisher.
type PublisherFunc func(ctx context.Context, events ...Event)

func (f PublisherFunc) Publish(ctx context.Context, events ...Event) { f(ctx, events...) }
