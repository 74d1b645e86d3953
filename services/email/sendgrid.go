package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/thesisman/backend/core"
)

const sendAttempts = 3

type (
	sendFunc func(m *sgmail.SGMailV3) (*rest.Response, error)

	sendgridService struct {
		from       *sgmail.Email
		subjPrefix string
		category   string
		send       sendFunc
		backoff    time.Duration
		logger     core.Logger
	}
)

var _ core.EmailService = (*sendgridService)(nil)

// NewSendgridService delivers workflow emails through the SendGrid v3 API.
func NewSendgridService(conf *core.Config, logger core.Logger) *sendgridService {
	client := sendgrid.NewSendClient(conf.SendgridApiKey)
	return &sendgridService{
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		category:   conf.Env,
		send:       client.Send,
		backoff:    time.Second,
		logger:     logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if err := svc.deliver(msg); err != nil {
				svc.logger.Error(fmt.Sprintf("emailsvc: %v", err), err)
			}
		}(msg)
	}
}

func (svc sendgridService) deliver(msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return nil
	}

	m := svc.build(*msg)
	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		var res *rest.Response
		res, err = svc.send(m)
		switch {
		case err != nil:
			err = errors.Wrap(err, "sending email")
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
			err = errors.Errorf("sending email: status %d: %s", res.StatusCode, res.Body)
		case res.StatusCode >= http.StatusBadRequest:
			// the request itself is wrong, retrying won't help
			return errors.Errorf("sending email %q: status %d: %s", msg.Subject, res.StatusCode, res.Body)
		default:
			return nil
		}
		if attempt < sendAttempts {
			time.Sleep(svc.backoff * time.Duration(attempt))
		}
	}
	return errors.Wrapf(err, "giving up after %d attempts", sendAttempts)
}

// build tags the mail with the template name so deliveries can be told apart per event type.
func (svc sendgridService) build(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(sgEmails(msg.To)...)
	if len(msg.Cc) > 0 {
		p.AddCCs(sgEmails(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		p.AddBCCs(sgEmails(msg.Bcc)...)
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}
	if svc.category != "" {
		m.AddCategories(svc.category)
	}

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func sgEmails(addrs []mail.Address) []*sgmail.Email {
	out := make([]*sgmail.Email, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, sgmail.NewEmail(addr.Name, addr.Address))
	}
	return out
}
