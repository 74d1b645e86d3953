package emailsvc

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/thesisman/backend/core"
)

type consoleService struct {
	defaultFromEmail mail.Address
	subjPrefix       string
	logger           core.Logger
	disableOutput    bool
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService prints emails instead of sending them.
func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		defaultFromEmail: conf.DefaultFromEmail,
		subjPrefix:       "[" + conf.AppName + "] ",
		logger:           logger,
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if err := svc.sendMessage(msg); err != nil {
				svc.logger.Error(fmt.Sprintf("emailsvc: %v", err), err)
			}
		}(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return nil
	}
	body, err := svc.format(*msg)
	if err != nil {
		return err
	}
	if !svc.disableOutput {
		log.Println(body)
	}
	return nil
}

func (svc consoleService) format(msg core.EmailMessage) (string, error) {
	body := new(strings.Builder)

	// Write mail header
	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.defaultFromEmail.String())
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	_, _ = fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	_, _ = fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))

	altW := multipart.NewWriter(body)
	_, _ = fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n", altW.Boundary())
	_, _ = fmt.Fprint(body, "\r\n")

	w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain"}})
	if err != nil {
		return "", errors.Wrap(err, "creating text/plain part")
	}
	_, _ = fmt.Fprintf(w, "%s\r\n", msg.TextContent)

	if msg.HTMLContent != "" {
		w, err = altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html"}})
		if err != nil {
			return "", errors.Wrap(err, "creating text/html part")
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
	}
	if err = altW.Close(); err != nil {
		return "", errors.Wrap(err, "closing multipart body")
	}
	return body.String(), nil
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

// ErrMockDelivery is what a failing mock reports for every message.
var ErrMockDelivery = errors.New("mock delivery failure")

// Mock is a synchronous console service recording every delivery attempt.
type Mock struct {
	consoleService

	mu       sync.Mutex
	fail     bool
	attempts []core.EmailMessage
	sent     []core.EmailMessage
}

var _ core.EmailService = (*Mock)(nil)

func NewMock(logger core.Logger) *Mock {
	return &Mock{
		consoleService: consoleService{
			defaultFromEmail: mail.Address{Name: "Thesis Management", Address: "noreply@example.com"},
			subjPrefix:       "[Thesis Management] ",
			logger:           logger,
			disableOutput:    true,
		},
	}
}

func (svc *Mock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		// run synchronously
		svc.mu.Lock()
		svc.attempts = append(svc.attempts, *msg)
		fail := svc.fail
		svc.mu.Unlock()

		if fail {
			svc.logger.Error(fmt.Sprintf("emailsvc: sending %q: %v", msg.Subject, ErrMockDelivery), ErrMockDelivery)
			continue
		}
		if err := svc.sendMessage(msg); err != nil {
			svc.logger.Error(fmt.Sprintf("emailsvc: %v", err), err)
			continue
		}
		svc.mu.Lock()
		svc.sent = append(svc.sent, *msg)
		svc.mu.Unlock()
	}
}

// FailDeliveries makes every following delivery fail, or succeed again.
func (svc *Mock) FailDeliveries(fail bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.fail = fail
}

func (svc *Mock) Attempts() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.attempts...)
}

func (svc *Mock) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

// SentTo returns the messages delivered to email.
func (svc *Mock) SentTo(email string) []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	var msgs []core.EmailMessage
	for _, msg := range svc.sent {
		for _, to := range msg.To {
			if strings.EqualFold(to.Address, email) {
				msgs = append(msgs, msg)
				break
			}
		}
	}
	return msgs
}

func (svc *Mock) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.attempts, svc.sent, svc.fail = nil, nil, false
}
