package emailsvc

import (
	"errors"
	"net/http"
	"net/mail"
	"testing"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesisman/backend/core"
	logsvc "github.com/thesisman/backend/services/logger"
)

func newTestSendgrid(responses ...interface{}) (*sendgridService, *int) {
	calls := new(int)
	conf := &core.Config{AppName: "Thesis Management", Env: "test", DefaultFromEmail: mail.Address{Name: "Thesis", Address: "noreply@example.com"}}
	svc := NewSendgridService(conf, logsvc.NewMock())
	svc.backoff = 0
	svc.send = func(*sgmail.SGMailV3) (*rest.Response, error) {
		i := *calls
		if i >= len(responses) {
			i = len(responses) - 1
		}
		*calls++
		r := responses[i]
		switch r := r.(type) {
		case int:
			return &rest.Response{StatusCode: r}, nil
		case error:
			return nil, r
		}
		return nil, nil
	}
	return svc, calls
}

func testMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:      []mail.Address{{Name: "Giulia Neri", Address: "t1@example.com"}},
		Subject: "New application",
		BodyStr: "A student applied.",
	}
}

func Test_sendgridService_deliver(t *testing.T) {
	tests := []struct {
		name      string
		responses []interface{}
		wantCalls int
		wantErr   bool
	}{
		{name: "accepted", responses: []interface{}{http.StatusAccepted}, wantCalls: 1},
		{name: "server error then accepted", responses: []interface{}{http.StatusBadGateway, http.StatusAccepted}, wantCalls: 2},
		{name: "rate limited then accepted", responses: []interface{}{http.StatusTooManyRequests, http.StatusAccepted}, wantCalls: 2},
		{name: "bad request is not retried", responses: []interface{}{http.StatusBadRequest}, wantCalls: 1, wantErr: true},
		{name: "server keeps failing", responses: []interface{}{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable}, wantCalls: 3, wantErr: true},
		{name: "transport error", responses: []interface{}{errors.New("dial tcp: timeout"), errors.New("dial tcp: timeout"), errors.New("dial tcp: timeout")}, wantCalls: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, calls := newTestSendgrid(tt.responses...)
			err := svc.deliver(testMessage())
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
			assert.Equal(t, tt.wantCalls, *calls)
		})
	}

	t.Run("nothing to send", func(t *testing.T) {
		svc, calls := newTestSendgrid(http.StatusAccepted)
		require.NoError(t, svc.deliver(&core.EmailMessage{Subject: "empty", BodyStr: "no one"}))
		assert.Zero(t, *calls)
	})
}

func Test_sendgridService_build(t *testing.T) {
	svc, _ := newTestSendgrid(http.StatusAccepted)
	msg := testMessage()
	msg.TemplateName = "new_application"
	msg.TextContent = "text"
	msg.HTMLContent = "<p>html</p>"
	msg.Bcc = []mail.Address{{Address: "audit@example.com"}}

	m := svc.build(*msg)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Thesis Management] New application", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "t1@example.com", p.To[0].Address)
	assert.Empty(t, p.CC)
	require.Len(t, p.BCC, 1)
	assert.Equal(t, "noreply@example.com", m.From.Address)
	assert.Equal(t, []string{"new_application", "test"}, m.Categories)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
}
