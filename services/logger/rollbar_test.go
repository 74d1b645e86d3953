package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var out bytes.Buffer
	logger := NewRollbarLogger(log.New(&out, "", 0), &core.Config{Env: "test"})
	actor := user.Actor{ID: "t1", Email: "t1@example.com", Role: user.RoleTeacher}

	tests := []struct {
		name string
		log  func()
		want string
	}{
		{
			name: "info with extras",
			log:  func() { logger.Info("sweeper: pass done", map[string]interface{}{"warned": 2, "archived": 1}) },
			want: "INFO sweeper: pass done archived=1 warned=2\n",
		},
		{
			name: "error with actor",
			log:  func() { logger.Error("emailsvc: boom", errors.New("dial tcp: timeout"), actor) },
			want: "ERROR emailsvc: boom actor=teacher/t1 err=\"dial tcp: timeout\"\n",
		},
		{
			name: "error repeating its message",
			log:  func() { logger.Error("boom", errors.New("boom")) },
			want: "ERROR boom\n",
		},
		{
			name: "loose args",
			log:  func() { logger.Warn("dispatcher: unknown user", "s404") },
			want: "WARNING dispatcher: unknown user arg0=s404\n",
		},
		{
			name: "debug is off outside debug mode",
			log:  func() { logger.Debug("noise") },
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			tt.log()
			assert.Equal(t, tt.want, out.String())
		})
	}
}
