package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/user"
)

const (
	levelDebug = rollbar.DEBUG
	levelInfo  = rollbar.INFO
	levelWarn  = rollbar.WARN
	levelError = rollbar.ERR
	levelFatal = rollbar.CRIT
)

// RollbarLogger prints every entry to a std logger and reports it to Rollbar when enabled.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "")
	return &RollbarLogger{std: std, debug: conf.Debug}
}

// Enable turns reporting on, as long as a token is configured.
func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled && rollbar.Token() != "")
}

// entry splits args into the reported error, the extras and the acting user.
// Accepted args: error, map[string]interface{}, user.Actor; anything else is an extra.
type entry struct {
	err    error
	extras map[string]interface{}
	actor  *user.Actor
}

func newEntry(args []interface{}) entry {
	var e entry
	for i, arg := range args {
		switch a := arg.(type) {
		case error:
			if e.err == nil {
				e.err = a
			}
		case user.Actor:
			if e.actor == nil {
				actor := a
				e.actor = &actor
			}
		case map[string]interface{}:
			for k, v := range a {
				e.addExtra(k, v)
			}
		default:
			e.addExtra(fmt.Sprintf("arg%d", i), a)
		}
	}
	return e
}

func (e *entry) addExtra(k string, v interface{}) {
	if e.extras == nil {
		e.extras = make(map[string]interface{})
	}
	e.extras[k] = v
}

func (e entry) format(level, msg string) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(level))
	b.WriteString(" ")
	b.WriteString(msg)
	if e.actor != nil {
		fmt.Fprintf(&b, " actor=%s/%s", e.actor.Role, e.actor.ID)
	}
	keys := make([]string, 0, len(e.extras))
	for k := range e.extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%+v", k, e.extras[k])
	}
	if e.err != nil && e.err.Error() != msg {
		fmt.Fprintf(&b, " err=%q", e.err.Error())
	}
	return b.String()
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	e := newEntry(args)
	_ = l.std.Output(3, e.format(level, msg))

	if e.actor != nil {
		rollbar.SetPerson(e.actor.ID, string(e.actor.Role), e.actor.Email)
	} else {
		rollbar.ClearPerson()
	}
	if e.err != nil && (level == levelError || level == levelFatal) {
		rollbar.ErrorWithStackSkipWithExtras(level, e.err, 2, withMessage(e.extras, msg))
		return
	}
	rollbar.MessageWithExtras(level, msg, e.extras)
}

func withMessage(extras map[string]interface{}, msg string) map[string]interface{} {
	out := make(map[string]interface{}, len(extras)+1)
	for k, v := range extras {
		out[k] = v
	}
	out["message"] = msg
	return out
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.log(levelDebug, msg, args)
	}
}

func (l RollbarLogger) Info(msg string, args ...interface{})  { l.log(levelInfo, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.log(levelWarn, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.log(levelError, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(levelFatal, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
