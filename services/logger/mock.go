package logsvc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/thesisman/backend/core"
)

// Entry is a recorded log call.
type Entry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Mock records log calls instead of printing them.
type Mock struct {
	mu      sync.Mutex
	entries []Entry
}

var _ core.Logger = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{}
}

func (l *Mock) record(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg, Args: args})
}

func (l *Mock) Debug(msg string, args ...interface{}) { l.record("debug", msg, args) }
func (l *Mock) Info(msg string, args ...interface{})  { l.record("info", msg, args) }
func (l *Mock) Warn(msg string, args ...interface{})  { l.record("warn", msg, args) }
func (l *Mock) Error(msg string, args ...interface{}) { l.record("error", msg, args) }

func (l *Mock) Fatal(msg string, args ...interface{}) {
	l.record("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Entries returns the recorded entries of the given level, or all of them.
func (l *Mock) Entries(level ...string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if len(level) == 0 || strings.EqualFold(e.Level, level[0]) {
			out = append(out, e)
		}
	}
	return out
}
