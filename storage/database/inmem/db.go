package inmemdb

import (
	"context"
	"encoding/json"
	"io/fs"
	"sync"

	"github.com/pkg/errors"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/application"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/notification"
	"github.com/thesisman/backend/core/proposal"
	"github.com/thesisman/backend/core/startrequest"
	"github.com/thesisman/backend/core/user"
)

type txKey struct{}

// DB is an in-memory entity store. A unit of work holds the store lock for
// its whole duration and is rolled back to a snapshot when it fails.
type DB struct {
	mutex  sync.Mutex
	tables tables
}

type tables struct {
	users         map[string]user.User
	proposals     map[string]proposal.Proposal
	applications  map[string]application.Application
	startRequests map[string]startrequest.StartRequest
	notifications map[string]notification.Notification
	clock         clock.State
}

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{tables: tables{
		users:         make(map[string]user.User),
		proposals:     make(map[string]proposal.Proposal),
		applications:  make(map[string]application.Application),
		startRequests: make(map[string]startrequest.StartRequest),
		notifications: make(map[string]notification.Notification),
	}}
}

func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	snapshot := db.tables.clone()
	defer func() {
		if p := recover(); p != nil {
			db.tables = snapshot
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.tables = snapshot
	}
	return err
}

func (db *DB) inTx(ctx context.Context) bool {
	txDB, ok := ctx.Value(txKey{}).(*DB)
	return ok && txDB == db
}

// lock takes the store lock unless ctx already runs a unit of work on db.
// Use as: defer db.lock(ctx)()
func (db *DB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mutex.Lock()
	return db.mutex.Unlock
}

// AddUsers seeds the user directory.
func (db *DB) AddUsers(users ...user.User) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	for _, usr := range users {
		db.tables.users[usr.ID] = usr
	}
}

// LoadUsers seeds the user directory from a JSON array of users.
func (db *DB) LoadUsers(fsys fs.FS, name string) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return errors.Wrap(err, "reading users fixture")
	}
	var users []user.User
	if err = json.Unmarshal(data, &users); err != nil {
		return errors.Wrapf(err, "decoding %s", name)
	}
	for _, usr := range users {
		if usr.ID == "" || !usr.Role.Valid() {
			return errors.Errorf("%s: invalid user %+v", name, usr)
		}
	}
	db.AddUsers(users...)
	return nil
}

func (t tables) clone() tables {
	c := tables{
		users:         make(map[string]user.User, len(t.users)),
		proposals:     make(map[string]proposal.Proposal, len(t.proposals)),
		applications:  make(map[string]application.Application, len(t.applications)),
		startRequests: make(map[string]startrequest.StartRequest, len(t.startRequests)),
		notifications: make(map[string]notification.Notification, len(t.notifications)),
		clock:         t.clock,
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.proposals {
		c.proposals[k] = v
	}
	for k, v := range t.applications {
		c.applications[k] = v
	}
	for k, v := range t.startRequests {
		c.startRequests[k] = v
	}
	for k, v := range t.notifications {
		c.notifications[k] = v
	}
	return c
}

func copyStrings(items []string) []string {
	c := make([]string, len(items))
	copy(c, items)
	return c
}

func contains(items []string, item string) bool {
	for _, it := range items {
		if it == item {
			return true
		}
	}
	return false
}
