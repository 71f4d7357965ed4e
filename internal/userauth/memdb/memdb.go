// Package memdb is an in-memory userauth.DB for tests.
package memdb

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/alex65536/keyreg/internal/util/timeutil"
)

type DB struct {
	mu      sync.Mutex
	users   []userauth.User
	creds   []userauth.Credential
	fail    error
	lookups atomic.Int64
}

var _ userauth.DB = (*DB)(nil)

func New() *DB {
	return &DB{}
}

// SetFail makes all user lookups fail with err. Pass nil to recover.
func (d *DB) SetFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *DB) Lookups() int64 {
	return d.lookups.Load()
}

// PutUser stores the user as is, bypassing uniqueness checks.
func (d *DB) PutUser(user userauth.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = append(d.users, user)
}

func (d *DB) CreateUser(_ context.Context, user userauth.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.NameKey == user.NameKey {
			return userauth.ErrNameTaken
		}
	}
	d.users = append(d.users, user)
	return nil
}

func (d *DB) find(f func(u *userauth.User) bool, o ...userauth.GetUserOptions) (userauth.User, error) {
	d.lookups.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return userauth.User{}, d.fail
	}
	for _, u := range d.users {
		if !f(&u) {
			continue
		}
		u.Credentials = nil
		if len(o) != 0 && o[0].WithCredentials {
			for _, c := range d.creds {
				if c.UserID == u.ID {
					u.Credentials = append(u.Credentials, c)
				}
			}
		}
		return u, nil
	}
	return userauth.User{}, userauth.ErrUserNotFound
}

func (d *DB) GetUser(_ context.Context, userID string, o ...userauth.GetUserOptions) (userauth.User, error) {
	return d.find(func(u *userauth.User) bool { return u.ID == userID }, o...)
}

func (d *DB) GetUserByUsername(_ context.Context, username string, o ...userauth.GetUserOptions) (userauth.User, error) {
	key := userauth.NameKey(username)
	return d.find(func(u *userauth.User) bool { return u.NameKey == key }, o...)
}

func (d *DB) GetUserByHandle(_ context.Context, handle []byte, o ...userauth.GetUserOptions) (userauth.User, error) {
	return d.find(func(u *userauth.User) bool { return bytes.Equal(u.Handle, handle) }, o...)
}

func (d *DB) ListUsers(context.Context) ([]userauth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.users), nil
}

func (d *DB) AddCredential(_ context.Context, cred userauth.Credential) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.ContainsFunc(d.users, func(u userauth.User) bool { return u.ID == cred.UserID }) {
		return userauth.ErrUserNotFound
	}
	for _, c := range d.creds {
		if c.UserID == cred.UserID {
			return userauth.ErrNameTaken
		}
		if c.ID == cred.ID {
			return userauth.ErrCredentialAlreadyExist
		}
	}
	d.creds = append(d.creds, cred)
	return nil
}

func (d *DB) ListCredentials(_ context.Context, userID string) ([]userauth.Credential, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res []userauth.Credential
	for _, c := range d.creds {
		if c.UserID == userID {
			res = append(res, c)
		}
	}
	return res, nil
}

func (d *DB) hasCredential(userID string) bool {
	return slices.ContainsFunc(d.creds, func(c userauth.Credential) bool { return c.UserID == userID })
}

func (d *DB) TouchPendingUser(_ context.Context, userID string, username string, at timeutil.UTCTime) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasCredential(userID) {
		return userauth.ErrNameTaken
	}
	idx := slices.IndexFunc(d.users, func(u userauth.User) bool {
		return u.ID == userID && u.NameKey == userauth.NameKey(username)
	})
	if idx < 0 {
		return userauth.ErrUserNotFound
	}
	u := &d.users[idx]
	u.Username = username
	u.TouchedAt = at
	return nil
}

func (d *DB) PruneIncompleteUsers(_ context.Context, touchedBefore timeutil.UTCTime) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.users)
	d.users = slices.DeleteFunc(d.users, func(u userauth.User) bool {
		return !d.hasCredential(u.ID) && u.TouchedAt.Compare(touchedBefore) < 0
	})
	return int64(n - len(d.users)), nil
}
