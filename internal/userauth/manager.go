package userauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alex65536/keyreg/internal/util/slogx"
	"github.com/alex65536/keyreg/internal/util/timeutil"
)

type ManagerOptions struct {
	GCInterval           time.Duration `toml:"gc-interval"`
	IncompleteUserExpiry time.Duration `toml:"incomplete-user-expiry"`
	ReservedNames        []string      `toml:"reserved-names"`
	Suggestions          int           `toml:"suggestions"`
}

func (o ManagerOptions) Clone() ManagerOptions {
	o.ReservedNames = slices.Clone(o.ReservedNames)
	return o
}

func (o *ManagerOptions) FillDefaults() {
	if o.GCInterval == 0 {
		o.GCInterval = 5 * time.Minute
	}
	if o.IncompleteUserExpiry == 0 {
		o.IncompleteUserExpiry = 30 * time.Minute
	}
	if o.Suggestions == 0 {
		o.Suggestions = 3
	}
}

type Manager struct {
	DB
	o      *ManagerOptions
	log    *slog.Logger
	ctx    context.Context
	cancel func()
	done   chan struct{}
}

func NewManager(log *slog.Logger, db DB, o ManagerOptions) *Manager {
	o = o.Clone()
	o.FillDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		DB:     db,
		o:      &o,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *Manager) Close() {
	m.cancel()
	<-m.done
}

func (m *Manager) IsReserved(username string) bool {
	return IsReservedName(username, m.o.ReservedNames)
}

// CheckAvailable returns nil if a registration ceremony may be started for the username. A user
// that never finished a ceremony does not hold the name.
func (m *Manager) CheckAvailable(ctx context.Context, username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if m.IsReserved(username) {
		return ErrNameReserved
	}
	user, err := m.GetUserByUsername(ctx, username, GetUserOptions{WithCredentials: true})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}
	if user.IsComplete() {
		return ErrNameTaken
	}
	return nil
}

// PendingUser returns the incomplete user holding the username, creating one if there is none.
// A reused user takes the casing of the latest request and is protected from pruning for another
// IncompleteUserExpiry.
func (m *Manager) PendingUser(ctx context.Context, username string) (User, error) {
	for range 2 {
		if err := m.CheckAvailable(ctx, username); err != nil {
			return User{}, err
		}
		user, err := m.GetUserByUsername(ctx, username, GetUserOptions{WithCredentials: true})
		if err == nil {
			now := timeutil.NowUTC()
			err = m.TouchPendingUser(ctx, user.ID, username, now)
			if err == nil {
				user.Username = username
				user.TouchedAt = now
				return user, nil
			}
			if errors.Is(err, ErrNameTaken) {
				return User{}, err
			}
			if !errors.Is(err, ErrUserNotFound) {
				return User{}, fmt.Errorf("touch user: %w", err)
			}
			// Pruned right after the lookup. Start over.
			continue
		}
		if !errors.Is(err, ErrUserNotFound) {
			return User{}, fmt.Errorf("get user: %w", err)
		}
		user, err = NewUser(username)
		if err != nil {
			return User{}, err
		}
		err = m.CreateUser(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrNameTaken) {
			return User{}, fmt.Errorf("create user: %w", err)
		}
		// Someone created the user concurrently. Look again.
	}
	return User{}, ErrNameTaken
}

func (m *Manager) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.o.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
			cutoff := timeutil.NowUTC().Add(-m.o.IncompleteUserExpiry)
			n, err := m.DB.PruneIncompleteUsers(m.ctx, cutoff)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.log.Warn("could not prune incomplete users", slogx.Err(err))
			} else if n != 0 {
				m.log.Info("pruned incomplete users", slog.Int64("count", n))
			}
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}
