package userauth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/alex65536/keyreg/internal/userauth/memdb"
)

func TestAvailabilityCache(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()
	m := newTestManager(t, db, userauth.ManagerOptions{})
	c := userauth.NewAvailabilityCache(userauth.AvailabilityCacheOptions{CacheExpiryInterval: time.Hour}, m)
	t.Cleanup(c.Close)

	if err := c.Check(ctx, "Someone"); err != nil {
		t.Fatalf("expected available, got %v", err)
	}
	lookups := db.Lookups()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Check(ctx, "someone"); err != nil {
				t.Errorf("expected available, got %v", err)
			}
		}()
	}
	wg.Wait()
	if got := db.Lookups(); got != lookups {
		t.Fatalf("cached answer must not hit the db: %v lookups, expected %v", got, lookups)
	}

	completeUser(t, m, "someone")
	if err := c.Check(ctx, "someone"); err != nil {
		t.Fatalf("stale answer expected before Forget, got %v", err)
	}
	c.Forget("SOMEONE")
	if err := c.Check(ctx, "someone"); !errors.Is(err, userauth.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}

	var v *userauth.Violation
	if err := c.Check(ctx, "no!"); !errors.As(err, &v) || v.Kind != userauth.CharsetViolation {
		t.Fatalf("expected charset violation, got %v", err)
	}
}

func TestAvailabilityCacheSkipsFailures(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()
	db.SetFail(errors.New("db down"))
	m := newTestManager(t, db, userauth.ManagerOptions{})
	c := userauth.NewAvailabilityCache(userauth.AvailabilityCacheOptions{CacheExpiryInterval: time.Hour}, m)
	t.Cleanup(c.Close)

	if err := c.Check(ctx, "someone"); err == nil {
		t.Fatalf("expected failure")
	}
	db.SetFail(nil)
	if err := c.Check(ctx, "someone"); err != nil {
		t.Fatalf("failure must not be cached, got %v", err)
	}
}

func TestAvailabilityCacheExpiry(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()
	m := newTestManager(t, db, userauth.ManagerOptions{})
	c := userauth.NewAvailabilityCache(userauth.AvailabilityCacheOptions{CacheExpiryInterval: 20 * time.Millisecond}, m)
	t.Cleanup(c.Close)

	if err := c.Check(ctx, "expiring"); err != nil {
		t.Fatalf("expected available, got %v", err)
	}
	completeUser(t, m, "expiring")
	time.Sleep(50 * time.Millisecond)
	if err := c.Check(ctx, "expiring"); !errors.Is(err, userauth.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken after expiry, got %v", err)
	}
}

type blockingDB struct {
	*memdb.DB
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (d *blockingDB) GetUserByUsername(ctx context.Context, username string, o ...userauth.GetUserOptions) (userauth.User, error) {
	d.once.Do(func() { close(d.started) })
	select {
	case <-ctx.Done():
		return userauth.User{}, ctx.Err()
	case <-d.release:
	}
	return d.DB.GetUserByUsername(ctx, username, o...)
}

func TestAvailabilityCacheCancelledCaller(t *testing.T) {
	db := &blockingDB{
		DB:      memdb.New(),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := newTestManager(t, db, userauth.ManagerOptions{})
	c := userauth.NewAvailabilityCache(userauth.AvailabilityCacheOptions{CacheExpiryInterval: time.Hour}, m)
	t.Cleanup(c.Close)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- c.Check(ctx, "patient") }()
	<-db.started

	second := make(chan error, 1)
	go func() { second <- c.Check(context.Background(), "Patient") }()

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(db.release)
	if err := <-second; err != nil {
		t.Fatalf("other callers must not see the cancellation, got %v", err)
	}
	if err := c.Check(context.Background(), "patient"); err != nil {
		t.Fatalf("expected available, got %v", err)
	}
}
