package userauth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alex65536/go-chess/util/maybe"
	"golang.org/x/sync/singleflight"
)

type AvailabilityCacheOptions struct {
	CacheExpiryInterval time.Duration `toml:"cache-expiry-interval"`
	LookupTimeout       time.Duration `toml:"lookup-timeout"`
}

func (o AvailabilityCacheOptions) Clone() AvailabilityCacheOptions {
	return o
}

func (o *AvailabilityCacheOptions) FillDefaults() {
	if o.CacheExpiryInterval == 0 {
		o.CacheExpiryInterval = 10 * time.Second
	}
	if o.LookupTimeout == 0 {
		o.LookupTimeout = 5 * time.Second
	}
}

// AvailabilityCache answers advisory "is this name free" queries. Answers may be stale by up to
// the cache expiry interval, so the registration ceremony always asks the manager directly.
type AvailabilityCache struct {
	o      AvailabilityCacheOptions
	m      *Manager
	cache  sync.Map
	group  singleflight.Group
	ctx    context.Context
	cancel func()
	done   chan struct{}
}

type availCacheVal struct {
	deadline time.Time
	err      error
}

func NewAvailabilityCache(o AvailabilityCacheOptions, m *Manager) *AvailabilityCache {
	o = o.Clone()
	o.FillDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &AvailabilityCache{
		o:      o,
		m:      m,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *AvailabilityCache) lookup(key string, now time.Time) maybe.Maybe[error] {
	v, ok := c.cache.Load(key)
	if !ok {
		return maybe.None[error]()
	}
	val := v.(*availCacheVal)
	if now.After(val.deadline) {
		c.cache.CompareAndDelete(key, v)
		return maybe.None[error]()
	}
	return maybe.Some(val.err)
}

// Check returns nil if the name is available, or the reason why it is not. Only definite answers
// are cached, lookup failures are not.
//
// Concurrent checks of the same name share one lookup. It runs detached from the callers, so a
// caller giving up does not fail the others.
func (c *AvailabilityCache) Check(ctx context.Context, username string) error {
	key := NameKey(username)
	if res, ok := c.lookup(key, time.Now()).TryGet(); ok {
		return res
	}
	ch := c.group.DoChan(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(c.ctx, c.o.LookupTimeout)
		defer cancel()
		err := c.m.CheckAvailable(lookupCtx, username)
		var violation *Violation
		if err == nil || errors.Is(err, ErrNameTaken) || errors.Is(err, ErrNameReserved) || errors.As(err, &violation) {
			c.cache.Store(key, &availCacheVal{
				deadline: time.Now().Add(c.o.CacheExpiryInterval),
				err:      err,
			})
			return err, nil
		}
		return nil, err
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		if res.Val == nil {
			return nil
		}
		return res.Val.(error)
	}
}

// Forget drops the cached answer, e.g. after the name was registered.
func (c *AvailabilityCache) Forget(username string) {
	c.cache.Delete(NameKey(username))
}

func (c *AvailabilityCache) Close() {
	c.cancel()
	<-c.done
}

func (c *AvailabilityCache) loop() {
	defer close(c.done)
	ticker := time.NewTicker(c.o.CacheExpiryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			now := time.Now()
			c.cache.Range(func(k, v any) bool {
				val := v.(*availCacheVal)
				if now.After(val.deadline) {
					c.cache.CompareAndDelete(k, v)
				}
				return true
			})
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}
