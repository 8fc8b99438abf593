package cache

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/pkg/logger"
	"github.com/okian/armory/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL matches the profile provider's refresh cadence.
const DefaultTTL = 10 * time.Minute

// FetchFunc loads the documents for a key on a miss.
type FetchFunc func(ctx context.Context) (model.ProfileDocuments, error)

// ResponseCache memoizes FetchFunc results per key for a fixed TTL.
// Concurrent misses on one key share a single fetch. Fetch errors are
// returned to every waiter and never stored.
type ResponseCache struct {
	store  Store
	ttl    time.Duration
	clock  clockwork.Clock
	group  singleflight.Group
	logger logger.Logger
}

// Option applies a configuration option to the ResponseCache.
type Option func(*ResponseCache)

// WithStore sets the backing store.
func WithStore(s Store) Option {
	return func(c *ResponseCache) {
		if s != nil {
			c.store = s
		}
	}
}

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSweepClock sets the clock driving StartSweeper.
func WithSweepClock(clock clockwork.Clock) Option {
	return func(c *ResponseCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *ResponseCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a ResponseCache backed by an in-memory store unless WithStore is given.
func New(opts ...Option) *ResponseCache {
	c := &ResponseCache{ttl: DefaultTTL, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("cache")
	}
	return c
}

// TTL returns the entry lifetime.
func (c *ResponseCache) TTL() time.Duration { return c.ttl }

// GetOrFetch returns the cached documents for key, calling fetch on a miss.
func (c *ResponseCache) GetOrFetch(ctx context.Context, key Key, fetch FetchFunc) (model.ProfileDocuments, error) {
	if key.Realm == "" || key.Name == "" {
		return model.ProfileDocuments{}, ErrInvalidKey
	}
	if fetch == nil {
		return model.ProfileDocuments{}, ErrNilFetch
	}
	k := key.String()

	if v, ok := c.lookup(ctx, k); ok {
		metrics.RecordCacheHit()
		return v, nil
	}
	metrics.RecordCacheMiss()

	ch := c.group.DoChan(k, func() (interface{}, error) {
		if v, ok := c.lookup(ctx, k); ok {
			return v, nil
		}
		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(context.WithoutCancel(ctx), k, v, c.ttl); err != nil {
			c.logger.Warn(ctx, "cache store write failed", logger.String("key", k), logger.Error(err))
		}
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.ProfileDocuments{}, res.Err
		}
		return res.Val.(model.ProfileDocuments), nil
	case <-ctx.Done():
		return model.ProfileDocuments{}, ctx.Err()
	}
}

// Invalidate drops key.
func (c *ResponseCache) Invalidate(ctx context.Context, key Key) error {
	return c.store.Delete(ctx, key.String())
}

// Len returns the number of stored entries, or 0 if the store cannot tell.
func (c *ResponseCache) Len(ctx context.Context) int {
	n, err := c.store.Len(ctx)
	if err != nil {
		c.logger.Warn(ctx, "cache length unavailable", logger.Error(err))
		return 0
	}
	return n
}

// StartSweeper periodically removes expired entries until ctx is done. It is
// a no-op for stores that expire entries themselves.
func (c *ResponseCache) StartSweeper(ctx context.Context, interval time.Duration) {
	sw, ok := c.store.(Sweeper)
	if !ok || interval <= 0 {
		return
	}
	ticker := c.clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if n := sw.Sweep(); n > 0 {
					c.logger.Debug(ctx, "swept expired cache entries", logger.Int("removed", n))
				}
			}
		}
	}()
}

// lookup treats store failures as misses so a broken backend degrades to no caching.
func (c *ResponseCache) lookup(ctx context.Context, k string) (model.ProfileDocuments, bool) {
	v, ok, err := c.store.Get(ctx, k)
	if err != nil {
		c.logger.Warn(ctx, "cache store read failed", logger.String("key", k), logger.Error(err))
		return model.ProfileDocuments{}, false
	}
	return v, ok
}
