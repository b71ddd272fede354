// Package cache provides the in-memory store used for plan caching.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
)

// InMemoryCache is a thread-safe TTL cache. A miss or an expired entry
// is reported as an error; callers treat any error as a miss.
type InMemoryCache struct {
	store  map[string]cacheItem
	mutex  sync.RWMutex
	ttl    time.Duration
	logger *slog.Logger
	done   chan struct{}
}

type cacheItem struct {
	value      any
	expiration int64
}

// Option configures an InMemoryCache.
type Option func(*InMemoryCache)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *InMemoryCache) {
		c.logger = logger
	}
}

// NewInMemoryCache creates a cache whose entries expire after ttl. A
// background sweep removes expired entries; Close stops it.
func NewInMemoryCache(ttl time.Duration, options ...Option) *InMemoryCache {
	c := &InMemoryCache{
		store:  make(map[string]cacheItem),
		ttl:    ttl,
		logger: slog.New(slog.DiscardHandler),
		done:   make(chan struct{}),
	}

	for _, option := range options {
		option(c)
	}

	go c.cleanupLoop(10 * time.Minute)
	return c
}

// Get retrieves an item. Expired entries are reported as not found and
// removed lazily by the sweep.
func (c *InMemoryCache) Get(ctx context.Context, key string) (any, error) {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return nil, err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, found := c.store[key]
	if !found {
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache item not found", nil))
	}

	if time.Now().UnixNano() > item.expiration {
		c.logger.Debug("cache item expired", "key", key)
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache item expired", nil))
	}

	return item.value, nil
}

// Set adds or replaces an item.
func (c *InMemoryCache) Set(ctx context.Context, key string, value any) error {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.store[key] = cacheItem{
		value:      value,
		expiration: time.Now().Add(c.ttl).UnixNano(),
	}
	c.logger.Debug("cache item set", "key", key)
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.store)
}

// Close stops the background sweep.
func (c *InMemoryCache) Close() {
	close(c.done)
}

func (c *InMemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mutex.Lock()
			now := time.Now().UnixNano()
			for key, item := range c.store {
				if now > item.expiration {
					delete(c.store, key)
				}
			}
			c.mutex.Unlock()
		}
	}
}
