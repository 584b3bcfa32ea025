// MIT License
//
// Copyright (c) 2025 Mike Lane
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mikelane/repofetcher/internal/metrics"
)

// DefaultTTL is how long entries stay valid unless configured otherwise
const DefaultTTL = 300 * time.Second

// Entry is a cached value and the time it was stored
type Entry[T any] struct {
	Key      string
	Value    T
	StoredAt time.Time
}

// Valid reports whether the entry is still live at now.
func (e Entry[T]) Valid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) < ttl
}

// Loader produces the value for a key on a cache miss
type Loader[T any] func(ctx context.Context) (T, error)

// Cache is a time-to-live cache. Entries expire purely by age; lookups do
// not extend their life. Loads for the same key are collapsed into one call.
type Cache[T any] struct {
	name string
	ttl  time.Duration
	now  func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]Entry[T]
}

type options struct {
	now func() time.Time
}

// Option configures a Cache
type Option func(*options)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a cache. name labels its metrics; ttl <= 0 selects DefaultTTL.
func New[T any](name string, ttl time.Duration, opts ...Option) *Cache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache[T]{
		name:    name,
		ttl:     ttl,
		now:     o.now,
		entries: make(map[string]Entry[T]),
	}
}

// Get returns the live value for key, if any.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || !entry.Valid(c.now(), c.ttl) {
		var zero T
		return zero, false
	}
	return entry.Value, true
}

// Set stores value under key, stamped with the current time.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry[T]{Key: key, Value: value, StoredAt: c.now()}
}

// Fetch returns the live value for key or calls load to produce it.
// While a load for key is in flight, other callers for the same key wait for
// its result instead of loading again. The shared load does not observe any
// caller's cancellation; a caller whose ctx ends first returns ctx.Err() and
// the load completes for the others. Errors are returned, never cached.
func (c *Cache[T]) Fetch(ctx context.Context, key string, load Loader[T]) (T, error) {
	var zero T
	if value, ok := c.Get(key); ok {
		metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
		return value, nil
	}
	metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if value, ok := c.Get(key); ok {
			return value, nil
		}
		value, err := load(shared)
		if err != nil {
			return nil, err
		}
		c.Set(key, value)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Delete removes key.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Purge drops every expired entry and returns how many were removed.
func (c *Cache[T]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if !entry.Valid(now, c.ttl) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// TTL returns the configured time to live.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}
