// Package geocache provides the durable key-to-coordinate cache that lets
// pipeline reruns skip already-resolved (or already-failed) addresses.
package geocache

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

// Backend persists the full cache mapping wholesale. Implementations must
// guarantee all-or-nothing visibility of a Persist call.
type Backend interface {
	Load(ctx context.Context) (map[string]model.GeocodeRecord, error)
	Persist(ctx context.Context, entries map[string]model.GeocodeRecord) error
	Close() error
}

// Cache is the single-owner in-memory geocode mapping. It is not safe for
// concurrent use; the pipeline threads it through one stage at a time.
type Cache struct {
	backend Backend
	clock   clockwork.Clock

	// retryFailedAfter > 0 makes failed entries older than the duration
	// invisible to Get, so the orchestrator re-requests them. Zero means
	// failed entries are permanent until purged.
	retryFailedAfter time.Duration

	entries map[string]model.GeocodeRecord
	dirty   bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock injects a time source for tests.
func WithClock(c clockwork.Clock) Option {
	return func(g *Cache) { g.clock = c }
}

// WithRetryFailedAfter enables re-resolution of failed entries older than d.
func WithRetryFailedAfter(d time.Duration) Option {
	return func(g *Cache) { g.retryFailedAfter = d }
}

// New creates a Cache over the given backend. Call Load before use.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		clock:   clockwork.NewRealClock(),
		entries: make(map[string]model.GeocodeRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads the persisted mapping. Missing or corrupt storage yields an
// empty cache and a warning, never a failure: worst case is re-resolution.
func (c *Cache) Load(ctx context.Context) error {
	entries, err := c.backend.Load(ctx)
	if err != nil {
		zap.L().Warn("geocache: load failed, starting empty", zap.Error(err))
		c.entries = make(map[string]model.GeocodeRecord)
		return nil
	}
	if entries == nil {
		entries = make(map[string]model.GeocodeRecord)
	}
	c.entries = entries
	c.dirty = false
	return nil
}

// Get returns the cached record for key. Failed entries past the configured
// retry window are reported absent so the caller re-requests them.
func (c *Cache) Get(key string) (model.GeocodeRecord, bool) {
	rec, ok := c.entries[key]
	if !ok {
		return model.GeocodeRecord{}, false
	}
	if rec.Status() == model.StatusFailed && c.retryFailedAfter > 0 {
		if rec.CachedAt.IsZero() || c.clock.Since(rec.CachedAt) >= c.retryFailedAfter {
			return model.GeocodeRecord{}, false
		}
	}
	return rec, true
}

// Put upserts a record in memory. Persistence happens at the next Flush.
func (c *Cache) Put(key string, rec model.GeocodeRecord) {
	if rec.CachedAt.IsZero() {
		rec.CachedAt = c.clock.Now().UTC()
	}
	c.entries[key] = rec
	c.dirty = true
}

// Flush persists the full mapping. Safe to call repeatedly from a
// partially-completed run; a no-op when nothing changed since the last call.
func (c *Cache) Flush(ctx context.Context) error {
	if !c.dirty {
		return nil
	}
	if err := c.backend.Persist(ctx, c.entries); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return len(c.entries) }

// Stats returns resolved and failed entry counts.
func (c *Cache) Stats() (resolved, failed int) {
	for _, rec := range c.entries {
		if rec.Status() == model.StatusResolved {
			resolved++
		} else {
			failed++
		}
	}
	return resolved, failed
}

// Purge removes failed entries, or every entry when failedOnly is false,
// and returns the number removed. Call Flush to make the purge durable.
func (c *Cache) Purge(failedOnly bool) int {
	var removed int
	for key, rec := range c.entries {
		if failedOnly && rec.Status() != model.StatusFailed {
			continue
		}
		delete(c.entries, key)
		removed++
	}
	if removed > 0 {
		c.dirty = true
	}
	return removed
}

// Close releases the backend.
func (c *Cache) Close() error { return c.backend.Close() }
