package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"towerwatch/internal/classify"
	"towerwatch/internal/model"
)

// Fetcher obtains the current list of connected controllers.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.Controller, error)
}

// Cache holds the most recent snapshot behind a TTL. The background
// poller is its only forced writer; any number of read-only consumers may
// call Get concurrently. Refreshes are single-flight: concurrent callers
// whose TTL expired collapse into one upstream fetch and all receive the
// same result.
type Cache struct {
	fetcher  Fetcher
	rules    *classify.RuleSet
	resolver NameResolver
	log      *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	snap  model.Snapshot
	has   bool
}

// NewCache creates a Cache. The resolver may be nil.
func NewCache(fetcher Fetcher, rules *classify.RuleSet, resolver NameResolver, log *slog.Logger) *Cache {
	return &Cache{
		fetcher:  fetcher,
		rules:    rules,
		resolver: resolver,
		log:      log,
	}
}

// Current returns the most recent snapshot without refreshing.
func (c *Cache) Current() (model.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.has
}

// Get returns the cached snapshot, refreshing first when it is older
// than maxAge. A failed refresh degrades to the previous snapshot
// labeled with the error status instead of surfacing the failure; this
// is the best-effort view used by read-only consumers.
func (c *Cache) Get(ctx context.Context, maxAge time.Duration) model.Snapshot {
	c.mu.RLock()
	snap, has := c.snap, c.has
	c.mu.RUnlock()
	if has && time.Since(snap.FetchedAt) <= maxAge {
		return snap
	}
	snap, _ = c.Refresh(ctx)
	return snap
}

// Refresh performs one coordinated fetch-and-evaluate and stores the
// result. The returned error is the fetch failure, if any; the returned
// snapshot is always usable. This is the poller path, which must observe
// the failure explicitly to decide on error-status notification.
func (c *Cache) Refresh(ctx context.Context) (model.Snapshot, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		controllers, fetchErr := c.fetcher.Fetch(ctx)
		now := time.Now().UTC()

		c.mu.Lock()
		defer c.mu.Unlock()
		if fetchErr != nil {
			c.snap = ErrorSnapshot(c.snap, fetchErr, now)
			c.has = true
			return c.snap, fetchErr
		}
		c.snap = Evaluate(ctx, controllers, c.rules, c.resolver, now)
		c.has = true
		return c.snap, nil
	})
	return v.(model.Snapshot), err
}
