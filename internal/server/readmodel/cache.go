// Package readmodel holds the in-memory mirror of all users that serves every
// query. It never writes to storage; it stays current only by applying the
// events the store publishes.
package readmodel

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/eventbus"
	"github.com/dmitrijs2005/userledger/internal/logging"
	"github.com/dmitrijs2005/userledger/internal/server/events"
	"github.com/dmitrijs2005/userledger/internal/server/models"
)

// Loader is the part of the store the cache reads once at startup.
type Loader interface {
	ListAll(ctx context.Context, deleted *bool) ([]models.User, error)
}

// Stats are simple counters for cache behavior.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Applied int64 `json:"applied"`
	Ignored int64 `json:"ignored"`
	Size    int   `json:"size"`
}

// Cache is safe for concurrent reads and event application. A single
// RWMutex guards the record set and is never held while calling the store
// or the bus.
type Cache struct {
	mu      sync.RWMutex
	records map[int64]models.User

	// Purged ids and when the purge was applied. Identities are never
	// reused, so any later event for a tombstoned id is a late delivery.
	tombstones map[int64]time.Time

	// While loading, events are queued and replayed once the initial
	// snapshot is installed.
	loading bool
	pending []any

	subs   []*eventbus.Subscription
	logger logging.Logger
	now    func() time.Time

	hits    int64
	misses  int64
	applied int64
	ignored int64
}

type Option func(*Cache)

// WithClock sets the clock used when a delete or restore event carries no
// timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New subscribes to the user events, loads every record from loader and
// replays whatever was published while the load ran. No write committed
// during construction can be missed: it is either in the loaded snapshot,
// in the replay queue, or both.
func New(ctx context.Context, loader Loader, bus *eventbus.Bus, logger logging.Logger, opts ...Option) (*Cache, error) {
	c := &Cache{
		records:    make(map[int64]models.User),
		tombstones: make(map[int64]time.Time),
		loading:    true,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.subs = []*eventbus.Subscription{
		subscribe[events.UserCreated](c, bus),
		subscribe[events.UserUpdated](c, bus),
		subscribe[events.UserDeleted](c, bus),
		subscribe[events.UserRestored](c, bus),
		subscribe[events.UserPurged](c, bus),
	}

	users, err := loader.ListAll(ctx, nil)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("load read model: %w", err)
	}

	c.mu.Lock()
	for _, u := range users {
		c.records[u.ID] = u
	}
	replay := c.pending
	c.pending = nil
	for _, e := range replay {
		c.apply(ctx, e)
	}
	c.loading = false
	c.mu.Unlock()

	logger.Info(ctx, "read model loaded", "records", len(users), "replayed", len(replay))
	return c, nil
}

func subscribe[T any](c *Cache, bus *eventbus.Bus) *eventbus.Subscription {
	return eventbus.Subscribe(bus, func(ctx context.Context, e T) error {
		c.handle(ctx, e)
		return nil
	})
}

// Close detaches the cache from the bus. Reads keep working on the last
// state.
func (c *Cache) Close() {
	for _, s := range c.subs {
		s.Unsubscribe()
	}
}

// ListAll returns copies of the cached users ordered by id, optionally
// filtered by the deleted flag.
func (c *Cache) ListAll(_ context.Context, deleted *bool) []models.User {
	c.mu.RLock()
	result := make([]models.User, 0, len(c.records))
	for _, u := range c.records {
		if u.MatchesDeleted(deleted) {
			result = append(result, u)
		}
	}
	c.mu.RUnlock()

	slices.SortFunc(result, func(a, b models.User) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return result
}

// GetByID returns common.ErrorNotFound when the id is not cached.
func (c *Cache) GetByID(_ context.Context, id int64) (*models.User, error) {
	c.mu.RLock()
	u, ok := c.records[id]
	c.mu.RUnlock()

	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, common.ErrorNotFound
	}
	atomic.AddInt64(&c.hits, 1)
	return &u, nil
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	size := len(c.records)
	c.mu.RUnlock()

	return Stats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Applied: atomic.LoadInt64(&c.applied),
		Ignored: atomic.LoadInt64(&c.ignored),
		Size:    size,
	}
}

func (c *Cache) handle(ctx context.Context, event any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading {
		c.pending = append(c.pending, event)
		return
	}
	c.apply(ctx, event)
}

// apply must be called with c.mu held for writing. It never fails: every
// anomaly is logged and resolved in favour of keeping the cache servable.
func (c *Cache) apply(ctx context.Context, event any) {
	if id, ok := targetID(event); ok {
		if _, purged := c.tombstones[id]; purged {
			c.skip(ctx, event, id, "purged")
			return
		}
	}

	switch e := event.(type) {
	case events.UserCreated:
		if _, ok := c.records[e.User.ID]; ok {
			c.skip(ctx, e, e.User.ID, "already present")
			return
		}
		c.records[e.User.ID] = e.User

	case events.UserUpdated:
		current, ok := c.records[e.User.ID]
		if !ok {
			c.logger.Warn(ctx, "update for unknown user, inserting", "user_id", e.User.ID)
		} else if e.User.LastModified.Before(current.LastModified) {
			c.skip(ctx, e, e.User.ID, "stale")
			return
		}
		c.records[e.User.ID] = e.User

	case events.UserDeleted:
		if !c.setDeleted(ctx, e, e.ID, true, e.At) {
			return
		}

	case events.UserRestored:
		if !c.setDeleted(ctx, e, e.ID, false, e.At) {
			return
		}

	case events.UserPurged:
		if _, ok := c.tombstones[e.ID]; !ok {
			c.tombstones[e.ID] = c.now().UTC()
		}
		if _, ok := c.records[e.ID]; !ok {
			c.skip(ctx, e, e.ID, "unknown user")
			return
		}
		delete(c.records, e.ID)

	default:
		c.logger.Warn(ctx, "unexpected event type", "type", fmt.Sprintf("%T", event))
		return
	}

	atomic.AddInt64(&c.applied, 1)
}

// targetID returns the user id of every event a purge must shadow.
func targetID(event any) (int64, bool) {
	switch e := event.(type) {
	case events.UserCreated:
		return e.User.ID, true
	case events.UserUpdated:
		return e.User.ID, true
	case events.UserDeleted:
		return e.ID, true
	case events.UserRestored:
		return e.ID, true
	default:
		return 0, false
	}
}

func (c *Cache) setDeleted(ctx context.Context, event any, id int64, deleted bool, at time.Time) bool {
	current, ok := c.records[id]
	if !ok {
		c.skip(ctx, event, id, "unknown user")
		return false
	}

	if at.IsZero() {
		at = c.now().UTC()
	} else if at.Before(current.LastModified) {
		c.skip(ctx, event, id, "stale")
		return false
	}

	current.Deleted = deleted
	current.LastModified = at
	c.records[id] = current
	return true
}

func (c *Cache) skip(ctx context.Context, event any, id int64, reason string) {
	atomic.AddInt64(&c.ignored, 1)
	c.logger.Warn(ctx, "event ignored",
		"category", eventbus.CategoryOf(event),
		"user_id", id,
		"reason", reason,
	)
}
