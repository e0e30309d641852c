// Package roster caches group member lists for the lottery. Entries live for
// a fixed TTL and can be invalidated explicitly when membership changes.
package roster

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-group-bot/internal/domain"
)

// DefaultTTL is used when NewCache gets a non-positive TTL.
const DefaultTTL = 10 * time.Minute

// Source loads a group's current roster.
type Source interface {
	FetchMembers(ctx context.Context, groupID int64) ([]domain.Member, error)
}

type entry struct {
	members []domain.Member
	expires time.Time
}

// Cache is a TTL cache over a Source. Concurrent misses for the same group
// share one Source call.
//
// This type is safe for concurrent use.
type Cache struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[int64]entry
	// gen is bumped on invalidation so a fetch that started earlier does not
	// repopulate the entry with stale data.
	gen map[int64]uint64

	flight singleflight.Group
}

// NewCache returns a cache over src.
func NewCache(src Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		src:     src,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]entry),
		gen:     make(map[int64]uint64),
	}
}

// Members returns the group's roster, loading it on a miss or after expiry.
// The returned slice is the caller's to modify.
func (c *Cache) Members(ctx context.Context, groupID int64) ([]domain.Member, error) {
	c.mu.RLock()
	e, ok := c.entries[groupID]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		return slices.Clone(e.members), nil
	}

	v, err, _ := c.flight.Do(strconv.FormatInt(groupID, 10), func() (any, error) {
		c.mu.RLock()
		startGen := c.gen[groupID]
		c.mu.RUnlock()

		members, err := c.src.FetchMembers(ctx, groupID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen[groupID] == startGen {
			c.entries[groupID] = entry{members: members, expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return members, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]domain.Member)), nil
}

// MemberIDs returns the user ids of the group's roster.
func (c *Cache) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	members, err := c.Members(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

// Member looks up one member of the group.
func (c *Cache) Member(ctx context.Context, groupID, userID int64) (domain.Member, bool, error) {
	members, err := c.Members(ctx, groupID)
	if err != nil {
		return domain.Member{}, false, err
	}
	for _, m := range members {
		if m.UserID == userID {
			return m, true, nil
		}
	}
	return domain.Member{}, false, nil
}

// Invalidate drops the group's entry; the next read reloads it.
func (c *Cache) Invalidate(groupID int64) {
	c.mu.Lock()
	delete(c.entries, groupID)
	c.gen[groupID]++
	c.mu.Unlock()
	c.flight.Forget(strconv.FormatInt(groupID, 10))
}

// Len returns the number of cached groups, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
