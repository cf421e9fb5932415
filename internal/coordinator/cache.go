package coordinator

import (
	"sync"

	"echelon/internal/domain"
	"echelon/internal/hierarchy"
)

// Snapshot is one immutable copy of the hierarchy as fetched from the data
// service
type Snapshot struct {
	Generation uint64
	Forest     []domain.BulletPoint
	Teams      []domain.Team
	Index      *hierarchy.TeamIndex
}

// Cache holds at most one Snapshot. Every Discard advances the generation,
// and Replace only succeeds for the generation it was fetched under, so a
// fetch that raced with a newer discard cannot install stale data.
type Cache struct {
	mu         sync.RWMutex
	current    *Snapshot
	generation uint64
}

// NewCache returns an empty cache at generation zero
func NewCache() *Cache {
	return &Cache{}
}

// Load returns the current snapshot, or nil after a Discard
func (c *Cache) Load() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Generation returns the current generation
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Discard drops the snapshot and returns the new generation
func (c *Cache) Discard() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.generation++
	return c.generation
}

// Replace installs a snapshot fetched under generation gen. It returns false
// and leaves the cache alone if the generation has moved on.
func (c *Cache) Replace(gen uint64, forest []domain.BulletPoint, teams []domain.Team) (*Snapshot, bool) {
	snap := &Snapshot{
		Generation: gen,
		Forest:     forest,
		Teams:      teams,
		Index:      hierarchy.NewTeamIndex(teams),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return snap, false
	}
	c.current = snap
	return snap, true
}
