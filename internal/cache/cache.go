package cache

import (
	"sync"

	"github.com/bandfield/marchsim/pkg/core"
)

// LevelCache holds levels by id once they are loaded so opening a session does
// not hit the database. Writers must Invalidate the level they change.
type LevelCache struct {
	m      sync.Mutex
	Levels map[uint]core.Level
	hits   SafeCounter
	misses SafeCounter
}

func NewLevelCache() *LevelCache {
	return &LevelCache{
		Levels: make(map[uint]core.Level),
	}
}

// GetLevel returns a copy of the cached level. The member slice is not shared.
func (c *LevelCache) GetLevel(id uint) (core.Level, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	l, ok := c.Levels[id]
	if !ok {
		c.misses.Inc()
		return core.Level{}, false
	}
	c.hits.Inc()
	l.BandMembers = append([]core.BandMember(nil), l.BandMembers...)
	return l, true
}

func (c *LevelCache) AddLevel(l core.Level) {
	c.m.Lock()
	defer c.m.Unlock()
	l.BandMembers = append([]core.BandMember(nil), l.BandMembers...)
	c.Levels[l.ID] = l
}

// AddPlay bumps the play counter of a cached level in place. Play counts
// change on every session open, so they must not evict the level.
func (c *LevelCache) AddPlay(id uint) {
	c.m.Lock()
	defer c.m.Unlock()
	if l, ok := c.Levels[id]; ok {
		l.Plays++
		c.Levels[id] = l
	}
}

func (c *LevelCache) Invalidate(id uint) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.Levels, id)
}

func (c *LevelCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.Levels)
}

// Stats returns the hit and miss counts since creation.
func (c *LevelCache) Stats() (hits, misses int) {
	return c.hits.Value(), c.misses.Value()
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
