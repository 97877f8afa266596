package toolmanager

import (
	"container/list"
	"sync"
	"time"
)

// cacheTTL is the default catalogue freshness window.
const cacheTTL = 60 * time.Second

// cacheCapacity bounds the number of group catalogues held at once;
// least-recently-used entries are evicted beyond it.
const cacheCapacity = 256

type cacheEntry struct {
	groupID    string
	tools      []ToolDescriptor
	generation uint64
	expiresAt  time.Time
	elem       *list.Element
}

// catalogueCache is an LRU, TTL-bounded cache of per-group tool
// catalogues, invalidated on server transitions, config reload, or group
// edits.
type catalogueCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	cap  int
	now  func() time.Time
	ll   *list.List
	idx  map[string]*cacheEntry
	gen  uint64

	hits   uint64
	misses uint64
}

func newCatalogueCache() *catalogueCache {
	return &catalogueCache{
		ttl: cacheTTL,
		cap: cacheCapacity,
		now: time.Now,
		ll:  list.New(),
		idx: make(map[string]*cacheEntry),
	}
}

// get returns the cached tool list for groupID if present and unexpired.
func (c *catalogueCache) get(groupID string) ([]ToolDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.idx[groupID]
	if !ok || c.now().After(e.expiresAt) {
		c.misses++
		return nil, false
	}
	c.ll.MoveToFront(e.elem)
	c.hits++
	return e.tools, true
}

// put stores a freshly computed catalogue for groupID.
func (c *catalogueCache) put(groupID string, tools []ToolDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if e, ok := c.idx[groupID]; ok {
		e.tools = tools
		e.generation = c.gen
		e.expiresAt = c.now().Add(c.ttl)
		c.ll.MoveToFront(e.elem)
		return
	}

	e := &cacheEntry{groupID: groupID, tools: tools, generation: c.gen, expiresAt: c.now().Add(c.ttl)}
	e.elem = c.ll.PushFront(e)
	c.idx[groupID] = e

	for c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.idx, oldest.Value.(*cacheEntry).groupID)
	}
}

// invalidate drops one group's cached catalogue.
func (c *catalogueCache) invalidate(groupID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.idx[groupID]; ok {
		c.ll.Remove(e.elem)
		delete(c.idx, groupID)
	}
}

// invalidateAll drops every cached catalogue — used on server status
// transitions and config reloads, which can affect any group.
func (c *catalogueCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.idx = make(map[string]*cacheEntry)
}

// stats exposes hit/miss counters.
func (c *catalogueCache) stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
