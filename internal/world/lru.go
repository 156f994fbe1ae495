package world

import (
	"container/list"
	"fmt"
)

// pathCache is a fixed-capacity LRU of computed cell paths, keyed by
// (realm, start cell, goal cell). Grid rebuilds drop the whole cache, so
// entries never outlive the grid they were computed on. Not safe for
// concurrent use; the Service serializes access.
type pathCache struct {
	cap     int
	entries map[string]*list.Element
	order   *list.List
}

type cacheEntry struct {
	key  string
	path []Cell
}

func newPathCache(capacity int) *pathCache {
	if capacity < 1 {
		capacity = 1
	}
	return &pathCache{
		cap:     capacity,
		entries: make(map[string]*list.Element, capacity),
		order:   list.New(),
	}
}

func pathKey(realm byte, start, goal Cell) string {
	return fmt.Sprintf("%d:%d,%d:%d,%d", realm, start.X, start.Y, goal.X, goal.Y)
}

func (c *pathCache) get(key string) ([]Cell, bool) {
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).path, true
}

func (c *pathCache) put(key string, path []Cell) {
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).path = path
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, path: path})
	if c.order.Len() > c.cap {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *pathCache) len() int { return c.order.Len() }
