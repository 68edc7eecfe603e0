/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package cache provides the parsed statement cache for pagedb.

Statement Cache Overview:
=========================

Tokenizing and parsing are pure functions of the SQL text, so a session can
reuse the statement tree produced for text it has already seen. The cache is
keyed by the exact SQL text and holds at most MaxEntries trees, evicting the
least recently used one when full.

Cached values must be treated as read-only by callers: the executor never
mutates a statement tree, and parameter values are bound into a per-execution
context rather than into the tree.

Usage Example:
==============

	c := cache.New[sql.Statement](256)

	if stmt, ok := c.Get(text); ok {
		return stmt
	}
	stmt, err := parse(text)
	if err == nil {
		c.Put(text, stmt)
	}
*/
package cache

import (
	"container/list"
	"sync"
)

type entry[V any] struct {
	key   string
	value V
}

// LRU is a size-bounded, thread-safe least-recently-used cache.
type LRU[V any] struct {
	mu         sync.Mutex
	maxEntries int
	items      map[string]*list.Element
	order      *list.List

	hits   int64
	misses int64
}

// New creates an LRU holding at most maxEntries values.
// A non-positive size yields a cache that stores nothing.
func New[V any](maxEntries int) *LRU[V] {
	return &LRU[V]{
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns the value cached under key and marks it recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		c.hits++
		return elem.Value.(*entry[V]).value, true
	}
	c.misses++
	var zero V
	return zero, false
}

// Put stores value under key, evicting the oldest entry when full.
func (c *LRU[V]) Put(key string, value V) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry[V]).value = value
		c.order.MoveToFront(elem)
		return
	}

	for len(c.items) >= c.maxEntries {
		c.evictOldest()
	}
	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value})
}

// Remove drops key from the cache.
func (c *LRU[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
}

// Purge clears the entire cache.
func (c *LRU[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
}

// Len returns the number of cached entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// evictOldest removes the least recently used entry (must hold lock).
func (c *LRU[V]) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*entry[V]).key)
}

// Stats holds cache statistics.
type Stats struct {
	Hits       int64
	Misses     int64
	Entries    int
	MaxEntries int
	HitRate    float64
}

// Stats returns current cache statistics.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:       c.hits,
		Misses:     c.misses,
		Entries:    len(c.items),
		MaxEntries: c.maxEntries,
		HitRate:    hitRate,
	}
}
