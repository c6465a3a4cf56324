// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cache provides a short-TTL response cache keyed by deterministic
// request digests. It avoids redundant provider calls for inputs seen within
// the last minute; nothing in it survives the process.
package cache

import (
	"container/list"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Entry is a cached response value with its expiry.
type Entry struct {
	// Key is the request digest the value was stored under.
	Key string

	// Value is the cached response payload.
	Value string

	// ExpiresAt is when the entry stops being served.
	ExpiresAt time.Time

	// element is the insertion-order list element used for eviction.
	element *list.Element
}

// Metrics tracks cache performance counters.
type Metrics struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Expired   int64 `json:"expired"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// Cache is a TTL-bounded response store. Expired entries are dropped lazily
// on lookup; when the table outgrows its bound the oldest entries go first.
// All methods are safe for concurrent use.
type Cache struct {
	mu sync.Mutex

	// entries maps request digest to entry.
	entries map[string]*Entry

	// order holds entries oldest-first for bounded eviction.
	order *list.List

	// maxEntries caps the table size; the traffic pattern keeps the table
	// far below this in practice.
	maxEntries int

	metrics Metrics
}

// New creates a cache bounded to maxEntries. A bound of zero or below falls
// back to 200 entries.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return &Cache{
		entries:    make(map[string]*Entry),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

// Key builds a deterministic digest from the fields that determine a
// response. Identical part sequences always produce the same key.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", sum[:16])
}

// Get returns the value stored under key if it has not expired. An expired
// entry is removed on the spot and reported as a miss.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.metrics.Misses++
		return "", false
	}
	if time.Now().After(entry.ExpiresAt) {
		c.removeLocked(entry)
		c.metrics.Expired++
		c.metrics.Misses++
		return "", false
	}

	c.metrics.Hits++
	return entry.Value, true
}

// Put stores value under key for ttl. Storing an existing key refreshes its
// value and expiry and makes it the newest entry.
func (c *Cache) Put(key, value string, ttl time.Duration) {
	if key == "" || ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.Value = value
		entry.ExpiresAt = time.Now().Add(ttl)
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxEntries {
		c.sweepLocked()
	}
	for len(c.entries) >= c.maxEntries {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*Entry))
		c.metrics.Evictions++
	}

	entry := &Entry{
		Key:       key,
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}
	entry.element = c.order.PushBack(entry)
	c.entries[key] = entry
}

// Len returns the number of live entries, counting ones that have expired
// but not yet been looked up.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	c.order.Init()
}

// Stats returns a copy of the performance counters.
func (c *Cache) Stats() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.metrics
	m.Size = len(c.entries)
	return m
}

// sweepLocked drops every expired entry. Called when the table hits its
// bound so eviction prefers dead entries over live ones.
func (c *Cache) sweepLocked() {
	now := time.Now()
	for e := c.order.Front(); e != nil; {
		next := e.Next()
		entry := e.Value.(*Entry)
		if now.After(entry.ExpiresAt) {
			c.removeLocked(entry)
			c.metrics.Expired++
		}
		e = next
	}
}

func (c *Cache) removeLocked(entry *Entry) {
	delete(c.entries, entry.Key)
	if entry.element != nil {
		c.order.Remove(entry.element)
		entry.element = nil
	}
}
