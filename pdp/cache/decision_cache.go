// Package cache holds the in-memory decision and policy caches.
package cache

import (
	"sync"
	"time"

	"github.com/dev-mohitbeniwal/bouncer/model"
)

type decisionEntry struct {
	decision  *model.Decision
	createdAt time.Time
	expiresAt time.Time
}

// DecisionCache stores evaluated decisions under opaque keys. Every entry
// carries the TTL it was written with and is dropped on the first read after
// it expires.
type DecisionCache struct {
	mu      sync.RWMutex
	entries map[string]decisionEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// DecisionCacheOption configures the decision cache.
type DecisionCacheOption func(*DecisionCache)

// WithDecisionTTL sets the per-entry time-to-live.
func WithDecisionTTL(ttl time.Duration) DecisionCacheOption {
	return func(c *DecisionCache) { c.ttl = ttl }
}

// WithDecisionMaxSize bounds the number of entries.
func WithDecisionMaxSize(n int) DecisionCacheOption {
	return func(c *DecisionCache) { c.maxSize = n }
}

// WithDecisionClock overrides the time source.
func WithDecisionClock(now func() time.Time) DecisionCacheOption {
	return func(c *DecisionCache) { c.now = now }
}

func NewDecisionCache(opts ...DecisionCacheOption) *DecisionCache {
	c := &DecisionCache{
		entries: make(map[string]decisionEntry),
		ttl:     time.Minute,
		maxSize: 10000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *DecisionCache) Get(key string) (*model.Decision, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.decision, true
}

func (c *DecisionCache) Set(key string, decision *model.Decision) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictExpired(now)
		if len(c.entries) >= c.maxSize {
			c.evictOne()
		}
	}

	c.entries[key] = decisionEntry{
		decision:  decision,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

func (c *DecisionCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]decisionEntry)
	c.mu.Unlock()
}

// Size counts stored entries, including expired ones not yet read.
func (c *DecisionCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictExpired removes all expired entries. Must hold write lock.
func (c *DecisionCache) evictExpired(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (c *DecisionCache) evictOne() {
	for k := range c.entries {
		delete(c.entries, k)
		return
	}
}
