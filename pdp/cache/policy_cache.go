package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/bouncer/logging"
	"github.com/dev-mohitbeniwal/bouncer/model"
)

const (
	policyKeyPrefix     = "policy:"
	dataSourceKeyPrefix = "datasource:"
	bundleKey           = "bundle:current"
)

// CacheEntry is one policy cache slot. AccessCount and LastAccess drive
// eviction.
type CacheEntry struct {
	Value       interface{}
	CreatedAt   time.Time
	ExpiresAt   time.Time
	AccessCount int64
	LastAccess  time.Time
}

func (e *CacheEntry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// PolicyStats is a point-in-time view of the policy cache.
type PolicyStats struct {
	Size          int       `json:"size"`
	MaxSize       int       `json:"max_size"`
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	Evictions     int64     `json:"evictions"`
	Expirations   int64     `json:"expirations"`
	BundleID      string    `json:"bundle_id,omitempty"`
	BundleVersion string    `json:"bundle_version,omitempty"`
	LastUpdate    time.Time `json:"last_update,omitempty"`
}

// PolicyCache is a capacity-bounded TTL cache holding the policies and data
// sources of the last synced bundle.
//
// Eviction scans every entry for the oldest LastAccess. That is O(n) per
// eviction and is only meant for caches of hundreds to a few thousand
// entries.
type PolicyCache struct {
	mu            sync.RWMutex
	entries       map[string]*CacheEntry
	maxSize       int
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
	bundle      model.BundleInfo

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// PolicyCacheOption configures the policy cache.
type PolicyCacheOption func(*PolicyCache)

func WithPolicyMaxSize(n int) PolicyCacheOption {
	return func(c *PolicyCache) { c.maxSize = n }
}

func WithPolicyTTL(ttl time.Duration) PolicyCacheOption {
	return func(c *PolicyCache) { c.ttl = ttl }
}

func WithSweepInterval(d time.Duration) PolicyCacheOption {
	return func(c *PolicyCache) { c.sweepInterval = d }
}

func WithPolicyClock(now func() time.Time) PolicyCacheOption {
	return func(c *PolicyCache) { c.now = now }
}

func NewPolicyCache(opts ...PolicyCacheOption) *PolicyCache {
	c := &PolicyCache{
		entries:       make(map[string]*CacheEntry),
		maxSize:       1000,
		ttl:           30 * time.Minute,
		sweepInterval: time.Minute,
		now:           time.Now,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the background sweep. It runs until ctx is done or Stop is
// called. Calling Start more than once has no effect.
func (c *PolicyCache) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.sweepLoop(ctx)
	})
}

// Stop halts the sweep and waits for it to exit. Safe to call repeatedly and
// without a prior Start.
func (c *PolicyCache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}

func (c *PolicyCache) sweepLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				logger.Debug("Swept expired policy cache entries", zap.Int("removed", removed))
			}
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep removes every expired entry and returns how many were removed.
func (c *PolicyCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	c.expirations += int64(removed)
	return removed
}

// Set stores value under key with the cache TTL.
func (c *PolicyCache) Set(key string, value interface{}) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, now)
}

func (c *PolicyCache) setLocked(key string, value interface{}, now time.Time) {
	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}
	c.entries[key] = &CacheEntry{
		Value:      value,
		CreatedAt:  now,
		ExpiresAt:  now.Add(c.ttl),
		LastAccess: now,
	}
}

// evictLRU removes the entry with the oldest LastAccess. Must hold write lock.
func (c *PolicyCache) evictLRU() {
	var oldestKey string
	var oldest time.Time
	found := false
	for k, e := range c.entries {
		if !found || e.LastAccess.Before(oldest) {
			oldestKey, oldest, found = k, e.LastAccess, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

// Get returns the value for key. A hit updates the entry's recency, so Get
// takes the write lock.
func (c *PolicyCache) Get(key string) (interface{}, bool) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if e.expired(now) {
		delete(c.entries, key)
		c.expirations++
		c.misses++
		return nil, false
	}
	e.AccessCount++
	e.LastAccess = now
	c.hits++
	return e.Value, true
}

func (c *PolicyCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *PolicyCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.bundle = model.BundleInfo{}
	c.mu.Unlock()
}

// UpdatePolicies writes every policy and data source of bundle with a fresh
// TTL. Entries missing from the bundle are left alone and age out.
func (c *PolicyCache) UpdatePolicies(bundle *model.PolicyBundle) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range bundle.Policies {
		c.setLocked(policyKeyPrefix+p.ID, p, now)
	}
	for _, ds := range bundle.DataSources {
		c.setLocked(dataSourceKeyPrefix+ds.ID, ds, now)
	}
	c.bundle = model.BundleInfo{
		ID:          bundle.ID,
		Version:     bundle.Version,
		PolicyCount: len(bundle.Policies),
		SourceCount: len(bundle.DataSources),
		UpdatedAt:   now,
	}
	c.setLocked(bundleKey, c.bundle, now)

	logger.Info("Policy cache updated",
		zap.String("bundleID", bundle.ID),
		zap.String("version", bundle.Version),
		zap.Int("policies", len(bundle.Policies)),
		zap.Int("dataSources", len(bundle.DataSources)))
}

func (c *PolicyCache) GetPolicy(id string) (*model.Policy, bool) {
	v, ok := c.Get(policyKeyPrefix + id)
	if !ok {
		return nil, false
	}
	p, ok := v.(model.Policy)
	if !ok {
		return nil, false
	}
	return &p, true
}

func (c *PolicyCache) GetDataSource(id string) (*model.DataSource, bool) {
	v, ok := c.Get(dataSourceKeyPrefix + id)
	if !ok {
		return nil, false
	}
	ds, ok := v.(model.DataSource)
	if !ok {
		return nil, false
	}
	return &ds, true
}

// ListPolicies returns the unexpired policies sorted by ID. Listing does not
// count as access.
func (c *PolicyCache) ListPolicies() []model.Policy {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	policies := make([]model.Policy, 0)
	for k, e := range c.entries {
		if !strings.HasPrefix(k, policyKeyPrefix) || e.expired(now) {
			continue
		}
		if p, ok := e.Value.(model.Policy); ok {
			policies = append(policies, p)
		}
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].ID < policies[j].ID })
	return policies
}

// Bundle returns the summary of the last bundle written by UpdatePolicies.
func (c *PolicyCache) Bundle() model.BundleInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bundle
}

func (c *PolicyCache) Stats() PolicyStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return PolicyStats{
		Size:          len(c.entries),
		MaxSize:       c.maxSize,
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Expirations:   c.expirations,
		BundleID:      c.bundle.ID,
		BundleVersion: c.bundle.Version,
		LastUpdate:    c.bundle.UpdatedAt,
	}
}
