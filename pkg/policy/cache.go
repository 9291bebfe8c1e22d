// Package policy fetches and caches the small remote policy document
// that gates the device-side replay workflow. On fetch failure it falls
// back to the last persisted cache while within TTL, then to hardcoded
// defaults with replay disabled.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Policy is the remote policy document: a replay gate plus an open
// extensible map for forward compatibility.
type Policy struct {
	ReplayEnabled bool           `json:"replayEnabled"`
	Extras        map[string]any `json:"extras,omitempty"`
}

// Default returns the hardcoded fallback policy: replay disabled.
func Default() *Policy {
	return &Policy{ReplayEnabled: false}
}

// Fetcher retrieves the policy document from the remote collector.
type Fetcher interface {
	FetchPolicy(ctx context.Context) (*Policy, error)
}

// cacheFile is the persisted fallback format.
type cacheFile struct {
	Policy    *Policy   `json:"policy"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Config contains configuration for the policy cache.
type Config struct {
	// TTL is how long a fetched policy stays fresh. RefreshIfNeeded
	// re-fetches only once the TTL has elapsed, and the persisted cache
	// is trusted as a fallback only within the TTL. Default: 1 hour.
	TTL time.Duration

	// CachePath is the persisted fallback cache file.
	// Default: "data/policy.json".
	CachePath string
}

// Cache holds the current policy in memory, guarded for concurrent
// access from capture calls and the scheduler.
type Cache struct {
	fetcher   Fetcher
	ttl       time.Duration
	cachePath string
	logger    *slog.Logger

	mu        sync.RWMutex
	current   *Policy
	lastFetch time.Time
}

// NewCache creates a policy cache. The in-memory policy starts from the
// persisted cache if one exists and is within TTL, else from defaults.
func NewCache(fetcher Fetcher, cfg *Config) *Cache {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.CachePath == "" {
		cfg.CachePath = "data/policy.json"
	}

	c := &Cache{
		fetcher:   fetcher,
		ttl:       cfg.TTL,
		cachePath: cfg.CachePath,
		logger:    slog.Default().With("component", "policy.cache"),
		current:   Default(),
	}

	if cached, fetchedAt, err := c.readCacheFile(); err == nil {
		if time.Since(fetchedAt) < c.ttl {
			c.current = cached
			c.lastFetch = fetchedAt
		}
	}

	return c
}

// FetchSettings calls the remote policy endpoint. On success it updates
// the in-memory policy and persists a timestamped cache. On failure it
// falls back to the persisted cache if within TTL, else to defaults.
func (c *Cache) FetchSettings(ctx context.Context) (*Policy, error) {
	fetched, err := c.fetcher.FetchPolicy(ctx)
	if err == nil && fetched != nil {
		now := time.Now()
		c.mu.Lock()
		c.current = fetched
		c.lastFetch = now
		c.mu.Unlock()

		if writeErr := c.writeCacheFile(fetched, now); writeErr != nil {
			c.logger.Warn("failed to persist policy cache",
				"error", writeErr,
			)
		}
		return fetched, nil
	}

	c.logger.Warn("policy fetch failed, using fallback",
		"error", err,
	)

	if cached, fetchedAt, readErr := c.readCacheFile(); readErr == nil {
		if time.Since(fetchedAt) < c.ttl {
			c.mu.Lock()
			c.current = cached
			c.mu.Unlock()
			return cached, nil
		}
	}

	fallback := Default()
	c.mu.Lock()
	c.current = fallback
	c.mu.Unlock()
	return fallback, nil
}

// RefreshIfNeeded re-fetches the policy only once the TTL has elapsed
// since the last successful fetch.
func (c *Cache) RefreshIfNeeded(ctx context.Context) (*Policy, error) {
	c.mu.RLock()
	fresh := time.Since(c.lastFetch) < c.ttl && !c.lastFetch.IsZero()
	current := c.current
	c.mu.RUnlock()

	if fresh {
		return current, nil
	}
	return c.FetchSettings(ctx)
}

// Current returns the in-memory policy.
func (c *Cache) Current() *Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// ReplayEnabled reports whether remote policy allows replay.
func (c *Cache) ReplayEnabled() bool {
	return c.Current().ReplayEnabled
}

// LastFetch returns the time of the last successful fetch.
func (c *Cache) LastFetch() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastFetch
}

// readCacheFile loads the persisted fallback cache.
func (c *Cache) readCacheFile() (*Policy, time.Time, error) {
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return nil, time.Time{}, err
	}

	var cached cacheFile
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, time.Time{}, fmt.Errorf("corrupt policy cache: %w", err)
	}
	if cached.Policy == nil {
		return nil, time.Time{}, fmt.Errorf("policy cache missing policy document")
	}

	return cached.Policy, cached.FetchedAt, nil
}

// writeCacheFile persists the fallback cache with its fetch timestamp.
func (c *Cache) writeCacheFile(p *Policy, fetchedAt time.Time) error {
	data, err := json.Marshal(cacheFile{Policy: p, FetchedAt: fetchedAt})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.cachePath, data, 0o600)
}
