package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"taiwan-calendar/internal/model"
)

// Entry represents a cached resource listing with metadata.
type Entry struct {
	Resources []model.ResourceRef `json:"resources"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// Cache provides disk-based caching for resource listings, so repeated runs
// within the TTL do not hit the portal again.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
	mu  sync.RWMutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the clock used to stamp and expire entries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a new disk-based cache.
func New(cacheDir string, ttl time.Duration, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, err
	}
	c := &Cache{
		dir: cacheDir,
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get retrieves the cached listing for a lister if it exists and isn't expired.
func (c *Cache) Get(name string) ([]model.ResourceRef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.filePath(name))
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	if c.now().Sub(entry.FetchedAt) > c.ttl {
		return nil, false
	}

	return entry.Resources, true
}

// Set stores a listing in the cache.
func (c *Cache) Set(name string, resources []model.ResourceRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := Entry{
		Resources: resources,
		FetchedAt: c.now(),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.filePath(name), data, 0644)
}

// InvalidateAll drops every cached listing so the next List goes upstream.
func (c *Cache) InvalidateAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Cache) filePath(name string) string {
	// Sanitize name to be filesystem-safe
	safeName := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			safeName = append(safeName, r)
		} else {
			safeName = append(safeName, '_')
		}
	}
	return filepath.Join(c.dir, string(safeName)+".json")
}
