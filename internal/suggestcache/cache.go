// Package suggestcache caches completed suggestions by fingerprint so a
// repeated (prefix, suffix) pair within the TTL window skips the upstream
// call entirely.
package suggestcache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// Entry is a cached completion and the moment it stops being valid.
type Entry struct {
	Completion string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the entry is past its TTL.
func (e *Entry) Expired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Cache is a single-tier, in-memory LRU cache keyed by fingerprint with
// per-entry TTL expiry. It never persists across restarts.
type Cache struct {
	entries *lru.Cache[string, *Entry]
	ttl     time.Duration
}

// New creates a Cache with the given capacity and time-to-live.
func New(capacity int, ttl time.Duration) (*Cache, error) {
	if capacity <= 0 {
		capacity = 512
	}
	entries, err := lru.New[string, *Entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("suggestcache: creating LRU: %w", err)
	}
	return &Cache{entries: entries, ttl: ttl}, nil
}

// Get returns the cached completion for fingerprint, if present and not
// expired. An expired entry is evicted on lookup.
func (c *Cache) Get(fingerprint string) (string, bool) {
	entry, ok := c.entries.Get(fingerprint)
	if !ok {
		return "", false
	}
	if entry.Expired() {
		c.entries.Remove(fingerprint)
		return "", false
	}
	return entry.Completion, true
}

// Set stores completion under fingerprint. Empty completions are never
// stored, since they carry no useful information for a future hit.
func (c *Cache) Set(fingerprint, completion string) {
	if completion == "" {
		return
	}
	now := time.Now()
	c.entries.Add(fingerprint, &Entry{
		Completion: completion,
		CreatedAt:  now,
		ExpiresAt:  now.Add(c.ttl),
	})
}

// StartPurger runs a background goroutine that evicts expired entries
// every interval until ctx is cancelled. The returned channel closes when
// the goroutine exits.
func (c *Cache) StartPurger(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Error().Interface("panic", r).Msg("suggestcache purger: recovered from panic")
						}
					}()
					c.purge()
				}()
			}
		}
	}()
	return done
}

func (c *Cache) purge() {
	for _, key := range c.entries.Keys() {
		if entry, ok := c.entries.Peek(key); ok && entry.Expired() {
			c.entries.Remove(key)
		}
	}
}

// Len returns the current number of entries (including any not yet
// purged but expired).
func (c *Cache) Len() int {
	return c.entries.Len()
}
