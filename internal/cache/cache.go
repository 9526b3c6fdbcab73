// Package cache remembers past classifications so repeated runs over
// unchanged paragraphs never pay for a second LLM call. It layers an
// in-process map over an optional persistent store; entries flow
// through both tiers on write and promote from the persistent tier to
// memory on read.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/style-tagger/internal/textsim"
	"github.com/jonathan/style-tagger/internal/types"
)

// DefaultTTL bounds entry lifetime. Expired entries are treated as
// misses and dropped on read.
const DefaultTTL = 30 * 24 * time.Hour

// Entry is one cached classification.
type Entry struct {
	Key        string    `json:"key"`
	Tag        string    `json:"tag"`
	Confidence int       `json:"confidence"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the persistent tier. Implementations must be safe for
// concurrent use. A nil Store degrades the cache to memory only.
type Store interface {
	GetEntry(ctx context.Context, key string) (Entry, bool, error)
	PutEntry(ctx context.Context, entry Entry) error
	DeleteEntry(ctx context.Context, key string) error
}

// Cache is the two-tier prediction cache.
type Cache struct {
	mu    sync.RWMutex
	mem   map[string]Entry
	store Store
	ttl   time.Duration

	statsMu sync.Mutex
	hits    int
	misses  int

	now func() time.Time
}

// New returns a Cache over an optional persistent store. A
// non-positive ttl falls back to DefaultTTL.
func New(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		mem:   make(map[string]Entry),
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Key derives the cache key for one paragraph. The text is normalized
// first so whitespace-only edits do not invalidate entries; the key is
// the first 16 hex characters of a SHA-256 digest.
func Key(docID string, paraIndex int, text, zone string) string {
	payload := fmt.Sprintf("%s:%d:%s:%s", docID, paraIndex, textsim.Normalize(text), zone)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:16]
}

// Get looks up a paragraph's cached classification, checking memory
// first and the persistent store second. Expired entries count as
// misses and are deleted from both tiers.
func (c *Cache) Get(ctx context.Context, docID string, paraIndex int, text, zone string) (Entry, bool) {
	key := Key(docID, paraIndex, text, zone)

	c.mu.RLock()
	entry, ok := c.mem[key]
	c.mu.RUnlock()

	if ok {
		if c.expired(entry) {
			c.evict(ctx, key)
			c.recordMiss()
			return Entry{}, false
		}
		c.recordHit()
		return entry, true
	}

	if c.store != nil {
		stored, found, err := c.store.GetEntry(ctx, key)
		if err == nil && found {
			if c.expired(stored) {
				c.evict(ctx, key)
				c.recordMiss()
				return Entry{}, false
			}
			c.mu.Lock()
			c.mem[key] = stored
			c.mu.Unlock()
			c.recordHit()
			return stored, true
		}
	}

	c.recordMiss()
	return Entry{}, false
}

// Put stores a classification in both tiers. Persistent-tier write
// failures are not fatal; the memory tier still serves the entry for
// the life of the process.
func (c *Cache) Put(ctx context.Context, docID string, paraIndex int, text, zone string, result types.Classification) error {
	entry := Entry{
		Key:        Key(docID, paraIndex, text, zone),
		Tag:        result.Tag,
		Confidence: result.Confidence,
		Source:     result.Source,
		CreatedAt:  c.now(),
	}

	c.mu.Lock()
	c.mem[entry.Key] = entry
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.PutEntry(ctx, entry); err != nil {
			return fmt.Errorf("persistent cache write failed: %w", err)
		}
	}
	return nil
}

// Stats returns hit/miss counters accumulated since construction.
func (c *Cache) Stats() types.CacheStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	stats := types.CacheStats{Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// Clear drops the memory tier. The persistent tier is left intact.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.mem = make(map[string]Entry)
	c.mu.Unlock()
}

func (c *Cache) expired(entry Entry) bool {
	return c.now().Sub(entry.CreatedAt) > c.ttl
}

func (c *Cache) evict(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.mem, key)
	c.mu.Unlock()
	if c.store != nil {
		_ = c.store.DeleteEntry(ctx, key)
	}
}

func (c *Cache) recordHit() {
	c.statsMu.Lock()
	c.hits++
	c.statsMu.Unlock()
}

func (c *Cache) recordMiss() {
	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
}
