package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
	"go.uber.org/zap"
)

// Backing persists cache entries between runs.
type Backing interface {
	GetCached(key string) (text string, storedAt time.Time, ok bool, err error)
	PutCached(key, text string, storedAt time.Time) error
}

// ExtractionCache is an LRU cache of extraction output with a TTL. Keys are
// arbitrary JSON-encodable values, digested in RFC 8785 canonical form so
// field order and formatting never split an entry.
type ExtractionCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	backing Backing
	logger  *zap.Logger
}

type cacheEntry struct {
	text      string
	timestamp time.Time
}

// NewExtractionCache returns a cache of at most maxSize entries. backing may
// be nil.
func NewExtractionCache(maxSize int, ttl time.Duration, backing Backing, logger *zap.Logger) *ExtractionCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractionCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		backing: backing,
		logger:  logger,
	}
}

// Key returns the canonical digest of key.
func Key(key any) (string, error) {
	raw, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalise cache key: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func (c *ExtractionCache) Lookup(key any) (string, bool) {
	k, err := Key(key)
	if err != nil {
		c.logger.Warn("cache lookup skipped", zap.Error(err))
		return "", false
	}

	c.mu.RLock()
	entry, exists := c.entries[k]
	c.mu.RUnlock()

	if !exists {
		return c.lookupBacking(k)
	}

	if time.Since(entry.timestamp) > c.ttl {
		c.mu.Lock()
		delete(c.entries, k)
		c.removeFromOrder(k)
		c.mu.Unlock()
		return "", false
	}

	c.mu.Lock()
	c.moveToEnd(k)
	c.mu.Unlock()

	return entry.text, true
}

func (c *ExtractionCache) lookupBacking(k string) (string, bool) {
	if c.backing == nil {
		return "", false
	}
	text, at, ok, err := c.backing.GetCached(k)
	if err != nil {
		c.logger.Warn("cache backing read failed", zap.Error(err))
		return "", false
	}
	if !ok || time.Since(at) > c.ttl {
		return "", false
	}
	c.put(k, text, at)
	return text, true
}

func (c *ExtractionCache) Store(key any, text string) {
	k, err := Key(key)
	if err != nil {
		c.logger.Warn("cache store skipped", zap.Error(err))
		return
	}
	now := time.Now()
	c.put(k, text, now)

	if c.backing != nil {
		if err := c.backing.PutCached(k, text, now); err != nil {
			c.logger.Warn("cache backing write failed", zap.Error(err))
		}
	}
}

func (c *ExtractionCache) put(k, text string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[k]; exists {
		c.entries[k] = &cacheEntry{text: text, timestamp: at}
		c.moveToEnd(k)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[k] = &cacheEntry{text: text, timestamp: at}
	c.order = append(c.order, k)
}

// Invalidate drops every in-memory entry. Backing entries are left alone.
func (c *ExtractionCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

func (c *ExtractionCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ExtractionCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *ExtractionCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *ExtractionCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
