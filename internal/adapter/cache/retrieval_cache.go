package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"lexrag/internal/domain"
)

// RetrievalCache memoizes per-document retrieval results. Entries expire
// after a TTL and are dropped wholesale whenever the index generation
// advances (any document indexed or deleted).
type RetrievalCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
}

type cacheEntry struct {
	results   []domain.ScoredChunk
	timestamp time.Time
	indexGen  uint64
}

func NewRetrievalCache(maxSize int, ttl time.Duration) *RetrievalCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RetrievalCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(docID, query string, topK int) string {
	h := sha256.New()
	h.Write([]byte(docID))
	h.Write([]byte{0})
	h.Write([]byte(query))
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(topK))
	h.Write(k[:])
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *RetrievalCache) Get(docID, query string, topK int) ([]domain.ScoredChunk, bool) {
	key := cacheKey(docID, query, topK)

	c.mu.RLock()
	entry, exists := c.entries[key]
	currentGen := c.indexGen
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Since(entry.timestamp) > c.ttl || entry.indexGen != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()
	return entry.results, true
}

func (c *RetrievalCache) Put(docID, query string, topK int, results []domain.ScoredChunk) {
	key := cacheKey(docID, query, topK)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		// Evict the least recently used entry.
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	} else {
		c.moveToEnd(key)
	}
	c.entries[key] = &cacheEntry{
		results:   results,
		timestamp: time.Now(),
		indexGen:  c.indexGen,
	}
}

// Invalidate advances the index generation, making all cached results
// stale. Called after any index mutation.
func (c *RetrievalCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexGen++
}

func (c *RetrievalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *RetrievalCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *RetrievalCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}
