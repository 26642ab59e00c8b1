package analytics

import (
	"container/list"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// ResultCache is an LRU cache with TTL for rendered analytics responses.
// The agent layer tends to repeat the same query in quick succession;
// a short TTL absorbs that without serving stale data for long.
type ResultCache struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lru      *list.List
}

type cacheEntry struct {
	key       string
	payload   []byte
	timestamp time.Time
	element   *list.Element
}

// NewResultCache creates a cache holding at most capacity entries, each
// valid for ttl.
func NewResultCache(capacity int, ttl time.Duration) *ResultCache {
	return &ResultCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[string]*cacheEntry),
		lru:      list.New(),
	}
}

// Get retrieves a cached payload by key.
func (rc *ResultCache) Get(key string) ([]byte, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	entry, exists := rc.cache[key]
	if !exists {
		return nil, false
	}
	if time.Since(entry.timestamp) > rc.ttl {
		rc.removeLocked(key)
		return nil, false
	}

	rc.lru.MoveToFront(entry.element)
	return entry.payload, true
}

// Put stores a payload under key, evicting the least recently used entry
// when full.
func (rc *ResultCache) Put(key string, payload []byte) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if entry, exists := rc.cache[key]; exists {
		entry.payload = payload
		entry.timestamp = time.Now()
		rc.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{
		key:       key,
		payload:   payload,
		timestamp: time.Now(),
	}
	entry.element = rc.lru.PushFront(entry)
	rc.cache[key] = entry

	if rc.lru.Len() > rc.capacity {
		oldest := rc.lru.Back()
		if oldest != nil {
			rc.removeLocked(oldest.Value.(*cacheEntry).key)
		}
	}
}

// removeLocked removes an entry (must hold lock).
func (rc *ResultCache) removeLocked(key string) {
	if entry, exists := rc.cache[key]; exists {
		rc.lru.Remove(entry.element)
		delete(rc.cache, key)
	}
}

// Clear drops all entries.
func (rc *ResultCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.cache = make(map[string]*cacheEntry)
	rc.lru = list.New()
}

// Size returns the current entry count.
func (rc *ResultCache) Size() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.cache)
}

// CacheKey builds a deterministic key from query identity parts.
func CacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0}) // separator
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
