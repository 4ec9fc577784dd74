package search

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// CacheConfig configures the response cache
type CacheConfig struct {
	TTLMinutes int  `json:"ttl_minutes"`
	Enabled    bool `json:"enabled"`
}

// CacheEntry represents a cached response body
type CacheEntry struct {
	Body      []byte    `json:"body"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the cache entry is expired
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// ResponseCache keeps recent response bodies in memory, keyed by query and limit.
type ResponseCache struct {
	config  CacheConfig
	entries map[string]*CacheEntry
	mutex   sync.RWMutex
	stop    chan struct{}
	once    sync.Once
}

// NewResponseCache creates a new cache. A disabled cache never stores anything.
func NewResponseCache(config CacheConfig) *ResponseCache {
	cache := &ResponseCache{
		config:  config,
		entries: make(map[string]*CacheEntry),
		stop:    make(chan struct{}),
	}

	if config.Enabled {
		go cache.startCleanup()
	}

	return cache
}

// Get retrieves a cached body
func (c *ResponseCache) Get(query string, limit int) ([]byte, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	key := c.generateKey(query, limit)

	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()

	if !exists || entry.IsExpired() {
		if exists {
			c.mutex.Lock()
			delete(c.entries, key)
			c.mutex.Unlock()
		}
		return nil, false
	}

	body := make([]byte, len(entry.Body))
	copy(body, entry.Body)
	return body, true
}

// Set stores a body in the cache
func (c *ResponseCache) Set(query string, limit int, body []byte) {
	if !c.config.Enabled {
		return
	}

	stored := make([]byte, len(body))
	copy(stored, body)

	entry := &CacheEntry{
		Body:      stored,
		ExpiresAt: time.Now().Add(time.Duration(c.config.TTLMinutes) * time.Minute),
	}

	c.mutex.Lock()
	c.entries[c.generateKey(query, limit)] = entry
	c.mutex.Unlock()
}

// Clear removes all entries from the cache
func (c *ResponseCache) Clear() {
	c.mutex.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mutex.Unlock()
}

// Len returns the number of entries, expired ones included
func (c *ResponseCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine
func (c *ResponseCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *ResponseCache) generateKey(query string, limit int) string {
	normalized := struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}{
		Query: query,
		Limit: limit,
	}

	jsonBytes, _ := json.Marshal(normalized)
	hash := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(hash[:])
}

func (c *ResponseCache) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *ResponseCache) cleanupExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, entry := range c.entries {
		if entry.IsExpired() {
			delete(c.entries, key)
		}
	}
}
