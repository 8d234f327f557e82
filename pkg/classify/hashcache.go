package classify

import (
	"strings"
	"sync"
	"time"

	"github.com/whois-api-llc/web-categorization-v2/pkg/models"
	"github.com/whois-api-llc/web-categorization-v2/pkg/utils"
)

// BuildFingerprint derives the content fingerprint of a fetched page:
// the SHA-256 of the normalized title, meta description and snippet.
// Pages whose combined text is shorter than minLength produce no
// fingerprint, since near-empty pages collide without being related.
func BuildFingerprint(http models.HTTPResult, minLength int) (string, bool) {
	combined := strings.TrimSpace(
		normText(http.Title) + " " + normText(http.MetaDescription) + " " + normText(http.BodySnippet))
	if len(combined) < minLength {
		return "", false
	}
	return utils.CalculateStringSHA256(combined), true
}

// HashCache maps content fingerprints to previously decided
// classifications so that visually identical sites cost one inference
// call in total. Safe for concurrent use by the classification workers.
type HashCache struct {
	mu      sync.Mutex
	entries map[string]models.HashCacheEntry
	hits    int64
	misses  int64
}

// NewHashCache creates a cache seeded with previously persisted entries.
func NewHashCache(seed []models.HashCacheEntry) *HashCache {
	entries := make(map[string]models.HashCacheEntry, len(seed))
	for _, e := range seed {
		entries[e.ContentHash] = e
	}
	return &HashCache{entries: entries}
}

// Get looks up a fingerprint, recording the hit or miss.
func (c *HashCache) Get(hash string) (models.HashCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[hash]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return entry, ok
}

// Put stores a decided classification under its fingerprint. The first
// writer wins so a fingerprint's category never flips mid-run.
func (c *HashCache) Put(hash, category string, confidence float64, exampleFQDN string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[hash]; exists {
		return
	}
	c.entries[hash] = models.HashCacheEntry{
		ContentHash: hash,
		Category:    category,
		Confidence:  confidence,
		ExampleFQDN: exampleFQDN,
		CachedAt:    time.Now().UTC(),
	}
}

// Len returns the number of cached fingerprints.
func (c *HashCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit/miss counters and the hit rate so far.
func (c *HashCache) Stats() (hits, misses int64, hitRate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return c.hits, c.misses, hitRate
}
