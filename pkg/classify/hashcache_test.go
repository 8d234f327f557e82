package classify

import (
	"strings"
	"testing"

	"github.com/whois-api-llc/web-categorization-v2/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longPage(title string) models.HTTPResult {
	return models.HTTPResult{
		Title:           title,
		MetaDescription: "an online shop selling various goods",
		BodySnippet:     "welcome to our store browse our full catalog of products",
	}
}

func TestBuildFingerprint_Deterministic(t *testing.T) {
	page := longPage("Example Store")
	first, ok := BuildFingerprint(page, 50)
	require.True(t, ok)

	for i := 0; i < 5; i++ {
		again, ok := BuildFingerprint(page, 50)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

// Case and whitespace differences must not change the fingerprint.
func TestBuildFingerprint_NormalizationInvariant(t *testing.T) {
	a, ok := BuildFingerprint(longPage("Example   Store"), 50)
	require.True(t, ok)
	b, ok := BuildFingerprint(longPage("EXAMPLE store"), 50)
	require.True(t, ok)
	assert.Equal(t, a, b)
}

func TestBuildFingerprint_DifferentContentDiffers(t *testing.T) {
	a, _ := BuildFingerprint(longPage("Example Store"), 50)
	b, _ := BuildFingerprint(longPage("Totally Different Site"), 50)
	assert.NotEqual(t, a, b)
}

func TestBuildFingerprint_ShortContentSkipped(t *testing.T) {
	_, ok := BuildFingerprint(models.HTTPResult{Title: "hi"}, 50)
	assert.False(t, ok)

	_, ok = BuildFingerprint(models.HTTPResult{}, 50)
	assert.False(t, ok)
}

func TestHashCache_GetPutStats(t *testing.T) {
	cache := NewHashCache(nil)
	hash := strings.Repeat("ab", 32)

	_, hit := cache.Get(hash)
	assert.False(t, hit)

	cache.Put(hash, "Shopping", 0.9, "shop-a.com")
	entry, hit := cache.Get(hash)
	require.True(t, hit)
	assert.Equal(t, "Shopping", entry.Category)
	assert.Equal(t, 0.9, entry.Confidence)
	assert.Equal(t, "shop-a.com", entry.ExampleFQDN)

	hits, misses, rate := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 0.5, rate)
}

func TestHashCache_FirstWriterWins(t *testing.T) {
	cache := NewHashCache(nil)
	hash := strings.Repeat("cd", 32)

	cache.Put(hash, "Shopping", 0.9, "first.com")
	cache.Put(hash, "News", 0.8, "second.com")

	entry, hit := cache.Get(hash)
	require.True(t, hit)
	assert.Equal(t, "Shopping", entry.Category)
	assert.Equal(t, "first.com", entry.ExampleFQDN)
}

func TestHashCache_SeedEntries(t *testing.T) {
	seed := []models.HashCacheEntry{
		{ContentHash: "aaa", Category: "News", Confidence: 0.8, ExampleFQDN: "news.com"},
		{ContentHash: "bbb", Category: "Social", Confidence: 0.7, ExampleFQDN: "social.com"},
	}
	cache := NewHashCache(seed)
	assert.Equal(t, 2, cache.Len())

	entry, hit := cache.Get("aaa")
	require.True(t, hit)
	assert.Equal(t, "News", entry.Category)
}
