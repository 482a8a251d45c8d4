package weather

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/alvdef/infoViz-8/internal/domain"
)

// CachedClassifier memoizes classification per distinct condition string.
// Station conditions number in the low hundreds across millions of rows.
// It is not safe for concurrent use; a pipeline classifies on one goroutine.
type CachedClassifier struct {
	inner domain.WeatherClassifier
	cache *simplelru.LRU[string, domain.WeatherFlags]

	hits, misses int
}

// NewCachedClassifier wraps inner with an LRU of at most maxEntries conditions.
func NewCachedClassifier(inner domain.WeatherClassifier, maxEntries int) *CachedClassifier {
	// simplelru only rejects sizes below one.
	cache, _ := simplelru.NewLRU[string, domain.WeatherFlags](max(maxEntries, 1), nil)
	return &CachedClassifier{inner: inner, cache: cache}
}

func (c *CachedClassifier) Classify(condition string) domain.WeatherFlags {
	if flags, ok := c.cache.Get(condition); ok {
		c.hits++
		return flags
	}
	c.misses++
	flags := c.inner.Classify(condition)
	c.cache.Add(condition, flags)
	return flags
}

// Stats returns cache hit and miss counts since construction.
func (c *CachedClassifier) Stats() (hits, misses int) {
	return c.hits, c.misses
}
