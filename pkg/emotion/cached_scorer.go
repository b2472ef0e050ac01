package emotion

import (
	"crypto/md5"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedScorer memoises polarity scores by message hash. Errors are not cached.
type CachedScorer struct {
	scorer Scorer
	cache  *lru.Cache[string, float64]
}

func NewCachedScorer(scorer Scorer, cacheSize int) *CachedScorer {
	cache, err := lru.New[string, float64](cacheSize)
	if err != nil {
		// Only happens if cacheSize <= 0
		cache, _ = lru.New[string, float64](1000)
	}

	return &CachedScorer{
		scorer: scorer,
		cache:  cache,
	}
}

func (c *CachedScorer) Polarity(text string) (float64, error) {
	sum := md5.Sum([]byte(text))
	key := hex.EncodeToString(sum[:])

	if score, ok := c.cache.Get(key); ok {
		return score, nil
	}

	score, err := c.scorer.Polarity(text)
	if err != nil {
		return 0, err
	}

	c.cache.Add(key, score)
	return score, nil
}

func (c *CachedScorer) Len() int {
	return c.cache.Len()
}
