package explain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes successful explanations of an underlying provider.
type Cached struct {
	next  Provider
	cache *lru.Cache[string, *Explanation]
}

// NewCached wraps p with an in-memory LRU of the given size.
func NewCached(p Provider, size int) (*Cached, error) {
	c, err := lru.New[string, *Explanation](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create explanation cache: %w", err)
	}
	return &Cached{next: p, cache: c}, nil
}

// Explain implements Provider.
func (c *Cached) Explain(ctx context.Context, req Request) (*Explanation, error) {
	key, err := cacheKey(req)
	if err != nil {
		return c.next.Explain(ctx, req)
	}
	if exp, ok := c.cache.Get(key); ok {
		return exp, nil
	}
	exp, err := c.next.Explain(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, exp)
	return exp, nil
}

// Len returns the number of cached explanations.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func cacheKey(req Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
