package pubfeed

import (
	"context"
	"sync"
	"time"
)

// FeedCache is an in-memory cache of the encoded feed with TTL.
type FeedCache struct {
	mu      sync.RWMutex
	body    []byte
	items   []FeedItem
	fetched time.Time
	ttl     time.Duration
	build   func(ctx context.Context) (*Feed, error)
}

// NewFeedCache creates a FeedCache that rebuilds through build.
func NewFeedCache(build func(ctx context.Context) (*Feed, error), ttl time.Duration) *FeedCache {
	return &FeedCache{build: build, ttl: ttl}
}

func (c *FeedCache) valid() bool {
	return c.body != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh build.
func (c *FeedCache) Invalidate() {
	c.mu.Lock()
	c.body = nil
	c.items = nil
	c.mu.Unlock()
}

func (c *FeedCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	feed, err := c.build(ctx)
	if err != nil {
		return err
	}
	body, err := EncodeRSS(feed)
	if err != nil {
		return err
	}
	c.body = body
	c.items = feed.Items
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns the cached feed after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a rebuild is needed.
func (c *FeedCache) ensureLoaded(ctx context.Context) ([]byte, []FeedItem, error) {
	c.mu.RLock()
	if c.valid() {
		body, items := c.body, c.items
		c.mu.RUnlock()
		return body, items, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, err
	}
	return c.body, c.items, nil
}

// RSS returns the encoded RSS document.
func (c *FeedCache) RSS(ctx context.Context) ([]byte, error) {
	body, _, err := c.ensureLoaded(ctx)
	return body, err
}

// Items returns the items of the cached feed.
func (c *FeedCache) Items(ctx context.Context) ([]FeedItem, error) {
	_, items, err := c.ensureLoaded(ctx)
	return items, err
}
