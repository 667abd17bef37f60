package cache

import (
	"context"
	"sync"

	"github.com/pathoscope/wsiview/pkg/core"
)

// InfoLoader fetches slide info on a cache miss.
type InfoLoader func(ctx context.Context, slideID string) (core.SlideInfo, error)

// SlideCache maps slide IDs to their info so reopening a panel on a known
// slide skips the info round trip.
type SlideCache struct {
	mu    sync.RWMutex
	infos map[string]core.SlideInfo
}

// NewSlideCache creates a new SlideCache
func NewSlideCache() *SlideCache {
	return &SlideCache{
		infos: make(map[string]core.SlideInfo),
	}
}

// Get retrieves slide info by ID
func (c *SlideCache) Get(slideID string) (core.SlideInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.infos[slideID]
	return info, ok
}

// Set stores slide info by ID
func (c *SlideCache) Set(slideID string, info core.SlideInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infos[slideID] = info
}

// Delete removes a slide by ID
func (c *SlideCache) Delete(slideID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.infos, slideID)
}

// Len returns the number of cached slides
func (c *SlideCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.infos)
}

// Reset clears all slides from the cache
func (c *SlideCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infos = make(map[string]core.SlideInfo)
}

// GetOrLoad returns cached info or calls load and caches its result.
// Failed loads are not cached. Concurrent misses may load more than once.
func (c *SlideCache) GetOrLoad(ctx context.Context, slideID string, load InfoLoader) (core.SlideInfo, error) {
	if info, ok := c.Get(slideID); ok {
		return info, nil
	}
	info, err := load(ctx, slideID)
	if err != nil {
		return core.SlideInfo{}, err
	}
	c.Set(slideID, info)
	return info, nil
}
