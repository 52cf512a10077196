// Package texture finds and caches the images meshes are textured with.
package texture

import (
	"image"
	"sync"

	"github.com/sirupsen/logrus"

	"spriterig/internal/imageio"
	"spriterig/internal/logger"
)

// Resolver resolves a texture name to a decoded image.
type Resolver interface {
	Resolve(texName string) *image.NRGBA
}

// Cache is a concurrency-safe texture cache.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheEntry
	index *Index
	log   logrus.FieldLogger
}

type cacheEntry struct {
	img    *image.NRGBA
	loaded bool // true if we've attempted to load (img may still be nil)
}

// NewCache creates a new texture cache backed by the given index. A nil
// index resolves direct file paths only.
func NewCache(index *Index, log logrus.FieldLogger) *Cache {
	return &Cache{
		items: make(map[string]*cacheEntry),
		index: index,
		log:   logger.Or(log),
	}
}

// Resolve loads and caches a texture by name. Returns nil if not found or
// undecodable; failures are cached too.
func (c *Cache) Resolve(texName string) *image.NRGBA {
	path, ok := c.index.ResolvePath(texName)
	if !ok {
		return nil
	}

	// Fast path: read lock
	c.mu.RLock()
	if entry, exists := c.items[path]; exists {
		c.mu.RUnlock()
		return entry.img
	}
	c.mu.RUnlock()

	// Slow path: load from disk
	img, err := imageio.Load(path)
	if err != nil {
		c.log.WithError(err).WithField("texture", path).Warn("texture unreadable")
	}

	// Write lock with double-check
	c.mu.Lock()
	if entry, exists := c.items[path]; exists {
		c.mu.Unlock()
		return entry.img
	}
	c.items[path] = &cacheEntry{img: img, loaded: true}
	c.mu.Unlock()

	return img
}

// Len returns the number of cached lookups.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
