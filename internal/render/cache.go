package render

import (
	"time"

	"github.com/IliaW/defacement-crawler/internal"
	gocache "github.com/patrickmn/go-cache"
)

// Cache holds previously rendered HTML keyed by a hash of the URL (not of
// the content). Entries older than the TTL read as absent and are evicted by
// the cleanup pass; writes always overwrite. Shared by all workers across
// both baseline and compare modes.
type Cache struct {
	cache *gocache.Cache
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{cache: gocache.New(ttl, ttl)}
}

func (c *Cache) Get(url string) (string, bool) {
	v, ok := c.cache.Get(internal.HashURL(url))
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *Cache) Set(url, html string) {
	c.cache.Set(internal.HashURL(url), html, gocache.DefaultExpiration)
}
