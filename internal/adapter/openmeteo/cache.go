package openmeteo

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

// Geocoder resolves a city name to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (lat, lon float64, err error)
}

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache so scheduled
// re-runs do not re-resolve the same cities.
type CachedGeocoder struct {
	inner Geocoder
	cache *lruCache
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner Geocoder, maxEntries int) *CachedGeocoder {
	return &CachedGeocoder{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

// Geocode returns the cached coordinates for name, resolving and caching on
// a miss. Failed lookups are not cached so transient provider errors can be
// retried on the next run.
func (c *CachedGeocoder) Geocode(ctx context.Context, name string) (float64, float64, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if coords, ok := c.cache.get(key); ok {
		return coords.lat, coords.lon, nil
	}
	lat, lon, err := c.inner.Geocode(ctx, name)
	if err != nil {
		return 0, 0, err
	}
	c.cache.put(key, coordinates{lat: lat, lon: lon})
	return lat, lon, nil
}

// Size reports the number of cities currently cached.
func (c *CachedGeocoder) Size() int {
	return c.cache.len()
}

type coordinates struct {
	lat float64
	lon float64
}

// lruCache is a small thread-safe LRU for resolved coordinates, built on
// container/list: the list front is most recently used, the back is evicted.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // of *cacheEntry
}

type cacheEntry struct {
	key   string
	value coordinates
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (c *lruCache) get(key string) (coordinates, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return coordinates{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *lruCache) put(key string, value coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, value: value})

	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		delete(c.entries, oldest.Value.(*cacheEntry).key)
		c.order.Remove(oldest)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
