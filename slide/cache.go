package slide

import (
	"container/list"
	"sync"
)

// DefaultCacheSize is the capacity in bytes of the tile cache the
// engine creates when a backend does not bring its own.
const DefaultCacheSize = 32 << 20

// CacheKey identifies one cached tile. Owner scopes the entry to a
// slide handle, Plane to a pyramid level or other backend plane.
type CacheKey struct {
	Owner any
	Plane any
	X, Y  int64
}

// Cache is a byte-bounded, least-recently-used tile cache. It may be
// shared between slides with SetCache and is safe for concurrent use.
// The reference count keeps a shared cache alive until every holder
// has released it.
type Cache struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	entries  map[CacheKey]*list.Element
	lru      *list.List // front is the eviction candidate
	refs     int
}

type cacheEntry struct {
	key   CacheKey
	value any
	size  int64
}

// NewCache creates a tile cache bounded to capacity bytes. The
// caller holds one reference; Release drops it.
func NewCache(capacity int64) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[CacheKey]*list.Element),
		lru:      list.New(),
		refs:     1,
	}
}

func (c *Cache) ref() {
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
}

// Release drops the caller's reference. When the last reference is
// gone the cached tiles are discarded.
func (c *Cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs--
	if c.refs == 0 {
		c.entries = nil
		c.lru = nil
		c.used = 0
	}
}

func (c *Cache) get(k CacheKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		return nil, false
	}
	el, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	c.lru.MoveToBack(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *Cache) put(k CacheKey, v any, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil || size > c.capacity {
		return
	}
	if el, ok := c.entries[k]; ok {
		e := el.Value.(*cacheEntry)
		c.used += size - e.size
		e.value = v
		e.size = size
		c.lru.MoveToBack(el)
	} else {
		c.entries[k] = c.lru.PushBack(&cacheEntry{key: k, value: v, size: size})
		c.used += size
	}
	for c.used > c.capacity {
		el := c.lru.Front()
		e := el.Value.(*cacheEntry)
		c.lru.Remove(el)
		delete(c.entries, e.key)
		c.used -= e.size
	}
}

// CacheBinding is a slide's connection to a tile cache. Backends
// fetch and store decoded tiles through it; the cache behind it can
// be swapped at any time with Slide.SetCache.
type CacheBinding struct {
	mu    sync.RWMutex
	cache *Cache
}

func newCacheBinding(capacity int64) *CacheBinding {
	return &CacheBinding{cache: NewCache(capacity)}
}

func (b *CacheBinding) setCache(c *Cache) {
	if c != nil {
		c.ref()
	}
	b.mu.Lock()
	old := b.cache
	b.cache = c
	b.mu.Unlock()
	if old != nil {
		old.Release()
	}
}

// Get returns the cached tile for k, if present.
func (b *CacheBinding) Get(k CacheKey) (any, bool) {
	b.mu.RLock()
	c := b.cache
	b.mu.RUnlock()
	if c == nil {
		return nil, false
	}
	return c.get(k)
}

// Put stores a tile of the given size in bytes. Tiles larger than
// the cache capacity are not stored.
func (b *CacheBinding) Put(k CacheKey, v any, size int64) {
	b.mu.RLock()
	c := b.cache
	b.mu.RUnlock()
	if c == nil {
		return
	}
	c.put(k, v, size)
}

// TileCache returns the slide's cache binding, creating the default
// binding on first use. Backends call this during paints; multiple
// concurrent region reads may fetch and store tiles at once.
func (s *Slide) TileCache() *CacheBinding {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cache == nil {
		s.cache = newCacheBinding(DefaultCacheSize)
	}
	return s.cache
}

// SetCache points the slide at a caller-managed cache, so several
// slides can share one bounded cache. The slide takes its own
// reference; the caller may Release theirs afterwards. No-op on a
// poisoned handle.
func (s *Slide) SetCache(c *Cache) {
	if s.Err() != nil {
		return
	}
	s.TileCache().setCache(c)
}
