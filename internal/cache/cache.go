// Package cache keeps fetched seed node responses for a bounded time, in
// memory and optionally in sqlite.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/common/logger"
)

const (
	DefaultTTL           = 300 * time.Second
	defaultMemoryEntries = 1024
)

// Options configures a Cache.
type Options struct {
	TTL           time.Duration
	MemoryEntries int
	// Compress zstd-compresses values written to Store.
	Compress bool
	// Store is optional; without it entries live in memory only.
	Store  *SQLiteStore
	Logger *logger.Logger
}

type entry struct {
	key     string
	value   []byte
	expires time.Time
}

// Cache is a JSON value cache with a bounded LRU memory layer in front of an
// optional sqlite layer.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]*list.Element
	lru     *list.List

	store  *SQLiteStore
	codec  *codec
	now    func() time.Time
	logger *logger.Logger
}

// New creates a cache.
func New(opts Options) (*Cache, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	limit := opts.MemoryEntries
	if limit <= 0 {
		limit = defaultMemoryEntries
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	c := &Cache{
		ttl:     ttl,
		max:     limit,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		store:   opts.Store,
		now:     time.Now,
		logger:  log.WithFields(zap.String("component", "cache")),
	}
	if opts.Compress && opts.Store != nil {
		cd, err := newCodec()
		if err != nil {
			return nil, err
		}
		c.codec = cd
	}
	return c, nil
}

// Get decodes the value cached under key into dst and reports whether it
// was present and unexpired.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	now := c.now()
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		if now.Before(e.expires) {
			c.lru.MoveToFront(el)
			value := e.value
			c.mu.Unlock()
			return true, json.Unmarshal(value, dst)
		}
		c.removeLocked(el)
	}
	c.mu.Unlock()

	if c.store == nil {
		return false, nil
	}
	r, err := c.store.get(ctx, key, now)
	if err != nil || r == nil {
		return false, err
	}
	value := r.Value
	if r.Compressed {
		if c.codec == nil {
			return false, fmt.Errorf("cache entry %s is compressed but compression is disabled", key)
		}
		if value, err = c.codec.decompress(value); err != nil {
			return false, err
		}
	}
	if err := json.Unmarshal(value, dst); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	c.remember(key, value, time.UnixMilli(r.ExpiresAt))
	return true, nil
}

// Set caches v under key for the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	expires := c.now().Add(c.ttl)
	c.remember(key, value, expires)

	if c.store == nil {
		return nil
	}
	r := row{Value: value, ExpiresAt: expires.UnixMilli()}
	if c.codec != nil {
		r.Value = c.codec.compress(value)
		r.Compressed = true
	}
	return c.store.put(ctx, key, r)
}

// Purge drops expired entries from both layers and returns how many sqlite
// rows were removed.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	now := c.now()
	c.mu.Lock()
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).expires) {
			c.removeLocked(el)
		}
		el = prev
	}
	c.mu.Unlock()

	if c.store == nil {
		return 0, nil
	}
	n, err := c.store.purge(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.logger.Debug("purged expired cache entries", zap.Int64("rows", n))
	}
	return n, nil
}

// Len returns the number of entries held in memory.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close releases the compression codec.
func (c *Cache) Close() {
	if c.codec != nil {
		c.codec.close()
	}
}

func (c *Cache) remember(key string, value []byte, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expires = expires
		c.lru.MoveToFront(el)
		return
	}
	c.entries[key] = c.lru.PushFront(&entry{key: key, value: value, expires: expires})
	for c.lru.Len() > c.max {
		c.removeLocked(c.lru.Back())
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	c.lru.Remove(el)
	delete(c.entries, el.Value.(*entry).key)
}
