package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"skupulse/pkg/contracts/domain"
)

// Defaults used when Config leaves a bound at zero.
const (
	DefaultMaxBytes   int64 = 64 << 20
	DefaultMaxEntries       = 128
)

// Config bounds the cache.
type Config struct {
	// MaxBytes caps the summed size of the source files of cached tables.
	MaxBytes int64
	// MaxEntries caps the number of cached tables.
	MaxEntries int
	// Disabled turns every lookup into a miss; loads still run through singleflight.
	Disabled bool
}

// Loader produces the table for a key on a cache miss.
type Loader func() (*domain.Table, error)

type entry struct {
	key      string
	table    *domain.Table
	size     int64
	storedAt time.Time
	hits     int64
}

// TableCache is a byte-bounded LRU of ingested tables. It is safe for
// concurrent use.
type TableCache struct {
	mu         sync.Mutex
	ll         *list.List
	items      map[string]*list.Element
	maxBytes   int64
	maxEntries int
	disabled   bool
	curBytes   int64

	hitCount      int64
	missCount     int64
	evictionCount int64

	group   singleflight.Group
	metrics *cacheMetrics
	logger  *slog.Logger
}

// Option customizes a TableCache.
type Option func(*TableCache)

// WithLogger sets the logger used for eviction and load events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *TableCache) {
		c.logger = logger.With(slog.String("component", "table_cache"))
	}
}

// WithMeter records hits, misses, evictions and resident bytes on meter.
func WithMeter(meter metric.Meter) Option {
	return func(c *TableCache) {
		m, err := newCacheMetrics(meter)
		if err != nil {
			c.logger.Warn("table cache metrics disabled", slog.String("error", err.Error()))
			return
		}
		c.metrics = m
	}
}

// New creates a cache with the given bounds.
func New(cfg Config, opts ...Option) *TableCache {
	c := &TableCache{
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		maxBytes:   cfg.MaxBytes,
		maxEntries: cfg.MaxEntries,
		disabled:   cfg.Disabled,
		logger:     slog.Default().With(slog.String("component", "table_cache")),
	}
	if c.maxBytes <= 0 {
		c.maxBytes = DefaultMaxBytes
	}
	if c.maxEntries <= 0 {
		c.maxEntries = DefaultMaxEntries
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives the cache key for a file and an options fingerprint.
func Key(data []byte, fingerprint string) string {
	sum := sha256.Sum256(data)
	fp := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:]) + ":" + hex.EncodeToString(fp[:8])
}

// Get returns the cached table for key and marks it most recently used.
func (c *TableCache) Get(key string) (*domain.Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled {
		c.missCount++
		c.metrics.miss()
		return nil, false
	}
	el, ok := c.items[key]
	if !ok {
		c.missCount++
		c.metrics.miss()
		return nil, false
	}
	c.ll.MoveToFront(el)
	e := el.Value.(*entry)
	e.hits++
	c.hitCount++
	c.metrics.hit()
	return e.table, true
}

// Add stores a table whose source file was size bytes long. Tables larger
// than the byte bound are not stored. It reports whether the table was stored.
func (c *TableCache) Add(key string, table *domain.Table, size int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled || size > c.maxBytes {
		return false
	}
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		e := el.Value.(*entry)
		c.resize(size - e.size)
		e.table, e.size, e.storedAt = table, size, time.Now()
	} else {
		el := c.ll.PushFront(&entry{key: key, table: table, size: size, storedAt: time.Now()})
		c.items[key] = el
		c.resize(size)
	}
	for c.curBytes > c.maxBytes || c.ll.Len() > c.maxEntries {
		c.removeOldest()
	}
	return true
}

// GetOrLoad returns the cached table for key or runs load once, however many
// callers ask for the same key concurrently. hit is true when the table came
// from the cache. Errors are returned to every waiting caller and not cached.
func (c *TableCache) GetOrLoad(ctx context.Context, key string, size int64, load Loader) (table *domain.Table, hit bool, err error) {
	if t, ok := c.Get(key); ok {
		return t, true, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		t, err := load()
		if err != nil {
			return nil, err
		}
		c.Add(key, t, size)
		return t, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("waiting for table load: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*domain.Table), false, nil
	}
}

// Remove drops key from the cache.
func (c *TableCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Purge drops every entry.
func (c *TableCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.ll.Len() > 0 {
		c.removeElement(c.ll.Back())
	}
}

// Len returns the number of cached tables.
func (c *TableCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Bytes returns the summed source size of the cached tables.
func (c *TableCache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// GetStats returns cache statistics for the health endpoint.
func (c *TableCache) GetStats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hitCount + c.missCount
	hitRatio := float64(0)
	if total > 0 {
		hitRatio = float64(c.hitCount) / float64(total)
	}

	return map[string]interface{}{
		"entries":     c.ll.Len(),
		"max_entries": c.maxEntries,
		"bytes":       c.curBytes,
		"max_bytes":   c.maxBytes,
		"hit_count":   c.hitCount,
		"miss_count":  c.missCount,
		"evictions":   c.evictionCount,
		"hit_ratio":   hitRatio,
		"enabled":     !c.disabled,
	}
}

func (c *TableCache) removeOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	e := el.Value.(*entry)
	c.removeElement(el)
	c.evictionCount++
	c.metrics.evict()
	c.logger.Debug("evicted table",
		slog.String("key", e.key),
		slog.Int64("size", e.size),
		slog.Int64("hits", e.hits),
		slog.Duration("age", time.Since(e.storedAt)))
}

func (c *TableCache) removeElement(el *list.Element) {
	e := c.ll.Remove(el).(*entry)
	delete(c.items, e.key)
	c.resize(-e.size)
}

func (c *TableCache) resize(delta int64) {
	c.curBytes += delta
	c.metrics.bytes(delta)
}

type cacheMetrics struct {
	lookups   metric.Int64Counter
	evictions metric.Int64Counter
	resident  metric.Int64UpDownCounter
}

func newCacheMetrics(meter metric.Meter) (*cacheMetrics, error) {
	lookups, err := meter.Int64Counter(
		"table_cache_lookups_total",
		metric.WithDescription("Table cache lookups by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache lookups counter: %w", err)
	}
	evictions, err := meter.Int64Counter(
		"table_cache_evictions_total",
		metric.WithDescription("Tables evicted from the cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache evictions counter: %w", err)
	}
	resident, err := meter.Int64UpDownCounter(
		"table_cache_bytes",
		metric.WithDescription("Source bytes represented by cached tables"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache bytes counter: %w", err)
	}
	return &cacheMetrics{lookups: lookups, evictions: evictions, resident: resident}, nil
}

func (m *cacheMetrics) hit() {
	if m != nil {
		m.lookups.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", "hit")))
	}
}

func (m *cacheMetrics) miss() {
	if m != nil {
		m.lookups.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", "miss")))
	}
}

func (m *cacheMetrics) evict() {
	if m != nil {
		m.evictions.Add(context.Background(), 1)
	}
}

func (m *cacheMetrics) bytes(delta int64) {
	if m != nil && delta != 0 {
		m.resident.Add(context.Background(), delta)
	}
}
