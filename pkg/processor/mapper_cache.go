package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Ramsey-B/clover/pkg/mapping"
	"github.com/Ramsey-B/clover/pkg/meta"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"golang.org/x/sync/singleflight"
)

// MapperRepository loads active mapper definitions from storage
type MapperRepository interface {
	GetActiveMapperDefinition(ctx context.Context, tenantID, id string) (models.MapperDefinition, error)
}

// CompiledMapper is a definition with its built mapper.
type CompiledMapper struct {
	Definition models.MapperDefinition
	Mapper     *mapping.Mapper
}

// MapperCache caches compiled mappers per tenant. Built mappers are immutable, so
// one cached mapper serves all workers.
type MapperCache struct {
	cache   map[string]*cacheEntry
	mu      sync.RWMutex
	loads   singleflight.Group
	repo    MapperRepository
	model   *meta.Model
	maxSize int
	ttl     time.Duration
	hits    int64
	misses  int64
}

type cacheEntry struct {
	mapper    *CompiledMapper
	expiresAt time.Time
}

type MapperCacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

func DefaultMapperCacheConfig() MapperCacheConfig {
	return MapperCacheConfig{
		MaxSize: 1000,
		TTL:     5 * time.Minute,
	}
}

func NewMapperCache(repo MapperRepository, model *meta.Model, config MapperCacheConfig) *MapperCache {
	return &MapperCache{
		cache:   make(map[string]*cacheEntry),
		repo:    repo,
		model:   model,
		maxSize: config.MaxSize,
		ttl:     config.TTL,
	}
}

func cacheKey(tenantID, mapperID string) string {
	return fmt.Sprintf("%s:%s", tenantID, mapperID)
}

// GetCompiledMapper returns the active version of a mapper, building it on a miss.
func (c *MapperCache) GetCompiledMapper(ctx context.Context, tenantID, mapperID string) (*CompiledMapper, error) {
	key := cacheKey(tenantID, mapperID)

	c.mu.RLock()
	entry, exists := c.cache[key]
	c.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		metrics.RecordCacheLookup(true)
		return entry.mapper, nil
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	metrics.RecordCacheLookup(false)

	// concurrent misses for one mapper share a single load
	compiled, err, _ := c.loads.Do(key, func() (any, error) {
		return c.load(ctx, tenantID, mapperID)
	})
	if err != nil {
		return nil, err
	}
	return compiled.(*CompiledMapper), nil
}

func (c *MapperCache) load(ctx context.Context, tenantID, mapperID string) (*CompiledMapper, error) {
	definition, err := c.repo.GetActiveMapperDefinition(ctx, tenantID, mapperID)
	if err != nil {
		return nil, err
	}

	mapper, err := mapping.FromUxon(c.model, definition.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to build mapper %s: %w", mapperID, err)
	}

	compiled := &CompiledMapper{Definition: definition, Mapper: mapper}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= c.maxSize {
		c.evictHalf()
	}
	c.cache[cacheKey(tenantID, mapperID)] = &cacheEntry{
		mapper:    compiled,
		expiresAt: time.Now().Add(c.ttl),
	}
	return compiled, nil
}

// evictHalf must be called with the lock held.
func (c *MapperCache) evictHalf() {
	count := 0
	target := len(c.cache) / 2
	for key := range c.cache {
		delete(c.cache, key)
		count++
		if count >= target {
			break
		}
	}
}

func (c *MapperCache) Invalidate(tenantID, mapperID string) {
	key := cacheKey(tenantID, mapperID)
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()
}

func (c *MapperCache) InvalidateTenant(tenantID string) {
	prefix := tenantID + ":"
	c.mu.Lock()
	for key := range c.cache {
		if strings.HasPrefix(key, prefix) {
			delete(c.cache, key)
		}
	}
	c.mu.Unlock()
}

func (c *MapperCache) Clear() {
	c.mu.Lock()
	c.cache = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

type CacheStats struct {
	Size   int
	Hits   int64
	Misses int64
}

func (c *MapperCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Size:   len(c.cache),
		Hits:   c.hits,
		Misses: c.misses,
	}
}
