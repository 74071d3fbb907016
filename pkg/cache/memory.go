package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	gocache "github.com/eko/gocache/v3/cache"
	"github.com/eko/gocache/v3/store"
)

// MemoryCache 进程内缓存 (ristretto)。
// 存 JSON 字节而不是对象本身，保证与 RedisCache 行为一致 (返回的是副本)。
type MemoryCache struct {
	raw   *ristretto.Cache
	cache *gocache.Cache[[]byte]
}

func NewMemoryCache(maxItems int64) (*MemoryCache, error) {
	raw, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * maxItems,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryCache{
		raw:   raw,
		cache: gocache.New[[]byte](store.NewRistretto(raw)),
	}, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	val, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := m.cache.Set(ctx, key, val, store.WithCost(1), store.WithExpiration(ttl)); err != nil {
		return err
	}
	// ristretto 的写入是异步的，等待写缓冲落地后再返回
	m.raw.Wait()
	return nil
}

func (m *MemoryCache) Get(ctx context.Context, key string, target interface{}) error {
	val, err := m.cache.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}
	return json.Unmarshal(val, target)
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	return m.cache.Delete(ctx, key)
}

func (m *MemoryCache) Close() {
	m.raw.Close()
}
