package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
)

// MultiLevelCache L1 进程内 + L2 Redis
type MultiLevelCache struct {
	l1    Cache
	l2    Cache
	l1TTL time.Duration // L2 命中后回填 L1 的过期时间
}

func NewMultiLevelCache(l1, l2 Cache, l1TTL time.Duration) *MultiLevelCache {
	return &MultiLevelCache{l1: l1, l2: l2, l1TTL: l1TTL}
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	l1TTL := c.l1TTL
	if ttl < l1TTL {
		l1TTL = ttl
	}
	return multierr.Append(
		c.l1.Set(ctx, key, value, l1TTL),
		c.l2.Set(ctx, key, value, ttl),
	)
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, target interface{}) error {
	// 1. 查 L1
	if err := c.l1.Get(ctx, key, target); err == nil {
		return nil
	}

	// 2. 查 L2
	if err := c.l2.Get(ctx, key, target); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return ErrCacheMiss
		}
		return err
	}

	// 3. 回填 L1
	_ = c.l1.Set(ctx, key, target, c.l1TTL)
	return nil
}

func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	return multierr.Append(c.l1.Delete(ctx, key), c.l2.Delete(ctx, key))
}
