package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v2"
)

type localHold struct {
	token    string
	deadline time.Time
}

// LocalLock 进程内实现，只在单实例部署 (未配置 Redis) 时使用
type LocalLock struct {
	held *xsync.MapOf[string, localHold]
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: xsync.NewMapOf[localHold]()}
}

func (l *LocalLock) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	mine := localHold{token: uuid.NewString(), deadline: time.Now().Add(ttl)}
	for {
		actual, loaded := l.held.LoadOrStore(key, mine)
		if !loaded {
			return mine.token, true, nil
		}
		if time.Now().Before(actual.deadline) {
			return "", false, nil
		}
		// 已过期: 仅当删除的正是观察到的那个持有者时才重试，别人刚拿到的锁不受影响
		removed := false
		l.held.Compute(key, func(old localHold, ok bool) (localHold, bool) {
			if !ok || old.token == actual.token {
				removed = true
				return old, true
			}
			return old, false
		})
		if !removed {
			return "", false, nil
		}
	}
}

func (l *LocalLock) Release(_ context.Context, key, token string) error {
	l.held.Compute(key, func(old localHold, ok bool) (localHold, bool) {
		// 令牌不一致说明锁已过期并被重新获取
		return old, !ok || old.token == token
	})
	return nil
}
