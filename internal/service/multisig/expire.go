package multisig

import (
	"context"

	"go.uber.org/zap"

	"multisig-core/pkg/errno"
	"multisig-core/pkg/monitor"
)

// ExpireStale 把 expires_at_ledger < currentLedger 的 PENDING/READY 记录置为 EXPIRED。
// 引擎内没有定时器，由 cron / HTTP / CLI 从外部触发。
func (e *Engine) ExpireStale(ctx context.Context, currentLedger uint32) (int64, error) {
	if currentLedger == 0 {
		return 0, errno.ErrBind.WithMessage("current ledger height must be positive")
	}

	n, err := e.repo.ExpireBefore(ctx, currentLedger)
	if err != nil {
		return 0, e.mapRepoError(err, "expire")
	}

	if n > 0 {
		monitor.Business.ExpiredTotal.Add(float64(n))
		e.log.Info("Expired stale proposals", zap.Uint32("current_ledger", currentLedger), zap.Int64("count", n))
	}
	return n, nil
}
