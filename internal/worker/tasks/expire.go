package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"multisig-core/pkg/errno"
	"multisig-core/pkg/logger"
	"multisig-core/pkg/monitor"
)

// 任务类型常量
const (
	TypeExpireStale = "multisig:expire_stale"
)

// ExpireStalePayload CurrentLedger 为 0 时由 worker 读取网络最新高度
type ExpireStalePayload struct {
	CurrentLedger uint32 `json:"current_ledger"`
	Trigger       string `json:"trigger"`
}

// Expirer 由 multisig.Engine 实现
type Expirer interface {
	CurrentLedger(ctx context.Context) (uint32, error)
	ExpireStale(ctx context.Context, currentLedger uint32) (int64, error)
}

// ---------------------------------------------------------------------
// 1. Producer (Client) Code
// ---------------------------------------------------------------------

// NewExpireStaleTask 过期扫描任务。
// Unique 保证同一时间窗口内队列里最多只有一个扫描任务。
func NewExpireStaleTask(currentLedger uint32, trigger string) (*asynq.Task, error) {
	payload, err := json.Marshal(ExpireStalePayload{CurrentLedger: currentLedger, Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExpireStale, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
		asynq.Unique(30*time.Second),
	), nil
}

// ---------------------------------------------------------------------
// 2. Consumer (Server) Code
// ---------------------------------------------------------------------

type ExpireStaleHandler struct {
	expirer Expirer
}

func NewExpireStaleHandler(expirer Expirer) *ExpireStaleHandler {
	return &ExpireStaleHandler{expirer: expirer}
}

// ProcessTask implements asynq.Handler
func (h *ExpireStaleHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ExpireStalePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// JSON 解析失败，重试也没用
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	trigger := p.Trigger
	if trigger == "" {
		trigger = "worker"
	}
	_, _, err := RunExpire(ctx, h.expirer, p.CurrentLedger, trigger)
	if errors.Is(err, errno.ErrBind) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// RunExpire 执行一次过期扫描，ledger 为 0 时读取网络最新高度
func RunExpire(ctx context.Context, expirer Expirer, ledger uint32, trigger string) (int64, uint32, error) {
	if ledger == 0 {
		latest, err := expirer.CurrentLedger(ctx)
		if err != nil {
			return 0, 0, err
		}
		ledger = latest
	}

	n, err := expirer.ExpireStale(ctx, ledger)
	if err != nil {
		return 0, ledger, err
	}

	monitor.Business.ExpireSweepsTotal.WithLabelValues(trigger).Inc()
	logger.Debug("Expire sweep finished",
		zap.String("trigger", trigger), zap.Uint32("current_ledger", ledger), zap.Int64("expired", n))
	return n, ledger, nil
}
