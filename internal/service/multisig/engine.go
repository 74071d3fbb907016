package multisig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"multisig-core/internal/model"
	"multisig-core/internal/repository"
	"multisig-core/internal/service/policy"
	"multisig-core/pkg/crypto_util"
	"multisig-core/pkg/envelope"
	"multisig-core/pkg/errno"
	"multisig-core/pkg/logger"
	"multisig-core/pkg/utils/lock"
)

const (
	defaultSubmitLockTTL    = 60 * time.Second
	defaultBroadcastTimeout = 30 * time.Second
)

// Engine 多签交易协调引擎: 提案 -> 收集签名 -> 达到阈值 -> 广播。
// 本身无状态，所有单条记录的读-改-写都交给仓储的原子 Update，可多实例部署。
type Engine struct {
	repo    repository.PendingTransactionRepository
	gateway *policy.Gateway
	ledger  policy.LedgerClient
	codec   *envelope.Codec
	locker  lock.DistributedLock

	submitLockTTL    time.Duration
	broadcastTimeout time.Duration
	now              func() time.Time
	log              *zap.Logger
}

type Option func(*Engine)

// WithSubmitLockTTL 广播锁的过期时间，应大于广播超时
func WithSubmitLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.submitLockTTL = ttl
		}
	}
}

func WithBroadcastTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.broadcastTimeout = timeout
		}
	}
}

// WithClock 测试中固定时间
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(
	repo repository.PendingTransactionRepository,
	ledger policy.LedgerClient,
	codec *envelope.Codec,
	locker lock.DistributedLock,
	opts ...Option,
) *Engine {
	e := &Engine{
		repo:             repo,
		gateway:          policy.NewGateway(ledger),
		ledger:           ledger,
		codec:            codec,
		locker:           locker,
		submitLockTTL:    defaultSubmitLockTTL,
		broadcastTimeout: defaultBroadcastTimeout,
		now:              time.Now,
		log:              logger.Named("multisig"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetTransaction 按 ID 查询
func (e *Engine) GetTransaction(ctx context.Context, id string) (*model.PendingTransaction, error) {
	tx, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, e.mapRepoError(err, id)
	}
	return tx, nil
}

// ListPending 默认只返回 PENDING / READY
func (e *Engine) ListPending(ctx context.Context, accountID string, statuses []model.TxStatus) ([]*model.PendingTransaction, error) {
	if err := crypto_util.ValidateAccountID(accountID); err != nil {
		return nil, errno.ErrInvalidAccount.WithMessage(err.Error())
	}
	if len(statuses) == 0 {
		statuses = model.ActiveStatuses
	}
	txs, err := e.repo.ListByAccount(ctx, accountID, statuses)
	if err != nil {
		return nil, e.mapRepoError(err, accountID)
	}
	return txs, nil
}

// GetAccountStatus 实时读取链上多签策略，不缓存
func (e *Engine) GetAccountStatus(ctx context.Context, accountID string) (*model.AccountMultisigStatus, error) {
	return e.gateway.GetStatus(ctx, accountID)
}

// CurrentLedger 供过期扫描的触发方在未指定高度时使用
func (e *Engine) CurrentLedger(ctx context.Context) (uint32, error) {
	ledger, err := e.ledger.LatestLedger(ctx)
	if err != nil {
		return 0, errno.ErrLedgerUnavailable.WithMessage(err.Error())
	}
	return ledger, nil
}

// Codec 供 handler 渲染信封摘要
func (e *Engine) Codec() *envelope.Codec {
	return e.codec
}

func (e *Engine) mapRepoError(err error, ref string) error {
	var en errno.Errno
	switch {
	case errors.As(err, &en):
		return en
	case errors.Is(err, repository.ErrNotFound):
		return errno.ErrTransactionNotFound.WithMessage(fmt.Sprintf("pending transaction not found: %s", ref))
	case errors.Is(err, repository.ErrVersionConflict):
		// 重试次数耗尽，交给调用方重试
		return errno.ErrUnavailable.WithMessage("pending transaction is busy, please retry")
	default:
		e.log.Error("Repository operation failed", zap.String("ref", ref), zap.Error(err))
		return errno.ErrDatabase.WithMessage(err.Error())
	}
}
