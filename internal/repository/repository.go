package repository

import (
	"context"
	"errors"
	"fmt"

	"multisig-core/internal/model"
)

var (
	ErrNotFound        = errors.New("pending transaction not found")
	ErrDuplicateHash   = errors.New("pending transaction with this content hash already exists")
	ErrVersionConflict = errors.New("pending transaction was modified concurrently")
)

// DuplicateHashError 携带已存在记录的 ID，便于调用方去重
type DuplicateHashError struct {
	ExistingID string
}

func (e *DuplicateHashError) Error() string {
	return fmt.Sprintf("%s (existing id %s)", ErrDuplicateHash, e.ExistingID)
}

func (e *DuplicateHashError) Is(target error) bool {
	return target == ErrDuplicateHash
}

// MutateFunc 在原子的读-改-写中执行；返回错误则放弃本次修改
type MutateFunc func(tx *model.PendingTransaction) error

// PendingTransactionRepository 待签名交易的持久化
type PendingTransactionRepository interface {
	Create(ctx context.Context, tx *model.PendingTransaction) error
	FindByID(ctx context.Context, id string) (*model.PendingTransaction, error)
	FindByHash(ctx context.Context, contentHash string) (*model.PendingTransaction, error)
	ListByAccount(ctx context.Context, accountID string, statuses []model.TxStatus) ([]*model.PendingTransaction, error)
	// Update 对单条记录做原子的读-改-写，并发冲突时自动重试
	Update(ctx context.Context, id string, mutate MutateFunc) (*model.PendingTransaction, error)
	// ExpireBefore 把 expires_at_ledger < ledger 的 PENDING/READY 记录批量置为 EXPIRED，已开始广播的记录除外
	ExpireBefore(ctx context.Context, ledger uint32) (int64, error)
}

// checkWrite 写入边界统一检查状态迁移与聚合不变量
func checkWrite(before model.TxStatus, after *model.PendingTransaction) error {
	if err := model.CheckTransition(before, after.Status); err != nil {
		return err
	}
	return after.Validate()
}
