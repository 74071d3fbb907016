package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"multisig-core/internal/event"
	"multisig-core/internal/model"
	"multisig-core/pkg/logger"
)

const defaultUpdateAttempts = 5

// GormRepository Postgres (生产) / SQLite (测试) 实现。
// 并发控制: 事务内 SELECT ... FOR UPDATE 行锁 + version 乐观锁双保险，
// 状态变化时在同一事务内写入 outbox 消息。
type GormRepository struct {
	db       *gorm.DB
	attempts uint
}

func NewGormRepository(db *gorm.DB, attempts uint) *GormRepository {
	if attempts == 0 {
		attempts = defaultUpdateAttempts
	}
	return &GormRepository{db: db, attempts: attempts}
}

func (r *GormRepository) Create(ctx context.Context, tx *model.PendingTransaction) error {
	if err := checkWrite(model.StatusPending, tx); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Create(tx).Error; err != nil {
			return err
		}
		return writeEvent(db, event.ProposalCreated, tx)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 唯一索引冲突: 事务已回滚，在事务外查询已存在的记录
		existing, findErr := r.FindByHash(ctx, tx.ContentHash)
		if findErr != nil {
			return fmt.Errorf("%w: %v", ErrDuplicateHash, findErr)
		}
		return &DuplicateHashError{ExistingID: existing.ID}
	}
	return err
}

func (r *GormRepository) FindByID(ctx context.Context, id string) (*model.PendingTransaction, error) {
	var tx model.PendingTransaction
	if err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *GormRepository) FindByHash(ctx context.Context, contentHash string) (*model.PendingTransaction, error) {
	var tx model.PendingTransaction
	if err := r.db.WithContext(ctx).First(&tx, "content_hash = ?", contentHash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *GormRepository) ListByAccount(ctx context.Context, accountID string, statuses []model.TxStatus) ([]*model.PendingTransaction, error) {
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var txs []*model.PendingTransaction
	if err := query.Order("created_at DESC").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// Update 读-改-写。version 冲突时由 retry-go 重新读取并重放 mutate
func (r *GormRepository) Update(ctx context.Context, id string, mutate MutateFunc) (*model.PendingTransaction, error) {
	var result *model.PendingTransaction
	err := retry.Do(
		func() error {
			updated, err := r.updateOnce(ctx, id, mutate)
			if err != nil {
				return err
			}
			result = updated
			return nil
		},
		retry.Attempts(r.attempts),
		retry.Delay(10*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrVersionConflict) && ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("Retrying pending transaction update", zap.String("id", id), zap.Uint("attempt", n+1))
		}),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *GormRepository) updateOnce(ctx context.Context, id string, mutate MutateFunc) (*model.PendingTransaction, error) {
	var updated model.PendingTransaction
	err := r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		// 1. 行锁读取当前记录 (SQLite 会忽略 FOR UPDATE，依靠 version 检查)
		var current model.PendingTransaction
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		prevStatus := current.Status
		prevVersion := current.Version

		// 2. 业务修改 + 不变量检查
		if err := mutate(&current); err != nil {
			return err
		}
		if err := checkWrite(prevStatus, &current); err != nil {
			return err
		}

		// 3. CAS 写回
		current.Version = prevVersion + 1
		current.UpdatedAt = time.Now()
		res := db.Model(&model.PendingTransaction{}).
			Where("id = ? AND version = ?", id, prevVersion).
			Select("*").Omit("id", "created_at").
			Updates(&current)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		// 4. 状态变化写 outbox
		if current.Status != prevStatus {
			if typ, ok := event.TypeForStatus(current.Status); ok {
				if err := writeEvent(db, typ, &current); err != nil {
					return err
				}
			}
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ExpireBefore 跳过正被其他事务锁住的行 (SKIP LOCKED)，这些行下一轮再处理
func (r *GormRepository) ExpireBefore(ctx context.Context, ledger uint32) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var candidates []model.PendingTransaction
		if err := db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status IN ? AND expires_at_ledger IS NOT NULL AND expires_at_ledger < ?", model.ActiveStatuses, ledger).
			Where("broadcast_attempted_at IS NULL").
			Find(&candidates).Error; err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}

		ids := make([]string, 0, len(candidates))
		for _, c := range candidates {
			ids = append(ids, c.ID)
		}

		res := db.Model(&model.PendingTransaction{}).
			Where("id IN ? AND status IN ?", ids, model.ActiveStatuses).
			Updates(map[string]interface{}{
				"status":     model.StatusExpired,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected

		for i := range candidates {
			candidates[i].Status = model.StatusExpired
			if err := writeEvent(db, event.ProposalExpired, &candidates[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func writeEvent(db *gorm.DB, typ event.Type, tx *model.PendingTransaction) error {
	msg, err := event.NewProposalEvent(typ, tx).OutboxMessage()
	if err != nil {
		return err
	}
	return db.Create(msg).Error
}
