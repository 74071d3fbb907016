package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"multisig-core/internal/model"
)

// MemoryRepository 单实例开发模式与测试使用。
// 所有读写都在同一把锁内完成，返回值均为深拷贝。
type MemoryRepository struct {
	mu     sync.Mutex
	byID   map[string]*model.PendingTransaction
	byHash map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[string]*model.PendingTransaction),
		byHash: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, tx *model.PendingTransaction) error {
	if err := checkWrite(model.StatusPending, tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.byHash[tx.ContentHash]; ok {
		return &DuplicateHashError{ExistingID: existingID}
	}

	now := time.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	r.byID[tx.ID] = tx.Clone()
	r.byHash[tx.ContentHash] = tx.ID
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*model.PendingTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tx.Clone(), nil
}

func (r *MemoryRepository) FindByHash(_ context.Context, contentHash string) (*model.PendingTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byHash[contentHash]
	if !ok {
		return nil, ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepository) ListByAccount(_ context.Context, accountID string, statuses []model.TxStatus) ([]*model.PendingTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[model.TxStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	result := make([]*model.PendingTransaction, 0)
	for _, tx := range r.byID {
		if tx.AccountID != accountID {
			continue
		}
		if len(wanted) > 0 && !wanted[tx.Status] {
			continue
		}
		result = append(result, tx.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, mutate MutateFunc) (*model.PendingTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	working := current.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	if err := checkWrite(current.Status, working); err != nil {
		return nil, err
	}

	working.Version = current.Version + 1
	working.UpdatedAt = time.Now()
	r.byID[id] = working
	return working.Clone(), nil
}

func (r *MemoryRepository) ExpireBefore(_ context.Context, ledger uint32) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	now := time.Now()
	for _, tx := range r.byID {
		if tx.Status.IsTerminal() || tx.ExpiresAtLedger == nil || *tx.ExpiresAtLedger >= ledger || tx.BroadcastAttemptedAt != nil {
			continue
		}
		tx.Status = model.StatusExpired
		tx.Version++
		tx.UpdatedAt = now
		count++
	}
	return count, nil
}
