package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"multisig-core/internal/event"
	"multisig-core/internal/model"
	"multisig-core/pkg/database"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.ConnectSQLite(database.MemorySQLiteDSN(uuid.NewString()), "silent")
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

// eachRepository 两种实现跑同一套契约测试
func eachRepository(t *testing.T, fn func(t *testing.T, repo PendingTransactionRepository)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryRepository())
	})
	t.Run("gorm", func(t *testing.T) {
		fn(t, NewGormRepository(newSQLiteDB(t), 3))
	})
}

func newPending(accountID, hash string, threshold uint32) *model.PendingTransaction {
	return &model.PendingTransaction{
		ID:                  uuid.NewString(),
		AccountID:           accountID,
		TransactionEnvelope: "AAAA",
		ContentHash:         hash,
		Status:              model.StatusPending,
		RequiredThreshold:   threshold,
		Signatures:          []model.CollectedSignature{},
		PendingSigners:      []string{"GK1", "GK2"},
		Metadata:            map[string]any{"source": "test"},
	}
}

func TestCreateAndFind(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo PendingTransactionRepository) {
		ctx := context.Background()
		tx := newPending("GACCOUNT", "hash-1", 2)
		require.NoError(t, repo.Create(ctx, tx))

		byID, err := repo.FindByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, tx.ContentHash, byID.ContentHash)
		assert.Equal(t, []string{"GK1", "GK2"}, byID.PendingSigners)
		assert.Equal(t, "test", byID.Metadata["source"])

		byHash, err := repo.FindByHash(ctx, "hash-1")
		require.NoError(t, err)
		assert.Equal(t, tx.ID, byHash.ID)

		_, err = repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = repo.FindByHash(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateRejectsDuplicateHash(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo PendingTransactionRepository) {
		ctx := context.Background()
		first := newPending("GACCOUNT", "same-hash", 1)
		require.NoError(t, repo.Create(ctx, first))

		err := repo.Create(ctx, newPending("GACCOUNT", "same-hash", 1))
		require.ErrorIs(t, err, ErrDuplicateHash)

		var dup *DuplicateHashError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, first.ID, dup.ExistingID)
	})
}

func TestCreateRejectsBrokenInvariants(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo PendingTransactionRepository) {
		tx := newPending("GACCOUNT", "hash-bad", 2)
		tx.Status = model.StatusReady // 权重 0 < 阈值 2
		err := repo.Create(context.Background(), tx)
		assert.ErrorIs(t, err, model.ErrInvariantViolation)
	})
}

func TestUpdateAppliesMutation(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo PendingTransactionRepository) {
		ctx := context.Background()
		tx := newPending("GACCOUNT", "hash-upd", 2)
		require.NoError(t, repo.Create(ctx, tx))

		updated, err := repo.Update(ctx, tx.ID, func(cur *model.PendingTransaction) error {
			cur.AddSignature(model.CollectedSignature{PublicKey: "GK1", Signature: []byte{1, 2, 3}, Weight: 1})
			cur.RefreshStatus()
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, uint32(1), updated.CollectedWeight)
		assert.Equal(t, model.StatusPending, updated.Status)
		assert.Equal(t, []string{"GK2"}, updated.PendingSigners)
		assert.Equal(t, tx.Version+1, updated.Version)

		updated, err = repo.Update(ctx, tx.ID, func(cur *model.PendingTransaction) error {
			cur.AddSignature(model.CollectedSignature{PublicKey: "GK2", Signature: []byte{4, 5, 6}, Weight: 1})
			cur.RefreshStatus()
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusReady, updated.Status)
		assert.Empty(t, updated.PendingSigners)

		stored, err := repo.FindByID(ctx, tx.ID)
		require.NoError(t, err)
		require.Len(t, stored.Signatures, 2)
		assert.Equal(t, []byte{1, 2, 3}, stored.Signatures[0].Signature)
		assert.Equal(t, "GK2", stored.Signatures[1].PublicKey)
	})
}

func TestUpdateRollsBackOnError(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo PendingTransactionRepository) {
		ctx := context.Background()
		tx := newPending("GACCOUNT", "hash-rollback", 2)
		require.NoError(t, repo.Create(ctx, tx))

		boom := errors.New("boom")
		_, err := repo.Update(ctx, tx.ID, func(cur *model.PendingTransaction) error {
			cur.CollectedWeight = 99
			return boom
		})
		assert.ErrorIs(t, err, boom)

		// 不变量被破坏的修改同样不会落库
		_, err = repo.Update(ctx, tx.ID, func(cur *model.PendingTransaction) error {
			cur.CollectedWeight = 5
			return nil
		})
		assert.ErrorIs(t, err, model.ErrInvariantViolation)

		stored, err := repo.FindByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), stored.CollectedWeight)
		assert.Equal(t, tx.Version, stored.Version)

		_, err = repo.Update(ctx, "missing", func(*model.PendingTransaction) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateRejectsLeavingTerminalState(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo PendingTransactionRepository) {
		ctx := context.Background()
		ledger := uint32(10)
		tx := newPending("GACCOUNT", "hash-terminal", 1)
		tx.ExpiresAtLedger = &ledger
		require.NoError(t, repo.Create(ctx, tx))

		n, err := repo.ExpireBefore(ctx, 11)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		_, err = repo.Update(ctx, tx.ID, func(cur *model.PendingTransaction) error {
			cur.Status = model.StatusPending
			return nil
		})
		assert.ErrorIs(t, err, model.ErrInvariantViolation)
	})
}

func TestListByAccount(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo PendingTransactionRepository) {
		ctx := context.Background()
		older := newPending("GA", "h1", 1)
		older.CreatedAt = time.Now().Add(-time.Minute)
		require.NoError(t, repo.Create(ctx, older))
		newer := newPending("GA", "h2", 1)
		newer.CreatedAt = time.Now()
		require.NoError(t, repo.Create(ctx, newer))
		require.NoError(t, repo.Create(ctx, newPending("GB", "h3", 1)))

		expiry := uint32(1)
		_, err := repo.Update(ctx, older.ID, func(cur *model.PendingTransaction) error {
			cur.ExpiresAtLedger = &expiry
			return nil
		})
		require.NoError(t, err)
		_, err = repo.ExpireBefore(ctx, 2)
		require.NoError(t, err)

		active, err := repo.ListByAccount(ctx, "GA", model.ActiveStatuses)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, newer.ID, active[0].ID)

		all, err := repo.ListByAccount(ctx, "GA", nil)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, newer.ID, all[0].ID)
		assert.Equal(t, model.StatusExpired, all[1].Status)
	})
}

func TestExpireBefore(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo PendingTransactionRepository) {
		ctx := context.Background()
		at := func(v uint32) *uint32 { return &v }

		stale := newPending("GA", "stale", 1)
		stale.ExpiresAtLedger = at(100)
		boundary := newPending("GA", "boundary", 1)
		boundary.ExpiresAtLedger = at(150)
		noExpiry := newPending("GA", "forever", 1)
		for _, tx := range []*model.PendingTransaction{stale, boundary, noExpiry} {
			require.NoError(t, repo.Create(ctx, tx))
		}

		n, err := repo.ExpireBefore(ctx, 150)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := repo.FindByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusExpired, got.Status)
		assert.Equal(t, stale.Version+1, got.Version)

		got, err = repo.FindByID(ctx, boundary.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)

		// 已过期的记录不会被重复计数
		n, err = repo.ExpireBefore(ctx, 150)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})
}

func TestGormRepositoryWritesOutboxEvents(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormRepository(db, 3)
	ctx := context.Background()

	expiry := uint32(5)
	tx := newPending("GA", "outbox-hash", 1)
	tx.ExpiresAtLedger = &expiry
	require.NoError(t, repo.Create(ctx, tx))

	_, err := repo.Update(ctx, tx.ID, func(cur *model.PendingTransaction) error {
		cur.AddSignature(model.CollectedSignature{PublicKey: "GK1", Signature: []byte{9}, Weight: 1})
		cur.RefreshStatus()
		return nil
	})
	require.NoError(t, err)

	// 状态未变化，不写事件
	_, err = repo.Update(ctx, tx.ID, func(cur *model.PendingTransaction) error {
		cur.Memo = "note"
		return nil
	})
	require.NoError(t, err)

	_, err = repo.ExpireBefore(ctx, 6)
	require.NoError(t, err)

	var messages []model.OutboxMessage
	require.NoError(t, db.Order("id ASC").Find(&messages).Error)
	require.Len(t, messages, 3)
	assert.Contains(t, string(messages[0].Payload), string(event.ProposalCreated))
	assert.Contains(t, string(messages[1].Payload), string(event.ProposalReady))
	assert.Contains(t, string(messages[2].Payload), string(event.ProposalExpired))
	for _, m := range messages {
		assert.Equal(t, event.TopicProposal, m.Topic)
		assert.Equal(t, tx.ID, m.Key)
		assert.Equal(t, model.OutboxStatusPending, m.Status)
	}
}

// bumpVersionBeforeUpdate 在读取与 CAS 写回之间模拟另一个写者，times 次后停止
func bumpVersionBeforeUpdate(t *testing.T, db *gorm.DB, id string, times int) *int {
	t.Helper()
	bumps := 0
	err := db.Callback().Update().Before("gorm:update").Register("test:concurrent_writer", func(tx *gorm.DB) {
		if bumps >= times {
			return
		}
		bumps++
		err := tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE pending_transactions SET version = version + 1 WHERE id = ?", id).Error
		if err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
	return &bumps
}

func TestGormUpdateRetriesOnVersionConflict(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormRepository(db, 3)
	ctx := context.Background()
	tx := newPending("GA", "conflict-hash", 2)
	require.NoError(t, repo.Create(ctx, tx))

	bumps := bumpVersionBeforeUpdate(t, db, tx.ID, 1)

	calls := 0
	updated, err := repo.Update(ctx, tx.ID, func(cur *model.PendingTransaction) error {
		calls++
		cur.AddSignature(model.CollectedSignature{PublicKey: "GK1", Signature: []byte{1}, Weight: 1})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, *bumps)
	assert.Equal(t, 2, calls, "版本冲突后重新读取并重放 mutate")
	assert.Equal(t, uint32(1), updated.CollectedWeight)

	// 冲突的那次尝试整体回滚，签名只落库一次
	stored, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, stored.Signatures, 1)
	assert.Equal(t, uint32(1), stored.CollectedWeight)
	assert.Equal(t, tx.Version+1, stored.Version)
}

func TestGormUpdateGivesUpAfterRepeatedConflicts(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormRepository(db, 3)
	ctx := context.Background()
	tx := newPending("GA", "hot-hash", 2)
	require.NoError(t, repo.Create(ctx, tx))

	bumpVersionBeforeUpdate(t, db, tx.ID, 100)

	calls := 0
	_, err := repo.Update(ctx, tx.ID, func(cur *model.PendingTransaction) error {
		calls++
		cur.AddSignature(model.CollectedSignature{PublicKey: "GK1", Signature: []byte{1}, Weight: 1})
		return nil
	})
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 3, calls, "重试次数用尽")

	stored, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Signatures)
	assert.Equal(t, tx.Version, stored.Version)
}

func TestExpireBeforeSkipsBroadcastAttempted(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo PendingTransactionRepository) {
		ctx := context.Background()
		expiry := uint32(5)
		tx := newPending("GA", "in-flight", 1)
		tx.ExpiresAtLedger = &expiry
		require.NoError(t, repo.Create(ctx, tx))

		attempted := time.Now().UTC()
		_, err := repo.Update(ctx, tx.ID, func(cur *model.PendingTransaction) error {
			cur.AddSignature(model.CollectedSignature{PublicKey: "GK1", Signature: []byte{1}, Weight: 1})
			cur.RefreshStatus()
			cur.BroadcastAttemptedAt = &attempted
			return nil
		})
		require.NoError(t, err)

		n, err := repo.ExpireBefore(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		stored, err := repo.FindByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusReady, stored.Status)
		require.NotNil(t, stored.BroadcastAttemptedAt)
	})
}
