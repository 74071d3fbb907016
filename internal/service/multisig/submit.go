package multisig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"multisig-core/internal/model"
	"multisig-core/internal/service/policy"
	"multisig-core/pkg/errno"
	"multisig-core/pkg/monitor"
)

// SubmitResult 广播结果。广播失败不是错误，调用方需检查 Success
type SubmitResult struct {
	Success              bool   `json:"success"`
	NetworkTransactionID string `json:"networkTransactionId,omitempty"`
	Message              string `json:"message,omitempty"`
}

// SubmitToNetwork 广播一笔 READY 的交易。
// 同一条记录跨实例最多广播一次: 分布式锁保证同一时刻只有一个广播者，
// 广播前先持久化 BroadcastAttemptedAt，之后任何调用都不会再次广播。
// 结果写回失败时记录停在 READY + BroadcastAttemptedAt，需要与网络核对后人工处理。
// 广播失败记录为 FAILED 而不是重试，结果未知时重发可能导致重复执行。
func (e *Engine) SubmitToNetwork(ctx context.Context, id string) (*SubmitResult, error) {
	// 1. 读取记录
	current, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, e.mapRepoError(err, id)
	}

	// 2. 必须是 READY
	if err := checkSubmittable(current); err != nil {
		return nil, err
	}

	// 获取广播锁
	lockKey := "multisig:submit:" + id
	token, acquired, err := e.locker.Acquire(ctx, lockKey, e.submitLockTTL)
	if err != nil {
		e.log.Error("Failed to acquire submit lock", zap.String("id", id), zap.Error(err))
		return nil, errno.ErrUnavailable.WithMessage("failed to acquire submission lock")
	}
	if !acquired {
		return nil, errno.ErrSubmissionInProgress.WithRef(id)
	}
	defer func() {
		// 使用独立的 ctx，请求 ctx 取消后仍要释放锁
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.locker.Release(releaseCtx, lockKey, token); err != nil {
			e.log.Warn("Failed to release submit lock", zap.String("id", id), zap.Error(err))
		}
	}()

	// 持锁后重新读取，等锁期间其他实例可能已经完成广播。
	// 此时仍带有广播标记说明上一次广播的结果没有写回
	current, err = e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, e.mapRepoError(err, id)
	}
	if err := checkSubmittable(current); err != nil {
		return nil, err
	}
	if err := checkNotBroadcast(current); err != nil {
		return nil, err
	}

	// 3. 解码校验
	if _, err := e.codec.Decode(current.TransactionEnvelope); err != nil {
		return e.recordFailure(ctx, current, err.Error())
	}

	// 4. 标记广播开始。写不进去就不广播
	attemptedAt := e.now().UTC()
	current, err = e.repo.Update(ctx, id, func(tx *model.PendingTransaction) error {
		if err := checkSubmittable(tx); err != nil {
			return err
		}
		if err := checkNotBroadcast(tx); err != nil {
			return err
		}
		tx.BroadcastAttemptedAt = &attemptedAt
		return nil
	})
	if err != nil {
		return nil, e.mapRepoError(err, id)
	}

	broadcastCtx, cancel := context.WithTimeout(ctx, e.broadcastTimeout)
	start := time.Now()
	res, broadcastErr := e.ledger.Broadcast(broadcastCtx, current.TransactionEnvelope)
	cancel()
	monitor.Business.BroadcastDuration.Observe(time.Since(start).Seconds())

	// 广播已经发出，结果必须写回，不受请求取消影响
	persistCtx := context.WithoutCancel(ctx)

	// 5. 失败: 记录 FAILED，以结果返回
	if broadcastErr != nil {
		e.log.Warn("Broadcast failed",
			zap.String("id", id), zap.String("account_id", current.AccountID), zap.Error(broadcastErr))
		return e.recordFailure(persistCtx, current, failureReason(broadcastErr))
	}

	// 6. 成功: 记录 SUBMITTED
	submittedAt := e.now().UTC()
	updated, err := e.repo.Update(persistCtx, id, func(tx *model.PendingTransaction) error {
		if tx.Status != model.StatusReady {
			return errno.ErrInvalidState.WithMessage(fmt.Sprintf("transaction changed to %s during submission", tx.Status))
		}
		tx.Status = model.StatusSubmitted
		tx.SubmittedAt = &submittedAt
		tx.NetworkTransactionID = res.NetworkTransactionID
		return nil
	})
	if err != nil {
		// 交易已经上链但状态没有写回，BroadcastAttemptedAt 阻止再次广播，需要人工核对
		e.log.Error("Broadcast succeeded but recording SUBMITTED failed",
			zap.String("id", id),
			zap.String("network_transaction_id", res.NetworkTransactionID),
			zap.Error(err),
		)
		return nil, errno.ErrDatabase.WithMessage(fmt.Sprintf(
			"transaction %s was broadcast as %s but its status could not be recorded: %v", id, res.NetworkTransactionID, err))
	}

	monitor.Business.SubmissionsTotal.WithLabelValues("submitted").Inc()
	e.log.Info("Transaction submitted",
		zap.String("id", id),
		zap.String("network_transaction_id", updated.NetworkTransactionID),
		zap.Uint32("ledger", res.Ledger),
	)
	return &SubmitResult{Success: true, NetworkTransactionID: updated.NetworkTransactionID}, nil
}

func (e *Engine) recordFailure(ctx context.Context, current *model.PendingTransaction, reason string) (*SubmitResult, error) {
	_, err := e.repo.Update(ctx, current.ID, func(tx *model.PendingTransaction) error {
		if tx.Status != model.StatusReady {
			return errno.ErrInvalidState.WithMessage(fmt.Sprintf("transaction changed to %s during submission", tx.Status))
		}
		tx.Status = model.StatusFailed
		tx.FailureReason = reason
		return nil
	})
	if err != nil {
		e.log.Error("Failed to record submission failure",
			zap.String("id", current.ID), zap.String("reason", reason), zap.Error(err))
		return nil, e.mapRepoError(err, current.ID)
	}

	monitor.Business.SubmissionsTotal.WithLabelValues("failed").Inc()
	return &SubmitResult{Success: false, Message: reason}, nil
}

func checkSubmittable(tx *model.PendingTransaction) error {
	if tx.Status != model.StatusReady {
		return errno.ErrNotReady.WithMessage(fmt.Sprintf(
			"transaction is not ready for submission (status %s, collected weight %d of required %d)",
			tx.Status, tx.CollectedWeight, tx.RequiredThreshold))
	}
	return nil
}

// checkNotBroadcast 只在持锁时调用: 没有其他广播者，标记存在即结果未知
func checkNotBroadcast(tx *model.PendingTransaction) error {
	if tx.BroadcastAttemptedAt != nil {
		return errno.ErrBroadcastUnresolved.WithMessage(fmt.Sprintf(
			"transaction was broadcast at %s without a recorded outcome; reconcile with the network before retrying",
			tx.BroadcastAttemptedAt.Format(time.RFC3339))).WithRef(tx.ID)
	}
	return nil
}

// failureReason 尽量提取网络返回的结果码
func failureReason(err error) string {
	var rejected *policy.RejectedError
	if errors.As(err, &rejected) {
		return rejected.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "broadcast timed out: " + err.Error()
	}
	return err.Error()
}
