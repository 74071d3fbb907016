package multisig

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"multisig-core/internal/model"
	"multisig-core/pkg/crypto_util"
	"multisig-core/pkg/envelope"
	"multisig-core/pkg/errno"
	"multisig-core/pkg/monitor"
)

// SubmitSignature 为待签名交易追加一个签名者的签名。
// 验签与链上策略查询在行更新之外完成；状态与重复签名在 Update 内重新检查。
func (e *Engine) SubmitSignature(ctx context.Context, id, signerPublicKey, signatureB64 string) (*model.PendingTransaction, error) {
	tx, err := e.submitSignature(ctx, id, signerPublicKey, signatureB64)
	if err != nil {
		monitor.Business.SignaturesTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}
	monitor.Business.SignaturesTotal.WithLabelValues("accepted").Inc()
	return tx, nil
}

func (e *Engine) submitSignature(ctx context.Context, id, signerPublicKey, signatureB64 string) (*model.PendingTransaction, error) {
	// 1. 校验公钥与签名编码
	if err := crypto_util.ValidatePublicKey(signerPublicKey); err != nil {
		return nil, errno.ErrInvalidPublicKey.WithMessage(err.Error())
	}
	sig, err := crypto_util.DecodeSignature(signatureB64)
	if err != nil {
		return nil, errno.ErrInvalidSignature.WithMessage(err.Error())
	}

	// 2. 读取记录
	current, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, e.mapRepoError(err, id)
	}

	// 3. 终态不可再签
	if err := checkSignable(current); err != nil {
		return nil, err
	}

	// 4. 同一签名者不能重复签名
	if current.HasSigner(signerPublicKey) {
		return nil, duplicateSigner(current.ID, signerPublicKey)
	}

	// 5. 验签 (纯密码学校验，不依赖网络)
	hash, err := envelope.ParseHashHex(current.ContentHash)
	if err != nil {
		return nil, errno.InternalServerError.WithMessage(fmt.Sprintf("stored content hash is corrupt: %v", err))
	}
	if err := crypto_util.VerifyEd25519(signerPublicKey, hash[:], sig); err != nil {
		e.log.Warn("Signature verification failed",
			zap.String("id", id), zap.String("signer", signerPublicKey), zap.Error(err))
		return nil, errno.ErrSignatureVerification
	}

	// 6. 重新读取链上策略，确认签名者仍然有效
	status, err := e.gateway.GetStatus(ctx, current.AccountID)
	if err != nil {
		return nil, err
	}
	signer, ok := status.FindSigner(signerPublicKey)
	if !ok {
		return nil, errno.ErrUnauthorizedSigner.WithMessage(
			fmt.Sprintf("%s is not an authorized signer for account %s", signerPublicKey, current.AccountID))
	}

	// 7-9. 原子更新: 追加签名、累计权重、重新计算状态
	updated, err := e.repo.Update(ctx, id, func(tx *model.PendingTransaction) error {
		if err := checkSignable(tx); err != nil {
			return err
		}
		if tx.HasSigner(signerPublicKey) {
			return duplicateSigner(tx.ID, signerPublicKey)
		}

		newEnvelope, err := e.codec.AppendSignature(tx.TransactionEnvelope, signerPublicKey, sig)
		if err != nil {
			return errno.ErrInvalidEnvelope.WithMessage(err.Error())
		}
		tx.TransactionEnvelope = newEnvelope
		tx.AddSignature(model.CollectedSignature{
			PublicKey: signerPublicKey,
			Signature: sig,
			Weight:    signer.Weight,
		})
		tx.RefreshStatus()
		return nil
	})
	if err != nil {
		return nil, e.mapRepoError(err, id)
	}

	e.log.Info("Signature accepted",
		zap.String("id", id),
		zap.String("signer", signerPublicKey),
		zap.Uint32("weight", signer.Weight),
		zap.Uint32("collected_weight", updated.CollectedWeight),
		zap.Uint32("required_threshold", updated.RequiredThreshold),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

// checkSignable READY 之后仍然接受签名，签名会追加到信封中。
// 权重超过阈值后多出的签名可能不被网络使用，广播会以 tx_bad_auth_extra 失败；
// 是否继续收集由调用方根据 collectedWeight / requiredThreshold 决定。
// 广播开始后信封冻结，不再接受签名。
func checkSignable(tx *model.PendingTransaction) error {
	if tx.Status.IsTerminal() {
		return errno.ErrInvalidState.WithMessage(
			fmt.Sprintf("cannot add signature to a transaction with status %s", tx.Status))
	}
	if tx.BroadcastAttemptedAt != nil {
		return errno.ErrInvalidState.WithMessage("cannot add signature to a transaction that has already been broadcast")
	}
	return nil
}

func duplicateSigner(id, signer string) error {
	return errno.ErrDuplicateSigner.
		WithMessage(fmt.Sprintf("signer %s has already signed transaction %s", signer, id)).
		WithRef(id)
}

// rejectReason 指标标签
func rejectReason(err error) string {
	var en errno.Errno
	if !errors.As(err, &en) {
		return "error"
	}
	switch en.Code {
	case errno.ErrDuplicateSigner.Code:
		return "duplicate"
	case errno.ErrSignatureVerification.Code:
		return "invalid_signature"
	case errno.ErrUnauthorizedSigner.Code:
		return "unauthorized"
	case errno.ErrInvalidState.Code:
		return "invalid_state"
	case errno.ErrLedgerUnavailable.Code:
		return "unavailable"
	}
	return "bad_request"
}
