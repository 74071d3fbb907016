package multisig

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"multisig-core/internal/model"
	"multisig-core/internal/repository"
	"multisig-core/pkg/crypto_util"
	"multisig-core/pkg/envelope"
	"multisig-core/pkg/errno"
	"multisig-core/pkg/monitor"
)

type CreateProposalInput struct {
	AccountID       string
	Envelope        string
	Memo            string
	Metadata        map[string]any
	ExpiresAtLedger *uint32
}

// CreateProposal 创建多签提案。
// 信封中已经带有的合法签名直接计入权重，足够时初始状态即为 READY。
func (e *Engine) CreateProposal(ctx context.Context, in CreateProposalInput) (*model.PendingTransaction, error) {
	// 1. 校验账户格式
	if err := crypto_util.ValidateAccountID(in.AccountID); err != nil {
		return nil, errno.ErrInvalidAccount.WithMessage(err.Error())
	}

	// 2. 解码信封
	env, err := e.codec.Decode(in.Envelope)
	if err != nil {
		return nil, errno.ErrInvalidEnvelope.WithMessage(err.Error())
	}
	hash, err := e.codec.ContentHash(env)
	if err != nil {
		return nil, errno.ErrInvalidEnvelope.WithMessage(err.Error())
	}
	contentHash := envelope.HashHex(hash)

	// 3. 查重 (在任何网络请求之前)
	existing, err := e.repo.FindByHash(ctx, contentHash)
	switch {
	case err == nil:
		return nil, duplicateTransaction(existing.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, e.mapRepoError(err, contentHash)
	}

	// 4. 读取链上策略
	status, err := e.gateway.GetStatus(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}

	// 5. 阈值快照 (中阈值，为 0 时取 1)
	required := status.RequiredThreshold()

	// 6. 信封中已有的签名
	signers := make([]envelope.Signer, 0, len(status.Signers))
	for _, s := range status.Signers {
		signers = append(signers, envelope.Signer{PublicKey: s.PublicKey, Weight: s.Weight})
	}
	embedded := e.codec.ExtractEmbeddedSignatures(env, hash, signers)

	tx := &model.PendingTransaction{
		ID:                  uuid.NewString(),
		AccountID:           in.AccountID,
		TransactionEnvelope: in.Envelope,
		ContentHash:         contentHash,
		Status:              model.StatusPending,
		RequiredThreshold:   required,
		Signatures:          make([]model.CollectedSignature, 0, len(embedded)),
		PendingSigners:      make([]string, 0, len(status.Signers)),
		Memo:                in.Memo,
		Metadata:            in.Metadata,
		ExpiresAtLedger:     in.ExpiresAtLedger,
	}
	for _, s := range status.Signers {
		tx.PendingSigners = append(tx.PendingSigners, s.PublicKey)
	}
	for _, m := range embedded {
		tx.AddSignature(model.CollectedSignature{PublicKey: m.PublicKey, Signature: m.Signature, Weight: m.Weight})
	}

	// 7. 初始状态
	tx.RefreshStatus()

	// 8. 持久化 (并发创建同一笔交易时由唯一索引兜底)
	if err := e.repo.Create(ctx, tx); err != nil {
		var dup *repository.DuplicateHashError
		if errors.As(err, &dup) {
			return nil, duplicateTransaction(dup.ExistingID)
		}
		return nil, e.mapRepoError(err, tx.ID)
	}

	monitor.Business.ProposalsCreatedTotal.WithLabelValues(string(tx.Status)).Inc()
	e.log.Info("Multisig proposal created",
		zap.String("id", tx.ID),
		zap.String("account_id", tx.AccountID),
		zap.String("content_hash", contentHash),
		zap.String("envelope_type", env.Kind()),
		zap.String("status", string(tx.Status)),
		zap.Uint32("collected_weight", tx.CollectedWeight),
		zap.Uint32("required_threshold", tx.RequiredThreshold),
	)
	return tx, nil
}

func duplicateTransaction(existingID string) error {
	return errno.ErrDuplicateTransaction.
		WithMessage(fmt.Sprintf("transaction already exists with id %s", existingID)).
		WithRef(existingID)
}
