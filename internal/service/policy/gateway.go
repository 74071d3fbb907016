package policy

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"multisig-core/internal/model"
	"multisig-core/pkg/crypto_util"
	"multisig-core/pkg/errno"
	"multisig-core/pkg/logger"
)

// Gateway 读取账户的多签策略。每次调用都访问网络，不做缓存。
type Gateway struct {
	client LedgerClient
}

func NewGateway(client LedgerClient) *Gateway {
	return &Gateway{client: client}
}

// GetStatus 先校验账户格式，再查询网络。
// 账户不存在返回 ErrAccountNotFound (404)，其他网络错误返回 ErrLedgerUnavailable (503)。
func (g *Gateway) GetStatus(ctx context.Context, accountID string) (*model.AccountMultisigStatus, error) {
	if err := crypto_util.ValidateAccountID(accountID); err != nil {
		return nil, errno.ErrInvalidAccount.WithMessage(err.Error())
	}

	p, err := g.client.LoadAccount(ctx, accountID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountNotFound):
			return nil, errno.ErrAccountNotFound.WithMessage("account not found: " + accountID)
		default:
			logger.Warn("Failed to load account policy", zap.String("account_id", accountID), zap.Error(err))
			return nil, errno.ErrLedgerUnavailable.WithMessage(err.Error())
		}
	}

	signers := make([]model.SignerInfo, 0, len(p.Signers))
	for _, s := range p.Signers {
		if s.Weight == 0 {
			continue
		}
		if err := crypto_util.ValidatePublicKey(s.PublicKey); err != nil {
			continue
		}
		signers = append(signers, s)
	}

	return model.NewAccountMultisigStatus(accountID, p.ThresholdLow, p.ThresholdMedium, p.ThresholdHigh, signers), nil
}
