package policy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stellar/go/clients/horizon"
	"go.uber.org/zap"

	"multisig-core/internal/model"
	"multisig-core/pkg/logger"
)

const signerTypeEd25519 = "ed25519_public_key"

// HorizonClient 基于 Horizon REST API 的 LedgerClient 实现
type HorizonClient struct {
	client  *horizon.Client
	timeout time.Duration
}

func NewHorizonClient(url string, timeout time.Duration) *HorizonClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HorizonClient{
		client: &horizon.Client{
			URL:  url,
			HTTP: &http.Client{Timeout: timeout},
		},
		timeout: timeout,
	}
}

func (c *HorizonClient) LoadAccount(ctx context.Context, accountID string) (*AccountPolicy, error) {
	account, err := call(ctx, c.timeout, func() (horizon.Account, error) {
		return c.client.LoadAccount(accountID)
	})
	if err != nil {
		var herr *horizon.Error
		if errors.As(err, &herr) && herr.Problem.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return nil, unavailable("load account", err)
	}

	p := &AccountPolicy{
		AccountID:       accountID,
		ThresholdLow:    uint32(account.Thresholds.LowThreshold),
		ThresholdMedium: uint32(account.Thresholds.MedThreshold),
		ThresholdHigh:   uint32(account.Thresholds.HighThreshold),
	}
	for _, s := range account.Signers {
		// 只有 ed25519 签名者能通过本服务提交签名；权重为 0 表示已禁用
		if s.Type != "" && s.Type != signerTypeEd25519 {
			continue
		}
		if s.Weight <= 0 {
			continue
		}
		key := s.Key
		if key == "" {
			key = s.PublicKey
		}
		p.Signers = append(p.Signers, model.SignerInfo{PublicKey: key, Weight: uint32(s.Weight)})
	}
	return p, nil
}

func (c *HorizonClient) Broadcast(ctx context.Context, envelopeB64 string) (*BroadcastResult, error) {
	success, err := call(ctx, c.timeout, func() (horizon.TransactionSuccess, error) {
		return c.client.SubmitTransaction(envelopeB64)
	})
	if err != nil {
		var herr *horizon.Error
		if errors.As(err, &herr) && herr.Problem.Status >= 400 && herr.Problem.Status < 500 {
			rejected := &RejectedError{Status: herr.Problem.Status, Title: herr.Problem.Title}
			if codes, codeErr := herr.ResultCodes(); codeErr == nil && codes != nil {
				rejected.TransactionCode = codes.TransactionCode
				rejected.OperationCodes = codes.OperationCodes
			}
			return nil, rejected
		}
		return nil, unavailable("submit transaction", err)
	}

	return &BroadcastResult{NetworkTransactionID: success.Hash, Ledger: uint32(success.Ledger)}, nil
}

func (c *HorizonClient) LatestLedger(ctx context.Context) (uint32, error) {
	root, err := call(ctx, c.timeout, func() (horizon.Root, error) {
		return c.client.Root()
	})
	if err != nil {
		return 0, unavailable("load root", err)
	}
	return uint32(root.HorizonSequence), nil
}

// call 在独立 goroutine 中执行阻塞的 Horizon 调用，ctx 取消或超时立即返回
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func unavailable(op string, err error) error {
	logger.Warn("Horizon request failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrLedgerUnavailable, op, err)
}
