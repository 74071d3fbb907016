package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"multisig-core/internal/model"
)

var (
	ErrAccountNotFound   = errors.New("account not found on ledger")
	ErrLedgerUnavailable = errors.New("ledger network unavailable")
)

// AccountPolicy 链上账户的签名者与三档阈值
type AccountPolicy struct {
	AccountID       string
	ThresholdLow    uint32
	ThresholdMedium uint32
	ThresholdHigh   uint32
	Signers         []model.SignerInfo
}

// BroadcastResult 广播成功后链上返回的交易哈希与账本高度
type BroadcastResult struct {
	NetworkTransactionID string
	Ledger               uint32
}

// RejectedError 网络明确拒绝了交易 (例如 tx_bad_seq / tx_bad_auth)
type RejectedError struct {
	Status          int
	Title           string
	TransactionCode string
	OperationCodes  []string
}

func (e *RejectedError) Error() string {
	var b strings.Builder
	b.WriteString("transaction rejected")
	if e.Title != "" {
		fmt.Fprintf(&b, ": %s", e.Title)
	}
	if e.TransactionCode != "" {
		fmt.Fprintf(&b, " (%s", e.TransactionCode)
		if len(e.OperationCodes) > 0 {
			fmt.Fprintf(&b, ", operations: %s", strings.Join(e.OperationCodes, ","))
		}
		b.WriteString(")")
	}
	return b.String()
}

// LedgerClient 账本网络客户端，Engine 只依赖这个窄接口，测试中用假实现替换
type LedgerClient interface {
	LoadAccount(ctx context.Context, accountID string) (*AccountPolicy, error)
	Broadcast(ctx context.Context, envelopeB64 string) (*BroadcastResult, error)
	LatestLedger(ctx context.Context) (uint32, error)
}
