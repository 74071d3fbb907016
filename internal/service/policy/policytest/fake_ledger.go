// Package policytest provides an in-memory LedgerClient for tests.
package policytest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"multisig-core/internal/model"
	"multisig-core/internal/service/policy"
)

type FakeLedger struct {
	mu       sync.Mutex
	accounts map[string]*policy.AccountPolicy

	// LoadErr 非空时 LoadAccount 直接返回该错误
	LoadErr error
	// BroadcastFunc 为空时广播成功并返回 "tx-<n>"
	BroadcastFunc func(ctx context.Context, envelopeB64 string) (*policy.BroadcastResult, error)
	Ledger        uint32

	loads      atomic.Int64
	broadcasts atomic.Int64
}

func NewFakeLedger() *FakeLedger {
	return &FakeLedger{accounts: make(map[string]*policy.AccountPolicy)}
}

// SetAccount 注册或替换账户策略，medium 阈值同时用作 low / high
func (f *FakeLedger) SetAccount(accountID string, medium uint32, signers ...model.SignerInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[accountID] = &policy.AccountPolicy{
		AccountID:       accountID,
		ThresholdLow:    medium,
		ThresholdMedium: medium,
		ThresholdHigh:   medium,
		Signers:         append([]model.SignerInfo(nil), signers...),
	}
}

func (f *FakeLedger) LoadAccount(ctx context.Context, accountID string) (*policy.AccountPolicy, error) {
	f.loads.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", policy.ErrLedgerUnavailable, err)
	}
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", policy.ErrAccountNotFound, accountID)
	}
	cp := *p
	cp.Signers = append([]model.SignerInfo(nil), p.Signers...)
	return &cp, nil
}

func (f *FakeLedger) Broadcast(ctx context.Context, envelopeB64 string) (*policy.BroadcastResult, error) {
	n := f.broadcasts.Add(1)
	if f.BroadcastFunc != nil {
		return f.BroadcastFunc(ctx, envelopeB64)
	}
	return &policy.BroadcastResult{NetworkTransactionID: fmt.Sprintf("tx-%d", n), Ledger: f.Ledger}, nil
}

func (f *FakeLedger) LatestLedger(context.Context) (uint32, error) {
	return f.Ledger, nil
}

func (f *FakeLedger) Loads() int64 {
	return f.loads.Load()
}

func (f *FakeLedger) Broadcasts() int64 {
	return f.broadcasts.Load()
}
