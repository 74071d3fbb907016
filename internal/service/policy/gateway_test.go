package policy_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multisig-core/internal/model"
	"multisig-core/internal/service/policy"
	"multisig-core/internal/service/policy/policytest"
	"multisig-core/pkg/envelope/envelopetest"
	"multisig-core/pkg/errno"
)

func TestGetStatusRejectsMalformedAccountBeforeNetwork(t *testing.T) {
	ledger := policytest.NewFakeLedger()
	gw := policy.NewGateway(ledger)

	_, err := gw.GetStatus(context.Background(), "not-an-account")
	assert.ErrorIs(t, err, errno.ErrInvalidAccount)
	assert.Equal(t, int64(0), ledger.Loads())
}

func TestGetStatusMapsNetworkErrors(t *testing.T) {
	ledger := policytest.NewFakeLedger()
	gw := policy.NewGateway(ledger)
	account := envelopetest.NewKeypair(t).Address()

	_, err := gw.GetStatus(context.Background(), account)
	assert.ErrorIs(t, err, errno.ErrAccountNotFound)

	ledger.LoadErr = fmt.Errorf("%w: i/o timeout", policy.ErrLedgerUnavailable)
	_, err = gw.GetStatus(context.Background(), account)
	assert.ErrorIs(t, err, errno.ErrLedgerUnavailable)
	assert.False(t, errors.Is(err, errno.ErrAccountNotFound))

	// 未分类的错误同样视为不可用，而不是账户不存在
	ledger.LoadErr = errors.New("connection reset")
	_, err = gw.GetStatus(context.Background(), account)
	assert.ErrorIs(t, err, errno.ErrLedgerUnavailable)
}

func TestGetStatusClassifiesMultisig(t *testing.T) {
	ledger := policytest.NewFakeLedger()
	gw := policy.NewGateway(ledger)

	k1 := envelopetest.NewKeypair(t).Address()
	k2 := envelopetest.NewKeypair(t).Address()
	disabled := envelopetest.NewKeypair(t).Address()

	single := envelopetest.NewKeypair(t).Address()
	ledger.SetAccount(single, 1, model.SignerInfo{PublicKey: single, Weight: 1})

	multi := envelopetest.NewKeypair(t).Address()
	ledger.SetAccount(multi, 2,
		model.SignerInfo{PublicKey: k1, Weight: 1},
		model.SignerInfo{PublicKey: k2, Weight: 2},
		model.SignerInfo{PublicKey: disabled, Weight: 0},
		model.SignerInfo{PublicKey: "garbage", Weight: 5},
	)

	status, err := gw.GetStatus(context.Background(), single)
	require.NoError(t, err)
	assert.False(t, status.IsMultisig)
	assert.Equal(t, uint32(1), status.TotalWeight)

	status, err = gw.GetStatus(context.Background(), multi)
	require.NoError(t, err)
	assert.True(t, status.IsMultisig)
	assert.Equal(t, uint32(2), status.ThresholdMedium)
	assert.Equal(t, uint32(3), status.TotalWeight)
	require.Len(t, status.Signers, 2)

	_, found := status.FindSigner(disabled)
	assert.False(t, found)
	signer, found := status.FindSigner(k2)
	assert.True(t, found)
	assert.Equal(t, uint32(2), signer.Weight)
}

func TestRequiredThresholdFallsBackToOne(t *testing.T) {
	status := model.NewAccountMultisigStatus("GA", 0, 0, 0, nil)
	assert.Equal(t, uint32(1), status.RequiredThreshold())
	assert.False(t, status.IsMultisig)
	assert.NotNil(t, status.Signers)

	status = model.NewAccountMultisigStatus("GA", 0, 0, 3, nil)
	assert.True(t, status.IsMultisig)
}

func TestRejectedErrorMessage(t *testing.T) {
	err := &policy.RejectedError{
		Status:          400,
		Title:           "Transaction Failed",
		TransactionCode: "tx_failed",
		OperationCodes:  []string{"op_underfunded"},
	}
	assert.Equal(t, "transaction rejected: Transaction Failed (tx_failed, operations: op_underfunded)", err.Error())
}
