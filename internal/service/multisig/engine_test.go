package multisig_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multisig-core/internal/model"
	"multisig-core/internal/repository"
	"multisig-core/internal/service/multisig"
	"multisig-core/internal/service/policy"
	"multisig-core/internal/service/policy/policytest"
	"multisig-core/pkg/envelope"
	"multisig-core/pkg/envelope/envelopetest"
	"multisig-core/pkg/errno"
	"multisig-core/pkg/utils/lock"
)

type fixture struct {
	engine  *multisig.Engine
	repo    repository.PendingTransactionRepository
	ledger  *policytest.FakeLedger
	codec   *envelope.Codec
	account string
	signers []*keypair.Full
	seq     int64
}

// newFixture 创建一个多签账户: 每个签名者权重 1，中阈值为 threshold
func newFixture(t *testing.T, threshold uint32, signerCount int) *fixture {
	return newFixtureWithRepo(t, repository.NewMemoryRepository(), threshold, signerCount)
}

func newFixtureWithRepo(t *testing.T, repo repository.PendingTransactionRepository, threshold uint32, signerCount int) *fixture {
	t.Helper()
	f := &fixture{
		repo:    repo,
		ledger:  policytest.NewFakeLedger(),
		codec:   envelopetest.NewCodec(t),
		account: envelopetest.NewKeypair(t).Address(),
	}
	infos := make([]model.SignerInfo, 0, signerCount)
	for i := 0; i < signerCount; i++ {
		kp := envelopetest.NewKeypair(t)
		f.signers = append(f.signers, kp)
		infos = append(infos, model.SignerInfo{PublicKey: kp.Address(), Weight: 1})
	}
	f.ledger.SetAccount(f.account, threshold, infos...)
	f.engine = multisig.NewEngine(f.repo, f.ledger, f.codec, lock.NewLocalLock(),
		multisig.WithBroadcastTimeout(time.Second))
	return f
}

func (f *fixture) envelope(t *testing.T) string {
	f.seq++
	return envelopetest.NewEnvelope(t, f.account, f.seq, "")
}

func (f *fixture) propose(t *testing.T, env string) *model.PendingTransaction {
	t.Helper()
	tx, err := f.engine.CreateProposal(context.Background(), multisig.CreateProposalInput{
		AccountID: f.account,
		Envelope:  env,
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) sign(t *testing.T, tx *model.PendingTransaction, kp *keypair.Full) (*model.PendingTransaction, error) {
	t.Helper()
	sig := envelopetest.Signature(t, f.codec, tx.TransactionEnvelope, kp)
	return f.engine.SubmitSignature(context.Background(), tx.ID, kp.Address(), sig)
}

func TestTwoOfTwoHappyPath(t *testing.T) {
	f := newFixture(t, 2, 2)
	k1, k2 := f.signers[0], f.signers[1]

	tx := f.propose(t, f.envelope(t))
	assert.Equal(t, model.StatusPending, tx.Status)
	assert.Equal(t, uint32(0), tx.CollectedWeight)
	assert.Equal(t, uint32(2), tx.RequiredThreshold)
	assert.ElementsMatch(t, []string{k1.Address(), k2.Address()}, tx.PendingSigners)

	tx, err := f.sign(t, tx, k1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), tx.CollectedWeight)
	assert.Equal(t, model.StatusPending, tx.Status)
	assert.Equal(t, []string{k2.Address()}, tx.PendingSigners)

	tx, err = f.sign(t, tx, k2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tx.CollectedWeight)
	assert.Equal(t, model.StatusReady, tx.Status)
	assert.Empty(t, tx.PendingSigners)

	// 信封中按到达顺序追加了两个签名
	env, err := f.codec.Decode(tx.TransactionEnvelope)
	require.NoError(t, err)
	require.Len(t, env.Signatures(), 2)
	assert.Equal(t, k1.Hint(), [4]byte(env.Signatures()[0].Hint))
	assert.Equal(t, k2.Hint(), [4]byte(env.Signatures()[1].Hint))

	res, err := f.engine.SubmitToNetwork(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "tx-1", res.NetworkTransactionID)

	stored, err := f.engine.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, stored.Status)
	assert.Equal(t, "tx-1", stored.NetworkTransactionID)
	assert.NotNil(t, stored.SubmittedAt)
}

func TestPreSignedEnvelopeStartsReady(t *testing.T) {
	f := newFixture(t, 2, 2)
	k1, k2 := f.signers[0], f.signers[1]

	env := f.envelope(t)
	env = envelopetest.PreSign(t, f.codec, env, k1)
	env = envelopetest.PreSign(t, f.codec, env, k2)

	tx := f.propose(t, env)
	assert.Equal(t, model.StatusReady, tx.Status)
	assert.Equal(t, uint32(2), tx.CollectedWeight)
	assert.Empty(t, tx.PendingSigners)
	require.Len(t, tx.Signatures, 2)

	// 已嵌入的签名者不能再次提交
	_, err := f.sign(t, tx, k1)
	assert.ErrorIs(t, err, errno.ErrDuplicateSigner)
}

func TestPreSignedByOutsiderIsIgnored(t *testing.T) {
	f := newFixture(t, 1, 1)
	outsider := envelopetest.NewKeypair(t)

	env := envelopetest.PreSign(t, f.codec, f.envelope(t), outsider)
	tx := f.propose(t, env)
	assert.Equal(t, model.StatusPending, tx.Status)
	assert.Equal(t, uint32(0), tx.CollectedWeight)
}

func TestDuplicateProposalIsConflict(t *testing.T) {
	f := newFixture(t, 2, 2)
	env := f.envelope(t)
	first := f.propose(t, env)

	_, err := f.engine.CreateProposal(context.Background(), multisig.CreateProposalInput{AccountID: f.account, Envelope: env})
	require.ErrorIs(t, err, errno.ErrDuplicateTransaction)
	assert.Equal(t, first.ID, errno.From(err).Ref)

	// 带签名的同一笔交易内容哈希相同，同样视为重复
	signed := envelopetest.PreSign(t, f.codec, env, f.signers[0])
	_, err = f.engine.CreateProposal(context.Background(), multisig.CreateProposalInput{AccountID: f.account, Envelope: signed})
	assert.ErrorIs(t, err, errno.ErrDuplicateTransaction)
}

func TestDuplicateCheckHappensBeforeNetwork(t *testing.T) {
	f := newFixture(t, 2, 2)
	env := f.envelope(t)
	f.propose(t, env)

	loads := f.ledger.Loads()
	_, err := f.engine.CreateProposal(context.Background(), multisig.CreateProposalInput{AccountID: f.account, Envelope: env})
	assert.ErrorIs(t, err, errno.ErrDuplicateTransaction)
	assert.Equal(t, loads, f.ledger.Loads())
}

func TestCreateProposalValidation(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := context.Background()

	_, err := f.engine.CreateProposal(ctx, multisig.CreateProposalInput{AccountID: "bogus", Envelope: f.envelope(t)})
	assert.ErrorIs(t, err, errno.ErrInvalidAccount)

	_, err = f.engine.CreateProposal(ctx, multisig.CreateProposalInput{AccountID: f.account, Envelope: "not xdr"})
	assert.ErrorIs(t, err, errno.ErrInvalidEnvelope)

	unknown := envelopetest.NewKeypair(t).Address()
	_, err = f.engine.CreateProposal(ctx, multisig.CreateProposalInput{
		AccountID: unknown,
		Envelope:  envelopetest.NewEnvelope(t, unknown, 1, ""),
	})
	assert.ErrorIs(t, err, errno.ErrAccountNotFound)

	f.ledger.LoadErr = fmt.Errorf("%w: connection refused", policy.ErrLedgerUnavailable)
	_, err = f.engine.CreateProposal(ctx, multisig.CreateProposalInput{AccountID: f.account, Envelope: f.envelope(t)})
	assert.ErrorIs(t, err, errno.ErrLedgerUnavailable)
}

func TestZeroThresholdNeedsOneSignature(t *testing.T) {
	f := newFixture(t, 0, 2)
	tx := f.propose(t, f.envelope(t))
	assert.Equal(t, uint32(1), tx.RequiredThreshold)

	tx, err := f.sign(t, tx, f.signers[0])
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, tx.Status)
}

func TestSignatureFromWrongKeyIsRejected(t *testing.T) {
	f := newFixture(t, 2, 2)
	k1, k2 := f.signers[0], f.signers[1]
	tx := f.propose(t, f.envelope(t))

	// k2 的签名冒充 k1
	forged := envelopetest.Signature(t, f.codec, tx.TransactionEnvelope, k2)
	_, err := f.engine.SubmitSignature(context.Background(), tx.ID, k1.Address(), forged)
	assert.ErrorIs(t, err, errno.ErrSignatureVerification)

	stored, err := f.engine.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), stored.CollectedWeight)
	assert.Empty(t, stored.Signatures)
}

func TestSubmitSignatureInputValidation(t *testing.T) {
	f := newFixture(t, 2, 2)
	tx := f.propose(t, f.envelope(t))
	k1 := f.signers[0]
	ctx := context.Background()
	sig := envelopetest.Signature(t, f.codec, tx.TransactionEnvelope, k1)

	_, err := f.engine.SubmitSignature(ctx, tx.ID, "GBAD", sig)
	assert.ErrorIs(t, err, errno.ErrInvalidPublicKey)

	_, err = f.engine.SubmitSignature(ctx, tx.ID, k1.Address(), "c2hvcnQ=")
	assert.ErrorIs(t, err, errno.ErrInvalidSignature)

	_, err = f.engine.SubmitSignature(ctx, "00000000-0000-0000-0000-000000000000", k1.Address(), sig)
	assert.ErrorIs(t, err, errno.ErrTransactionNotFound)
}

func TestDuplicateSignerIsConflict(t *testing.T) {
	f := newFixture(t, 3, 3)
	tx := f.propose(t, f.envelope(t))

	tx, err := f.sign(t, tx, f.signers[0])
	require.NoError(t, err)

	_, err = f.sign(t, tx, f.signers[0])
	require.ErrorIs(t, err, errno.ErrDuplicateSigner)
	assert.Equal(t, tx.ID, errno.From(err).Ref)

	stored, err := f.engine.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stored.CollectedWeight)
	assert.Len(t, stored.Signatures, 1)
}

func TestRemovedSignerIsUnauthorized(t *testing.T) {
	f := newFixture(t, 2, 2)
	k1, k2 := f.signers[0], f.signers[1]
	tx := f.propose(t, f.envelope(t))

	// 提案创建后 k2 被移出账户
	f.ledger.SetAccount(f.account, 2, model.SignerInfo{PublicKey: k1.Address(), Weight: 2})

	_, err := f.sign(t, tx, k2)
	assert.ErrorIs(t, err, errno.ErrUnauthorizedSigner)

	// 阈值快照不变，k1 的新权重生效
	tx, err = f.sign(t, tx, k1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tx.RequiredThreshold)
	assert.Equal(t, uint32(2), tx.CollectedWeight)
	assert.Equal(t, model.StatusReady, tx.Status)
}

func TestPolicyTimeoutDuringSignatureIsRetryable(t *testing.T) {
	f := newFixture(t, 2, 2)
	tx := f.propose(t, f.envelope(t))

	f.ledger.LoadErr = fmt.Errorf("%w: %v", policy.ErrLedgerUnavailable, context.DeadlineExceeded)
	_, err := f.sign(t, tx, f.signers[0])
	require.ErrorIs(t, err, errno.ErrLedgerUnavailable)

	stored, err := f.engine.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), stored.CollectedWeight)

	f.ledger.LoadErr = nil
	_, err = f.sign(t, tx, f.signers[0])
	assert.NoError(t, err)
}

func TestExpiredProposalRejectsSignatures(t *testing.T) {
	f := newFixture(t, 2, 2)
	expiresAt := uint32(100)
	tx, err := f.engine.CreateProposal(context.Background(), multisig.CreateProposalInput{
		AccountID:       f.account,
		Envelope:        f.envelope(t),
		ExpiresAtLedger: &expiresAt,
	})
	require.NoError(t, err)

	n, err := f.engine.ExpireStale(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "expires_at_ledger 等于当前高度时不过期")

	n, err = f.engine.ExpireStale(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.sign(t, tx, f.signers[0])
	require.ErrorIs(t, err, errno.ErrInvalidState)
	assert.Contains(t, err.Error(), "EXPIRED")

	_, err = f.engine.ExpireStale(context.Background(), 0)
	assert.ErrorIs(t, err, errno.ErrBind)
}

func TestSubmitNotReadyIsBadRequest(t *testing.T) {
	f := newFixture(t, 2, 2)
	tx := f.propose(t, f.envelope(t))

	_, err := f.engine.SubmitToNetwork(context.Background(), tx.ID)
	require.ErrorIs(t, err, errno.ErrNotReady)
	assert.Contains(t, err.Error(), "collected weight 0 of required 2")
	assert.Equal(t, int64(0), f.ledger.Broadcasts())

	_, err = f.engine.SubmitToNetwork(context.Background(), "missing")
	assert.ErrorIs(t, err, errno.ErrTransactionNotFound)
}

func TestRejectedBroadcastIsRecordedAsFailed(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.ledger.BroadcastFunc = func(context.Context, string) (*policy.BroadcastResult, error) {
		return nil, &policy.RejectedError{Status: 400, Title: "Transaction Failed", TransactionCode: "tx_bad_seq"}
	}

	tx := f.propose(t, f.envelope(t))
	tx, err := f.sign(t, tx, f.signers[0])
	require.NoError(t, err)
	require.Equal(t, model.StatusReady, tx.Status)

	res, err := f.engine.SubmitToNetwork(context.Background(), tx.ID)
	require.NoError(t, err, "广播失败以结果返回，而不是错误")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "tx_bad_seq")

	stored, err := f.engine.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "tx_bad_seq")

	// 失败后不会重新广播
	_, err = f.engine.SubmitToNetwork(context.Background(), tx.ID)
	assert.ErrorIs(t, err, errno.ErrNotReady)
	assert.Equal(t, int64(1), f.ledger.Broadcasts())

	_, err = f.sign(t, tx, envelopetest.NewKeypair(t))
	assert.ErrorIs(t, err, errno.ErrInvalidState)
}

func TestTransportErrorIsRecordedAsFailed(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.ledger.BroadcastFunc = func(ctx context.Context, _ string) (*policy.BroadcastResult, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", policy.ErrLedgerUnavailable, ctx.Err())
	}
	f.engine = multisig.NewEngine(f.repo, f.ledger, f.codec, lock.NewLocalLock(),
		multisig.WithBroadcastTimeout(20*time.Millisecond))

	tx := f.propose(t, f.envelope(t))
	_, err := f.sign(t, tx, f.signers[0])
	require.NoError(t, err)

	res, err := f.engine.SubmitToNetwork(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
}

func TestSubmitAfterSuccessIsDeterministicRejection(t *testing.T) {
	f := newFixture(t, 1, 1)
	tx := f.propose(t, f.envelope(t))
	_, err := f.sign(t, tx, f.signers[0])
	require.NoError(t, err)

	res, err := f.engine.SubmitToNetwork(context.Background(), tx.ID)
	require.NoError(t, err)
	require.True(t, res.Success)

	for i := 0; i < 3; i++ {
		_, err = f.engine.SubmitToNetwork(context.Background(), tx.ID)
		assert.ErrorIs(t, err, errno.ErrNotReady)
	}
	assert.Equal(t, int64(1), f.ledger.Broadcasts())
}

func TestConcurrentDistinctSignersLoseNoUpdates(t *testing.T) {
	const signers = 8
	eachRepository(t, func(t *testing.T, repo repository.PendingTransactionRepository) {
		f := newFixtureWithRepo(t, repo, signers, signers)
		tx := f.propose(t, f.envelope(t))

		var wg conc.WaitGroup
		var failures atomic.Int32
		for _, kp := range f.signers {
			kp := kp
			wg.Go(func() {
				if _, err := f.sign(t, tx, kp); err != nil {
					failures.Add(1)
				}
			})
		}
		wg.Wait()

		require.Equal(t, int32(0), failures.Load())
		stored, err := f.engine.GetTransaction(context.Background(), tx.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(signers), stored.CollectedWeight)
		assert.Len(t, stored.Signatures, signers)
		assert.Empty(t, stored.PendingSigners)
		assert.Equal(t, model.StatusReady, stored.Status)
		assert.Equal(t, tx.Version+signers, stored.Version, "每个签名各自一次版本递增")

		env, err := f.codec.Decode(stored.TransactionEnvelope)
		require.NoError(t, err)
		assert.Len(t, env.Signatures(), signers)
	})
}

func TestConcurrentSameSignerAcceptedOnce(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo repository.PendingTransactionRepository) {
		f := newFixtureWithRepo(t, repo, 2, 2)
		tx := f.propose(t, f.envelope(t))
		sig := envelopetest.Signature(t, f.codec, tx.TransactionEnvelope, f.signers[0])

		var wg conc.WaitGroup
		var accepted, conflicts atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Go(func() {
				_, err := f.engine.SubmitSignature(context.Background(), tx.ID, f.signers[0].Address(), sig)
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, errno.ErrDuplicateSigner):
					conflicts.Add(1)
				}
			})
		}
		wg.Wait()

		assert.Equal(t, int32(1), accepted.Load())
		assert.Equal(t, int32(9), conflicts.Load())

		stored, err := f.engine.GetTransaction(context.Background(), tx.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), stored.CollectedWeight)
		assert.Len(t, stored.Signatures, 1)
	})
}

func TestConcurrentSubmitBroadcastsOnce(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.ledger.BroadcastFunc = func(context.Context, string) (*policy.BroadcastResult, error) {
		time.Sleep(30 * time.Millisecond)
		return &policy.BroadcastResult{NetworkTransactionID: "hash-once"}, nil
	}
	tx := f.propose(t, f.envelope(t))
	_, err := f.sign(t, tx, f.signers[0])
	require.NoError(t, err)

	var wg conc.WaitGroup
	var successes, rejected atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Go(func() {
			res, err := f.engine.SubmitToNetwork(context.Background(), tx.ID)
			switch {
			case err == nil && res.Success:
				successes.Add(1)
			case errors.Is(err, errno.ErrSubmissionInProgress), errors.Is(err, errno.ErrNotReady):
				rejected.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(9), rejected.Load())
	assert.Equal(t, int64(1), f.ledger.Broadcasts())
}

func TestListPendingDefaultsToActive(t *testing.T) {
	f := newFixture(t, 1, 1)
	ctx := context.Background()

	active := f.propose(t, f.envelope(t))
	done := f.propose(t, f.envelope(t))
	_, err := f.sign(t, done, f.signers[0])
	require.NoError(t, err)
	_, err = f.engine.SubmitToNetwork(ctx, done.ID)
	require.NoError(t, err)

	list, err := f.engine.ListPending(ctx, f.account, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)

	list, err = f.engine.ListPending(ctx, f.account, []model.TxStatus{model.StatusSubmitted})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, done.ID, list[0].ID)

	_, err = f.engine.ListPending(ctx, "bogus", nil)
	assert.ErrorIs(t, err, errno.ErrInvalidAccount)
}

func TestGetAccountStatus(t *testing.T) {
	f := newFixture(t, 2, 3)
	status, err := f.engine.GetAccountStatus(context.Background(), f.account)
	require.NoError(t, err)
	assert.True(t, status.IsMultisig)
	assert.Equal(t, uint32(3), status.TotalWeight)
	assert.Len(t, status.Signers, 3)
}
