// Package envelopetest builds signed and unsigned Stellar envelopes for tests.
package envelopetest

import (
	"encoding/base64"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"

	"multisig-core/pkg/envelope"
)

const Passphrase = "Test SDF Network ; September 2015"

func NewKeypair(t testing.TB) *keypair.Full {
	t.Helper()
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("生成密钥对失败: %v", err)
	}
	return kp
}

func NewCodec(t testing.TB) *envelope.Codec {
	t.Helper()
	codec, err := envelope.NewCodec(Passphrase)
	if err != nil {
		t.Fatalf("创建 codec 失败: %v", err)
	}
	return codec
}

// NewEnvelope 构造一个只包含 BumpSequence 操作的未签名 v1 信封。
// 不同的 seq 产生不同的内容哈希。
func NewEnvelope(t testing.TB, source string, seq int64, memo string) string {
	t.Helper()
	return Encode(t, envelope.Envelope{
		Type: envelope.EnvelopeTypeTx,
		V1:   &envelope.TransactionV1Envelope{Tx: NewTransaction(t, source, seq, memo)},
	})
}

// NewV0Envelope 与 NewEnvelope 相同的交易，用协议 13 之前的 v0 格式编码
func NewV0Envelope(t testing.TB, source string, seq int64, memo string) string {
	t.Helper()
	tx := NewTransaction(t, source, seq, memo)
	return Encode(t, envelope.Envelope{
		Type: envelope.EnvelopeTypeTxV0,
		V0: &envelope.TransactionV0Envelope{Tx: envelope.TransactionV0{
			SourceAccountEd25519: *tx.SourceAccount.Ed25519,
			Fee:                  tx.Fee,
			SeqNum:               tx.SeqNum,
			Memo:                 tx.Memo,
			Operations:           tx.Operations,
		}},
	})
}

// NewFeeBumpEnvelope 用 feeSource 包裹一个 v1 信封，内层签名原样保留
func NewFeeBumpEnvelope(t testing.TB, codec *envelope.Codec, feeSource string, innerB64 string, fee int64) string {
	t.Helper()
	inner, err := codec.Decode(innerB64)
	if err != nil {
		t.Fatalf("解码内层信封失败: %v", err)
	}
	if inner.V1 == nil {
		t.Fatalf("fee-bump 只能包裹 v1 信封，得到 %s", inner.Kind())
	}
	return Encode(t, envelope.Envelope{
		Type: envelope.EnvelopeTypeFeeBump,
		FeeBump: &envelope.FeeBumpTransactionEnvelope{Tx: envelope.FeeBumpTransaction{
			FeeSource: MuxedAccount(t, feeSource),
			Fee:       xdr.Int64(fee),
			InnerTx:   envelope.FeeBumpInnerTx{Type: envelope.EnvelopeTypeTx, V1: inner.V1},
		}},
	})
}

// NewTransaction v1 交易体，手续费 100 stroops，无前置条件
func NewTransaction(t testing.TB, source string, seq int64, memo string) envelope.Transaction {
	t.Helper()

	m := xdr.Memo{Type: xdr.MemoTypeMemoNone}
	if memo != "" {
		var err error
		m, err = xdr.NewMemo(xdr.MemoTypeMemoText, memo)
		if err != nil {
			t.Fatalf("构造 memo 失败: %v", err)
		}
	}

	return envelope.Transaction{
		SourceAccount: MuxedAccount(t, source),
		Fee:           100,
		SeqNum:        xdr.SequenceNumber(seq),
		Cond:          envelope.Preconditions{Type: envelope.PrecondNone},
		Memo:          m,
		Operations: []envelope.Operation{
			{
				Body: xdr.OperationBody{
					Type:           xdr.OperationTypeBumpSequence,
					BumpSequenceOp: &xdr.BumpSequenceOp{BumpTo: xdr.SequenceNumber(seq + 100)},
				},
			},
		},
	}
}

// MuxedAccount 普通 (非复用) 账户
func MuxedAccount(t testing.TB, address string) envelope.MuxedAccount {
	t.Helper()
	raw, err := strkey.Decode(strkey.VersionByteAccountID, address)
	if err != nil {
		t.Fatalf("解析账户地址失败: %v", err)
	}
	var key xdr.Uint256
	copy(key[:], raw)
	return envelope.MuxedAccount{Type: envelope.CryptoKeyTypeEd25519, Ed25519: &key}
}

func Encode(t testing.TB, env envelope.Envelope) string {
	t.Helper()
	encoded, err := xdr.MarshalBase64(env)
	if err != nil {
		t.Fatalf("编码信封失败: %v", err)
	}
	return encoded
}

// Signature 返回 kp 对信封内容哈希的 base64 签名
func Signature(t testing.TB, codec *envelope.Codec, envelopeB64 string, kp *keypair.Full) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(rawSignature(t, codec, envelopeB64, kp))
}

// PreSign 把 kp 的签名直接嵌入信封
func PreSign(t testing.TB, codec *envelope.Codec, envelopeB64 string, kp *keypair.Full) string {
	t.Helper()
	signed, err := codec.AppendSignature(envelopeB64, kp.Address(), rawSignature(t, codec, envelopeB64, kp))
	if err != nil {
		t.Fatalf("追加签名失败: %v", err)
	}
	return signed
}

func rawSignature(t testing.TB, codec *envelope.Codec, envelopeB64 string, kp *keypair.Full) []byte {
	t.Helper()
	env, err := codec.Decode(envelopeB64)
	if err != nil {
		t.Fatalf("解码信封失败: %v", err)
	}
	hash, err := codec.ContentHash(env)
	if err != nil {
		t.Fatalf("计算哈希失败: %v", err)
	}
	sig, err := kp.Sign(hash[:])
	if err != nil {
		t.Fatalf("签名失败: %v", err)
	}
	return sig
}
