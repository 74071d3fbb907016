package envelope

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/stellar/go/hash"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"

	"multisig-core/pkg/crypto_util"
)

var ErrDecode = errors.New("invalid transaction envelope")

// Signer 账户策略中的一个签名者
type Signer struct {
	PublicKey string
	Weight    uint32
}

// MatchedSignature 已通过验签的签名
type MatchedSignature struct {
	PublicKey string
	Signature []byte
	Weight    uint32
}

// Codec 负责 base64 XDR 信封的编解码与内容哈希。
// 哈希中包含网络口令，同一笔交易在不同网络上的签名载荷不同。
type Codec struct {
	passphrase string
}

func NewCodec(passphrase string) (*Codec, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, errors.New("network passphrase is required")
	}
	return &Codec{passphrase: passphrase}, nil
}

func (c *Codec) Passphrase() string {
	return c.passphrase
}

// Decode 解析 base64 编码的 TransactionEnvelope，支持 v0 / v1 / fee-bump 三种信封
func (c *Codec) Decode(envelopeB64 string) (*Envelope, error) {
	envelopeB64 = strings.TrimSpace(envelopeB64)
	if envelopeB64 == "" {
		return nil, fmt.Errorf("%w: empty envelope", ErrDecode)
	}

	raw, err := base64.StdEncoding.DecodeString(envelopeB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var env Envelope
	// SafeUnmarshal 要求字节被完整消费，末尾多余的数据视为非法
	if err := xdr.SafeUnmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if env.FeeBump != nil && env.FeeBump.Tx.InnerTx.V1 == nil {
		return nil, fmt.Errorf("%w: fee bump without inner transaction", ErrDecode)
	}
	if len(env.Operations()) == 0 {
		return nil, fmt.Errorf("%w: transaction has no operations", ErrDecode)
	}
	return &env, nil
}

// ContentHash 交易体 + 网络口令的哈希，不包含签名。
// fee-bump 的哈希覆盖外层交易，与内层交易的哈希不同。
func (c *Codec) ContentHash(env *Envelope) ([32]byte, error) {
	payload, err := env.signaturePayload(network.ID(c.passphrase))
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: hash transaction: %v", ErrDecode, err)
	}
	return hash.Hash(payload), nil
}

// HashHex 数据库中保存的 64 位十六进制形式
func HashHex(hash [32]byte) string {
	return hex.EncodeToString(hash[:])
}

// ParseHashHex 反向解析 HashHex 的结果
func ParseHashHex(s string) ([32]byte, error) {
	var hash [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return hash, err
	}
	if len(raw) != len(hash) {
		return hash, fmt.Errorf("content hash must be %d bytes, got %d", len(hash), len(raw))
	}
	copy(hash[:], raw)
	return hash, nil
}

// ExtractEmbeddedSignatures 匹配信封中已有的签名:
// 先用 hint 缩小候选签名者范围，再做完整的 ed25519 验签。
// hint 命中但验签失败的签名直接丢弃；每个签名者最多出现一次。
func (c *Codec) ExtractEmbeddedSignatures(env *Envelope, hash [32]byte, signers []Signer) []MatchedSignature {
	if len(env.Signatures()) == 0 || len(signers) == 0 {
		return nil
	}

	type candidate struct {
		signer Signer
		hint   [4]byte
	}
	candidates := make([]candidate, 0, len(signers))
	for _, s := range signers {
		hint, err := crypto_util.Hint(s.PublicKey)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{signer: s, hint: hint})
	}

	matched := make(map[string]bool, len(candidates))
	var result []MatchedSignature
	for _, ds := range env.Signatures() {
		for _, cand := range candidates {
			if matched[cand.signer.PublicKey] || [4]byte(ds.Hint) != cand.hint {
				continue
			}
			if err := crypto_util.VerifyEd25519(cand.signer.PublicKey, hash[:], ds.Signature); err != nil {
				continue
			}
			matched[cand.signer.PublicKey] = true
			sig := make([]byte, len(ds.Signature))
			copy(sig, ds.Signature)
			result = append(result, MatchedSignature{
				PublicKey: cand.signer.PublicKey,
				Signature: sig,
				Weight:    cand.signer.Weight,
			})
			break
		}
	}
	return result
}

// AppendSignature 在信封末尾追加一个 DecoratedSignature，已有签名的内容与顺序保持不变
func (c *Codec) AppendSignature(envelopeB64, publicKey string, signature []byte) (string, error) {
	env, err := c.Decode(envelopeB64)
	if err != nil {
		return "", err
	}
	hint, err := crypto_util.Hint(publicKey)
	if err != nil {
		return "", err
	}

	sig := make([]byte, len(signature))
	copy(sig, signature)
	env.AddSignature(xdr.DecoratedSignature{
		Hint:      xdr.SignatureHint(hint),
		Signature: xdr.Signature(sig),
	})

	encoded, err := xdr.MarshalBase64(env)
	if err != nil {
		return "", fmt.Errorf("encode envelope: %w", err)
	}
	return encoded, nil
}
