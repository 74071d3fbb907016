package envelope

import (
	"bytes"
	"fmt"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

// 协议 13 起 TransactionEnvelope 是一个按 EnvelopeType 区分的联合体。
// 固定版本的 stellar/go 只认识旧格式，这里按同一套 go-xdr 反射规则补齐 v0 / v1 / fee-bump。
// 操作体 (OperationBody) 仍复用 xdr 包，类型范围随固定版本而定。
const (
	EnvelopeTypeTxV0    int32 = 0
	EnvelopeTypeTx      int32 = 2
	EnvelopeTypeFeeBump int32 = 5
)

const (
	CryptoKeyTypeEd25519      int32 = 0
	CryptoKeyTypeMuxedEd25519 int32 = 0x100
)

const (
	PrecondNone int32 = 0
	PrecondTime int32 = 1
	PrecondV2   int32 = 2
)

const (
	SignerKeyTypeEd25519              int32 = 0
	SignerKeyTypePreAuthTx            int32 = 1
	SignerKeyTypeHashX                int32 = 2
	SignerKeyTypeEd25519SignedPayload int32 = 3
)

// Envelope 解码后的交易信封
type Envelope struct {
	Type    int32
	V0      *TransactionV0Envelope
	V1      *TransactionV1Envelope
	FeeBump *FeeBumpTransactionEnvelope
}

func (e Envelope) SwitchFieldName() string { return "Type" }

func (e Envelope) ArmForSwitch(sw int32) (string, bool) {
	switch sw {
	case EnvelopeTypeTxV0:
		return "V0", true
	case EnvelopeTypeTx:
		return "V1", true
	case EnvelopeTypeFeeBump:
		return "FeeBump", true
	}
	return "-", false
}

type TransactionV0Envelope struct {
	Tx         TransactionV0
	Signatures []xdr.DecoratedSignature `xdrmaxsize:"20"`
}

// TransactionV0 的源账户只有裸 ed25519 公钥，线上字节与旧格式完全一致
type TransactionV0 struct {
	SourceAccountEd25519 xdr.Uint256
	Fee                  xdr.Uint32
	SeqNum               xdr.SequenceNumber
	TimeBounds           *xdr.TimeBounds
	Memo                 xdr.Memo
	Operations           []Operation `xdrmaxsize:"100"`
	Ext                  xdr.TransactionExt
}

type TransactionV1Envelope struct {
	Tx         Transaction
	Signatures []xdr.DecoratedSignature `xdrmaxsize:"20"`
}

type Transaction struct {
	SourceAccount MuxedAccount
	Fee           xdr.Uint32
	SeqNum        xdr.SequenceNumber
	Cond          Preconditions
	Memo          xdr.Memo
	Operations    []Operation `xdrmaxsize:"100"`
	Ext           xdr.TransactionExt
}

type FeeBumpTransactionEnvelope struct {
	Tx         FeeBumpTransaction
	Signatures []xdr.DecoratedSignature `xdrmaxsize:"20"`
}

type FeeBumpTransaction struct {
	FeeSource MuxedAccount
	Fee       xdr.Int64
	InnerTx   FeeBumpInnerTx
	Ext       xdr.TransactionExt
}

// FeeBumpInnerTx 目前只允许包裹 v1 信封
type FeeBumpInnerTx struct {
	Type int32
	V1   *TransactionV1Envelope
}

func (u FeeBumpInnerTx) SwitchFieldName() string { return "Type" }

func (u FeeBumpInnerTx) ArmForSwitch(sw int32) (string, bool) {
	if sw == EnvelopeTypeTx {
		return "V1", true
	}
	return "-", false
}

type Operation struct {
	SourceAccount *MuxedAccount
	Body          xdr.OperationBody
}

type MuxedAccount struct {
	Type     int32
	Ed25519  *xdr.Uint256
	Med25519 *MuxedAccountMed25519
}

type MuxedAccountMed25519 struct {
	Id      xdr.Uint64
	Ed25519 xdr.Uint256
}

func (u MuxedAccount) SwitchFieldName() string { return "Type" }

func (u MuxedAccount) ArmForSwitch(sw int32) (string, bool) {
	switch sw {
	case CryptoKeyTypeEd25519:
		return "Ed25519", true
	case CryptoKeyTypeMuxedEd25519:
		return "Med25519", true
	}
	return "-", false
}

// Address 底层 G 地址；复用账户的 ID 不参与签名者查找
func (u MuxedAccount) Address() string {
	var raw xdr.Uint256
	switch {
	case u.Ed25519 != nil:
		raw = *u.Ed25519
	case u.Med25519 != nil:
		raw = u.Med25519.Ed25519
	default:
		return ""
	}
	addr, err := strkey.Encode(strkey.VersionByteAccountID, raw[:])
	if err != nil {
		return ""
	}
	return addr
}

// MuxedID 非复用账户返回 nil
func (u MuxedAccount) MuxedID() *uint64 {
	if u.Type != CryptoKeyTypeMuxedEd25519 || u.Med25519 == nil {
		return nil
	}
	id := uint64(u.Med25519.Id)
	return &id
}

type Preconditions struct {
	Type       int32
	TimeBounds *xdr.TimeBounds
	V2         *PreconditionsV2
}

func (u Preconditions) SwitchFieldName() string { return "Type" }

func (u Preconditions) ArmForSwitch(sw int32) (string, bool) {
	switch sw {
	case PrecondNone:
		return "", true
	case PrecondTime:
		return "TimeBounds", true
	case PrecondV2:
		return "V2", true
	}
	return "-", false
}

type PreconditionsV2 struct {
	TimeBounds      *xdr.TimeBounds
	LedgerBounds    *LedgerBounds
	MinSeqNum       *xdr.SequenceNumber
	MinSeqAge       xdr.Uint64
	MinSeqLedgerGap xdr.Uint32
	ExtraSigners    []SignerKey `xdrmaxsize:"2"`
}

type LedgerBounds struct {
	MinLedger xdr.Uint32
	MaxLedger xdr.Uint32
}

type SignerKey struct {
	Type                 int32
	Ed25519              *xdr.Uint256
	PreAuthTx            *xdr.Uint256
	HashX                *xdr.Uint256
	Ed25519SignedPayload *SignedPayload
}

type SignedPayload struct {
	Ed25519 xdr.Uint256
	Payload []byte `xdrmaxsize:"64"`
}

func (u SignerKey) SwitchFieldName() string { return "Type" }

func (u SignerKey) ArmForSwitch(sw int32) (string, bool) {
	switch sw {
	case SignerKeyTypeEd25519:
		return "Ed25519", true
	case SignerKeyTypePreAuthTx:
		return "PreAuthTx", true
	case SignerKeyTypeHashX:
		return "HashX", true
	case SignerKeyTypeEd25519SignedPayload:
		return "Ed25519SignedPayload", true
	}
	return "-", false
}

// Kind 信封类型的可读名称
func (e *Envelope) Kind() string {
	switch e.Type {
	case EnvelopeTypeTxV0:
		return "v0"
	case EnvelopeTypeTx:
		return "v1"
	case EnvelopeTypeFeeBump:
		return "fee_bump"
	}
	return fmt.Sprintf("unknown(%d)", e.Type)
}

// Signatures 外层信封上的签名。fee-bump 返回的是手续费账户的签名，不含内层交易的签名。
func (e *Envelope) Signatures() []xdr.DecoratedSignature {
	switch {
	case e.V0 != nil:
		return e.V0.Signatures
	case e.V1 != nil:
		return e.V1.Signatures
	case e.FeeBump != nil:
		return e.FeeBump.Signatures
	}
	return nil
}

// AddSignature 追加到外层签名列表末尾
func (e *Envelope) AddSignature(ds xdr.DecoratedSignature) {
	switch {
	case e.V0 != nil:
		e.V0.Signatures = append(e.V0.Signatures, ds)
	case e.V1 != nil:
		e.V1.Signatures = append(e.V1.Signatures, ds)
	case e.FeeBump != nil:
		e.FeeBump.Signatures = append(e.FeeBump.Signatures, ds)
	}
}

// innerTx fee-bump 取被包裹的交易，其他类型返回自身
func (e *Envelope) innerTx() (Transaction, bool) {
	switch {
	case e.V0 != nil:
		return e.V0.Tx.toV1(), true
	case e.V1 != nil:
		return e.V1.Tx, true
	case e.FeeBump != nil && e.FeeBump.Tx.InnerTx.V1 != nil:
		return e.FeeBump.Tx.InnerTx.V1.Tx, true
	}
	return Transaction{}, false
}

// Operations 交易的操作列表；fee-bump 取内层交易
func (e *Envelope) Operations() []Operation {
	tx, _ := e.innerTx()
	return tx.Operations
}

// SourceAddress 交易源账户的 G 地址
func (e *Envelope) SourceAddress() string {
	tx, ok := e.innerTx()
	if !ok {
		return ""
	}
	return tx.SourceAccount.Address()
}

// SigningAccount 外层签名需要满足其门限的账户：fee-bump 是手续费账户，其余是交易源账户
func (e *Envelope) SigningAccount() string {
	if e.FeeBump != nil {
		return e.FeeBump.Tx.FeeSource.Address()
	}
	return e.SourceAddress()
}

// toV1 按网络的规则把 v0 交易提升为 v1 形式
func (tx TransactionV0) toV1() Transaction {
	src := tx.SourceAccountEd25519
	cond := Preconditions{Type: PrecondNone}
	if tx.TimeBounds != nil {
		tb := *tx.TimeBounds
		cond = Preconditions{Type: PrecondTime, TimeBounds: &tb}
	}
	return Transaction{
		SourceAccount: MuxedAccount{Type: CryptoKeyTypeEd25519, Ed25519: &src},
		Fee:           tx.Fee,
		SeqNum:        tx.SeqNum,
		Cond:          cond,
		Memo:          tx.Memo,
		Operations:    tx.Operations,
		Ext:           tx.Ext,
	}
}

// timeBounds v1 的时间窗可能在 PRECOND_TIME 或 PRECOND_V2 里
func (p Preconditions) timeBounds() *xdr.TimeBounds {
	switch {
	case p.TimeBounds != nil:
		return p.TimeBounds
	case p.V2 != nil:
		return p.V2.TimeBounds
	}
	return nil
}

// signaturePayload 网络 ID + 类型标签 + 交易体，即签名所覆盖的字节
func (e *Envelope) signaturePayload(networkID [32]byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(networkID[:])

	var err error
	switch {
	case e.V0 != nil:
		// v0 按 v1 的标签计算：源账户补上 ed25519 的 key type 后字节相同
		if _, err = xdr.Marshal(&buf, EnvelopeTypeTx); err != nil {
			break
		}
		if _, err = xdr.Marshal(&buf, CryptoKeyTypeEd25519); err != nil {
			break
		}
		_, err = xdr.Marshal(&buf, e.V0.Tx)
	case e.V1 != nil:
		if _, err = xdr.Marshal(&buf, EnvelopeTypeTx); err != nil {
			break
		}
		_, err = xdr.Marshal(&buf, e.V1.Tx)
	case e.FeeBump != nil:
		if _, err = xdr.Marshal(&buf, EnvelopeTypeFeeBump); err != nil {
			break
		}
		_, err = xdr.Marshal(&buf, e.FeeBump.Tx)
	default:
		return nil, fmt.Errorf("unsupported envelope type %d", e.Type)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
