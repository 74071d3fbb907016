package model

import (
	"errors"
	"fmt"
	"time"
)

type TxStatus string

const (
	StatusPending   TxStatus = "PENDING"
	StatusReady     TxStatus = "READY"
	StatusSubmitted TxStatus = "SUBMITTED"
	StatusFailed    TxStatus = "FAILED"
	StatusExpired   TxStatus = "EXPIRED"
)

// AllStatuses 用于校验查询参数
var AllStatuses = []TxStatus{StatusPending, StatusReady, StatusSubmitted, StatusFailed, StatusExpired}

// ActiveStatuses 仍可签名的状态，也是列表查询的默认过滤条件
var ActiveStatuses = []TxStatus{StatusPending, StatusReady}

func ParseStatus(s string) (TxStatus, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// IsTerminal SUBMITTED / FAILED / EXPIRED 之后不允许任何修改
func (s TxStatus) IsTerminal() bool {
	return s == StatusSubmitted || s == StatusFailed || s == StatusExpired
}

// CollectedSignature 一个签名者的已验证签名
type CollectedSignature struct {
	PublicKey string `json:"public_key"`
	Signature []byte `json:"signature"` // JSON 中为 base64
	Weight    uint32 `json:"weight"`
}

// PendingTransaction 待收集签名的多签交易
// 核心设计: Version 字段实现乐观锁，ContentHash 唯一索引防止重复提案
type PendingTransaction struct {
	ID                   string               `gorm:"type:varchar(36);primaryKey" json:"id"`
	AccountID            string               `gorm:"type:varchar(56);not null;index" json:"account_id"`
	TransactionEnvelope  string               `gorm:"type:text;not null" json:"transaction_envelope"`
	ContentHash          string               `gorm:"type:varchar(64);not null;uniqueIndex" json:"content_hash"`
	Status               TxStatus             `gorm:"type:varchar(20);not null;index" json:"status"`
	RequiredThreshold    uint32               `gorm:"not null" json:"required_threshold"`
	CollectedWeight      uint32               `gorm:"not null;default:0" json:"collected_weight"`
	Signatures           []CollectedSignature `gorm:"type:text;serializer:json" json:"signatures"`
	PendingSigners       []string             `gorm:"type:text;serializer:json" json:"pending_signers"`
	Memo                 string               `gorm:"type:varchar(255)" json:"memo,omitempty"`
	Metadata             map[string]any       `gorm:"type:text;serializer:json" json:"metadata,omitempty"`
	ExpiresAtLedger      *uint32              `gorm:"index" json:"expires_at_ledger,omitempty"`
	SubmittedAt          *time.Time           `json:"submitted_at,omitempty"`
	BroadcastAttemptedAt *time.Time           `json:"broadcast_attempted_at,omitempty"` // 广播前写入，READY 且非空表示结果未知
	NetworkTransactionID string               `gorm:"type:varchar(64)" json:"network_transaction_id,omitempty"`
	FailureReason        string               `gorm:"type:text" json:"failure_reason,omitempty"`
	Version              uint64               `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

func (PendingTransaction) TableName() string {
	return "pending_transactions"
}

var ErrInvariantViolation = errors.New("pending transaction invariant violated")

// HasSigner 该公钥是否已经提交过签名
func (p *PendingTransaction) HasSigner(publicKey string) bool {
	for _, s := range p.Signatures {
		if s.PublicKey == publicKey {
			return true
		}
	}
	return false
}

// AddSignature 追加签名并累计权重，同时从 PendingSigners 中移除
func (p *PendingTransaction) AddSignature(sig CollectedSignature) {
	p.Signatures = append(p.Signatures, sig)
	p.CollectedWeight += sig.Weight

	remaining := make([]string, 0, len(p.PendingSigners))
	for _, pk := range p.PendingSigners {
		if pk != sig.PublicKey {
			remaining = append(remaining, pk)
		}
	}
	p.PendingSigners = remaining
}

// RefreshStatus PENDING 在权重达到阈值时变为 READY，其他状态不变
func (p *PendingTransaction) RefreshStatus() {
	if p.Status == StatusPending && p.CollectedWeight >= p.RequiredThreshold {
		p.Status = StatusReady
	}
}

// Validate 每次写入前检查聚合不变量
func (p *PendingTransaction) Validate() error {
	var sum uint64
	seen := make(map[string]struct{}, len(p.Signatures))
	for _, s := range p.Signatures {
		if _, dup := seen[s.PublicKey]; dup {
			return fmt.Errorf("%w: duplicate signer %s", ErrInvariantViolation, s.PublicKey)
		}
		seen[s.PublicKey] = struct{}{}
		sum += uint64(s.Weight)
	}
	if sum != uint64(p.CollectedWeight) {
		return fmt.Errorf("%w: collected weight %d != signature weight sum %d", ErrInvariantViolation, p.CollectedWeight, sum)
	}

	switch p.Status {
	case StatusPending, StatusFailed, StatusExpired:
	case StatusReady, StatusSubmitted:
		if p.CollectedWeight < p.RequiredThreshold {
			return fmt.Errorf("%w: status %s with weight %d below threshold %d", ErrInvariantViolation, p.Status, p.CollectedWeight, p.RequiredThreshold)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvariantViolation, p.Status)
	}

	if p.Status == StatusSubmitted && p.NetworkTransactionID == "" {
		return fmt.Errorf("%w: submitted without network transaction id", ErrInvariantViolation)
	}
	return nil
}

// CheckTransition 终态不可再变化，且只允许规定的状态迁移
func CheckTransition(from, to TxStatus) error {
	if from == to {
		if from.IsTerminal() {
			return fmt.Errorf("%w: record already %s", ErrInvariantViolation, from)
		}
		return nil
	}
	allowed := map[TxStatus][]TxStatus{
		StatusPending: {StatusReady, StatusExpired},
		StatusReady:   {StatusSubmitted, StatusFailed, StatusExpired},
	}
	for _, next := range allowed[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: transition %s -> %s", ErrInvariantViolation, from, to)
}

// Clone 深拷贝，内存仓储与测试用
func (p *PendingTransaction) Clone() *PendingTransaction {
	if p == nil {
		return nil
	}
	c := *p
	if p.Signatures != nil {
		c.Signatures = make([]CollectedSignature, len(p.Signatures))
		for i, s := range p.Signatures {
			s.Signature = append([]byte(nil), s.Signature...)
			c.Signatures[i] = s
		}
	}
	if p.PendingSigners != nil {
		c.PendingSigners = append([]string(nil), p.PendingSigners...)
	}
	if p.Metadata != nil {
		c.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	if p.ExpiresAtLedger != nil {
		v := *p.ExpiresAtLedger
		c.ExpiresAtLedger = &v
	}
	if p.SubmittedAt != nil {
		v := *p.SubmittedAt
		c.SubmittedAt = &v
	}
	if p.BroadcastAttemptedAt != nil {
		v := *p.BroadcastAttemptedAt
		c.BroadcastAttemptedAt = &v
	}
	return &c
}
