package response

import (
	"time"

	"multisig-core/internal/model"
	"multisig-core/pkg/envelope"
)

type SignatureView struct {
	PublicKey string `json:"publicKey"`
	Signature []byte `json:"signature"` // base64
	Weight    uint32 `json:"weight"`
}

// TransactionView 对外展示的待签名交易
type TransactionView struct {
	ID                   string            `json:"id"`
	AccountID            string            `json:"accountId"`
	TransactionEnvelope  string            `json:"transactionEnvelope"`
	ContentHash          string            `json:"contentHash"`
	Status               model.TxStatus    `json:"status"`
	RequiredThreshold    uint32            `json:"requiredThreshold"`
	CollectedWeight      uint32            `json:"collectedWeight"`
	Signatures           []SignatureView   `json:"signatures"`
	PendingSigners       []string          `json:"pendingSigners"`
	Memo                 string            `json:"memo,omitempty"`
	Metadata             map[string]any    `json:"metadata,omitempty"`
	ExpiresAtLedger      *uint32           `json:"expiresAtLedger,omitempty"`
	SubmittedAt          *time.Time        `json:"submittedAt,omitempty"`
	BroadcastAttemptedAt *time.Time        `json:"broadcastAttemptedAt,omitempty"`
	NetworkTransactionID string            `json:"networkTransactionId,omitempty"`
	FailureReason        string            `json:"failureReason,omitempty"`
	Summary              *envelope.Summary `json:"summary,omitempty"`
	Warnings             []string          `json:"warnings,omitempty"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

// NewTransactionView 信封解码失败时省略摘要，不影响其他字段
func NewTransactionView(tx *model.PendingTransaction, codec *envelope.Codec) TransactionView {
	v := TransactionView{
		ID:                   tx.ID,
		AccountID:            tx.AccountID,
		TransactionEnvelope:  tx.TransactionEnvelope,
		ContentHash:          tx.ContentHash,
		Status:               tx.Status,
		RequiredThreshold:    tx.RequiredThreshold,
		CollectedWeight:      tx.CollectedWeight,
		Signatures:           make([]SignatureView, 0, len(tx.Signatures)),
		PendingSigners:       tx.PendingSigners,
		Memo:                 tx.Memo,
		Metadata:             tx.Metadata,
		ExpiresAtLedger:      tx.ExpiresAtLedger,
		SubmittedAt:          tx.SubmittedAt,
		BroadcastAttemptedAt: tx.BroadcastAttemptedAt,
		NetworkTransactionID: tx.NetworkTransactionID,
		FailureReason:        tx.FailureReason,
		CreatedAt:            tx.CreatedAt,
		UpdatedAt:            tx.UpdatedAt,
	}
	if v.PendingSigners == nil {
		v.PendingSigners = []string{}
	}
	for _, s := range tx.Signatures {
		v.Signatures = append(v.Signatures, SignatureView{PublicKey: s.PublicKey, Signature: s.Signature, Weight: s.Weight})
	}
	v.Warnings = warnings(tx)
	if codec != nil {
		if env, err := codec.Decode(tx.TransactionEnvelope); err == nil {
			summary := envelope.Summarize(env)
			v.Summary = &summary
		}
	}
	return v
}

func NewTransactionViews(txs []*model.PendingTransaction, codec *envelope.Codec) []TransactionView {
	views := make([]TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, NewTransactionView(tx, codec))
	}
	return views
}

type ExpireView struct {
	CurrentLedger uint32 `json:"currentLedger"`
	Expired       int64  `json:"expired"`
}

const (
	WarningSurplusSignatures   = "threshold is met even without one of the collected signatures; the network may reject the unused signature (tx_bad_auth_extra)"
	WarningBroadcastUnresolved = "a broadcast was attempted but its outcome was not recorded; reconcile with the network before acting on this transaction"
)

func warnings(tx *model.PendingTransaction) []string {
	var out []string
	if tx.Status == model.StatusReady && len(tx.Signatures) > 1 {
		// 去掉权重最小的签名后仍满足阈值，说明至少有一个签名是多余的
		lightest := tx.Signatures[0].Weight
		for _, s := range tx.Signatures[1:] {
			if s.Weight < lightest {
				lightest = s.Weight
			}
		}
		if tx.CollectedWeight-lightest >= tx.RequiredThreshold {
			out = append(out, WarningSurplusSignatures)
		}
	}
	if tx.Status == model.StatusReady && tx.BroadcastAttemptedAt != nil {
		out = append(out, WarningBroadcastUnresolved)
	}
	return out
}
