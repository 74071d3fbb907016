package event

import (
	"encoding/json"
	"time"

	"multisig-core/internal/model"
)

// TopicProposal 提案生命周期事件的 Topic (Kafka topic / Redis stream)
const TopicProposal = "multisig.proposal"

type Type string

const (
	ProposalCreated   Type = "multisig.proposal.created"
	ProposalReady     Type = "multisig.proposal.ready"
	ProposalSubmitted Type = "multisig.proposal.submitted"
	ProposalFailed    Type = "multisig.proposal.failed"
	ProposalExpired   Type = "multisig.proposal.expired"
)

// ProposalEvent 通过 outbox 投递给下游 (通知、审计)
type ProposalEvent struct {
	Type                 Type           `json:"type"`
	ID                   string         `json:"id"`
	AccountID            string         `json:"account_id"`
	ContentHash          string         `json:"content_hash"`
	Status               model.TxStatus `json:"status"`
	CollectedWeight      uint32         `json:"collected_weight"`
	RequiredThreshold    uint32         `json:"required_threshold"`
	NetworkTransactionID string         `json:"network_transaction_id,omitempty"`
	FailureReason        string         `json:"failure_reason,omitempty"`
	OccurredAt           time.Time      `json:"occurred_at"`
}

// TypeForStatus 状态变更对应的事件类型
func TypeForStatus(status model.TxStatus) (Type, bool) {
	switch status {
	case model.StatusReady:
		return ProposalReady, true
	case model.StatusSubmitted:
		return ProposalSubmitted, true
	case model.StatusFailed:
		return ProposalFailed, true
	case model.StatusExpired:
		return ProposalExpired, true
	}
	return "", false
}

func NewProposalEvent(typ Type, tx *model.PendingTransaction) ProposalEvent {
	return ProposalEvent{
		Type:                 typ,
		ID:                   tx.ID,
		AccountID:            tx.AccountID,
		ContentHash:          tx.ContentHash,
		Status:               tx.Status,
		CollectedWeight:      tx.CollectedWeight,
		RequiredThreshold:    tx.RequiredThreshold,
		NetworkTransactionID: tx.NetworkTransactionID,
		FailureReason:        tx.FailureReason,
		OccurredAt:           time.Now().UTC(),
	}
}

// OutboxMessage 序列化为本地消息表记录
func (e ProposalEvent) OutboxMessage() (*model.OutboxMessage, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &model.OutboxMessage{
		Topic:   TopicProposal,
		Key:     e.ID,
		Payload: payload,
		Status:  model.OutboxStatusPending,
	}, nil
}
