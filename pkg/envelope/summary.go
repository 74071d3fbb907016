package envelope

import (
	"time"

	"github.com/shopspring/decimal"
)

// 1 XLM = 10^7 stroops
const stroopsExponent = -7

type TimeBounds struct {
	MinTime *time.Time `json:"minTime,omitempty"`
	MaxTime *time.Time `json:"maxTime,omitempty"`
}

// Summary 信封的只读摘要，用于接口展示
type Summary struct {
	EnvelopeType   string          `json:"envelopeType"`
	SourceAccount  string          `json:"sourceAccount"`
	SourceMuxedID  *uint64         `json:"sourceMuxedId,omitempty"`
	Fee            decimal.Decimal `json:"fee"` // 单位 XLM
	SequenceNumber int64           `json:"sequenceNumber"`
	OperationCount int             `json:"operationCount"`
	Memo           string          `json:"memo,omitempty"`
	SignatureCount int             `json:"signatureCount"`
	TimeBounds     *TimeBounds     `json:"timeBounds,omitempty"`
	// 仅 fee-bump
	FeeSource *string          `json:"feeSource,omitempty"`
	MaxFee    *decimal.Decimal `json:"maxFee,omitempty"`
}

func Summarize(env *Envelope) Summary {
	tx, _ := env.innerTx()
	s := Summary{
		EnvelopeType:   env.Kind(),
		SourceAccount:  tx.SourceAccount.Address(),
		SourceMuxedID:  tx.SourceAccount.MuxedID(),
		Fee:            decimal.New(int64(tx.Fee), stroopsExponent),
		SequenceNumber: int64(tx.SeqNum),
		OperationCount: len(tx.Operations),
		SignatureCount: len(env.Signatures()),
	}

	if fb := env.FeeBump; fb != nil {
		feeSource := fb.Tx.FeeSource.Address()
		maxFee := decimal.New(int64(fb.Tx.Fee), stroopsExponent)
		s.FeeSource = &feeSource
		s.MaxFee = &maxFee
	}

	if text, ok := tx.Memo.GetText(); ok {
		s.Memo = text
	}

	if tb := tx.Cond.timeBounds(); tb != nil {
		s.TimeBounds = &TimeBounds{}
		// 0 表示不限制
		if tb.MinTime > 0 {
			t := time.Unix(int64(tb.MinTime), 0).UTC()
			s.TimeBounds.MinTime = &t
		}
		if tb.MaxTime > 0 {
			t := time.Unix(int64(tb.MaxTime), 0).UTC()
			s.TimeBounds.MaxTime = &t
		}
	}
	return s
}
