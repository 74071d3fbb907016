package model

// SignerInfo 链上账户策略中的签名者，不落库
type SignerInfo struct {
	PublicKey string `json:"publicKey"`
	Weight    uint32 `json:"weight"`
}

// AccountMultisigStatus 每次调用都从链上实时计算
type AccountMultisigStatus struct {
	AccountID       string       `json:"accountId"`
	IsMultisig      bool         `json:"isMultisig"`
	ThresholdLow    uint32       `json:"thresholdLow"`
	ThresholdMedium uint32       `json:"thresholdMedium"`
	ThresholdHigh   uint32       `json:"thresholdHigh"`
	Signers         []SignerInfo `json:"signers"`
	TotalWeight     uint32       `json:"totalWeight"`
}

// NewAccountMultisigStatus 多于一个签名者，或中/高阈值大于 1 时视为多签账户
func NewAccountMultisigStatus(accountID string, low, medium, high uint32, signers []SignerInfo) *AccountMultisigStatus {
	var total uint32
	for _, s := range signers {
		total += s.Weight
	}
	if signers == nil {
		signers = []SignerInfo{}
	}
	return &AccountMultisigStatus{
		AccountID:       accountID,
		IsMultisig:      len(signers) > 1 || medium > 1 || high > 1,
		ThresholdLow:    low,
		ThresholdMedium: medium,
		ThresholdHigh:   high,
		Signers:         signers,
		TotalWeight:     total,
	}
}

// FindSigner 返回签名者及其权重
func (s *AccountMultisigStatus) FindSigner(publicKey string) (SignerInfo, bool) {
	for _, signer := range s.Signers {
		if signer.PublicKey == publicKey {
			return signer, true
		}
	}
	return SignerInfo{}, false
}

// RequiredThreshold 提案使用中阈值；阈值为 0 时任意一个签名即可满足
func (s *AccountMultisigStatus) RequiredThreshold() uint32 {
	if s.ThresholdMedium == 0 {
		return 1
	}
	return s.ThresholdMedium
}
