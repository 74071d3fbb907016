package request

// CreateTransactionRequest 创建多签提案
type CreateTransactionRequest struct {
	AccountID           string         `json:"accountId" binding:"required,stellar_account"`
	TransactionEnvelope string         `json:"transactionEnvelope" binding:"required"`
	Memo                string         `json:"memo" binding:"max=255"`
	Metadata            map[string]any `json:"metadata"`
	// 可选: 超过该账本高度后由过期扫描置为 EXPIRED
	ExpiresAtLedger *uint32 `json:"expiresAtLedger" binding:"omitempty,min=1"`
}

// SubmitSignatureRequest 提交一个签名者的签名
type SubmitSignatureRequest struct {
	PendingTransactionID string `json:"pendingTransactionId" binding:"required,max=64"`
	SignerPublicKey      string `json:"signerPublicKey" binding:"required,stellar_pubkey"`
	Signature            string `json:"signature" binding:"required,stellar_signature"`
}

// ExpireRequest 手动触发过期扫描，不传 currentLedger 时读取网络最新高度
type ExpireRequest struct {
	CurrentLedger uint32 `json:"currentLedger"`
}

// ListPendingQuery ?statuses=PENDING,READY 或 ?statuses=PENDING&statuses=READY
type ListPendingQuery struct {
	Statuses []string `form:"statuses"`
}
