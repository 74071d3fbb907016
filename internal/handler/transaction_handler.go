package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"multisig-core/internal/handler/request"
	"multisig-core/internal/handler/response"
	"multisig-core/internal/model"
	"multisig-core/internal/service/multisig"
	"multisig-core/pkg/errno"
	"multisig-core/pkg/monitor"
	"multisig-core/pkg/validator"
)

type TransactionHandler struct {
	engine *multisig.Engine
}

func NewTransactionHandler(engine *multisig.Engine) *TransactionHandler {
	return &TransactionHandler{engine: engine}
}

// Create 创建多签提案
// @Summary 创建多签提案
// @Description 提交未签名 (或部分签名) 的交易信封，信封中已有的合法签名直接计入权重
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.CreateTransactionRequest true "提案参数"
// @Success 201 {object} response.Response{data=response.TransactionView}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	// 1. 绑定参数
	var req request.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	// 2. 调用引擎
	tx, err := h.engine.CreateProposal(c.Request.Context(), multisig.CreateProposalInput{
		AccountID:       req.AccountID,
		Envelope:        req.TransactionEnvelope,
		Memo:            req.Memo,
		Metadata:        req.Metadata,
		ExpiresAtLedger: req.ExpiresAtLedger,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, response.NewTransactionView(tx, h.engine.Codec()))
}

// Get 查询单笔待签名交易
// @Summary 查询待签名交易
// @Tags Transaction
// @Produce json
// @Param id path string true "Pending transaction ID"
// @Success 200 {object} response.Response{data=response.TransactionView}
// @Failure 404 {object} response.Response
// @Router /api/v1/transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	tx, err := h.engine.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.NewTransactionView(tx, h.engine.Codec()))
}

// ListPending 查询账户下的待签名交易
// @Summary 账户待签名交易列表
// @Description 默认只返回 PENDING 和 READY
// @Tags Account
// @Produce json
// @Param accountId path string true "Stellar account ID"
// @Param statuses query []string false "状态过滤 (PENDING, READY, SUBMITTED, FAILED, EXPIRED)" collectionFormat(csv)
// @Success 200 {object} response.Response{data=[]response.TransactionView}
// @Failure 400 {object} response.Response
// @Router /api/v1/accounts/{accountId}/pending [get]
func (h *TransactionHandler) ListPending(c *gin.Context) {
	var q request.ListPendingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}
	statuses, err := parseStatuses(q.Statuses)
	if err != nil {
		response.Error(c, err)
		return
	}

	txs, err := h.engine.ListPending(c.Request.Context(), c.Param("accountId"), statuses)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.NewTransactionViews(txs, h.engine.Codec()))
}

// SubmitSignature 提交签名
// @Summary 提交签名
// @Description 签名对象是交易内容哈希 (包含网络 passphrase)，签名为 base64 编码的 64 字节 ed25519 签名
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.SubmitSignatureRequest true "签名参数"
// @Success 200 {object} response.Response{data=response.TransactionView}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/transactions/signatures [post]
func (h *TransactionHandler) SubmitSignature(c *gin.Context) {
	var req request.SubmitSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	tx, err := h.engine.SubmitSignature(c.Request.Context(), req.PendingTransactionID, req.SignerPublicKey, req.Signature)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.NewTransactionView(tx, h.engine.Codec()))
}

// Submit 广播已达到阈值的交易
// @Summary 广播交易
// @Description 广播失败时返回 200 且 success=false，记录状态为 FAILED。之前的广播结果未记录时返回 409 (30304)，不会再次广播
// @Tags Transaction
// @Produce json
// @Param id path string true "Pending transaction ID"
// @Success 200 {object} response.Response{data=multisig.SubmitResult}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/transactions/{id}/submit [post]
func (h *TransactionHandler) Submit(c *gin.Context) {
	res, err := h.engine.SubmitToNetwork(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Expire 手动触发过期扫描
// @Summary 过期扫描
// @Description 把 expiresAtLedger 小于当前账本高度的 PENDING/READY 交易置为 EXPIRED
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.ExpireRequest false "当前账本高度，可选"
// @Success 200 {object} response.Response{data=response.ExpireView}
// @Failure 503 {object} response.Response
// @Router /api/v1/transactions/expire [post]
func (h *TransactionHandler) Expire(c *gin.Context) {
	var req request.ExpireRequest
	// 允许空 body
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
			return
		}
	}

	ctx := c.Request.Context()
	ledger := req.CurrentLedger
	if ledger == 0 {
		var err error
		if ledger, err = h.engine.CurrentLedger(ctx); err != nil {
			response.Error(c, err)
			return
		}
	}

	n, err := h.engine.ExpireStale(ctx, ledger)
	if err != nil {
		response.Error(c, err)
		return
	}
	monitor.Business.ExpireSweepsTotal.WithLabelValues("http").Inc()
	response.Success(c, response.ExpireView{CurrentLedger: ledger, Expired: n})
}

// parseStatuses 同时支持逗号分隔与重复参数
func parseStatuses(raw []string) ([]model.TxStatus, error) {
	var statuses []model.TxStatus
	for _, item := range raw {
		for _, s := range strings.Split(item, ",") {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			st, err := model.ParseStatus(s)
			if err != nil {
				return nil, errno.ErrInvalidStatusFilter.WithMessage(err.Error())
			}
			statuses = append(statuses, st)
		}
	}
	return statuses, nil
}
