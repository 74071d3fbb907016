package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"multisig-core/internal/handler/response"
	"multisig-core/internal/model"
	"multisig-core/internal/service/multisig"
	"multisig-core/pkg/cache"
	"multisig-core/pkg/logger"
)

const accountStatusKeyPrefix = "multisig:account_status:"

type AccountHandler struct {
	engine *multisig.Engine
	cache  cache.Cache
	ttl    time.Duration
}

// NewAccountHandler statusCache 为 nil 或 ttl <= 0 时每次都实时读取链上状态。
// 缓存只用于这个只读接口，签名流程始终读取实时策略。
func NewAccountHandler(engine *multisig.Engine, statusCache cache.Cache, ttl time.Duration) *AccountHandler {
	return &AccountHandler{engine: engine, cache: statusCache, ttl: ttl}
}

// Status 查询账户多签策略
// @Summary 账户多签状态
// @Description 阈值与签名者列表，来自链上账户
// @Tags Account
// @Produce json
// @Param accountId path string true "Stellar account ID"
// @Success 200 {object} response.Response{data=model.AccountMultisigStatus}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/accounts/{accountId}/status [get]
func (h *AccountHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	accountID := c.Param("accountId")

	if status, ok := h.cached(ctx, accountID); ok {
		response.Success(c, status)
		return
	}

	status, err := h.engine.GetAccountStatus(ctx, accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.cacheEnabled() {
		if err := h.cache.Set(ctx, accountStatusKeyPrefix+accountID, status, h.ttl); err != nil {
			logger.Warn("Failed to cache account status", zap.String("account_id", accountID), zap.Error(err))
		}
	}
	response.Success(c, status)
}

func (h *AccountHandler) cacheEnabled() bool {
	return h.cache != nil && h.ttl > 0
}

func (h *AccountHandler) cached(ctx context.Context, accountID string) (*model.AccountMultisigStatus, bool) {
	if !h.cacheEnabled() {
		return nil, false
	}
	var status model.AccountMultisigStatus
	if err := h.cache.Get(ctx, accountStatusKeyPrefix+accountID, &status); err != nil {
		return nil, false
	}
	return &status, true
}
