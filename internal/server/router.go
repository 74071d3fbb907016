package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "multisig-core/docs/swagger"
	"multisig-core/internal/handler"
	"multisig-core/pkg/monitor"
	"multisig-core/pkg/validator"
)

type Handlers struct {
	Transaction *handler.TransactionHandler
	Account     *handler.AccountHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	// 0. 初始化监控指标与自定义校验规则
	monitor.Init()
	validator.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		accounts := api.Group("/accounts/:accountId")
		accounts.GET("/status", h.Account.Status)
		accounts.GET("/pending", h.Transaction.ListPending)

		txs := api.Group("/transactions")
		txs.POST("", h.Transaction.Create)
		// 静态路由优先于 /:id
		txs.POST("/signatures", h.Transaction.SubmitSignature)
		txs.POST("/expire", h.Transaction.Expire)
		txs.GET("/:id", h.Transaction.Get)
		txs.POST("/:id/submit", h.Transaction.Submit)
	}

	return r
}
