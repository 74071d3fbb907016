package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"multisig-core/pkg/errno"
	"multisig-core/pkg/logger"
)

// Response defines the standard JSON structure
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
	// Ref 冲突时返回已存在的记录 ID，调用方据此去重
	Ref string `json:"ref,omitempty"`
}

// Success returns a success response with data
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, data)
}

// Created 201，用于创建提案
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, data)
}

func write(c *gin.Context, status int, data interface{}) {
	if data == nil {
		data = gin.H{} // Return empty object instead of null
	}
	c.JSON(status, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error 按 Errno 中的 HTTP 状态码返回错误
func Error(c *gin.Context, err error) {
	e := errno.From(err)
	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("code", e.Code),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, Response{
		Code:    e.Code,
		Message: e.Message,
		Data:    gin.H{},
		Ref:     e.Ref,
	})
}
