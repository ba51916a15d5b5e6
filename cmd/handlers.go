package main

import (
	"time"

	"prompt-relay/core"
	"prompt-relay/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 默认提供商的路由别名
const (
	defaultProviderAlias = "prompt"
	netlifyFunctionPath  = "/.netlify/functions/get-ai-response"
)

// newEngine 创建 gin 引擎并注册路由
func newEngine(router *core.Router, log *logrus.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.RecoveryWithWriter(log.Writer()))
	engine.Use(corsMiddleware())
	engine.Use(requestIDMiddleware())

	// 健康检查不记录访问日志
	engine.GET("/health", handleHealth(router))

	api := engine.Group("/")
	api.Use(requestLoggerMiddleware(log))
	{
		// 接受所有方法，非 POST 由处理器返回 405
		api.Any("/api/:provider", handleRelay(router))
		api.Any(netlifyFunctionPath, router.Default().GinHandler())
	}

	return engine
}

// handleRelay 按路径中的提供商名称分发
func handleRelay(router *core.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("provider")
		if name == defaultProviderAlias {
			router.Default().GinHandler()(c)
			return
		}

		h, ok := router.Route(name)
		if !ok {
			core.WriteResult(c, models.NewErrorResult(404, models.MsgUnknownProvider))
			return
		}
		h.GinHandler()(c)
	}
}

// handleHealth 处理健康检查
func handleHealth(router *core.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, models.HealthResponse{
			Status:    "healthy",
			Providers: router.Names(),
			Timestamp: time.Now().Unix(),
		})
	}
}
