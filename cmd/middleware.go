package main

import (
	"time"

	"prompt-relay/core"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HeaderRequestID 请求 ID 响应头
const HeaderRequestID = "X-Request-ID"

// corsMiddleware CORS中间件
// 只有真正的预检请求才直接返回 204，其他 OPTIONS 交给处理器返回 405
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Request-ID")

		if c.Request.Method == "OPTIONS" && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware 为每个请求分配 ID，沿用客户端传入的 X-Request-ID
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(core.RequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// requestLoggerMiddleware 访问日志中间件
// 只记录非成功状态码，请求体可能含用户 prompt，不写入日志
func requestLoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		latency := time.Since(start)

		if statusCode >= 400 {
			entry := log.WithFields(logrus.Fields{
				"method":      c.Request.Method,
				"path":        c.Request.URL.Path,
				"status":      statusCode,
				"latency":     latency,
				"client_ip":   c.ClientIP(),
				"user_agent":  c.Request.UserAgent(),
				"content_len": c.Request.ContentLength,
				"request_id":  c.GetString(core.RequestIDKey),
			})
			if statusCode >= 500 {
				entry.Error("Server error")
			} else {
				entry.Warn("Client error")
			}
			return
		}

		log.Debugf("Request processed - %s %s (status: %d, latency: %v)",
			c.Request.Method, c.Request.URL.Path, statusCode, latency)
	}
}
