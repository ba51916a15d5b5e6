package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"prompt-relay/core/adapter"
	"prompt-relay/core/utils"
	"prompt-relay/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 日志中原始响应体的最大长度
const maxLoggedBody = 1000

// RequestIDKey gin 上下文中请求 ID 的键
const RequestIDKey = "request_id"

type requestIDCtxKey struct{}

// WithRequestID 将请求 ID 写入 context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// RequestIDFromContext 读取请求 ID，不存在时返回空串
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

// RelayConfig 单个中继处理器的显式配置
type RelayConfig struct {
	Credential string
}

// RelayHandler 将 prompt 转发给上游提供商并归一化响应
// 构造后无可变状态，可并发使用
type RelayHandler struct {
	provider adapter.Provider
	config   RelayConfig
	client   *http.Client
	logger   *logrus.Logger
	recorder FailureRecorder
}

// NewRelayHandler 创建中继处理器，client 为 nil 时使用 NewHTTPClient
func NewRelayHandler(provider adapter.Provider, cfg RelayConfig, client *http.Client, logger *logrus.Logger) *RelayHandler {
	if client == nil {
		client = NewHTTPClient()
	}
	return &RelayHandler{
		provider: provider,
		config:   cfg,
		client:   client,
		logger:   logger,
	}
}

// WithRecorder 设置失败记录器
func (h *RelayHandler) WithRecorder(r FailureRecorder) *RelayHandler {
	h.recorder = r
	return h
}

// ProviderName 返回上游提供商名称
func (h *RelayHandler) ProviderName() string {
	return h.provider.Name()
}

// Handle 处理一次调用，任何失败都转换为格式良好的 Result
// 校验顺序固定：方法 -> 凭证 -> 请求体 -> 上游调用
func (h *RelayHandler) Handle(ctx context.Context, event models.Event) (result models.Result) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = h.fail(ctx, start, http.StatusInternalServerError, models.FailureTransport,
				models.MsgInternalError, fmt.Errorf("panic: %v", r))
		}
	}()

	if event.HTTPMethod != http.MethodPost {
		return h.fail(ctx, start, http.StatusMethodNotAllowed, models.FailureClient, models.MsgMethodNotAllowed, nil)
	}

	if h.config.Credential == "" {
		return h.fail(ctx, start, http.StatusInternalServerError, models.FailureConfiguration, models.MsgNotConfigured, nil)
	}

	var payload models.PromptRequest
	if err := json.Unmarshal([]byte(event.Body), &payload); err != nil {
		return h.fail(ctx, start, http.StatusBadRequest, models.FailureClient, models.MsgPromptMissing, err)
	}
	prompt, ok := payload.PromptText()
	if !ok {
		return h.fail(ctx, start, http.StatusBadRequest, models.FailureClient, models.MsgPromptMissing, nil)
	}

	text, body, err := h.call(ctx, prompt)
	if err != nil {
		var perr *adapter.ProviderError
		switch {
		case errors.As(err, &perr):
			status := perr.StatusCode
			if status < 400 || status > 599 {
				status = http.StatusInternalServerError
			}
			return h.fail(ctx, start, status, models.FailureUpstream,
				models.UpstreamErrorPrefix+h.redact(perr.Message), nil)
		case errors.Is(err, adapter.ErrUnexpectedShape):
			h.logger.WithFields(logrus.Fields{
				"provider":   h.provider.Name(),
				"request_id": RequestIDFromContext(ctx),
				"body":       utils.Truncate(h.redact(string(body)), maxLoggedBody),
			}).Warn("Unhandled provider response shape")
			return h.fail(ctx, start, http.StatusInternalServerError, models.FailureShape, models.MsgUnexpectedShape, err)
		default:
			return h.fail(ctx, start, http.StatusInternalServerError, models.FailureTransport, h.safeMessage(err), err)
		}
	}

	return models.NewTextResult(text)
}

// call 发起单次上游请求，不重试
func (h *RelayHandler) call(ctx context.Context, prompt string) (string, []byte, error) {
	req, err := h.provider.BuildRequest(ctx, prompt, h.config.Credential)
	if err != nil {
		return "", nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	text, err := h.provider.ParseResponse(resp.StatusCode, body)
	return text, body, err
}

// fail 记录失败并构造错误结果
func (h *RelayHandler) fail(ctx context.Context, start time.Time, status int, class models.FailureClass, message string, cause error) models.Result {
	requestID := RequestIDFromContext(ctx)
	latency := time.Since(start)

	fields := logrus.Fields{
		"provider":   h.provider.Name(),
		"request_id": requestID,
		"status":     status,
		"class":      class,
		"latency":    latency,
	}
	if cause != nil {
		fields["cause"] = h.safeMessage(cause)
	}
	entry := h.logger.WithFields(fields)
	if class == models.FailureClient {
		entry.Warn(message)
	} else {
		entry.Error(message)
	}

	if h.recorder != nil {
		h.recorder.Log(&models.FailureLog{
			CreatedAt:  start,
			RequestID:  requestID,
			Provider:   h.provider.Name(),
			StatusCode: status,
			Class:      class,
			Message:    message,
			Duration:   latency.Milliseconds(),
		})
	}

	return models.NewErrorResult(status, message)
}

// safeMessage 从底层错误中提取可返回给调用方的信息
// *url.Error 会携带请求 URL（可能含 ?key=），只保留内层错误
func (h *RelayHandler) safeMessage(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		err = uerr.Err
	}
	msg := h.redact(err.Error())
	if msg == "" {
		return models.MsgInternalError
	}
	return msg
}

// redact 同时覆盖原始凭证和 URL 编码后的凭证
func (h *RelayHandler) redact(s string) string {
	s = utils.Redact(s, h.config.Credential)
	return utils.Redact(s, url.QueryEscape(h.config.Credential))
}

// GinHandler 将 gin 请求转换为 Event 并写回 Result
// 上游调用与客户端连接解耦，客户端断开不会取消已发出的请求
func (h *RelayHandler) GinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			b, err := io.ReadAll(c.Request.Body)
			if err != nil {
				h.logger.Warnf("Failed to read request body: %v", err)
			}
			body = b
		}

		ctx := WithRequestID(context.WithoutCancel(c.Request.Context()), c.GetString(RequestIDKey))
		result := h.Handle(ctx, models.Event{
			HTTPMethod: c.Request.Method,
			Body:       string(body),
		})
		WriteResult(c, result)
	}
}

// WriteResult 将 Result 写入 gin 响应
func WriteResult(c *gin.Context, result models.Result) {
	contentType := models.ContentTypeJSON
	for k, v := range result.Headers {
		if http.CanonicalHeaderKey(k) == models.HeaderContentType {
			contentType = v
			continue
		}
		c.Header(k, v)
	}
	c.Data(result.StatusCode, contentType, []byte(result.Body))
}
