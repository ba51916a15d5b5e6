package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnexpectedShape 上游返回 2xx 但缺少预期的嵌套字段
var ErrUnexpectedShape = errors.New("unexpected response shape")

// Provider 定义不同 LLM 提供商的适配接口
type Provider interface {
	// Name 返回提供商名称，如 "openai", "gemini"
	Name() string

	// BuildRequest 将 prompt 和凭证转换为特定提供商的 HTTP 请求
	BuildRequest(ctx context.Context, prompt string, credential string) (*http.Request, error)

	// ParseResponse 从上游响应中提取生成文本
	// 非 2xx 返回 *ProviderError；字段缺失返回包装了 ErrUnexpectedShape 的错误
	ParseResponse(statusCode int, body []byte) (string, error)
}

// ProviderError 上游拒绝请求时的错误
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// errorEnvelope OpenAI 与 Google 共用的错误信封 {"error": {"message": "..."}}
// 部分 OpenAI 兼容服务直接返回 {"error": "..."}
type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
	Type    string `json:"type,omitempty"`
}

// NewProviderError 从上游错误响应体构造 ProviderError
// 取不到信封中的 message 时回退到 HTTP 状态文本
func NewProviderError(statusCode int, body []byte) *ProviderError {
	return &ProviderError{
		StatusCode: statusCode,
		Message:    extractErrorMessage(statusCode, body),
	}
}

func extractErrorMessage(statusCode int, body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Error) > 0 {
		var detail errorDetail
		if err := json.Unmarshal(env.Error, &detail); err == nil && strings.TrimSpace(detail.Message) != "" {
			return detail.Message
		}
		var msg string
		if err := json.Unmarshal(env.Error, &msg); err == nil && strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	return statusText(statusCode)
}

// statusText 获取HTTP状态码的描述文本
func statusText(statusCode int) string {
	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}

// IsSuccess 判断上游状态码是否为 2xx
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// newJSONRequest 创建带 JSON 头的 POST 请求
func newJSONRequest(ctx context.Context, url string, payload interface{}) (*http.Request, error) {
	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Prompt-Relay/1.0")
	return req, nil
}
