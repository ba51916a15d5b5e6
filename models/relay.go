package models

import (
	"encoding/json"
)

// 固定的客户端可见错误文案
const (
	MsgMethodNotAllowed = "Method Not Allowed"
	MsgNotConfigured    = "API key is not configured on the server."
	MsgPromptMissing    = "Prompt is missing from request."
	MsgUnexpectedShape  = "Unexpected response shape from provider."
	MsgUnknownProvider  = "Unknown provider."
	MsgInternalError    = "Internal Server Error"
	UpstreamErrorPrefix = "API Error: "
	ContentTypeJSON     = "application/json"
	HeaderContentType   = "Content-Type"
)

// Event 入站事件（serverless 触发器风格）
type Event struct {
	HTTPMethod string `json:"httpMethod"`
	Body       string `json:"body"`
}

// Result 出站事件
type Result struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
}

// PromptRequest 入站请求体
// Prompt 保持 interface{}，以便区分 "缺失"、"非字符串" 与 "空字符串"
type PromptRequest struct {
	Prompt interface{} `json:"prompt"`
}

// PromptText 返回非空的 prompt 字符串
func (r *PromptRequest) PromptText() (string, bool) {
	s, ok := r.Prompt.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// TextResponse 成功响应体
type TextResponse struct {
	Text string `json:"text"`
}

// ErrorResponse 失败响应体
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewTextResult 创建成功结果
func NewTextResult(text string) Result {
	return newJSONResult(200, TextResponse{Text: text})
}

// NewErrorResult 创建失败结果
func NewErrorResult(statusCode int, message string) Result {
	return newJSONResult(statusCode, ErrorResponse{Error: message})
}

func newJSONResult(statusCode int, v interface{}) Result {
	// 这两种结构体只含字符串字段，Marshal 不会失败
	body, _ := json.Marshal(v)
	return Result{
		StatusCode: statusCode,
		Headers:    map[string]string{HeaderContentType: ContentTypeJSON},
		Body:       string(body),
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
	Timestamp int64    `json:"timestamp"`
}
