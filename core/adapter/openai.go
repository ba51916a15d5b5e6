package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-3.5-turbo"
)

// OpenAIChatRequest OpenAI 聊天请求（仅单轮 user 消息）
type OpenAIChatRequest struct {
	Model    string              `json:"model"`
	Messages []OpenAIChatMessage `json:"messages"`
}

// OpenAIChatMessage 聊天消息
type OpenAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIChatResponse OpenAI 聊天响应
type OpenAIChatResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []OpenAIChatChoice `json:"choices"`
}

// OpenAIChatChoice content 可能为 null（如 tool_calls 或内容过滤）
type OpenAIChatChoice struct {
	Index        int                        `json:"index"`
	Message      *OpenAIChatResponseMessage `json:"message"`
	FinishReason string                     `json:"finish_reason"`
}

type OpenAIChatResponseMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

// OpenAIAdapter OpenAI 兼容协议
type OpenAIAdapter struct {
	name    string
	baseURL string
	model   string
}

// NewOpenAIAdapter 创建 OpenAI 适配器，空值使用默认配置
func NewOpenAIAdapter(name, baseURL, model string) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIAdapter{
		name:    name,
		baseURL: strings.TrimSpace(baseURL),
		model:   model,
	}
}

func (a *OpenAIAdapter) Name() string { return a.name }

// Endpoint 返回 chat completions 地址
// 只有 base URL（空路径、/ 或以 /v1 结尾）才自动追加 /chat/completions
func (a *OpenAIAdapter) Endpoint() (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid upstream url: %w", err)
	}
	path := u.Path
	if !strings.Contains(path, "/chat/completions") {
		if path == "" || path == "/" || strings.HasSuffix(path, "/v1") || strings.HasSuffix(path, "/v1/") {
			u.Path = strings.TrimSuffix(path, "/") + "/chat/completions"
		}
	}
	return u.String(), nil
}

func (a *OpenAIAdapter) BuildRequest(ctx context.Context, prompt string, credential string) (*http.Request, error) {
	endpoint, err := a.Endpoint()
	if err != nil {
		return nil, err
	}

	req, err := newJSONRequest(ctx, endpoint, OpenAIChatRequest{
		Model:    a.model,
		Messages: []OpenAIChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	return req, nil
}

// ParseResponse 提取 choices[0].message.content
func (a *OpenAIAdapter) ParseResponse(statusCode int, body []byte) (string, error) {
	if !IsSuccess(statusCode) {
		return "", NewProviderError(statusCode, body)
	}

	var chatResp OpenAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to decode openai response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrUnexpectedShape)
	}
	choice := chatResp.Choices[0]
	if choice.Message == nil || choice.Message.Content == nil {
		return "", fmt.Errorf("%w: choice has no message content (finish_reason=%s)", ErrUnexpectedShape, choice.FinishReason)
	}
	return *choice.Message.Content, nil
}
