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
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

// GeminiAuthMode 凭证的传递方式
type GeminiAuthMode int

const (
	// GeminiAuthQuery 通过 ?key= 查询参数传递
	GeminiAuthQuery GeminiAuthMode = iota
	// GeminiAuthHeader 通过 x-goog-api-key 请求头传递
	GeminiAuthHeader
)

// GeminiAdapter Google Gemini 协议适配器
type GeminiAdapter struct {
	name     string
	baseURL  string
	model    string
	authMode GeminiAuthMode
}

// NewGeminiAdapter 创建 Gemini 适配器，空值使用默认配置
func NewGeminiAdapter(name, baseURL, model string, authMode GeminiAuthMode) *GeminiAdapter {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiAdapter{
		name:     name,
		baseURL:  strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		model:    model,
		authMode: authMode,
	}
}

func (a *GeminiAdapter) Name() string { return a.name }

// Endpoint 返回不含凭证的 generateContent 地址
func (a *GeminiAdapter) Endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, url.PathEscape(a.model))
}

// BuildRequest 构建 generateContent 请求，单轮 user 消息
func (a *GeminiAdapter) BuildRequest(ctx context.Context, prompt string, credential string) (*http.Request, error) {
	geminiReq := GeminiRequest{
		Contents: []GeminiContent{
			{
				Role:  "user",
				Parts: []GeminiPart{{Text: prompt}},
			},
		},
	}

	u, err := url.Parse(a.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if a.authMode == GeminiAuthQuery {
		q := u.Query()
		q.Set("key", credential)
		u.RawQuery = q.Encode()
	}

	req, err := newJSONRequest(ctx, u.String(), geminiReq)
	if err != nil {
		return nil, err
	}
	if a.authMode == GeminiAuthHeader {
		req.Header.Set("x-goog-api-key", credential)
	}
	return req, nil
}

// ParseResponse 拼接第一个候选中的全部文本片段
func (a *GeminiAdapter) ParseResponse(statusCode int, body []byte) (string, error) {
	if !IsSuccess(statusCode) {
		return "", NewProviderError(statusCode, body)
	}

	var geminiResp GeminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 {
		if fb := geminiResp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			return "", fmt.Errorf("%w: no candidates (blockReason=%s)", ErrUnexpectedShape, fb.BlockReason)
		}
		return "", fmt.Errorf("%w: no candidates", ErrUnexpectedShape)
	}

	candidate := geminiResp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: candidate has no content parts (finishReason=%s)", ErrUnexpectedShape, candidate.FinishReason)
	}

	var sb strings.Builder
	found := false
	for _, part := range candidate.Content.Parts {
		if part.Text == nil || part.Thought {
			continue
		}
		found = true
		sb.WriteString(*part.Text)
	}
	if !found {
		return "", fmt.Errorf("%w: candidate has no text parts", ErrUnexpectedShape)
	}
	return sb.String(), nil
}
