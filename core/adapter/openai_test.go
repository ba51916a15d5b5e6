package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIAdapter_BuildRequest(t *testing.T) {
	adapter := NewOpenAIAdapter(ProviderOpenAI, "", "")

	req, err := adapter.BuildRequest(context.Background(), "Hello!", "sk-test-key")
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1/chat/completions", req.URL.String())
	assert.Equal(t, "Bearer sk-test-key", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	var chatReq OpenAIChatRequest
	require.NoError(t, json.NewDecoder(req.Body).Decode(&chatReq))
	assert.Equal(t, "gpt-3.5-turbo", chatReq.Model)
	require.Len(t, chatReq.Messages, 1)
	assert.Equal(t, "user", chatReq.Messages[0].Role)
	assert.Equal(t, "Hello!", chatReq.Messages[0].Content)
}

func TestOpenAIAdapter_Endpoint(t *testing.T) {
	tests := []struct {
		baseURL string
		want    string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/chat/completions"},
		{"https://example.com/openai/v1/chat/completions", "https://example.com/openai/v1/chat/completions"},
		{"https://example.com/custom/path", "https://example.com/custom/path"},
	}

	for _, tt := range tests {
		t.Run(tt.baseURL, func(t *testing.T) {
			got, err := NewOpenAIAdapter(ProviderOpenAI, tt.baseURL, "").Endpoint()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAIAdapter_ParseResponse(t *testing.T) {
	adapter := NewOpenAIAdapter(ProviderOpenAI, "", "")

	text, err := adapter.ParseResponse(200, []byte(`{"id": "chatcmpl-1", "choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello"}, "finish_reason": "stop"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	text, err = adapter.ParseResponse(200, []byte(`{"choices": [{"message": {"role": "assistant", "content": ""}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestOpenAIAdapter_ParseResponse_Shape(t *testing.T) {
	adapter := NewOpenAIAdapter(ProviderOpenAI, "", "")

	bodies := []string{
		`{}`,
		`{"choices": []}`,
		`{"choices": [{"finish_reason": "stop"}]}`,
		`{"choices": [{"message": {"role": "assistant", "content": null}, "finish_reason": "tool_calls"}]}`,
	}
	for _, body := range bodies {
		_, err := adapter.ParseResponse(200, []byte(body))
		assert.True(t, errors.Is(err, ErrUnexpectedShape), "body %s: got %v", body, err)
	}
}

func TestOpenAIAdapter_ParseResponse_Error(t *testing.T) {
	adapter := NewOpenAIAdapter(ProviderOpenAI, "", "")

	_, err := adapter.ParseResponse(429, []byte(`{"error": {"message": "rate limited", "type": "requests"}}`))

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 429, perr.StatusCode)
	assert.Equal(t, "rate limited", perr.Message)
}
