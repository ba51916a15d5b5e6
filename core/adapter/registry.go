package adapter

import (
	"fmt"
	"sort"
)

// 内置提供商名称
const (
	ProviderOpenAI       = "openai"
	ProviderGemini       = "gemini"
	ProviderGeminiHeader = "gemini-header"
)

// Options 构建提供商时的可选覆盖项
type Options struct {
	BaseURL string
	Model   string
}

// New 根据名称创建提供商
func New(name string, opts Options) (Provider, error) {
	switch name {
	case ProviderOpenAI:
		return NewOpenAIAdapter(name, opts.BaseURL, opts.Model), nil
	case ProviderGemini:
		return NewGeminiAdapter(name, opts.BaseURL, opts.Model, GeminiAuthQuery), nil
	case ProviderGeminiHeader:
		return NewGeminiAdapter(name, opts.BaseURL, opts.Model, GeminiAuthHeader), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// Names 返回所有内置提供商名称（已排序）
func Names() []string {
	names := []string{ProviderOpenAI, ProviderGemini, ProviderGeminiHeader}
	sort.Strings(names)
	return names
}
