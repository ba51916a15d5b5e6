package adapter

// Gemini Request Structures

type GeminiRequest struct {
	Contents []GeminiContent `json:"contents"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text string `json:"text"`
}

// Gemini Response Structures
// 所有嵌套字段都可能缺失，用指针区分 "缺失" 与 "空值"

type GeminiResponse struct {
	Candidates     []GeminiCandidate     `json:"candidates"`
	PromptFeedback *GeminiPromptFeedback `json:"promptFeedback,omitempty"`
}

type GeminiCandidate struct {
	Content      *GeminiResponseContent `json:"content"`
	FinishReason string                 `json:"finishReason"`
	Index        int                    `json:"index"`
}

type GeminiResponseContent struct {
	Role  string               `json:"role"`
	Parts []GeminiResponsePart `json:"parts"`
}

type GeminiResponsePart struct {
	Text    *string `json:"text"`
	Thought bool    `json:"thought,omitempty"`
}

type GeminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}
