package models

// GenerationRequest is one normalized request to a provider. It is built
// once per user question and is immutable after construction.
type GenerationRequest struct {
	Question        string
	SystemPrompt    string
	Language        string
	IncludeThinking bool
	Temperature     float32
	MaxOutputTokens int32
	Image           *ImageAttachment
}

// GenerationResult is a completed answer from one model.
type GenerationResult struct {
	Answer    string      `json:"answer"`
	ModelUsed string      `json:"modelUsed"`
	Thinking  string      `json:"thinking,omitempty"`
	Usage     *UsageStats `json:"usageStats,omitempty"`
}

// UsageStats carries token counts when the provider reports them.
type UsageStats struct {
	InputTokens  int `json:"inputTokens,omitempty"`
	OutputTokens int `json:"outputTokens,omitempty"`
}
