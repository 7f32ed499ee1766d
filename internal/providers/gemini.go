package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"twin_gateway/internal/config"
	"twin_gateway/internal/models"
	"twin_gateway/internal/ratelimit"
)

// ProviderGemini is the identifier of the Gemini adapter. It owns the
// multimodal and reasoning routes.
const ProviderGemini = "gemini"

// GeminiClient adapts the Gemini backend through the GenAI Go SDK.
type GeminiClient struct {
	client         *genai.Client
	models         []string
	tracker        *ratelimit.Tracker
	attemptTimeout time.Duration
	streamBuffer   int
}

// NewGeminiClient builds the adapter. A missing API key is a ConfigError.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, gen config.GenerationConfig, stream config.StreamConfig, tracker *ratelimit.Tracker) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Provider: ProviderGemini, Reason: "api_key is required"}
	}
	if len(cfg.Models) == 0 {
		return nil, &ConfigError{Provider: ProviderGemini, Reason: "at least one model is required"}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:         client,
		models:         cfg.Models,
		tracker:        tracker,
		attemptTimeout: gen.AttemptTimeout,
		streamBuffer:   bufferSize(stream.BufferSize),
	}, nil
}

// Name returns the provider identifier.
func (c *GeminiClient) Name() string {
	return ProviderGemini
}

// Models returns the model list in fallback precedence order.
func (c *GeminiClient) Models() []string {
	return c.models
}

// Generate walks the model list, first success wins.
func (c *GeminiClient) Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error) {
	candidates, err := candidateModels(ProviderGemini, c.models, req, c.tracker)
	if err != nil {
		return nil, err
	}
	return generateWithFallback(ctx, ProviderGemini, candidates, c.tracker, func(ctx context.Context, model string) (*models.GenerationResult, error) {
		return c.generateOnce(ctx, model, req)
	})
}

// GenerateStream walks the model list until one stream is established:
// the first streamed response must arrive before a model counts as chosen.
func (c *GeminiClient) GenerateStream(ctx context.Context, req *models.GenerationRequest) (<-chan Fragment, string, error) {
	candidates, err := candidateModels(ProviderGemini, c.models, req, c.tracker)
	if err != nil {
		return nil, "", err
	}

	contents, genCfg, err := c.buildCall(req)
	if err != nil {
		return nil, "", err
	}

	fragments, model, err := streamWithFallback(ctx, ProviderGemini, candidates, c.tracker, func(ctx context.Context, model string) (<-chan Fragment, error) {
		return c.streamOnce(ctx, model, contents, genCfg)
	})
	if err != nil {
		return nil, "", err
	}
	c.tracker.RecordSuccess(model)
	return fragments, model, nil
}

func (c *GeminiClient) generateOnce(ctx context.Context, model string, req *models.GenerationRequest) (*models.GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	contents, genCfg, err := c.buildCall(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return nil, classifyGeminiError(model, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyCompletion
	}

	var answer, thinking strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought {
			thinking.WriteString(part.Text)
		} else {
			answer.WriteString(part.Text)
		}
	}
	if answer.Len() == 0 {
		return nil, ErrEmptyCompletion
	}

	result := &models.GenerationResult{
		Answer:    answer.String(),
		ModelUsed: model,
	}
	if req.IncludeThinking {
		result.Thinking = thinking.String()
	}
	if resp.UsageMetadata != nil {
		result.Usage = &models.UsageStats{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return result, nil
}

// streamOnce pulls the first streamed response synchronously so that model
// fallback stays possible until text has actually started flowing.
func (c *GeminiClient) streamOnce(ctx context.Context, model string, contents []*genai.Content, genCfg *genai.GenerateContentConfig) (<-chan Fragment, error) {
	next, stop := iter.Pull2(c.client.Models.GenerateContentStream(ctx, model, contents, genCfg))

	first, err, ok := next()
	if !ok {
		stop()
		return nil, ErrEmptyCompletion
	}
	if err != nil {
		stop()
		return nil, classifyGeminiError(model, err)
	}

	ch := make(chan Fragment, c.streamBuffer)
	go func() {
		defer close(ch)
		defer stop()

		if !emitGeminiFragment(ctx, ch, first) {
			return
		}
		for {
			resp, err, ok := next()
			if !ok {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case ch <- Fragment{Err: fmt.Errorf("stream read failed: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if !emitGeminiFragment(ctx, ch, resp) {
				return
			}
		}
	}()

	return ch, nil
}

func emitGeminiFragment(ctx context.Context, ch chan<- Fragment, resp *genai.GenerateContentResponse) bool {
	text := geminiResponseText(resp)
	if text == "" {
		return true
	}
	select {
	case ch <- Fragment{Text: text}:
		return true
	case <-ctx.Done():
		return false
	}
}

func geminiResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Text == "" || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

func (c *GeminiClient) buildCall(req *models.GenerationRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	parts := []*genai.Part{{Text: req.Question}}
	if req.Image != nil {
		raw, err := base64.StdEncoding.DecodeString(req.Image.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid image payload: %w", err)
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Image.MimeType,
				Data:     raw,
			},
		})
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: parts,
	}}

	temperature := req.Temperature
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		},
		Temperature:     &temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.IncludeThinking {
		genCfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}

	return contents, genCfg, nil
}

// classifyGeminiError maps SDK errors to the provider error taxonomy.
func classifyGeminiError(model string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return &RateLimitError{Model: model}
	}
	return fmt.Errorf("model %s call failed: %w", model, err)
}
