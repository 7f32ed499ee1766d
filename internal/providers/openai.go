package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"twin_gateway/internal/config"
	"twin_gateway/internal/models"
	"twin_gateway/internal/ratelimit"
)

// ProviderOpenAI is the identifier of the OpenAI-compatible adapter. It is
// the default route for plain text questions.
const ProviderOpenAI = "openai"

// OpenAIClient adapts any OpenAI-compatible chat-completions backend.
type OpenAIClient struct {
	apiKey         string
	baseURL        string
	models         []string
	tracker        *ratelimit.Tracker
	client         *http.Client
	attemptTimeout time.Duration
	streamBuffer   int
}

// NewOpenAIClient builds the adapter. A missing API key is a ConfigError:
// the caller decides whether the provider participates in routing at all.
func NewOpenAIClient(cfg config.OpenAIConfig, gen config.GenerationConfig, stream config.StreamConfig, tracker *ratelimit.Tracker) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Provider: ProviderOpenAI, Reason: "api_key is required"}
	}
	if len(cfg.Models) == 0 {
		return nil, &ConfigError{Provider: ProviderOpenAI, Reason: "at least one model is required"}
	}

	return &OpenAIClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		models:  cfg.Models,
		tracker: tracker,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		attemptTimeout: gen.AttemptTimeout,
		streamBuffer:   bufferSize(stream.BufferSize),
	}, nil
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return ProviderOpenAI
}

// Models returns the model list in fallback precedence order.
func (c *OpenAIClient) Models() []string {
	return c.models
}

// Generate walks the model list, first success wins.
func (c *OpenAIClient) Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error) {
	candidates, err := candidateModels(ProviderOpenAI, c.models, req, c.tracker)
	if err != nil {
		return nil, err
	}
	return generateWithFallback(ctx, ProviderOpenAI, candidates, c.tracker, func(ctx context.Context, model string) (*models.GenerationResult, error) {
		return c.generateOnce(ctx, model, req)
	})
}

// GenerateStream walks the model list until one stream is established.
// After that, mid-stream failures are terminal for the call.
func (c *OpenAIClient) GenerateStream(ctx context.Context, req *models.GenerationRequest) (<-chan Fragment, string, error) {
	candidates, err := candidateModels(ProviderOpenAI, c.models, req, c.tracker)
	if err != nil {
		return nil, "", err
	}

	fragments, model, err := streamWithFallback(ctx, ProviderOpenAI, candidates, c.tracker, func(ctx context.Context, model string) (<-chan Fragment, error) {
		return c.streamOnce(ctx, model, req)
	})
	if err != nil {
		return nil, "", err
	}
	c.tracker.RecordSuccess(model)
	return fragments, model, nil
}

func (c *OpenAIClient) generateOnce(ctx context.Context, model string, req *models.GenerationRequest) (*models.GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	resp, err := c.postChat(ctx, model, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := classifyStatus(resp, model, body); err != nil {
		return nil, err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed completion response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, ErrEmptyCompletion
	}

	result := &models.GenerationResult{
		Answer:    parsed.Choices[0].Message.Content,
		ModelUsed: model,
	}
	if parsed.Usage.PromptTokens > 0 || parsed.Usage.CompletionTokens > 0 {
		result.Usage = &models.UsageStats{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		}
	}
	return result, nil
}

func (c *OpenAIClient) streamOnce(ctx context.Context, model string, req *models.GenerationRequest) (<-chan Fragment, error) {
	resp, err := c.postChat(ctx, model, req, true)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus(resp, model, body)
	}

	ch := make(chan Fragment, c.streamBuffer)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		reader := newStreamReader(resp.Body)
		for {
			event, err := reader.Read()
			if err == io.EOF || event.Done {
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

			text := parseStreamDelta(event.Data)
			if text == "" {
				continue
			}
			select {
			case ch <- Fragment{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (c *OpenAIClient) postChat(ctx context.Context, model string, req *models.GenerationRequest, stream bool) (*http.Response, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "system", "content": req.SystemPrompt},
			{"role": "user", "content": req.Question},
		},
		"temperature": req.Temperature,
		"max_tokens":  req.MaxOutputTokens,
		"stream":      stream,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// classifyStatus maps a non-200 status to the right error type. A 429
// carries the Retry-After advisory when present.
func classifyStatus(resp *http.Response, model string, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Model: model, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		return fmt.Errorf("model API returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func parseStreamDelta(data []byte) string {
	var chunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &chunk); err != nil {
		return ""
	}
	if len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// streamEvent is a single SSE event from a chat-completions stream.
type streamEvent struct {
	Data []byte
	Done bool
}

// streamReader scans "data: " framed SSE lines and surfaces the [DONE]
// sentinel as a Done event.
type streamReader struct {
	scanner *bufio.Scanner
}

func newStreamReader(r io.Reader) *streamReader {
	return &streamReader{scanner: bufio.NewScanner(r)}
}

func (s *streamReader) Read() (streamEvent, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()

		if len(line) == 0 || !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}

		data := bytes.TrimPrefix(line, []byte("data: "))
		if bytes.Equal(data, []byte("[DONE]")) {
			return streamEvent{Done: true}, nil
		}
		return streamEvent{Data: data}, nil
	}

	if err := s.scanner.Err(); err != nil {
		return streamEvent{}, err
	}
	return streamEvent{}, io.EOF
}
