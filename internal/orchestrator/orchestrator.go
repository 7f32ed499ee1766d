// Package orchestrator routes generation requests across providers and
// owns cross-provider fallback.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"twin_gateway/internal/config"
	"twin_gateway/internal/i18n"
	"twin_gateway/internal/models"
	"twin_gateway/internal/prompt"
	"twin_gateway/internal/providers"
	"twin_gateway/internal/tools"
)

// reasoningKeywords triggers the heavier reasoning route on a
// case-insensitive substring match. A coarse policy knob, tuned here
// rather than required behavior.
var reasoningKeywords = []string{
	"analyze", "compare", "calculate", "why", "explain", "evaluate", "summarize",
	"analiza", "compara", "calcula", "por qué", "explica", "evalúa", "resume",
}

// Input is one user-issued question plus its modality flags.
type Input struct {
	Question        string
	IncludeThinking bool
	Image           *models.ImageAttachment
}

// Orchestrator holds the configured provider adapters and the tool
// interceptor. Either adapter may be nil when its provider is not
// configured; at least one must be present.
type Orchestrator struct {
	primary     providers.Client
	fallback    providers.Client
	interceptor *tools.Interceptor
	gen         config.GenerationConfig
}

// New builds an orchestrator. primary is the multimodal/reasoning tier,
// fallback is the default route.
func New(primary, fallback providers.Client, registry *tools.Registry, gen config.GenerationConfig) (*Orchestrator, error) {
	if primary == nil && fallback == nil {
		return nil, &providers.ConfigError{Provider: "any", Reason: "no provider is configured"}
	}
	return &Orchestrator{
		primary:     primary,
		fallback:    fallback,
		interceptor: tools.NewInterceptor(registry),
		gen:         gen,
	}, nil
}

// Generate answers a question without streaming. The routing plan is
// walked in order; each provider internally falls back across its own
// model list before the next provider is tried.
func (o *Orchestrator) Generate(ctx context.Context, profile *models.UserProfile, in Input) (*models.GenerationResult, error) {
	req := o.buildRequest(profile, in)
	plan := o.route(req)

	var lastErr error
	for _, client := range plan {
		result, err := client.Generate(ctx, req)
		if err == nil {
			return result, nil
		}
		if isTerminal(ctx, err) {
			return nil, err
		}
		lastErr = err
		slog.Warn("provider exhausted, advancing route", "provider", client.Name(), "error", err)
	}
	return nil, fmt.Errorf("all providers exhausted: %w", lastErr)
}

// GenerateStream answers a question as an event stream. Provider fallback
// only applies before the first fragment arrives; after that the stream
// either completes or fails. Tool invocations inside the stream are
// intercepted and expanded in place, limited to the tools the winning
// model supports. The returned string is the model that answered.
func (o *Orchestrator) GenerateStream(ctx context.Context, profile *models.UserProfile, in Input) (<-chan tools.Event, string, error) {
	req := o.buildRequest(profile, in)
	plan := o.route(req)

	var lastErr error
	for _, client := range plan {
		ch, model, err := client.GenerateStream(ctx, req)
		if err == nil {
			allow := func(tool string) bool { return providers.SupportsTool(model, tool) }
			events := o.interceptor.Run(ctx, ch, allow, o.followUp(client, req))
			return events, model, nil
		}
		if isTerminal(ctx, err) {
			return nil, "", err
		}
		lastErr = err
		slog.Warn("provider exhausted, advancing route", "provider", client.Name(), "error", err)
	}
	return nil, "", fmt.Errorf("all providers exhausted: %w", lastErr)
}

// followUp issues the single non-streaming continuation after a tool
// result, against the provider that owns the live stream.
func (o *Orchestrator) followUp(client providers.Client, req *models.GenerationRequest) tools.FollowUpFunc {
	return func(ctx context.Context, inv tools.Invocation, result string) (string, error) {
		followReq := *req
		followReq.Image = nil
		followReq.Question = fmt.Sprintf("%s\n\nThe %s tool returned:\n%s\n\nContinue the answer using this result.",
			req.Question, inv.Tool, result)

		res, err := client.Generate(ctx, &followReq)
		if err != nil {
			return "", err
		}
		return res.Answer, nil
	}
}

// buildRequest assembles the immutable per-question request from the
// profile and the configured generation defaults.
func (o *Orchestrator) buildRequest(profile *models.UserProfile, in Input) *models.GenerationRequest {
	lang := i18n.Normalize(profileLanguage(profile))
	return &models.GenerationRequest{
		Question:        in.Question,
		SystemPrompt:    prompt.Build(profile, lang),
		Language:        lang,
		IncludeThinking: in.IncludeThinking,
		Temperature:     o.gen.Temperature,
		MaxOutputTokens: o.gen.MaxOutputTokens,
		Image:           in.Image,
	}
}

// route produces the ordered provider plan for a request. The default
// provider is retried at most once as a last resort and never twice.
func (o *Orchestrator) route(req *models.GenerationRequest) []providers.Client {
	selected := o.selectProvider(req)

	plan := []providers.Client{selected}
	if o.fallback != nil && o.fallback != selected {
		plan = append(plan, o.fallback)
	}
	return plan
}

func (o *Orchestrator) selectProvider(req *models.GenerationRequest) providers.Client {
	if req.Image != nil {
		if c := o.firstWhere(providers.AnyMultimodal); c != nil {
			return c
		}
	} else if hasReasoningKeyword(req.Question) {
		if c := o.firstWhere(providers.AnyReasoning); c != nil {
			return c
		}
	}
	if o.fallback != nil {
		return o.fallback
	}
	return o.primary
}

// firstWhere checks the primary tier before the default route.
func (o *Orchestrator) firstWhere(pred func([]string) bool) providers.Client {
	for _, c := range []providers.Client{o.primary, o.fallback} {
		if c != nil && pred(c.Models()) {
			return c
		}
	}
	return nil
}

func hasReasoningKeyword(question string) bool {
	lowered := strings.ToLower(question)
	for _, kw := range reasoningKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// isTerminal reports failures the routing plan must not paper over:
// caller cancellation and provider misconfiguration.
func isTerminal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var cfgErr *providers.ConfigError
	return errors.As(err, &cfgErr)
}

func profileLanguage(profile *models.UserProfile) string {
	if profile == nil {
		return ""
	}
	return profile.Language
}
