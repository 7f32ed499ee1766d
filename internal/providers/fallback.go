package providers

import (
	"context"
	"errors"
	"log/slog"

	"twin_gateway/internal/models"
	"twin_gateway/internal/ratelimit"
)

// attemptFunc runs one generation attempt against a single model.
type attemptFunc func(ctx context.Context, model string) (*models.GenerationResult, error)

// candidateModels applies capability filtering and the rate-limit tracker
// to an adapter's model list. Requests carrying an image only consider
// multimodal models.
func candidateModels(provider string, all []string, req *models.GenerationRequest, tracker *ratelimit.Tracker) ([]string, error) {
	candidates := all
	if req.Image != nil {
		candidates = filterMultimodal(all)
		if len(candidates) == 0 {
			return nil, &ExhaustedError{Provider: provider, Attempts: 0, Last: ErrNoCandidateModels}
		}
	}

	available, limited := tracker.FilterAvailable(candidates)
	for _, lm := range limited {
		slog.Info("skipping rate-limited model",
			"provider", provider,
			"model", lm.Model,
			"seconds_remaining", lm.SecondsRemaining)
	}
	if len(available) == 0 {
		return nil, &ExhaustedError{Provider: provider, Attempts: 0, Last: ErrAllModelsLimited}
	}
	return available, nil
}

// generateWithFallback walks the candidate list top to bottom. The first
// model to succeed wins; rate-limit failures are recorded into the tracker
// before advancing. When every candidate fails, the last failure is
// returned wrapped in an *ExhaustedError.
func generateWithFallback(ctx context.Context, provider string, candidates []string, tracker *ratelimit.Tracker, attempt attemptFunc) (*models.GenerationResult, error) {
	var lastErr error
	attempts := 0

	for _, model := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		attempts++
		result, err := attempt(ctx, model)
		if err == nil {
			tracker.RecordSuccess(model)
			slog.Info("generation attempt succeeded", "provider", provider, "model", model)
			return result, nil
		}

		lastErr = err
		recordIfRateLimited(tracker, err)
		slog.Warn("generation attempt failed", "provider", provider, "model", model, "error", err)
	}

	return nil, &ExhaustedError{Provider: provider, Attempts: attempts, Last: lastErr}
}

// streamFunc establishes one streaming attempt against a single model.
type streamFunc func(ctx context.Context, model string) (<-chan Fragment, error)

// streamWithFallback walks the candidate list until one model establishes
// a stream, returning the fragment channel together with the winning model.
// Fallback stops at establishment: once fragments flow, failures belong to
// the stream itself.
func streamWithFallback(ctx context.Context, provider string, candidates []string, tracker *ratelimit.Tracker, establish streamFunc) (<-chan Fragment, string, error) {
	var lastErr error
	attempts := 0

	for _, model := range candidates {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}

		attempts++
		fragments, err := establish(ctx, model)
		if err == nil {
			slog.Info("stream established", "provider", provider, "model", model)
			return fragments, model, nil
		}

		lastErr = err
		recordIfRateLimited(tracker, err)
		slog.Warn("stream attempt failed", "provider", provider, "model", model, "error", err)
	}

	return nil, "", &ExhaustedError{Provider: provider, Attempts: attempts, Last: lastErr}
}

// recordIfRateLimited updates the tracker when the failure was 429-class.
func recordIfRateLimited(tracker *ratelimit.Tracker, err error) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		tracker.RecordRateLimited(rle.Model, rle.RetryAfter)
	}
}
