package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin_gateway/internal/models"
	"twin_gateway/internal/ratelimit"
)

func TestGenerateWithFallbackFirstSuccessWins(t *testing.T) {
	tracker := ratelimit.New()
	attempted := []string{}

	result, err := generateWithFallback(context.Background(), "test", []string{"a", "b", "c"}, tracker,
		func(_ context.Context, model string) (*models.GenerationResult, error) {
			attempted = append(attempted, model)
			if model == "c" {
				return &models.GenerationResult{Answer: "hola", ModelUsed: model}, nil
			}
			return nil, errors.New("boom")
		})

	require.NoError(t, err)
	assert.Equal(t, "c", result.ModelUsed)
	assert.Equal(t, "hola", result.Answer)
	assert.Equal(t, []string{"a", "b", "c"}, attempted)
}

func TestGenerateWithFallbackStopsAtFirstSuccess(t *testing.T) {
	tracker := ratelimit.New()
	attempted := 0

	result, err := generateWithFallback(context.Background(), "test", []string{"a", "b"}, tracker,
		func(_ context.Context, model string) (*models.GenerationResult, error) {
			attempted++
			return &models.GenerationResult{Answer: "ok", ModelUsed: model}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "a", result.ModelUsed)
	assert.Equal(t, 1, attempted)
}

func TestGenerateWithFallbackRecordsRateLimits(t *testing.T) {
	tracker := ratelimit.New()

	_, err := generateWithFallback(context.Background(), "test", []string{"a", "b"}, tracker,
		func(_ context.Context, model string) (*models.GenerationResult, error) {
			if model == "a" {
				return nil, &RateLimitError{Model: "a", RetryAfter: 30 * time.Second}
			}
			return &models.GenerationResult{Answer: "ok", ModelUsed: model}, nil
		})
	require.NoError(t, err)

	available, limited := tracker.FilterAvailable([]string{"a", "b"})
	assert.Equal(t, []string{"b"}, available)
	require.Len(t, limited, 1)
	assert.Equal(t, "a", limited[0].Model)
}

func TestGenerateWithFallbackExhausted(t *testing.T) {
	tracker := ratelimit.New()
	cause := errors.New("upstream down")

	_, err := generateWithFallback(context.Background(), "test", []string{"a", "b"}, tracker,
		func(_ context.Context, _ string) (*models.GenerationResult, error) {
			return nil, cause
		})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "test", exhausted.Provider)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorIs(t, err, cause)
}

func TestGenerateWithFallbackHonorsContextCancellation(t *testing.T) {
	tracker := ratelimit.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := generateWithFallback(ctx, "test", []string{"a"}, tracker,
		func(_ context.Context, _ string) (*models.GenerationResult, error) {
			t.Fatal("attempt should not run after cancellation")
			return nil, nil
		})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamWithFallbackReturnsWinningModel(t *testing.T) {
	tracker := ratelimit.New()
	attempted := []string{}

	fragments, model, err := streamWithFallback(context.Background(), "test", []string{"a", "b"}, tracker,
		func(_ context.Context, model string) (<-chan Fragment, error) {
			attempted = append(attempted, model)
			if model == "a" {
				return nil, &RateLimitError{Model: "a", RetryAfter: 30 * time.Second}
			}
			ch := make(chan Fragment, 1)
			ch <- Fragment{Text: "hola"}
			close(ch)
			return ch, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "b", model)
	assert.Equal(t, []string{"a", "b"}, attempted)

	frag := <-fragments
	assert.Equal(t, "hola", frag.Text)

	// The failed attempt landed in the tracker.
	available, _ := tracker.FilterAvailable([]string{"a", "b"})
	assert.Equal(t, []string{"b"}, available)
}

func TestStreamWithFallbackExhausted(t *testing.T) {
	tracker := ratelimit.New()
	cause := errors.New("upstream down")

	_, _, err := streamWithFallback(context.Background(), "test", []string{"a", "b"}, tracker,
		func(_ context.Context, _ string) (<-chan Fragment, error) {
			return nil, cause
		})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.ErrorIs(t, err, cause)
}

func TestStreamWithFallbackHonorsContextCancellation(t *testing.T) {
	tracker := ratelimit.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := streamWithFallback(ctx, "test", []string{"a"}, tracker,
		func(_ context.Context, _ string) (<-chan Fragment, error) {
			t.Fatal("attempt should not run after cancellation")
			return nil, nil
		})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCandidateModelsImageFiltersToMultimodal(t *testing.T) {
	tracker := ratelimit.New()
	req := &models.GenerationRequest{
		Question: "what is in this photo?",
		Image:    &models.ImageAttachment{MimeType: "image/png", Data: "aGk="},
	}

	candidates, err := candidateModels("test", []string{"llama-3.1-8b-instant", "gemini-2.5-flash", "gemini-2.0-flash"}, req, tracker)
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.0-flash"}, candidates)
}

func TestCandidateModelsImageWithoutMultimodal(t *testing.T) {
	tracker := ratelimit.New()
	req := &models.GenerationRequest{
		Question: "describe this",
		Image:    &models.ImageAttachment{MimeType: "image/jpeg", Data: "aGk="},
	}

	_, err := candidateModels("test", []string{"llama-3.1-8b-instant", "mixtral-8x7b-32768"}, req, tracker)
	assert.ErrorIs(t, err, ErrNoCandidateModels)
}

func TestCandidateModelsSkipsLimited(t *testing.T) {
	tracker := ratelimit.New()
	tracker.RecordRateLimited("a", time.Minute)

	candidates, err := candidateModels("test", []string{"a", "b"}, &models.GenerationRequest{Question: "hi"}, tracker)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, candidates)
}

func TestCandidateModelsAllLimited(t *testing.T) {
	tracker := ratelimit.New()
	tracker.RecordRateLimited("a", time.Minute)
	tracker.RecordRateLimited("b", time.Minute)

	_, err := candidateModels("test", []string{"a", "b"}, &models.GenerationRequest{Question: "hi"}, tracker)
	assert.ErrorIs(t, err, ErrAllModelsLimited)
}
