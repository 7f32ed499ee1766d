package providers

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyCompletion is returned when a model answers with no usable text.
// It is treated like any other per-model failure by the fallback walk.
var ErrEmptyCompletion = errors.New("provider returned an empty completion")

// ErrAllModelsLimited is the terminal cause when every candidate model was
// inside a rate-limit backoff window before any call was made.
var ErrAllModelsLimited = errors.New("all candidate models are rate-limited")

// ErrNoCandidateModels is the terminal cause when the request needs a
// capability (for example image input) that none of the adapter's models
// provide.
var ErrNoCandidateModels = errors.New("no candidate models for this request")

// RateLimitError signals a 429-class response from a provider. RetryAfter
// is zero when the provider gave no advisory value.
type RateLimitError struct {
	Model      string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("model %s rate-limited, retry after %s", e.Model, e.RetryAfter)
	}
	return fmt.Sprintf("model %s rate-limited", e.Model)
}

// ConfigError marks missing or unusable provider configuration. It is fatal
// for the request: the orchestrator never falls back from it silently, so
// operators see misconfiguration immediately.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %s is not configured: %s", e.Provider, e.Reason)
}

// ExhaustedError aggregates a full walk of a provider's model list. Last
// holds the final failure for diagnostics.
type ExhaustedError struct {
	Provider string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("provider %s exhausted after %d attempt(s): %v", e.Provider, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
