package providers

import (
	"context"

	"twin_gateway/internal/models"
)

// Fragment is one piece of a streaming answer. A fragment with Err set is
// terminal: the channel is closed right after it and no further text
// follows. A cleanly finished stream just closes the channel.
type Fragment struct {
	Text string
	Err  error
}

// Client is implemented by each concrete provider adapter (Gemini,
// OpenAI-compatible). Adapters walk their ordered model list internally:
// the first model to succeed wins, and rate-limit failures are recorded
// into the shared tracker before moving on.
type Client interface {
	// Name returns the provider identifier used in logs and routing.
	Name() string

	// Models returns the adapter's model list in fallback precedence order.
	Models() []string

	// Generate runs one non-streaming generation with internal model
	// fallback. When every candidate fails it returns an *ExhaustedError
	// wrapping the last failure.
	Generate(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResult, error)

	// GenerateStream runs a streaming generation. Model fallback happens
	// only while establishing the stream: once a model has begun producing
	// fragments, a mid-stream failure is terminal for the call. The second
	// return value is the model that won the stream, for recording which
	// model actually answered. The returned channel is closed when the
	// stream ends; cancel ctx to stop reading from the upstream provider.
	GenerateStream(ctx context.Context, req *models.GenerationRequest) (<-chan Fragment, string, error)
}

// defaultStreamBuffer bounds the fragment channel between the producer
// goroutine and the relay when no buffer size is configured.
const defaultStreamBuffer = 32

// bufferSize clamps a configured stream buffer to a sane value.
func bufferSize(configured int) int {
	if configured <= 0 {
		return defaultStreamBuffer
	}
	return configured
}
