package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModelCapabilities(t *testing.T) {
	caps := ModelCapabilities("gemini-2.5-pro")
	assert.True(t, caps.Multimodal)
	assert.True(t, caps.Reasoning)
	assert.Len(t, caps.Tools, 3)

	// Unknown models get the zero value.
	unknown := ModelCapabilities("made-up-model")
	assert.False(t, unknown.Multimodal)
	assert.False(t, unknown.Reasoning)
	assert.Empty(t, unknown.Tools)
}

func TestSupportsTool(t *testing.T) {
	assert.True(t, SupportsTool("gemini-2.5-pro", ToolMapsLookup))
	assert.True(t, SupportsTool("gemini-2.5-flash", ToolWebSearch))
	assert.False(t, SupportsTool("gemini-2.5-flash", ToolMapsLookup))
	assert.False(t, SupportsTool("llama-3.1-8b-instant", ToolCalculator))
	assert.False(t, SupportsTool("made-up-model", ToolWebSearch))
}

func TestAnyMultimodalAndReasoning(t *testing.T) {
	assert.True(t, AnyMultimodal([]string{"llama-3.1-8b-instant", "gemini-2.0-flash"}))
	assert.False(t, AnyMultimodal([]string{"llama-3.1-8b-instant", "mixtral-8x7b-32768"}))

	assert.True(t, AnyReasoning([]string{"llama-3.3-70b-versatile"}))
	assert.False(t, AnyReasoning([]string{"gemini-2.0-flash", "mixtral-8x7b-32768"}))
}

func TestBufferSizeFallsBackToDefault(t *testing.T) {
	assert.Equal(t, defaultStreamBuffer, bufferSize(0))
	assert.Equal(t, defaultStreamBuffer, bufferSize(-1))
	assert.Equal(t, 8, bufferSize(8))
}
