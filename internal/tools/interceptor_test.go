package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin_gateway/internal/providers"
)

func feedFragments(texts ...string) <-chan providers.Fragment {
	ch := make(chan providers.Fragment, len(texts))
	for _, t := range texts {
		ch <- providers.Fragment{Text: t}
	}
	close(ch)
	return ch
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestParseInvocation(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		wantOK   bool
		wantTool string
	}{
		{"canonical", `{"tool": "web_search", "args": {"query": "x"}}`, true, "web_search"},
		{"name alias", `{"name": "calculator", "arguments": {"expression": "1+1"}}`, true, "calculator"},
		{"tool_name alias", `{"tool_name": "maps_lookup", "parameters": {"place": "Lima"}}`, true, "maps_lookup"},
		{"no args", `{"tool": "web_search"}`, true, "web_search"},
		{"surrounding whitespace", "  {\"tool\": \"web_search\"}\n", true, "web_search"},
		{"plain text", "the answer is 42", false, ""},
		{"object without tool name", `{"query": "x"}`, false, ""},
		{"malformed json", `{"tool": }`, false, ""},
		{"json array", `["tool", "web_search"]`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ok := ParseInvocation(tt.fragment)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantTool, inv.Tool)
				assert.NotNil(t, inv.Args)
			}
		})
	}
}

func TestRunPassesPlainTextThroughInOrder(t *testing.T) {
	interceptor := NewInterceptor(NewRegistry())

	events := collect(t, interceptor.Run(context.Background(), feedFragments("a", "b", "c"), nil, nil))

	require.Len(t, events, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, EventText, events[i].Kind)
		assert.Equal(t, want, events[i].Text)
	}
}

func TestRunToolCallRoundTrip(t *testing.T) {
	registry := NewRegistry()
	registry.Register("web_search", func(_ context.Context, args map[string]any) (string, error) {
		assert.Equal(t, "x", args["query"])
		return "search output", nil
	})
	interceptor := NewInterceptor(registry)

	followUp := func(_ context.Context, inv Invocation, result string) (string, error) {
		assert.Equal(t, "web_search", inv.Tool)
		assert.Equal(t, "search output", result)
		return "follow-up answer", nil
	}

	in := feedFragments(
		"before ",
		`{"tool": "web_search", "args": {"query": "x"}}`,
		" after",
	)
	events := collect(t, interceptor.Run(context.Background(), in, nil, followUp))

	require.Len(t, events, 7)
	assert.Equal(t, Event{Kind: EventText, Text: "before "}, events[0])
	assert.Equal(t, Event{Kind: EventToolCall, Tool: "web_search"}, events[1])
	assert.Equal(t, Event{Kind: EventToolResultBegin, Tool: "web_search"}, events[2])
	assert.Equal(t, Event{Kind: EventToolResultPayload, Tool: "web_search", Text: "search output"}, events[3])
	assert.Equal(t, Event{Kind: EventToolResultEnd, Tool: "web_search"}, events[4])
	assert.Equal(t, Event{Kind: EventText, Text: "follow-up answer"}, events[5])
	assert.Equal(t, Event{Kind: EventText, Text: " after"}, events[6])
}

func TestRunHandlerFailureBecomesText(t *testing.T) {
	registry := NewRegistry()
	registry.Register("web_search", func(_ context.Context, _ map[string]any) (string, error) {
		return "", errors.New("backend down")
	})
	interceptor := NewInterceptor(registry)

	in := feedFragments(`{"tool": "web_search", "args": {"query": "x"}}`)
	events := collect(t, interceptor.Run(context.Background(), in, nil, nil))

	require.Len(t, events, 4)
	assert.Equal(t, EventToolResultPayload, events[2].Kind)
	assert.Contains(t, events[2].Text, "backend down")
}

func TestRunUnknownToolGetsEchoHandler(t *testing.T) {
	interceptor := NewInterceptor(NewRegistry())

	in := feedFragments(`{"tool": "quantum_forecast", "args": {"horizon": "1d"}}`)
	events := collect(t, interceptor.Run(context.Background(), in, nil, nil))

	require.Len(t, events, 4)
	assert.Equal(t, EventToolCall, events[0].Kind)
	assert.Equal(t, "quantum_forecast", events[0].Tool)
	assert.Contains(t, events[2].Text, "quantum_forecast")
}

func TestRunMultipleToolCallsSequential(t *testing.T) {
	registry := NewRegistry()
	calls := []string{}
	registry.Register("calculator", func(_ context.Context, args map[string]any) (string, error) {
		expr := args["expression"].(string)
		calls = append(calls, expr)
		return expr, nil
	})
	interceptor := NewInterceptor(registry)

	in := feedFragments(
		`{"tool": "calculator", "args": {"expression": "1+1"}}`,
		`{"tool": "calculator", "args": {"expression": "2+2"}}`,
	)
	collect(t, interceptor.Run(context.Background(), in, nil, nil))

	assert.Equal(t, []string{"1+1", "2+2"}, calls)
}

func TestRunUnsupportedToolForwardedVerbatim(t *testing.T) {
	registry := NewRegistry()
	handled := false
	registry.Register("maps_lookup", func(_ context.Context, _ map[string]any) (string, error) {
		handled = true
		return "somewhere", nil
	})
	interceptor := NewInterceptor(registry)

	allow := func(tool string) bool { return tool == "web_search" }

	invocation := `{"tool": "maps_lookup", "args": {"place": "Lima"}}`
	in := feedFragments("before ", invocation, " after")
	events := collect(t, interceptor.Run(context.Background(), in, allow, nil))

	// The disallowed invocation comes through as plain text, untouched.
	require.Len(t, events, 3)
	assert.Equal(t, Event{Kind: EventText, Text: "before "}, events[0])
	assert.Equal(t, Event{Kind: EventText, Text: invocation}, events[1])
	assert.Equal(t, Event{Kind: EventText, Text: " after"}, events[2])
	assert.False(t, handled)
}

func TestRunAllowedToolStillHandled(t *testing.T) {
	registry := NewRegistry()
	registry.Register("web_search", func(_ context.Context, _ map[string]any) (string, error) {
		return "results", nil
	})
	interceptor := NewInterceptor(registry)

	allow := func(tool string) bool { return tool == "web_search" }

	in := feedFragments(`{"tool": "web_search", "args": {"query": "x"}}`)
	events := collect(t, interceptor.Run(context.Background(), in, allow, nil))

	require.Len(t, events, 4)
	assert.Equal(t, EventToolCall, events[0].Kind)
	assert.Equal(t, "results", events[2].Text)
}

func TestRunFollowUpFailureKeepsStreamAlive(t *testing.T) {
	interceptor := NewInterceptor(NewRegistry())

	followUp := func(_ context.Context, _ Invocation, _ string) (string, error) {
		return "", errors.New("all models down")
	}

	in := feedFragments(`{"tool": "web_search", "args": {"query": "x"}}`, "tail")
	events := collect(t, interceptor.Run(context.Background(), in, nil, followUp))

	require.Len(t, events, 5)
	assert.Equal(t, Event{Kind: EventText, Text: "tail"}, events[4])
}

func TestRunForwardsTerminalError(t *testing.T) {
	interceptor := NewInterceptor(NewRegistry())

	in := make(chan providers.Fragment, 2)
	in <- providers.Fragment{Text: "partial"}
	in <- providers.Fragment{Err: errors.New("connection reset")}
	close(in)

	events := collect(t, interceptor.Run(context.Background(), in, nil, nil))

	require.Len(t, events, 2)
	assert.Equal(t, "partial", events[0].Text)
	require.Error(t, events[1].Err)
}
