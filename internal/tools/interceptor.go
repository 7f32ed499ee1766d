package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"twin_gateway/internal/providers"
)

// EventKind discriminates the frames an intercepted stream produces.
type EventKind int

const (
	// EventText is a plain answer fragment to append verbatim.
	EventText EventKind = iota
	// EventToolCall announces that a tool invocation was detected.
	EventToolCall
	// EventToolResultBegin opens the tool result envelope.
	EventToolResultBegin
	// EventToolResultPayload carries the handler's textual output.
	EventToolResultPayload
	// EventToolResultEnd closes the tool result envelope.
	EventToolResultEnd
)

// Event is one frame of an intercepted stream. Err, when set, is terminal.
type Event struct {
	Kind EventKind
	Text string
	Tool string
	Err  error
}

// Invocation is a parsed tool call from a streamed fragment. Ephemeral,
// never persisted.
type Invocation struct {
	Tool string
	Args map[string]any
}

// FollowUpFunc runs the single non-streaming continuation call that feeds
// a tool result back into the model.
type FollowUpFunc func(ctx context.Context, inv Invocation, result string) (string, error)

// ToolFilter reports whether the answering model may invoke the named
// tool. A nil filter allows every registered tool.
type ToolFilter func(tool string) bool

const eventBufferSize = 32

// Interceptor scans streamed fragments for tool invocations and expands
// them into lifecycle events plus one follow-up generation.
type Interceptor struct {
	registry *Registry
}

// NewInterceptor builds an interceptor over a handler registry.
func NewInterceptor(registry *Registry) *Interceptor {
	return &Interceptor{registry: registry}
}

// Run consumes a provider fragment stream and produces the event stream.
// Fragments that are not tool calls pass through unmodified and in order.
// Tool calls are handled sequentially, in arrival order, each producing
// the marker events, the handler result, and the follow-up text before
// the next fragment is read. Invocations of tools the answering model
// does not support are forwarded as plain text instead of being handled.
func (i *Interceptor) Run(ctx context.Context, in <-chan providers.Fragment, allow ToolFilter, followUp FollowUpFunc) <-chan Event {
	out := make(chan Event, eventBufferSize)

	go func() {
		defer close(out)

		for frag := range in {
			if frag.Err != nil {
				emit(ctx, out, Event{Err: frag.Err})
				return
			}

			inv, ok := ParseInvocation(frag.Text)
			if !ok {
				if !emit(ctx, out, Event{Kind: EventText, Text: frag.Text}) {
					return
				}
				continue
			}

			if allow != nil && !allow(inv.Tool) {
				slog.Warn("tool not available for model, forwarding verbatim", "tool", inv.Tool)
				if !emit(ctx, out, Event{Kind: EventText, Text: frag.Text}) {
					return
				}
				continue
			}

			if !i.handleInvocation(ctx, out, inv, followUp) {
				return
			}
		}
	}()

	return out
}

func (i *Interceptor) handleInvocation(ctx context.Context, out chan<- Event, inv Invocation, followUp FollowUpFunc) bool {
	if !emit(ctx, out, Event{Kind: EventToolCall, Tool: inv.Tool}) {
		return false
	}

	result, err := i.registry.Lookup(inv.Tool)(ctx, inv.Args)
	if err != nil {
		// Handler failures become text so the stream survives.
		result = "tool " + inv.Tool + " failed: " + err.Error()
		slog.Warn("tool handler failed", "tool", inv.Tool, "error", err)
	}

	if !emit(ctx, out, Event{Kind: EventToolResultBegin, Tool: inv.Tool}) {
		return false
	}
	if !emit(ctx, out, Event{Kind: EventToolResultPayload, Tool: inv.Tool, Text: result}) {
		return false
	}
	if !emit(ctx, out, Event{Kind: EventToolResultEnd, Tool: inv.Tool}) {
		return false
	}

	if followUp == nil {
		return true
	}
	text, err := followUp(ctx, inv, result)
	if err != nil {
		slog.Warn("tool follow-up generation failed", "tool", inv.Tool, "error", err)
		return ctx.Err() == nil
	}
	return emit(ctx, out, Event{Kind: EventText, Text: text})
}

func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// ParseInvocation decodes a fragment as a tool call. The accepted shapes
// are a JSON object naming the tool under "tool", "name" or "tool_name",
// with an optional argument object under "args", "arguments" or
// "parameters". Anything else is plain text.
func ParseInvocation(fragment string) (Invocation, bool) {
	trimmed := strings.TrimSpace(fragment)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return Invocation{}, false
	}

	var raw struct {
		Tool       string         `json:"tool"`
		Name       string         `json:"name"`
		ToolName   string         `json:"tool_name"`
		Args       map[string]any `json:"args"`
		Arguments  map[string]any `json:"arguments"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return Invocation{}, false
	}

	name := raw.Tool
	if name == "" {
		name = raw.Name
	}
	if name == "" {
		name = raw.ToolName
	}
	if name == "" {
		return Invocation{}, false
	}

	args := raw.Args
	if args == nil {
		args = raw.Arguments
	}
	if args == nil {
		args = raw.Parameters
	}
	if args == nil {
		args = map[string]any{}
	}

	return Invocation{Tool: name, Args: args}, true
}
