// Package tools implements the handler registry and the streaming
// interceptor that lets a model invoke external capabilities
// mid-generation.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler executes one tool invocation and returns its textual result.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Registry maps tool names to handlers. Lookups for unknown names return
// an echo handler instead of failing, so newer model catalogs that invoke
// tools this build does not know about degrade gracefully.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns a registry preloaded with the built-in handlers.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register(ToolWebSearch, webSearchHandler)
	r.Register(ToolMapsLookup, mapsLookupHandler)
	r.Register(ToolCalculator, calculatorHandler)
	return r
}

// Register installs or replaces the handler for a tool name.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup returns the handler for a name. Unknown names get echoHandler.
func (r *Registry) Lookup(name string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[name]; ok {
		return h
	}
	return echoHandler(name)
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// echoHandler reflects an unknown invocation back as text so the stream
// keeps flowing.
func echoHandler(name string) Handler {
	return func(_ context.Context, args map[string]any) (string, error) {
		return fmt.Sprintf("tool %q is not available in this deployment (arguments: %v)", name, args), nil
	}
}
