package providers

// Tool names a model may invoke mid-generation.
const (
	ToolWebSearch  = "web_search"
	ToolMapsLookup = "maps_lookup"
	ToolCalculator = "calculator"
)

// Capabilities is declarative per-model metadata. Routing and tool
// availability decisions consult this table instead of matching on model
// name strings.
type Capabilities struct {
	Multimodal bool
	Reasoning  bool
	Tools      []string
}

var catalog = map[string]Capabilities{
	// Gemini family.
	"gemini-2.5-pro": {
		Multimodal: true,
		Reasoning:  true,
		Tools:      []string{ToolWebSearch, ToolMapsLookup, ToolCalculator},
	},
	"gemini-2.5-flash": {
		Multimodal: true,
		Reasoning:  true,
		Tools:      []string{ToolWebSearch, ToolCalculator},
	},
	"gemini-2.0-flash": {
		Multimodal: true,
		Tools:      []string{ToolWebSearch},
	},

	// OpenAI-compatible catalog.
	"llama-3.3-70b-versatile": {
		Reasoning: true,
		Tools:     []string{ToolWebSearch, ToolCalculator},
	},
	"llama-3.1-8b-instant": {},
	"mixtral-8x7b-32768": {
		Tools: []string{ToolCalculator},
	},
}

// ModelCapabilities returns the capability entry for a model. Unknown
// models get the zero value: no image input, no reasoning tier, no tools.
func ModelCapabilities(model string) Capabilities {
	return catalog[model]
}

// SupportsTool reports whether a model may invoke the named tool.
func SupportsTool(model, tool string) bool {
	for _, t := range ModelCapabilities(model).Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// AnyMultimodal reports whether at least one of the models accepts image
// input. The orchestrator uses it to pick the route for image requests.
func AnyMultimodal(models []string) bool {
	for _, m := range models {
		if catalog[m].Multimodal {
			return true
		}
	}
	return false
}

// AnyReasoning reports whether at least one of the models is in the
// heavier reasoning tier.
func AnyReasoning(models []string) bool {
	for _, m := range models {
		if catalog[m].Reasoning {
			return true
		}
	}
	return false
}

// filterMultimodal keeps only the models that accept image input,
// preserving order.
func filterMultimodal(models []string) []string {
	var out []string
	for _, m := range models {
		if catalog[m].Multimodal {
			out = append(out, m)
		}
	}
	return out
}
