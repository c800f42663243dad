package llm

import "strings"

// Message roles understood by every adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string
	Content string
}

// ToolCall represents a function invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned identifier for this call.
	ID string

	// Name is the function name.
	Name string

	// Arguments is the JSON-encoded arguments string, exactly as produced by
	// the model. It is not guaranteed to be valid JSON.
	Arguments string
}

// ToolDefinition describes a function that can be offered to the model.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is the JSON Schema describing the function's input.
	Parameters map[string]any
}

// ModelCapabilities describes what a model supports.
type ModelCapabilities struct {
	SupportsToolCalling bool
}

// noToolModels lists model families that reject function definitions.
var noToolModels = []string{"o1-mini", "o1-preview", "deepseek-reasoner", "gemma"}

// CapabilitiesFor derives the capabilities of a model from its name. Models
// that are not known to lack tool calling are assumed to support it.
func CapabilitiesFor(model string) ModelCapabilities {
	lower := strings.ToLower(model)
	for _, family := range noToolModels {
		if strings.Contains(lower, family) {
			return ModelCapabilities{}
		}
	}
	return ModelCapabilities{SupportsToolCalling: true}
}
