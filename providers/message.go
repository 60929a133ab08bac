// Package providers defines the chat message model and the narrow LLM
// interface the engine calls through, together with concrete providers:
// an OpenAI-compatible client, an adapter for langchaingo models, and a
// scriptable mock for tests and dry runs.
package providers

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FunctionCall is a tool invocation returned by a model.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is a single chat message.
type Message struct {
	Role         Role          `json:"role"`
	Content      string        `json:"content"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// ImageReference points at an image to attach to the newest user message.
// Either URL or Base64+MimeType is set.
type ImageReference struct {
	URL      string `json:"url,omitempty"`
	Base64   string `json:"base64,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Function describes a tool the model may call. Parameters is a JSON Schema
// object.
type Function struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is a completion request. Zero-valued tuning fields fall back to the
// provider config.
type Request struct {
	Messages        []Message
	ImageReferences []ImageReference
	Functions       []Function
	// FunctionCall forces a specific tool by name; empty means the model
	// chooses freely.
	FunctionCall string

	Model       string
	Temperature *float64
	MaxTokens   *int
}

// SystemMessages returns the system messages of a history, deduplicated by
// content, in first-seen order.
func SystemMessages(messages []Message) []Message {
	seen := make(map[string]bool)
	var out []Message
	for _, m := range messages {
		if m.Role != RoleSystem || seen[m.Content] {
			continue
		}
		seen[m.Content] = true
		out = append(out, m)
	}
	return out
}

// NonSystemMessages returns the user and assistant messages of a history in
// order.
func NonSystemMessages(messages []Message) []Message {
	var out []Message
	for _, m := range messages {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}
