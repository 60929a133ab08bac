package providers

import (
	"context"
	"errors"
	"fmt"
)

// EndOfStream is the sentinel chunk a streaming completion emits after the
// final content chunk. Consumers use it to close the assistant turn before
// any following user turn.
const EndOfStream = "END OF STREAM"

// ErrNoProvider is returned when a request needs an LLM but none is
// configured.
var ErrNoProvider = errors.New("providers: no LLM configured")

// LLM is the completion interface the engine consumes. Implementations must
// be safe for concurrent use; independent graph branches call in parallel.
type LLM interface {
	// GetCompletion performs a one-shot completion and returns the assistant
	// message, which carries a FunctionCall when a tool was invoked.
	GetCompletion(ctx context.Context, req Request) (Message, error)

	// GetCompletionStream starts a streaming completion. The returned channel
	// yields content chunks, then EndOfStream, then closes. A nil error from
	// errFn (checked after the channel closes) means the stream finished
	// cleanly.
	GetCompletionStream(ctx context.Context, req Request) (<-chan string, func() error, error)
}

// ProviderName identifies a configured provider backend.
type ProviderName string

const (
	ProviderOpenAI      ProviderName = "openai"
	ProviderAzureOpenAI ProviderName = "azure_openai"
	ProviderOllama      ProviderName = "ollama"
	ProviderAnthropic   ProviderName = "anthropic"
	ProviderGroq        ProviderName = "groq"
	ProviderGemini      ProviderName = "gemini"
)

// Config configures one named provider. The first config in a run's list is
// the default; nodes select others via config edges.
type Config struct {
	Provider    ProviderName `json:"provider"`
	Model       string       `json:"model"`
	APIKey      string       `json:"apiKey,omitempty"`
	BaseURL     string       `json:"baseURL,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	MaxTokens   *int         `json:"maxTokens,omitempty"`
}

// New builds an LLM from a config. OpenAI-wire providers (openai,
// azure_openai, groq) use the go-openai client; the rest go through the
// langchaingo adapter.
func New(cfg Config) (LLM, error) {
	switch cfg.Provider {
	case ProviderOpenAI, ProviderAzureOpenAI, ProviderGroq, ProviderGemini:
		// Gemini is reached through its OpenAI-compatible endpoint; set
		// BaseURL accordingly.
		return NewOpenAI(cfg)
	case ProviderOllama, ProviderAnthropic:
		return NewLangchain(cfg)
	default:
		return nil, fmt.Errorf("providers: unknown provider %q", cfg.Provider)
	}
}

// Select returns the LLM for the first config, or an error when the list is
// empty. Runs that only ever hit the mock pass their mock directly instead.
func Select(cfgs []Config) (LLM, error) {
	if len(cfgs) == 0 {
		return nil, ErrNoProvider
	}
	return New(cfgs[0])
}
