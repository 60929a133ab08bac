package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Langchain adapts any langchaingo model to the LLM interface. It backs the
// ollama and anthropic provider names and lets hosts plug in any other
// langchaingo-supported backend via NewLangchainModel.
type Langchain struct {
	model llms.Model
	cfg   Config
}

var _ LLM = (*Langchain)(nil)

// NewLangchain constructs the langchaingo model named by the config.
func NewLangchain(cfg Config) (*Langchain, error) {
	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)
	case ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, anthropic.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		model, err = anthropic.New(opts...)
	default:
		return nil, fmt.Errorf("providers: no langchaingo backend for %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("providers: %s init failed: %w", cfg.Provider, err)
	}
	return &Langchain{model: model, cfg: cfg}, nil
}

// NewLangchainModel wraps an already-constructed langchaingo model.
func NewLangchainModel(model llms.Model, cfg Config) *Langchain {
	return &Langchain{model: model, cfg: cfg}
}

// GetCompletion implements LLM.
func (p *Langchain) GetCompletion(ctx context.Context, req Request) (Message, error) {
	resp, err := p.model.GenerateContent(ctx, p.buildContent(req), p.buildOptions(req)...)
	if err != nil {
		return Message{}, fmt.Errorf("providers: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Message{}, errors.New("providers: completion returned no choices")
	}
	choice := resp.Choices[0]
	msg := Message{Role: RoleAssistant, Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall != nil {
			msg.FunctionCall = &FunctionCall{
				Name:      tc.FunctionCall.Name,
				Arguments: tc.FunctionCall.Arguments,
			}
			break
		}
	}
	return msg, nil
}

// GetCompletionStream implements LLM.
func (p *Langchain) GetCompletionStream(ctx context.Context, req Request) (<-chan string, func() error, error) {
	chunks := make(chan string)
	var streamErr error

	opts := p.buildOptions(req)
	opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		select {
		case chunks <- string(chunk):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	go func() {
		defer close(chunks)
		if _, err := p.model.GenerateContent(ctx, p.buildContent(req), opts...); err != nil {
			streamErr = fmt.Errorf("providers: stream failed: %w", err)
			return
		}
		select {
		case chunks <- EndOfStream:
		case <-ctx.Done():
			streamErr = ctx.Err()
		}
	}()
	return chunks, func() error { return streamErr }, nil
}

func (p *Langchain) buildContent(req Request) []llms.MessageContent {
	lastUser := lastUserIndex(req.Messages)
	out := make([]llms.MessageContent, 0, len(req.Messages))
	for i, m := range req.Messages {
		var role llms.ChatMessageType
		switch m.Role {
		case RoleSystem:
			role = llms.ChatMessageTypeSystem
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		parts := []llms.ContentPart{llms.TextPart(m.Content)}
		if i == lastUser {
			for _, img := range req.ImageReferences {
				if img.URL != "" {
					parts = append(parts, llms.ImageURLPart(img.URL))
				} else {
					parts = append(parts, llms.ImageURLPart(
						fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Base64)))
				}
			}
		}
		out = append(out, llms.MessageContent{Role: role, Parts: parts})
	}
	return out
}

func (p *Langchain) buildOptions(req Request) []llms.CallOption {
	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	} else if p.cfg.Model != "" {
		opts = append(opts, llms.WithModel(p.cfg.Model))
	}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	} else if p.cfg.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*p.cfg.Temperature))
	}
	if req.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*req.MaxTokens))
	} else if p.cfg.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*p.cfg.MaxTokens))
	}
	if len(req.Functions) > 0 {
		tools := make([]llms.Tool, 0, len(req.Functions))
		for _, fn := range req.Functions {
			tools = append(tools, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        fn.Name,
					Description: fn.Description,
					Parameters:  fn.Parameters,
				},
			})
		}
		opts = append(opts, llms.WithTools(tools))
		if req.FunctionCall != "" {
			opts = append(opts, llms.WithToolChoice(llms.ToolChoice{
				Type:     "function",
				Function: &llms.FunctionReference{Name: req.FunctionCall},
			}))
		}
	}
	return opts
}
