package providers

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI talks to any OpenAI-wire-compatible endpoint (OpenAI, Azure OpenAI,
// Groq) through the go-openai client.
type OpenAI struct {
	client *openai.Client
	cfg    Config
}

var _ LLM = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI-wire provider from a config.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" && cfg.Provider != ProviderOllama {
		return nil, fmt.Errorf("providers: %s requires an API key", cfg.Provider)
	}
	var clientCfg openai.ClientConfig
	switch cfg.Provider {
	case ProviderAzureOpenAI:
		if cfg.BaseURL == "" {
			return nil, errors.New("providers: azure_openai requires a base URL")
		}
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	default:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	}
	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

// GetCompletion implements LLM.
func (p *OpenAI) GetCompletion(ctx context.Context, req Request) (Message, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, false))
	if err != nil {
		return Message{}, fmt.Errorf("providers: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Message{}, errors.New("providers: completion returned no choices")
	}
	choice := resp.Choices[0].Message
	msg := Message{Role: RoleAssistant, Content: choice.Content}
	if choice.FunctionCall != nil {
		msg.FunctionCall = &FunctionCall{
			Name:      choice.FunctionCall.Name,
			Arguments: choice.FunctionCall.Arguments,
		}
	}
	return msg, nil
}

// GetCompletionStream implements LLM.
func (p *OpenAI) GetCompletionStream(ctx context.Context, req Request) (<-chan string, func() error, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req, true))
	if err != nil {
		return nil, nil, fmt.Errorf("providers: stream failed to start: %w", err)
	}

	chunks := make(chan string)
	var streamErr error
	go func() {
		defer close(chunks)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				streamErr = fmt.Errorf("providers: stream read failed: %w", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				select {
				case chunks <- delta:
				case <-ctx.Done():
					streamErr = ctx.Err()
					return
				}
			}
		}
		select {
		case chunks <- EndOfStream:
		case <-ctx.Done():
			streamErr = ctx.Err()
		}
	}()
	return chunks, func() error { return streamErr }, nil
}

func (p *OpenAI) buildRequest(req Request, stream bool) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:  p.cfg.Model,
		Stream: stream,
	}
	if req.Model != "" {
		out.Model = req.Model
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	} else if p.cfg.Temperature != nil {
		out.Temperature = float32(*p.cfg.Temperature)
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	} else if p.cfg.MaxTokens != nil {
		out.MaxTokens = *p.cfg.MaxTokens
	}

	for i, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		if m.FunctionCall != nil {
			msg.FunctionCall = &openai.FunctionCall{
				Name:      m.FunctionCall.Name,
				Arguments: m.FunctionCall.Arguments,
			}
		}
		// Images attach to the last user message as multipart content.
		if i == lastUserIndex(req.Messages) && len(req.ImageReferences) > 0 {
			parts := []openai.ChatMessagePart{{
				Type: openai.ChatMessagePartTypeText,
				Text: m.Content,
			}}
			for _, img := range req.ImageReferences {
				url := img.URL
				if url == "" {
					url = fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Base64)
				}
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: url},
				})
			}
			msg.Content = ""
			msg.MultiContent = parts
		}
		out.Messages = append(out.Messages, msg)
	}

	for _, fn := range req.Functions {
		out.Functions = append(out.Functions, openai.FunctionDefinition{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  fn.Parameters,
		})
	}
	if req.FunctionCall != "" {
		out.FunctionCall = map[string]string{"name": req.FunctionCall}
	}
	return out
}

func lastUserIndex(messages []Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}
