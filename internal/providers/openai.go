package providers

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

func init() {
	RegisterCreator("openai", func(opts Options) (Adapter, error) {
		return NewOpenAIAdapter(opts.BaseURL("openai", openAIDefaultBaseURL), opts.Client()), nil
	})
}

// OpenAIAdapter talks to the OpenAI chat completions API
type OpenAIAdapter struct {
	baseURL string
	client  *http.Client
}

// NewOpenAIAdapter creates an adapter for the given API base URL
func NewOpenAIAdapter(baseURL string, client *http.Client) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	if client == nil {
		client = Options{}.Client()
	}
	return &OpenAIAdapter{
		baseURL: baseURL,
		client:  client,
	}
}

// ID returns the provider id
func (a *OpenAIAdapter) ID() string {
	return "openai"
}

// Generate sends the conversation as a chat completion request
func (a *OpenAIAdapter) Generate(ctx context.Context, creds Credentials, messages []Message) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}

	cfg := openai.DefaultConfig(creds.APIKey)
	cfg.BaseURL = a.baseURL
	cfg.HTTPClient = a.client
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    creds.Model,
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return out
}
