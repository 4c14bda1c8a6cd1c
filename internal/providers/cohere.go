package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const cohereDefaultBaseURL = "https://api.cohere.ai"

func init() {
	RegisterCreator("cohere", func(opts Options) (Adapter, error) {
		return NewCohereAdapter(opts.BaseURL("cohere", cohereDefaultBaseURL), opts.Client()), nil
	})
}

// CohereAdapter talks to the Cohere v1 chat API
type CohereAdapter struct {
	baseURL string
	client  *http.Client
}

// NewCohereAdapter creates an adapter for the given API base URL
func NewCohereAdapter(baseURL string, client *http.Client) *CohereAdapter {
	if baseURL == "" {
		baseURL = cohereDefaultBaseURL
	}
	if client == nil {
		client = Options{}.Client()
	}
	return &CohereAdapter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

type cohereChatTurn struct {
	Role    string `json:"role"` // USER or CHATBOT
	Message string `json:"message"`
}

type cohereChatRequest struct {
	Model       string           `json:"model"`
	Message     string           `json:"message"`
	ChatHistory []cohereChatTurn `json:"chat_history,omitempty"`
	Preamble    string           `json:"preamble,omitempty"`
}

type cohereChatResponse struct {
	Text    string `json:"text"`
	Message string `json:"message"` // set on errors
}

// ID returns the provider id
func (a *CohereAdapter) ID() string {
	return "cohere"
}

// Generate sends the conversation to the chat endpoint
func (a *CohereAdapter) Generate(ctx context.Context, creds Credentials, messages []Message) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}

	payload, err := toCohereRequest(creds.Model, messages)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	authCtx, err := NewSimpleAPIKeyAuth(creds.APIKey, "", "").Authenticate(ctx)
	if err != nil {
		return "", fmt.Errorf("authentication failed: %w", err)
	}
	if err := authCtx.ApplyToRequest(ctx, httpReq); err != nil {
		return "", fmt.Errorf("failed to apply authentication: %w", err)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("cohere request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed cohereChatResponse
	decodeErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(respBody))
		if decodeErr == nil && parsed.Message != "" {
			detail = parsed.Message
		}
		return "", fmt.Errorf("cohere returned status %d: %s", resp.StatusCode, detail)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	if parsed.Text == "" {
		return "", ErrEmptyReply
	}
	return parsed.Text, nil
}

// toCohereRequest folds system messages into the preamble, sends the last
// user message as the prompt and everything before it as chat history.
func toCohereRequest(model string, messages []Message) (*cohereChatRequest, error) {
	var preamble []string
	var turns []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			preamble = append(preamble, m.Content)
			continue
		}
		turns = append(turns, m)
	}

	last := -1
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			last = i
			break
		}
	}
	if last < 0 {
		return nil, errors.New("cohere chat requires a user message")
	}

	history := make([]cohereChatTurn, 0, last)
	for _, m := range turns[:last] {
		role := "USER"
		if m.Role == RoleAssistant {
			role = "CHATBOT"
		}
		history = append(history, cohereChatTurn{Role: role, Message: m.Content})
	}

	return &cohereChatRequest{
		Model:       model,
		Message:     turns[last].Content,
		ChatHistory: history,
		Preamble:    strings.Join(preamble, "\n\n"),
	}, nil
}
