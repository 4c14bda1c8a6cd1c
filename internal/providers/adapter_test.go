package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConversation = []Message{
	{Role: RoleSystem, Content: "You are a helpful assistant."},
	{Role: RoleUser, Content: "Hi"},
	{Role: RoleAssistant, Content: "Hello! How can I help?"},
	{Role: RoleUser, Content: "What is Go?"},
}

func TestOpenAIAdapter_Generate(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Go is a programming language."}, "finish_reason": "stop"}]
		}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(server.URL, server.Client())
	reply, err := adapter.Generate(context.Background(), Credentials{APIKey: "sk-test", Model: "gpt-4"}, testConversation)
	require.NoError(t, err)

	assert.Equal(t, "Go is a programming language.", reply)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4", gotBody["model"])

	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 4)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	third := msgs[2].(map[string]any)
	assert.Equal(t, "assistant", third["role"])
	assert.Equal(t, "Hello! How can I help?", third["content"])
}

func TestOpenAIAdapter_EmptyAndErrors(t *testing.T) {
	t.Run("no choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id": "x", "choices": []}`))
		}))
		defer server.Close()

		_, err := NewOpenAIAdapter(server.URL, server.Client()).
			Generate(context.Background(), Credentials{APIKey: "sk", Model: "gpt-4"}, testConversation)
		assert.ErrorIs(t, err, ErrEmptyReply)
	})

	t.Run("upstream error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
		}))
		defer server.Close()

		_, err := NewOpenAIAdapter(server.URL, server.Client()).
			Generate(context.Background(), Credentials{APIKey: "bad", Model: "gpt-4"}, testConversation)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrEmptyReply))
	})

	t.Run("missing credentials", func(t *testing.T) {
		_, err := NewOpenAIAdapter("http://127.0.0.1:1", nil).
			Generate(context.Background(), Credentials{Model: "gpt-4"}, testConversation)
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})
}

func TestCohereAdapter_Generate(t *testing.T) {
	var gotAuth string
	var gotReq cohereChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "Go is a language from Google.", "generation_id": "g-1"}`))
	}))
	defer server.Close()

	adapter := NewCohereAdapter(server.URL+"/", server.Client())
	reply, err := adapter.Generate(context.Background(), Credentials{APIKey: "co-test", Model: "command-r"}, testConversation)
	require.NoError(t, err)

	assert.Equal(t, "Go is a language from Google.", reply)
	assert.Equal(t, "Bearer co-test", gotAuth)
	assert.Equal(t, "command-r", gotReq.Model)
	assert.Equal(t, "What is Go?", gotReq.Message)
	assert.Equal(t, "You are a helpful assistant.", gotReq.Preamble)
	assert.Equal(t, []cohereChatTurn{
		{Role: "USER", Message: "Hi"},
		{Role: "CHATBOT", Message: "Hello! How can I help?"},
	}, gotReq.ChatHistory)
}

func TestCohereAdapter_Errors(t *testing.T) {
	t.Run("status error carries message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message": "invalid api token"}`))
		}))
		defer server.Close()

		_, err := NewCohereAdapter(server.URL, server.Client()).
			Generate(context.Background(), Credentials{APIKey: "bad", Model: "command"}, testConversation)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
		assert.Contains(t, err.Error(), "invalid api token")
	})

	t.Run("empty text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"text": ""}`))
		}))
		defer server.Close()

		_, err := NewCohereAdapter(server.URL, server.Client()).
			Generate(context.Background(), Credentials{APIKey: "co", Model: "command"}, testConversation)
		assert.ErrorIs(t, err, ErrEmptyReply)
	})

	t.Run("no user message", func(t *testing.T) {
		_, err := toCohereRequest("command", []Message{{Role: RoleSystem, Content: "sys"}})
		assert.Error(t, err)
	})
}

func TestAdapterSet(t *testing.T) {
	set, err := NewDefaultAdapterSet(Options{
		BaseURLs: map[string]string{"openai": "http://localhost:9999/v1"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cohere", "openai"}, set.IDs())

	a, ok := set.Lookup("openai")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:9999/v1", a.(*OpenAIAdapter).baseURL)

	_, ok = set.Lookup("anthropic")
	assert.False(t, ok, "anthropic is catalogued but has no adapter")
}

func TestSimpleAPIKeyAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	authCtx, err := NewSimpleAPIKeyAuth("key-1", "X-API-Key", "").Authenticate(context.Background())
	require.NoError(t, err)
	require.NoError(t, authCtx.ApplyToRequest(context.Background(), req))
	assert.Equal(t, "key-1", req.Header.Get("X-API-Key"))

	_, err = NewSimpleAPIKeyAuth("", "", "").Authenticate(context.Background())
	assert.Error(t, err)

	authCtx, _ = NewSimpleAPIKeyAuth("key-2", "", "").Authenticate(context.Background())
	assert.Error(t, authCtx.ApplyToRequest(context.Background(), "not a request"))
}
