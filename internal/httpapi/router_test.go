package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phannhothinh/chatbot-op/internal/auth"
	"github.com/Phannhothinh/chatbot-op/internal/chat"
	"github.com/Phannhothinh/chatbot-op/internal/config"
	"github.com/Phannhothinh/chatbot-op/internal/models"
	"github.com/Phannhothinh/chatbot-op/internal/providers"
	"github.com/Phannhothinh/chatbot-op/internal/storage"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

const (
	testCookieName = "session_token"
	alicePassword  = "wonderland"
)

type stubAdapter struct {
	reply string
	err   error
	creds providers.Credentials
}

func (a *stubAdapter) ID() string { return "openai" }

func (a *stubAdapter) Generate(ctx context.Context, creds providers.Credentials, messages []providers.Message) (string, error) {
	a.creds = creds
	return a.reply, a.err
}

type testServer struct {
	handler  http.Handler
	db       *storage.DB
	messages *storage.MessageRepository
	adapter  *stubAdapter
	alice    *models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dbCfg := storage.DefaultDBConfig()
	dbCfg.Driver = storage.DriverSQLite
	dbCfg.DSN = filepath.Join(t.TempDir(), "api.db")

	db, err := storage.NewDB(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	key, err := storage.GenerateKey(32)
	require.NoError(t, err)
	enc, err := storage.NewEncryptionFromBase64(key)
	require.NoError(t, err)

	hash, err := utils.HashPasswordArgon2(alicePassword)
	require.NoError(t, err)
	alice := &models.User{Username: "alice", Name: "Alice", Email: "alice@example.com", PasswordHash: hash}
	require.NoError(t, db.NewUserRepository().Create(context.Background(), alice))

	adapter := &stubAdapter{reply: "Hi from the model"}
	set := providers.NewAdapterSet()
	set.Register(adapter)

	credentials := db.NewCredentialRepository(enc)
	messages := db.NewMessageRepository()

	deps := &Dependencies{
		DB:          db,
		Sessions:    auth.NewSessionAuthority(db.NewUserRepository(), storage.NewMemoryRevocationStore(100), []byte("test-secret"), time.Hour),
		Credentials: credentials,
		Chat:        chat.NewService(credentials, messages, set, nil, chat.Config{}),
	}

	return &testServer{
		handler:  newHandler(deps, config.SessionConfig{CookieName: testCookieName}),
		db:       db,
		messages: messages,
		adapter:  adapter,
		alice:    alice,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) signIn(t *testing.T) string {
	t.Helper()

	rr := s.do(t, http.MethodPost, "/api/auth/signin", "", SignInRequest{Username: "alice", Password: alicePassword})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp SignInResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (s *testServer) turnCount(t *testing.T) int {
	t.Helper()
	n, err := s.messages.Count(context.Background(), s.alice.ID.String())
	require.NoError(t, err)
	return n
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	s.db.Close()
	rr = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestSignIn(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/auth/signin", "", SignInRequest{Username: "alice", Password: alicePassword})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp SignInResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, s.alice.ID.String(), resp.User.ID)
	assert.Equal(t, "Alice", resp.User.Name)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Greater(t, resp.Exp, time.Now().Unix())

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookieName, cookies[0].Name)
	assert.Equal(t, resp.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSignIn_Failures(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{"wrong password", SignInRequest{Username: "alice", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", SignInRequest{Username: "bob", Password: alicePassword}, http.StatusUnauthorized},
		{"empty fields", SignInRequest{}, http.StatusUnauthorized},
		{"bad json", "{not json", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodPost, "/api/auth/signin", "", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Empty(t, rr.Result().Cookies())
		})
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	routes := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodPost, "/api/auth/signout", nil},
		{http.MethodGet, "/api/auth/session", nil},
		{http.MethodPost, "/api/chat", ChatRequest{Message: "Hello"}},
		{http.MethodGet, "/api/messages", nil},
		{http.MethodGet, "/api/settings/api-key", nil},
		{http.MethodPost, "/api/settings/api-key", SaveAPIKeyRequest{Provider: "openai", Model: "gpt-4", APIKey: "sk-test"}},
		{http.MethodGet, "/api/providers", nil},
	}

	for _, tc := range routes {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rr := s.do(t, tc.method, tc.path, "", tc.body)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())

			rr = s.do(t, tc.method, tc.path, "forged.token.value", tc.body)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}

	assert.Equal(t, 0, s.turnCount(t))

	rr := s.do(t, http.MethodGet, "/api/settings/api-key", s.signIn(t), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"hasApiKey":false`)
}

func TestChat_NotConfiguredFallback(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t)

	rr := s.do(t, http.MethodPost, "/api/chat", token, ChatRequest{Message: "Hello"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"response":"`+chat.FallbackNotConfigured+`"}`, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/api/messages", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Messages []struct {
			Content string `json:"content"`
			Sender  string `json:"sender"`
			IsUser  bool   `json:"isUser"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "Hello", resp.Messages[0].Content)
	assert.Equal(t, "Alice", resp.Messages[0].Sender)
	assert.True(t, resp.Messages[0].IsUser)
	assert.Equal(t, chat.FallbackNotConfigured, resp.Messages[1].Content)
	assert.False(t, resp.Messages[1].IsUser)
}

func TestChat_Validation(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t)

	rr := s.do(t, http.MethodPost, "/api/chat", token, ChatRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/chat", token, "{")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Equal(t, 0, s.turnCount(t))
}

func TestSettingsAndDispatch(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t)

	rr := s.do(t, http.MethodGet, "/api/settings/api-key", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"hasApiKey":false,"activeProvider":null,"configs":{}}`, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/api/settings/api-key", token, SaveAPIKeyRequest{Provider: "openai", Model: "gpt-4", APIKey: "sk-test"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":true`)

	rr = s.do(t, http.MethodGet, "/api/settings/api-key", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"hasApiKey":true,"activeProvider":"openai","configs":{"openai":{"model":"gpt-4"}}}`, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "sk-test")

	rr = s.do(t, http.MethodPost, "/api/chat", token, ChatRequest{Message: "What is Go?"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"response":"Hi from the model"}`, rr.Body.String())
	assert.Equal(t, providers.Credentials{APIKey: "sk-test", Model: "gpt-4"}, s.adapter.creds)
	assert.Equal(t, 2, s.turnCount(t))
}

func TestSaveAPIKey_MissingFields(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t)

	rr := s.do(t, http.MethodPost, "/api/settings/api-key", token, SaveAPIKeyRequest{Provider: "openai", Model: "gpt-4"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Provider, model, and API key are required"}`, rr.Body.String())
}

func TestChat_ProviderFailure(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t)
	s.adapter.err = errors.New("upstream exploded")

	rr := s.do(t, http.MethodPost, "/api/settings/api-key", token, SaveAPIKeyRequest{Provider: "openai", Model: "gpt-4", APIKey: "sk-test"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/chat", token, ChatRequest{Message: "Hello"})
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp utils.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to process chat request", resp.Error)
	assert.Contains(t, resp.Detail, "upstream exploded")

	// the user's turn is kept, no assistant turn
	assert.Equal(t, 1, s.turnCount(t))
}

func TestSessionAndSignOut(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t)

	rr := s.do(t, http.MethodGet, "/api/auth/session", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var session SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	assert.Equal(t, s.alice.ID.String(), session.User.ID)
	assert.Equal(t, "Alice", session.User.Name)
	_, err := time.Parse(time.RFC3339, session.Expires)
	assert.NoError(t, err)

	rr = s.do(t, http.MethodPost, "/api/auth/signout", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true}`, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/api/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCookieSession(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t)

	req := httptest.NewRequest(http.MethodGet, "/api/providers", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: token})
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ProvidersResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Providers, 4)
	assert.Equal(t, "openai", resp.Providers[0].ID)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t)

	tests := []struct {
		method string
		path   string
		token  string
	}{
		{http.MethodGet, "/api/chat", token},
		{http.MethodDelete, "/api/settings/api-key", token},
		{http.MethodGet, "/api/auth/signin", ""},
		{http.MethodPut, "/api/messages", token},
		{http.MethodPost, "/health", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := s.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
			assert.JSONEq(t, `{"error":"Method not allowed"}`, rr.Body.String())
		})
	}

	rr := s.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMethodNotAllowed_ProtectedPathNeedsSession(t *testing.T) {
	s := newTestServer(t)

	for _, tt := range []struct{ method, path string }{
		{http.MethodPut, "/api/chat"},
		{http.MethodDelete, "/api/settings/api-key"},
		{http.MethodPost, "/api/messages"},
		{http.MethodGet, "/api/auth/signout"},
	} {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := s.do(t, tt.method, tt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())
		})
	}
}
