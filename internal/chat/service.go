// Package chat implements message dispatch: it records the user's turn,
// resolves their provider configuration, builds the conversation context and
// hands it to the matching provider adapter.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Phannhothinh/chatbot-op/internal/logging"
	"github.com/Phannhothinh/chatbot-op/internal/models"
	"github.com/Phannhothinh/chatbot-op/internal/providers"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// Replies recorded instead of a provider answer
const (
	FallbackNotConfigured    = "Please configure an AI provider in your settings to enable AI responses."
	FallbackIncompleteConfig = "Your AI provider configuration is incomplete. Please update your API key and model in settings."
	FallbackEmptyReply       = "Sorry, I could not generate a response."

	DefaultSystemPrompt     = "You are a helpful assistant. Provide concise and accurate responses."
	DefaultHistoryLimit     = 10
	DefaultMessageListLimit = 50
)

var (
	// ErrMissingUserID is returned when the session carries no usable identity
	ErrMissingUserID = errors.New("user ID not found in session")

	// ErrEmptyMessage is returned for a blank message
	ErrEmptyMessage = errors.New("message is required")
)

// ComingSoonReply is recorded for providers in the catalog without an adapter
func ComingSoonReply(displayName string) string {
	return fmt.Sprintf("%s integration is coming soon. Please choose a different provider in settings.", displayName)
}

// UnsupportedReply is recorded for provider ids missing from the catalog
func UnsupportedReply(providerID string) string {
	return fmt.Sprintf("The AI provider %q is not supported.", providerID)
}

// CredentialStore reads a user's provider configuration
type CredentialStore interface {
	Get(ctx context.Context, userID string) (*models.CredentialRecord, error)
}

// ConversationStore persists and reads conversation turns
type ConversationStore interface {
	Append(ctx context.Context, userID, content, sender string, isUser bool) (*models.Turn, error)
	RecentHistory(ctx context.Context, userID string, limit int) ([]*models.Turn, error)
	AllHistory(ctx context.Context, userID string, maxCount int) ([]*models.Turn, error)
}

// AdapterLookup resolves a provider id to its adapter
type AdapterLookup interface {
	Lookup(providerID string) (providers.Adapter, bool)
}

// Identity is the session's view of the caller
type Identity struct {
	UserID string
	Name   string
	Email  string
}

// SenderLabel is the display label stored on the user's turns
func (i Identity) SenderLabel() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.Email != "":
		return i.Email
	default:
		return i.UserID
	}
}

// Config tunes the dispatch engine
type Config struct {
	HistoryLimit     int
	MessageListLimit int
	SystemPrompt     string
}

// Service is the dispatch engine
type Service struct {
	credentials   CredentialStore
	conversations ConversationStore
	adapters      AdapterLookup
	sink          logging.Sink
	tokens        *TokenCounter
	cfg           Config
	logger        *utils.Logger
	now           func() time.Time
}

// NewService wires the dispatch engine. A nil sink discards audit records.
func NewService(credentials CredentialStore, conversations ConversationStore, adapters AdapterLookup, sink logging.Sink, cfg Config) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.MessageListLimit <= 0 {
		cfg.MessageListLimit = DefaultMessageListLimit
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if sink == nil {
		sink = logging.NewNoopSink()
	}

	return &Service{
		credentials:   credentials,
		conversations: conversations,
		adapters:      adapters,
		sink:          sink,
		tokens:        NewTokenCounter(),
		cfg:           cfg,
		logger:        utils.NewLogger("chat"),
		now:           time.Now,
	}
}

// dispatchResult describes how a reply was produced
type dispatchResult struct {
	reply        string
	outcome      string
	provider     string
	model        string
	promptTokens int
	providerMs   int64
}

// SendMessage records the user's message, obtains a reply and records it.
// Configuration problems produce a fallback reply rather than an error.
// A provider failure is returned as an error and no assistant turn is stored;
// the user's turn is kept.
func (s *Service) SendMessage(ctx context.Context, id Identity, message string) (string, error) {
	if id.UserID == "" {
		return "", ErrMissingUserID
	}
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	start := s.now()
	audit := &logging.AuditRecord{
		Timestamp: start.UTC(),
		RequestID: uuid.NewString(),
		UserHash:  utils.HashString(id.UserID),
	}
	defer func() {
		audit.TotalMs = s.now().Sub(start).Milliseconds()
		if err := s.sink.Enqueue(audit); err != nil {
			s.logger.Warn("Failed to enqueue audit record", "request_id", audit.RequestID, "error", err)
		}
	}()

	if _, err := s.conversations.Append(ctx, id.UserID, message, id.SenderLabel(), true); err != nil {
		audit.Outcome = logging.OutcomeStorageError
		audit.Error = err.Error()
		return "", fmt.Errorf("failed to save user message: %w", err)
	}

	result, err := s.dispatch(ctx, id.UserID)
	audit.Provider = result.provider
	audit.Model = result.model
	audit.PromptTokens = result.promptTokens
	audit.ProviderMs = result.providerMs
	audit.Outcome = result.outcome
	if err != nil {
		audit.Error = err.Error()
		s.logger.Error("Dispatch failed", "request_id", audit.RequestID, "provider", result.provider, "error", err)
		return "", err
	}
	audit.ReplyTokens = s.tokens.Count(result.reply)

	if _, err := s.conversations.Append(ctx, id.UserID, result.reply, models.SenderAssistant, false); err != nil {
		audit.Outcome = logging.OutcomeStorageError
		audit.Error = err.Error()
		return "", fmt.Errorf("failed to save assistant message: %w", err)
	}

	s.logger.Debug("Dispatched message",
		"request_id", audit.RequestID,
		"provider", result.provider,
		"outcome", result.outcome,
		"prompt_tokens", result.promptTokens,
	)
	return result.reply, nil
}

// dispatch resolves the configuration and produces the reply text
func (s *Service) dispatch(ctx context.Context, userID string) (dispatchResult, error) {
	record, err := s.credentials.Get(ctx, userID)
	if err != nil {
		return dispatchResult{outcome: logging.OutcomeStorageError}, fmt.Errorf("failed to load provider configuration: %w", err)
	}

	if !record.IsConfigured() {
		return dispatchResult{reply: FallbackNotConfigured, outcome: logging.OutcomeNotConfigured}, nil
	}

	result := dispatchResult{provider: record.ActiveProvider}
	creds, ok := record.ActiveCredentials()
	if !ok || !creds.Complete() {
		result.reply = FallbackIncompleteConfig
		result.outcome = logging.OutcomeIncomplete
		return result, nil
	}
	result.model = creds.Model

	adapter, ok := s.adapters.Lookup(record.ActiveProvider)
	if !ok {
		if desc, known := providers.FindProvider(record.ActiveProvider); known {
			result.reply = ComingSoonReply(desc.Name)
			result.outcome = logging.OutcomeComingSoon
		} else {
			result.reply = UnsupportedReply(record.ActiveProvider)
			result.outcome = logging.OutcomeUnsupported
		}
		return result, nil
	}

	messages, err := s.buildContext(ctx, userID)
	if err != nil {
		result.outcome = logging.OutcomeStorageError
		return result, err
	}
	result.promptTokens = s.tokens.CountMessages(messages)

	callStart := s.now()
	reply, err := adapter.Generate(ctx, providers.Credentials{APIKey: creds.APIKey, Model: creds.Model}, messages)
	result.providerMs = s.now().Sub(callStart).Milliseconds()

	switch {
	case errors.Is(err, providers.ErrEmptyReply):
		result.reply = FallbackEmptyReply
		result.outcome = logging.OutcomeEmptyReply
		return result, nil
	case err != nil:
		result.outcome = logging.OutcomeProviderError
		return result, fmt.Errorf("%s request failed: %w", record.ActiveProvider, err)
	}

	if strings.TrimSpace(reply) == "" {
		result.reply = FallbackEmptyReply
		result.outcome = logging.OutcomeEmptyReply
		return result, nil
	}

	result.reply = reply
	result.outcome = logging.OutcomeReply
	return result, nil
}

// buildContext loads the recent turns, oldest first, behind the system prompt
func (s *Service) buildContext(ctx context.Context, userID string) ([]providers.Message, error) {
	turns, err := s.conversations.RecentHistory(ctx, userID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	messages := make([]providers.Message, 0, len(turns)+1)
	messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: s.cfg.SystemPrompt})
	for _, t := range turns {
		messages = append(messages, providers.Message{Role: t.Role(), Content: t.Content})
	}
	return messages, nil
}

// ListMessages returns the user's most recent turns, oldest first
func (s *Service) ListMessages(ctx context.Context, userID string) ([]*models.Turn, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	turns, err := s.conversations.AllHistory(ctx, userID, s.cfg.MessageListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return turns, nil
}
