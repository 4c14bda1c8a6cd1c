package logging

import (
	"context"
	"time"
)

// AuditRecord describes one completed chat exchange. It never carries message
// content or credentials; the user is identified by a hash of their id.
type AuditRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
	UserHash     string    `json:"user_hash"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	Outcome      string    `json:"outcome"`
	PromptTokens int       `json:"prompt_tokens"`
	ReplyTokens  int       `json:"reply_tokens"`
	ProviderMs   int64     `json:"provider_ms"`
	TotalMs      int64     `json:"total_ms"`
	Error        string    `json:"error,omitempty"`
}

// Audit outcomes
const (
	OutcomeReply         = "reply"
	OutcomeNotConfigured = "not_configured"
	OutcomeIncomplete    = "incomplete"
	OutcomeComingSoon    = "coming_soon"
	OutcomeUnsupported   = "unsupported"
	OutcomeEmptyReply    = "empty_reply"
	OutcomeProviderError = "provider_error"
	OutcomeStorageError  = "storage_error"
)

// Sink receives audit records from the chat service.
type Sink interface {
	Enqueue(rec *AuditRecord) error
	Shutdown(ctx context.Context) error
}

// NoopSink discards records. Used when the audit sink is disabled.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(rec *AuditRecord) error {
	return nil
}

func (s *NoopSink) Shutdown(ctx context.Context) error {
	return nil
}
