package models

import (
	"time"

	"github.com/google/uuid"
)

// SenderAssistant labels turns produced by the provider or a fallback
const SenderAssistant = "Assistant"

// Turn is one message in a user's conversation. Turns are append-only and
// ordered by Timestamp, with Seq breaking ties.
type Turn struct {
	Seq       int64     `db:"seq" json:"-"`
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Content   string    `db:"content" json:"content"`
	Sender    string    `db:"sender" json:"sender"`
	IsUser    bool      `db:"is_user" json:"isUser"`
	Timestamp time.Time `db:"created_at" json:"timestamp"`
}

// Role maps the turn onto the unified chat role
func (t *Turn) Role() string {
	if t.IsUser {
		return "user"
	}
	return "assistant"
}
