package storage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Phannhothinh/chatbot-op/internal/models"
)

// MessageRepository is the conversation store. Turns are append-only and
// read back oldest first.
type MessageRepository struct {
	db  *DB
	now func() time.Time
}

// NewMessageRepository creates a new conversation repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const turnColumns = `seq, id, user_id, content, sender, is_user, created_at`

// Append records a new turn stamped with the current time
func (r *MessageRepository) Append(ctx context.Context, userID, content, sender string, isUser bool) (*models.Turn, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	turn := &models.Turn{
		ID:        uuid.New(),
		UserID:    userID,
		Content:   content,
		Sender:    sender,
		IsUser:    isUser,
		Timestamp: r.now(),
	}

	query := r.db.rebind(`
		INSERT INTO messages (id, user_id, content, sender, is_user, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.conn.ExecContext(ctx, query,
		turn.ID, turn.UserID, turn.Content, turn.Sender, turn.IsUser, turn.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append turn: %w", err)
	}

	return turn, nil
}

// RecentHistory returns the newest limit turns for the user, oldest first
func (r *MessageRepository) RecentHistory(ctx context.Context, userID string, limit int) ([]*models.Turn, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if limit <= 0 {
		return []*models.Turn{}, nil
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	query := r.db.rebind(`
		SELECT ` + turnColumns + `
		FROM messages
		WHERE user_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`)

	turns := []*models.Turn{}
	if err := r.db.conn.SelectContext(ctx, &turns, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	slices.Reverse(turns)
	return turns, nil
}

// AllHistory returns at most maxCount of the user's most recent turns, oldest first.
// It backs the initial conversation load.
func (r *MessageRepository) AllHistory(ctx context.Context, userID string, maxCount int) ([]*models.Turn, error) {
	return r.RecentHistory(ctx, userID, maxCount)
}

// Count returns the number of turns stored for the user
func (r *MessageRepository) Count(ctx context.Context, userID string) (int, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var n int
	query := r.db.rebind(`SELECT COUNT(*) FROM messages WHERE user_id = ?`)
	if err := r.db.conn.GetContext(ctx, &n, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return n, nil
}
