package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/memkeep/memkeep/internal/model"
)

// SaveConversation appends an immutable conversation transcript.
func (s *SQLiteStore) SaveConversation(ctx context.Context, c *model.Conversation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	messages, err := json.Marshal(c.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, tag, messages, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Tag, string(messages), c.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation returns a saved transcript by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	var messages, createdAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, tag, messages, created_at FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.Tag, &messages, &createdAt)
	if err == sql.ErrNoRows {
		return nil, goerr.Wrap(model.ErrNotFound, "get conversation", goerr.V("id", id))
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(messages), &c.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}
