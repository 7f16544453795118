package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/memkeep/memkeep/internal/model"
)

// Extractor distills durable facts from a conversation. Implementations are
// external (typically LLM-backed) and expected to fail fast; the engine does
// not retry.
type Extractor interface {
	Extract(ctx context.Context, messages []model.Message, transcript string) ([]model.Fact, error)
}

// ConversationParams describes a conversation to save.
type ConversationParams struct {
	ID       string
	Tag      string
	Messages []model.Message
	Extract  bool
}

// ConversationResult reports the saved transcript, the derived episodic
// memory, and any extracted facts that were stored.
type ConversationResult struct {
	Conversation *model.Conversation `json:"conversation"`
	Episode      *AddResult          `json:"episode"`
	Facts        []*AddResult        `json:"facts,omitempty"`
}

// AddConversation saves an immutable transcript, derives an episodic memory
// from it, and optionally extracts durable facts. Extraction failure is
// downgraded to zero facts; the conversation save always stands.
func (e *Engine) AddConversation(ctx context.Context, p ConversationParams) (*ConversationResult, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if len(p.Messages) == 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "messages are required")
	}
	if p.Tag == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "tag is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	conv := &model.Conversation{ID: p.ID, Tag: p.Tag, Messages: p.Messages}
	if err := e.store.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}

	transcript := formatTranscript(p.Messages)
	episode, err := e.Add(ctx, AddParams{
		Content:    transcript,
		Type:       model.TypeEpisodic,
		Importance: model.ImportanceNormal,
		Source:     "conversation",
		Tags:       []string{p.Tag},
		Metadata:   map[string]any{"conversation_id": p.ID},
	})
	if err != nil {
		return nil, err
	}

	result := &ConversationResult{Conversation: conv, Episode: episode}

	if p.Extract && e.extractor != nil {
		facts, err := e.extractor.Extract(ctx, p.Messages, transcript)
		if err != nil {
			e.logger.Warn("fact extraction failed, saving conversation without facts",
				"conversation_id", p.ID, "error", err)
			facts = nil
		}
		for _, f := range facts {
			if f.Content == "" {
				continue
			}
			typ := f.Type
			if !typ.Valid() {
				typ = model.TypeStatic
			}
			importance := f.Importance
			if !importance.Valid() {
				importance = model.ImportanceNormal
			}

			stored, err := e.Add(ctx, AddParams{
				Content:    f.Content,
				Type:       typ,
				Importance: importance,
				Source:     "auto_extracted",
				Tags:       []string{p.Tag},
				Metadata:   map[string]any{"conversation_id": p.ID},
				Dedup:      true,
			})
			if err != nil {
				return nil, err
			}
			result.Facts = append(result.Facts, stored)
		}
	}

	return result, nil
}

func formatTranscript(messages []model.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
