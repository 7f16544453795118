package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/memkeep/memkeep/internal/model"
)

type stubExtractor struct {
	facts []model.Fact
	err   error
}

func (s *stubExtractor) Extract(ctx context.Context, messages []model.Message, transcript string) ([]model.Fact, error) {
	return s.facts, s.err
}

func testMessages() []model.Message {
	return []model.Message{
		{Role: "user", Content: "I just moved to Lisbon"},
		{Role: "assistant", Content: "Noted, congratulations on the move!"},
	}
}

func TestAddConversation(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{})

	result, err := eng.AddConversation(ctx, ConversationParams{Tag: "alice", Messages: testMessages()})
	if err != nil {
		t.Fatalf("add conversation: %v", err)
	}
	if result.Conversation.ID == "" {
		t.Error("expected generated conversation id")
	}
	if result.Episode == nil {
		t.Fatal("expected episodic memory")
	}

	episode := result.Episode.Memory
	if episode.Type != model.TypeEpisodic {
		t.Errorf("episode type = %s", episode.Type)
	}
	if episode.Source != "conversation" {
		t.Errorf("episode source = %q", episode.Source)
	}
	if !strings.Contains(episode.Content, "user: I just moved to Lisbon") {
		t.Errorf("transcript missing roles: %q", episode.Content)
	}
	if episode.Metadata["conversation_id"] != result.Conversation.ID {
		t.Errorf("episode not tied to conversation: %v", episode.Metadata)
	}
	if result.Facts != nil {
		t.Error("no extraction requested, facts should be empty")
	}
}

func TestAddConversationValidation(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{})

	if _, err := eng.AddConversation(ctx, ConversationParams{Tag: "t"}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("no messages: %v", err)
	}
	if _, err := eng.AddConversation(ctx, ConversationParams{Messages: testMessages()}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("no tag: %v", err)
	}
}

func TestAddConversationExtractsFacts(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{
		Extractor: &stubExtractor{facts: []model.Fact{
			{Content: "lives in Lisbon", Type: model.TypeStatic, Importance: model.ImportanceHigh},
			{Content: ""},            // skipped
			{Content: "recently moved"}, // defaults applied
		}},
	})

	result, err := eng.AddConversation(ctx, ConversationParams{
		Tag: "alice", Messages: testMessages(), Extract: true,
	})
	if err != nil {
		t.Fatalf("add conversation: %v", err)
	}
	if len(result.Facts) != 2 {
		t.Fatalf("facts = %d, want 2", len(result.Facts))
	}

	first := result.Facts[0].Memory
	if first.Content != "lives in Lisbon" || first.Type != model.TypeStatic || first.Importance != model.ImportanceHigh {
		t.Errorf("fact = %+v", first)
	}
	if first.Source != "auto_extracted" {
		t.Errorf("fact source = %q", first.Source)
	}

	second := result.Facts[1].Memory
	if second.Type != model.TypeStatic || second.Importance != model.ImportanceNormal {
		t.Errorf("fact defaults not applied: %s/%s", second.Type, second.Importance)
	}
}

func TestAddConversationExtractionFailureIsSoft(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{
		Extractor: &stubExtractor{err: errors.New("llm timeout")},
	})

	result, err := eng.AddConversation(ctx, ConversationParams{
		Tag: "alice", Messages: testMessages(), Extract: true,
	})
	if err != nil {
		t.Fatalf("extraction failure must not fail the save: %v", err)
	}
	if len(result.Facts) != 0 {
		t.Errorf("facts = %d, want 0", len(result.Facts))
	}
	if result.Episode == nil {
		t.Error("episodic memory should still be stored")
	}
}
