package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/memkeep/memkeep/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreate(t *testing.T, s *SQLiteStore, m *model.Memory) *model.Memory {
	t.Helper()
	if m.Type == "" {
		m.Type = model.TypeDynamic
	}
	if m.Importance == "" {
		m.Importance = model.ImportanceNormal
	}
	if err := s.Create(context.Background(), m); err != nil {
		t.Fatalf("create: %v", err)
	}
	return m
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := mustCreate(t, s, &model.Memory{
		Content:    "prefers dark mode",
		Summary:    "ui preference",
		Type:       model.TypeStatic,
		Importance: model.ImportanceHigh,
		Source:     "user",
		Tags:       []string{"alice", "prefs"},
		Metadata:   map[string]any{"origin": "settings"},
	})
	if m.ID == "" {
		t.Fatal("expected assigned id")
	}

	got, err := s.Get(ctx, m.ID, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "prefers dark mode" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Type != model.TypeStatic || got.Importance != model.ImportanceHigh {
		t.Errorf("type/importance = %s/%s", got.Type, got.Importance)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Metadata["origin"] != "settings" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if got.AccessCount != 0 {
		t.Errorf("access_count = %d", got.AccessCount)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "nope", false)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := mustCreate(t, s, &model.Memory{Content: "works at Acme", Tags: []string{"alice"}})

	content := "works at Initech"
	imp := model.ImportanceHigh
	updated, err := s.Update(ctx, m.ID, UpdateParams{Content: &content, Importance: &imp})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "works at Initech" {
		t.Errorf("content = %q", updated.Content)
	}
	if updated.Importance != model.ImportanceHigh {
		t.Errorf("importance = %s", updated.Importance)
	}
	if updated.Type != model.TypeDynamic {
		t.Errorf("type changed unexpectedly: %s", updated.Type)
	}
	if !updated.UpdatedAt.After(m.CreatedAt) && !updated.UpdatedAt.Equal(m.CreatedAt) {
		t.Error("updated_at not bumped")
	}
}

func TestUpdateReplacesTags(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := mustCreate(t, s, &model.Memory{Content: "x", Tags: []string{"a", "b"}})

	updated, err := s.Update(ctx, m.ID, UpdateParams{Tags: []string{"c"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "c" {
		t.Errorf("tags = %v", updated.Tags)
	}

	got, _ := s.Get(ctx, m.ID, false)
	if len(got.Tags) != 1 || got.Tags[0] != "c" {
		t.Errorf("persisted tags = %v", got.Tags)
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := mustCreate(t, s, &model.Memory{Content: "ephemeral", Tags: []string{"t"}})

	if err := s.SoftDelete(ctx, m.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := s.Get(ctx, m.ID, false); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	got, err := s.Get(ctx, m.ID, true)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if !got.Deleted || got.DeletedAt == nil {
		t.Error("expected deleted flags set")
	}

	if err := s.Restore(ctx, m.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err = s.Get(ctx, m.ID, false)
	if err != nil {
		t.Fatalf("get after restore: %v", err)
	}
	if got.Deleted || got.DeletedAt != nil {
		t.Error("expected deleted flags cleared")
	}

	// Restoring a live record is an error.
	if err := s.Restore(ctx, m.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found restoring live record, got %v", err)
	}
}

func TestHardDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustCreate(t, s, &model.Memory{Content: "a", Tags: []string{"t"}})
	b := mustCreate(t, s, &model.Memory{Content: "b", Tags: []string{"t"}})
	if _, err := s.Link(ctx, a.ID, b.ID, "related", 0.9); err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := s.HardDelete(ctx, b.ID); err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	if _, err := s.Get(ctx, b.ID, true); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected gone, got %v", err)
	}

	related, err := s.GetRelated(ctx, a.ID, "", 10)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(related) != 0 {
		t.Errorf("expected edges cascaded, got %d", len(related))
	}
}

func TestTouchAccessed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := mustCreate(t, s, &model.Memory{Content: "x", Tags: []string{"t"}})

	if err := s.TouchAccessed(ctx, []string{m.ID, m.ID}); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, _ := s.Get(ctx, m.ID, false)
	if got.AccessCount != 2 {
		t.Errorf("access_count = %d, want 2", got.AccessCount)
	}
	if got.LastAccessedAt == nil {
		t.Error("expected last_accessed_at set")
	}
}

func TestRecentScoping(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustCreate(t, s, &model.Memory{Content: "a", Tags: []string{"alice"}})
	mustCreate(t, s, &model.Memory{Content: "b", Tags: []string{"bob"}})
	withVec := mustCreate(t, s, &model.Memory{Content: "c", Tags: []string{"alice"}, Embedding: []float32{1, 0}})

	all, err := s.Recent(ctx, RecentParams{Tags: []string{"alice"}})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 in tag scope, got %d", len(all))
	}

	vecOnly, err := s.Recent(ctx, RecentParams{Tags: []string{"alice"}, RequireVector: true})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(vecOnly) != 1 || vecOnly[0].ID != withVec.ID {
		t.Errorf("expected only the embedded record, got %d", len(vecOnly))
	}
}

func TestStaticFactsOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustCreate(t, s, &model.Memory{Content: "low", Type: model.TypeStatic, Importance: model.ImportanceLow, Tags: []string{"t"}})
	mustCreate(t, s, &model.Memory{Content: "critical", Type: model.TypeStatic, Importance: model.ImportanceCritical, Tags: []string{"t"}})
	mustCreate(t, s, &model.Memory{Content: "normal", Type: model.TypeStatic, Importance: model.ImportanceNormal, Tags: []string{"t"}})
	mustCreate(t, s, &model.Memory{Content: "dynamic", Type: model.TypeDynamic, Importance: model.ImportanceCritical, Tags: []string{"t"}})

	facts, err := s.StaticFacts(ctx, []string{"t"}, 0)
	if err != nil {
		t.Fatalf("static facts: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("expected 3 statics, got %d", len(facts))
	}
	for i := 1; i < len(facts); i++ {
		if facts[i].Importance.Weight() > facts[i-1].Importance.Weight() {
			t.Errorf("importance not non-increasing at %d: %s after %s",
				i, facts[i].Importance, facts[i-1].Importance)
		}
	}
}

func TestVectorRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	vec := []float32{0.25, -1.5, 3.0}
	m := mustCreate(t, s, &model.Memory{Content: "v", Tags: []string{"t"}, Embedding: vec})

	got, err := s.Get(ctx, m.ID, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Embedding) != 3 {
		t.Fatalf("embedding dims = %d", len(got.Embedding))
	}
	for i := range vec {
		if got.Embedding[i] != vec[i] {
			t.Errorf("embedding[%d] = %v, want %v", i, got.Embedding[i], vec[i])
		}
	}
}

func TestConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv := &model.Conversation{
		ID:  "conv-1",
		Tag: "alice",
		Messages: []model.Message{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi there"},
		},
	}
	if err := s.SaveConversation(ctx, conv); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Tag != "alice" || len(got.Messages) != 2 {
		t.Errorf("conversation = %+v", got)
	}
	if got.Messages[1].Content != "hi there" {
		t.Errorf("message = %q", got.Messages[1].Content)
	}

	if _, err := s.GetConversation(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

