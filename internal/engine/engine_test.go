package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/memkeep/memkeep/internal/embedding"
	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/store"
)

// stubEmbedder returns the same vector for every input, making any two
// texts perfect duplicates under cosine similarity.
type stubEmbedder struct {
	vec   embedding.Vector
	calls int
	fail  bool
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	s.calls++
	if s.fail {
		return nil, errors.New("provider down")
	}
	return s.vec, nil
}

func (s *stubEmbedder) Dims() int     { return len(s.vec) }
func (s *stubEmbedder) Model() string { return "stub" }

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	}
	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestAddAndGet(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{})

	res, err := eng.Add(ctx, AddParams{Content: "prefers tabs over spaces", Tags: []string{"alice"}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.Merged {
		t.Error("unexpected merge")
	}
	if res.Memory.Type != model.TypeDynamic || res.Memory.Importance != model.ImportanceNormal {
		t.Errorf("defaults not applied: %s/%s", res.Memory.Type, res.Memory.Importance)
	}

	got, err := eng.Get(ctx, res.Memory.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "prefers tabs over spaces" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{})

	cases := []struct {
		name string
		p    AddParams
	}{
		{"no content", AddParams{Tags: []string{"t"}}},
		{"no tags", AddParams{Content: "x"}},
		{"bad type", AddParams{Content: "x", Tags: []string{"t"}, Type: "volatile"}},
		{"bad importance", AddParams{Content: "x", Tags: []string{"t"}, Importance: "urgent"}},
	}
	for _, c := range cases {
		if _, err := eng.Add(ctx, c.p); !errors.Is(err, model.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", c.name, err)
		}
	}
}

func TestAddThenSearch(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{})

	if _, err := eng.Add(ctx, AddParams{Content: "favorite color is teal", Tags: []string{"alice"}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := eng.Add(ctx, AddParams{Content: "commutes by bike on weekdays", Tags: []string{"alice"}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	hits, err := eng.Search(ctx, SearchParams{Tags: []string{"alice"}, Query: "favorite color"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits")
	}
	if hits[0].Memory.Content != "favorite color is teal" {
		t.Errorf("top hit = %q", hits[0].Memory.Content)
	}

	// Returned results get their access tracking bumped.
	got, err := eng.Get(ctx, hits[0].Memory.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AccessCount == 0 {
		t.Error("expected access count bumped by search")
	}
}

func TestSearchRequiresTags(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{})

	if _, err := eng.Search(ctx, SearchParams{Query: "anything"}); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without tags, got %v", err)
	}
}

func TestSearchMinImportance(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{})

	if _, err := eng.Add(ctx, AddParams{
		Content: "critical deploy credential note", Tags: []string{"t"}, Importance: model.ImportanceCritical,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := eng.Add(ctx, AddParams{
		Content: "low priority deploy trivia", Tags: []string{"t"}, Importance: model.ImportanceLow,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	hits, err := eng.Search(ctx, SearchParams{
		Tags: []string{"t"}, Query: "deploy", MinImportance: model.ImportanceHigh,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit above floor, got %d", len(hits))
	}
	if hits[0].Memory.Importance != model.ImportanceCritical {
		t.Errorf("hit importance = %s", hits[0].Memory.Importance)
	}
}

func TestDedupMerges(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vec: embedding.Vector{1, 0, 0}}
	eng := newTestEngine(t, Config{Embedder: emb})

	first, err := eng.Add(ctx, AddParams{Content: "lives in London", Tags: []string{"alice"}, Dedup: true})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if first.Merged {
		t.Fatal("first insert should not merge")
	}

	second, err := eng.Add(ctx, AddParams{
		Content:    "lives in London near the river Thames",
		Tags:       []string{"alice"},
		Importance: model.ImportanceHigh,
		Dedup:      true,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !second.Merged {
		t.Fatal("expected merge of near-duplicate")
	}
	if second.Memory.ID != first.Memory.ID {
		t.Errorf("merged into %s, want %s", second.Memory.ID, first.Memory.ID)
	}
	if !strings.Contains(second.Memory.Content, "Thames") {
		t.Errorf("longer content should win: %q", second.Memory.Content)
	}
	if second.Memory.Importance != model.ImportanceHigh {
		t.Errorf("importance should escalate, got %s", second.Memory.Importance)
	}
	if second.Memory.Metadata[model.MetaMergedAt] == nil {
		t.Error("expected merge timestamp in metadata")
	}

	// Still a single record.
	stats, err := eng.Stats(ctx, []string{"alice"})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("total = %d, want 1", stats.Total)
	}
}

func TestDedupPreservesEmbedding(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vec: embedding.Vector{0, 1}}
	eng := newTestEngine(t, Config{Embedder: emb})

	first, err := eng.Add(ctx, AddParams{Content: "short", Tags: []string{"t"}, Dedup: true})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	merged, err := eng.Add(ctx, AddParams{Content: "short but slightly longer", Tags: []string{"t"}, Dedup: true})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !merged.Merged {
		t.Fatal("expected merge")
	}

	got, err := eng.Get(ctx, first.Memory.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Embedding) != 2 {
		t.Errorf("embedding lost on merge: %v", got.Embedding)
	}
}

func TestChunkingRoundTrip(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{})

	// Well past the split trigger.
	paragraph := strings.Repeat("Weekly sync covered the rollout plan and open risks. ", 20)
	content := paragraph + "\n\n" + paragraph + "\n\n" + paragraph

	res, err := eng.Add(ctx, AddParams{Content: content, Tags: []string{"t"}, Summary: "meeting notes"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(res.ChunkIDs) == 0 {
		t.Fatal("expected chunk records for over-long content")
	}
	if res.Memory.Summary != "meeting notes" {
		t.Errorf("first chunk should keep summary, got %q", res.Memory.Summary)
	}
	if res.Memory.Metadata[model.MetaChunkIndex] != 0 {
		t.Errorf("chunk_index = %v", res.Memory.Metadata[model.MetaChunkIndex])
	}

	// Every extra chunk points back at the first through a chunk edge.
	for _, id := range res.ChunkIDs {
		related, err := eng.GetRelated(ctx, id, model.RelationChunk, 5)
		if err != nil {
			t.Fatalf("related: %v", err)
		}
		if len(related) != 1 || related[0].Memory.ID != res.Memory.ID {
			t.Errorf("chunk %s not linked to first record", id)
		}
	}
}

func TestSoftDeleteRestoreVisibility(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{})

	res, err := eng.Add(ctx, AddParams{Content: "temporary note about quarterly goals", Tags: []string{"t"}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := eng.Delete(ctx, res.Memory.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	hits, err := eng.Search(ctx, SearchParams{Tags: []string{"t"}, Query: "quarterly goals"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted record visible in search: %d hits", len(hits))
	}

	if err := eng.Restore(ctx, res.Memory.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	hits, err = eng.Search(ctx, SearchParams{Tags: []string{"t"}, Query: "quarterly goals"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("restored record missing from search: %d hits", len(hits))
	}
}

func TestUpdateReembedsOnContentChange(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vec: embedding.Vector{1}}
	eng := newTestEngine(t, Config{Embedder: emb})

	res, err := eng.Add(ctx, AddParams{Content: "original", Tags: []string{"t"}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	callsAfterAdd := emb.calls

	content := "revised"
	if _, err := eng.Update(ctx, res.Memory.ID, UpdateParams{Content: &content}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if emb.calls <= callsAfterAdd {
		t.Error("expected provider call for changed content")
	}

	// Metadata-only updates must not touch the provider.
	callsBefore := emb.calls
	if _, err := eng.Update(ctx, res.Memory.ID, UpdateParams{Metadata: map[string]any{"k": "v"}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if emb.calls != callsBefore {
		t.Error("metadata update should not re-embed")
	}
}

func TestProviderFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{Embedder: &stubEmbedder{vec: embedding.Vector{1}, fail: true}})

	_, err := eng.Add(ctx, AddParams{Content: "x", Tags: []string{"t"}})
	if !errors.Is(err, model.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{})

	if _, err := eng.Add(ctx, AddParams{
		Content: "allergic to peanuts", Type: model.TypeStatic, Importance: model.ImportanceCritical, Tags: []string{"alice"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := eng.Add(ctx, AddParams{
		Content: "timezone is UTC+2", Type: model.TypeStatic, Tags: []string{"alice"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := eng.Add(ctx, AddParams{Content: "debugging the importer today", Tags: []string{"alice"}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	profile, err := eng.GetProfile(ctx, []string{"alice"}, "")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if len(profile.Statics) != 2 {
		t.Fatalf("statics = %d, want 2", len(profile.Statics))
	}
	for i := 1; i < len(profile.Statics); i++ {
		if profile.Statics[i].Importance.Weight() > profile.Statics[i-1].Importance.Weight() {
			t.Error("statics not ordered by importance")
		}
	}
	if len(profile.Recent) != 1 {
		t.Errorf("recent = %d, want 1", len(profile.Recent))
	}
	if profile.Stats == nil || profile.Stats.Total != 3 {
		t.Errorf("stats = %+v", profile.Stats)
	}
	if profile.Results != nil {
		t.Error("no query given, results should be empty")
	}

	if _, err := eng.GetProfile(ctx, nil, ""); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput without tags, got %v", err)
	}
}

func TestCleanupThroughEngine(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, Config{})

	if _, err := eng.Add(ctx, AddParams{Content: "fresh", Tags: []string{"t"}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	result, err := eng.Cleanup(ctx, store.CleanupParams{MaxAgeDays: 30, DryRun: true})
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if result.WouldDelete != 0 {
		t.Errorf("fresh record flagged for cleanup: %d", result.WouldDelete)
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestEngine(t, Config{})

	if _, err := src.Add(ctx, AddParams{
		Content: "likes espresso", Type: model.TypeStatic, Tags: []string{"alice"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := src.Add(ctx, AddParams{Content: "reading a systems book", Tags: []string{"alice"}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	records, err := src.ExportAll(ctx, nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("exported %d, want 2", len(records))
	}

	dst := newTestEngine(t, Config{})
	imported, err := dst.ImportBulk(ctx, records, false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported != 2 {
		t.Errorf("imported = %d, want 2", imported)
	}

	stats, err := dst.Stats(ctx, nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if stats.ByType[string(model.TypeStatic)] != 1 {
		t.Errorf("by_type = %v", stats.ByType)
	}
}

func TestClosedEngine(t *testing.T) {
	eng := newTestEngine(t, Config{})
	if err := eng.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ctx := context.Background()
	if _, err := eng.Add(ctx, AddParams{Content: "x", Tags: []string{"t"}}); !errors.Is(err, model.ErrEngineClosed) {
		t.Errorf("add after close: %v", err)
	}
	if _, err := eng.Search(ctx, SearchParams{Tags: []string{"t"}}); !errors.Is(err, model.ErrEngineClosed) {
		t.Errorf("search after close: %v", err)
	}
	if err := eng.Close(); !errors.Is(err, model.ErrEngineClosed) {
		t.Errorf("second close: %v", err)
	}
}
