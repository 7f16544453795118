// Package engine ties the entity store, embedding provider, and embedding
// cache into the public memory API: add with dedup and chunking, hybrid
// search, profiles, conversations, relations, and lifecycle maintenance.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"

	"github.com/memkeep/memkeep/internal/chunker"
	"github.com/memkeep/memkeep/internal/embedding"
	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/store"
)

// vacuumRetentionDays is how long soft-deleted records stay restorable.
const vacuumRetentionDays = 7

// Config wires an engine instance.
type Config struct {
	DBPath    string
	Embedder  embedding.Embedder // optional; nil disables vector features
	Extractor Extractor          // optional; nil disables fact extraction
	CacheSize int
	Logger    *slog.Logger
}

// Engine is the memory engine. It owns its store and embedding cache; a
// single engine instance is a single logical writer over its database.
type Engine struct {
	store     *store.SQLiteStore
	embedder  embedding.Embedder
	cache     *embedding.Cache
	extractor Extractor
	logger    *slog.Logger
	closed    atomic.Bool
}

// New opens the engine over the database at cfg.DBPath.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:     st,
		embedder:  cfg.Embedder,
		cache:     embedding.NewCache(cfg.CacheSize),
		extractor: cfg.Extractor,
		logger:    logger,
	}, nil
}

// Close releases all resources. Any later call on the engine fails with
// ErrEngineClosed.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return goerr.Wrap(model.ErrEngineClosed, "close")
	}
	return e.store.Close()
}

func (e *Engine) check() error {
	if e.closed.Load() {
		return model.ErrEngineClosed
	}
	return nil
}

// embed resolves a vector for text through the cache, calling the provider
// only on a miss. Provider failures surface as ErrProviderFailure.
func (e *Engine) embed(ctx context.Context, text string) (embedding.Vector, error) {
	if vec, ok := e.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(model.ErrProviderFailure, "embed",
			goerr.V("model", e.embedder.Model()), goerr.V("cause", err.Error()))
	}
	e.cache.Put(text, vec)
	return vec, nil
}

// AddParams describes a memory to store.
type AddParams struct {
	ID         string
	Content    string
	Summary    string
	Type       model.MemoryType
	Importance model.Importance
	Source     string
	Tags       []string
	Metadata   map[string]any
	Dedup      bool
}

// AddResult reports what Add did: the stored (or merged-into) record, plus
// the ids of any additional chunk records for over-long content.
type AddResult struct {
	Memory   *model.Memory `json:"memory"`
	Merged   bool          `json:"merged"`
	ChunkIDs []string      `json:"chunk_ids,omitempty"`
}

// Add stores content as one memory, merging into a near-duplicate when
// deduplication is requested, and splitting over-long content into linked
// chunk records.
func (e *Engine) Add(ctx context.Context, p AddParams) (*AddResult, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if err := validateAdd(&p); err != nil {
		return nil, err
	}

	segments := chunker.Split(p.Content, chunker.DefaultOptions())
	if len(segments) <= 1 {
		return e.addOne(ctx, p)
	}

	// First chunk keeps the caller-supplied id and summary; the rest carry
	// bookkeeping metadata and a chunk edge back to the first.
	var first *AddResult
	var chunkIDs []string
	for i, seg := range segments {
		cp := p
		cp.Content = seg
		cp.Metadata = cloneMetadata(p.Metadata)
		cp.Metadata[model.MetaChunkIndex] = i
		cp.Metadata[model.MetaChunkTotal] = len(segments)
		if i > 0 {
			cp.ID = ""
			cp.Summary = ""
			cp.Metadata[model.MetaParentID] = first.Memory.ID
		}

		res, err := e.addOne(ctx, cp)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			first = res
			continue
		}

		chunkIDs = append(chunkIDs, res.Memory.ID)
		if !res.Merged {
			if _, err := e.store.Link(ctx, res.Memory.ID, first.Memory.ID, model.RelationChunk, 1.0); err != nil {
				return nil, err
			}
		}
	}

	first.ChunkIDs = chunkIDs
	return first, nil
}

// addOne stores a single bounded segment, applying dedup when requested.
func (e *Engine) addOne(ctx context.Context, p AddParams) (*AddResult, error) {
	var vec embedding.Vector
	if e.embedder != nil {
		var err error
		vec, err = e.embed(ctx, p.Content)
		if err != nil {
			return nil, err
		}
	}

	if p.Dedup && e.embedder != nil {
		existing, err := e.findDuplicate(ctx, vec, p.Tags)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			merged, err := e.merge(ctx, existing, p)
			if err != nil {
				return nil, err
			}
			return &AddResult{Memory: merged, Merged: true}, nil
		}
	}

	m := &model.Memory{
		ID:         p.ID,
		Content:    p.Content,
		Summary:    p.Summary,
		Type:       p.Type,
		Importance: p.Importance,
		Source:     p.Source,
		Tags:       p.Tags,
		Metadata:   p.Metadata,
		Embedding:  vec,
	}
	if err := e.store.Create(ctx, m); err != nil {
		return nil, err
	}
	return &AddResult{Memory: m}, nil
}

func validateAdd(p *AddParams) error {
	if p.Content == "" {
		return goerr.Wrap(model.ErrInvalidInput, "content is required")
	}
	if len(p.Tags) == 0 {
		return goerr.Wrap(model.ErrInvalidInput, "at least one tag is required")
	}
	if p.Type == "" {
		p.Type = model.TypeDynamic
	}
	if !p.Type.Valid() {
		return goerr.Wrap(model.ErrInvalidInput, "invalid memory type", goerr.V("type", p.Type))
	}
	if p.Importance == "" {
		p.Importance = model.ImportanceNormal
	}
	if !p.Importance.Valid() {
		return goerr.Wrap(model.ErrInvalidInput, "invalid importance", goerr.V("importance", p.Importance))
	}
	return nil
}

func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+3)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Get returns one memory by id.
func (e *Engine) Get(ctx context.Context, id string) (*model.Memory, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.store.Get(ctx, id, false)
}

// UpdateParams is a partial update; nil fields stay untouched.
type UpdateParams struct {
	Content    *string
	Summary    *string
	Type       *model.MemoryType
	Importance *model.Importance
	Metadata   map[string]any
	Tags       []string
}

// Update mutates a memory. Changing content recomputes the embedding when a
// provider is configured; a non-nil Tags slice replaces all associations.
func (e *Engine) Update(ctx context.Context, id string, p UpdateParams) (*model.Memory, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if p.Type != nil && !p.Type.Valid() {
		return nil, goerr.Wrap(model.ErrInvalidInput, "invalid memory type", goerr.V("type", *p.Type))
	}
	if p.Importance != nil && !p.Importance.Valid() {
		return nil, goerr.Wrap(model.ErrInvalidInput, "invalid importance", goerr.V("importance", *p.Importance))
	}
	if p.Content != nil && *p.Content == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "content cannot be empty")
	}

	sp := store.UpdateParams{
		Content:    p.Content,
		Summary:    p.Summary,
		Type:       p.Type,
		Importance: p.Importance,
		Metadata:   p.Metadata,
		Tags:       p.Tags,
	}
	if p.Content != nil && e.embedder != nil {
		vec, err := e.embed(ctx, *p.Content)
		if err != nil {
			return nil, err
		}
		sp.Embedding = vec
	}

	return e.store.Update(ctx, id, sp)
}

// Delete soft-deletes a memory; it stays restorable until vacuumed.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.store.SoftDelete(ctx, id)
}

// HardDelete physically removes a memory and its associations.
func (e *Engine) HardDelete(ctx context.Context, id string) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.store.HardDelete(ctx, id)
}

// Restore reinstates a soft-deleted memory.
func (e *Engine) Restore(ctx context.Context, id string) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.store.Restore(ctx, id)
}

// Link inserts or replaces a directed relation edge between two memories.
func (e *Engine) Link(ctx context.Context, sourceID, targetID, relation string, strength float64) (*model.Edge, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.store.Link(ctx, sourceID, targetID, relation, strength)
}

// GetRelated returns linked memories for a source, strongest first.
func (e *Engine) GetRelated(ctx context.Context, sourceID, relation string, limit int) ([]store.Related, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.store.GetRelated(ctx, sourceID, relation, limit)
}

// Cleanup removes aging dynamic context; see store.Cleanup for the rules.
func (e *Engine) Cleanup(ctx context.Context, p store.CleanupParams) (*store.CleanupResult, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.store.Cleanup(ctx, p)
}

// Vacuum purges soft-deleted records past the retention window and compacts
// the database.
func (e *Engine) Vacuum(ctx context.Context) (int, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	return e.store.Vacuum(ctx, vacuumRetentionDays)
}

// Stats returns aggregate counts, optionally scoped to tags.
func (e *Engine) Stats(ctx context.Context, tags []string) (*store.Stats, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.store.Stats(ctx, tags)
}

// IndexDirty reports whether the lexical index has fallen out of sync.
func (e *Engine) IndexDirty() bool { return e.store.IndexDirty() }
