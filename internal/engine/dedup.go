package engine

import (
	"context"
	"time"

	"github.com/memkeep/memkeep/internal/embedding"
	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/store"
)

const (
	// mergeThreshold is the cosine similarity at or above which a new
	// insert is treated as a duplicate of an existing record.
	mergeThreshold = 0.85

	// dedupScanWindow bounds how many recent same-tag records are compared.
	dedupScanWindow = 100
)

// findDuplicate scans the most recently updated records sharing at least one
// target tag and returns the first whose stored embedding is similar enough
// to vec, or nil when none qualifies.
func (e *Engine) findDuplicate(ctx context.Context, vec embedding.Vector, tags []string) (*model.Memory, error) {
	recent, err := e.store.Recent(ctx, store.RecentParams{
		Tags:          tags,
		RequireVector: true,
		Limit:         dedupScanWindow,
	})
	if err != nil {
		return nil, err
	}

	for _, m := range recent {
		if embedding.Cosine(vec, m.Embedding) >= mergeThreshold {
			return m, nil
		}
	}
	return nil, nil
}

// merge folds a duplicate insert into an existing record: the longer content
// wins, metadata is unioned with new values overriding old, and importance
// only ever escalates. The record keeps its id, tags, and embedding.
func (e *Engine) merge(ctx context.Context, existing *model.Memory, p AddParams) (*model.Memory, error) {
	content := existing.Content
	if len(p.Content) > len(content) {
		content = p.Content
	}

	metadata := make(map[string]any, len(existing.Metadata)+len(p.Metadata)+1)
	for k, v := range existing.Metadata {
		metadata[k] = v
	}
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	metadata[model.MetaMergedAt] = time.Now().UTC().Format(time.RFC3339)

	importance := model.MaxImportance(existing.Importance, p.Importance)

	e.logger.Debug("merging duplicate memory",
		"id", existing.ID, "importance", importance, "content_len", len(content))

	return e.store.Update(ctx, existing.ID, store.UpdateParams{
		Content:    &content,
		Importance: &importance,
		Metadata:   metadata,
	})
}
