package engine

import (
	"context"

	"github.com/memkeep/memkeep/internal/model"
)

// ExportAll returns every non-deleted memory with resolved tags, optionally
// scoped, for backup or migration.
func (e *Engine) ExportAll(ctx context.Context, tags []string) ([]*model.Memory, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.store.ExportAll(ctx, tags)
}

// ImportBulk re-inserts exported records through the regular add path, so
// dedup and chunking policy still apply. It returns how many records were
// stored or merged.
func (e *Engine) ImportBulk(ctx context.Context, records []*model.Memory, dedup bool) (int, error) {
	if err := e.check(); err != nil {
		return 0, err
	}

	imported := 0
	for _, m := range records {
		_, err := e.Add(ctx, AddParams{
			Content:    m.Content,
			Summary:    m.Summary,
			Type:       m.Type,
			Importance: m.Importance,
			Source:     "import",
			Tags:       m.Tags,
			Metadata:   m.Metadata,
			Dedup:      dedup,
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
