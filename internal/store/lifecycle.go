package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/memkeep/memkeep/internal/model"
)

// cleanupAccessThreshold: records accessed at least this often are kept.
const cleanupAccessThreshold = 3

// CleanupParams selects aging context records for removal.
type CleanupParams struct {
	Tags       []string
	MaxAgeDays int
	DryRun     bool
}

// CleanupResult reports what was (or would be) removed.
type CleanupResult struct {
	DryRun      bool            `json:"dry_run"`
	WouldDelete int             `json:"would_delete"`
	Deleted     int             `json:"deleted"`
	Candidates  []*model.Memory `json:"candidates,omitempty"`
}

// Cleanup soft-deletes dynamic records older than the cutoff, sparing
// critical and high importance and anything accessed at least three times.
// In dry-run mode it only reports the candidate set.
func (s *SQLiteStore) Cleanup(ctx context.Context, p CleanupParams) (*CleanupResult, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -p.MaxAgeDays).Format(time.RFC3339)

	where, args := scopeClauses(p.Tags, []model.MemoryType{model.TypeDynamic})
	where = append(where,
		"m.importance NOT IN ('critical', 'high')",
		fmt.Sprintf("m.access_count < %d", cleanupAccessThreshold),
		"m.updated_at < ?")
	args = append(args, cutoff)

	query := fmt.Sprintf(`SELECT DISTINCT %s FROM memories m %s WHERE %s ORDER BY m.updated_at`,
		prefixedMemoryColumns, tagJoin(p.Tags), strings.Join(where, " AND "))

	candidates, err := s.queryMemories(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	result := &CleanupResult{DryRun: p.DryRun, WouldDelete: len(candidates)}
	if p.DryRun {
		result.Candidates = candidates
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, m := range candidates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE memories SET deleted = 1, deleted_at = ? WHERE id = ? AND deleted = 0`,
			now, m.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result.Deleted = len(candidates)
	return result, nil
}

// Vacuum physically removes soft-deleted records older than the retention
// window and reclaims storage. It returns the number of purged records.
func (s *SQLiteStore) Vacuum(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM memories WHERE deleted = 1 AND deleted_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(ids) > 0 {
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		// Tag associations and edges cascade with the rows.
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM memories WHERE id IN (`+placeholders(len(ids))+`)`, args...); err != nil {
			return 0, err
		}
		s.deindexMemory(ctx, ids)
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return len(ids), fmt.Errorf("vacuum: %w", err)
	}
	return len(ids), nil
}

// ExportAll returns all non-deleted memories with resolved tag lists,
// optionally scoped to tags, ordered oldest first for stable backups.
func (s *SQLiteStore) ExportAll(ctx context.Context, tags []string) ([]*model.Memory, error) {
	where, args := scopeClauses(tags, nil)

	query := fmt.Sprintf(`SELECT DISTINCT %s FROM memories m %s WHERE %s ORDER BY m.created_at`,
		prefixedMemoryColumns, tagJoin(tags), strings.Join(where, " AND "))

	return s.queryMemories(ctx, query, args...)
}
