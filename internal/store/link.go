package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/memkeep/memkeep/internal/model"
)

// Link inserts or replaces the directed edge for the (source, target) pair.
// Strength must be in [0,1]. Both endpoints must exist and not be deleted.
func (s *SQLiteStore) Link(ctx context.Context, sourceID, targetID, relation string, strength float64) (*model.Edge, error) {
	if relation == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "relation is required")
	}
	if strength < 0 || strength > 1 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "strength must be in [0,1]", goerr.V("strength", strength))
	}

	for _, id := range []string{sourceID, targetID} {
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM memories WHERE id = ? AND deleted = 0`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return nil, goerr.Wrap(model.ErrNotFound, "link endpoint", goerr.V("id", id))
		}
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_links (source_id, target_id, relation, strength, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (source_id, target_id) DO UPDATE SET relation = excluded.relation,
		   strength = excluded.strength`,
		sourceID, targetID, relation, strength, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("upsert link: %w", err)
	}

	return &model.Edge{
		SourceID:  sourceID,
		TargetID:  targetID,
		Relation:  relation,
		Strength:  strength,
		CreatedAt: now,
	}, nil
}

// Related is a target memory reached through an edge.
type Related struct {
	Memory   *model.Memory `json:"memory"`
	Relation string        `json:"relation"`
	Strength float64       `json:"strength"`
}

// GetRelated returns target memories linked from sourceID, strongest first,
// excluding soft-deleted targets and optionally filtered by relation label.
func (s *SQLiteStore) GetRelated(ctx context.Context, sourceID, relation string, limit int) ([]Related, error) {
	if limit <= 0 {
		limit = 20
	}

	where := []string{"l.source_id = ?", "m.deleted = 0"}
	args := []any{sourceID}
	if relation != "" {
		where = append(where, "l.relation = ?")
		args = append(args, relation)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s, l.relation, l.strength
		FROM memory_links l
		INNER JOIN memories m ON m.id = l.target_id
		WHERE %s
		ORDER BY l.strength DESC
		LIMIT ?`, prefixedMemoryColumns, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var related []Related
	for rows.Next() {
		var r Related
		m, err := scanMemory(rows, &r.Relation, &r.Strength)
		if err != nil {
			return nil, err
		}
		r.Memory = m
		related = append(related, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memories := make([]*model.Memory, len(related))
	for i := range related {
		memories[i] = related[i].Memory
	}
	if err := s.loadTags(ctx, memories); err != nil {
		return nil, err
	}
	return related, nil
}
