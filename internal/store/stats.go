package store

import (
	"context"
	"fmt"
	"strings"
)

// Stats holds aggregate counts over the store.
type Stats struct {
	Total        int            `json:"total"`
	Deleted      int            `json:"deleted"`
	ByType       map[string]int `json:"by_type"`
	ByImportance map[string]int `json:"by_importance"`
}

// Stats counts non-deleted memories, optionally scoped to tags, broken down
// by type and importance. Deleted counts the restorable soft-deleted rows.
func (s *SQLiteStore) Stats(ctx context.Context, tags []string) (*Stats, error) {
	st := &Stats{
		ByType:       make(map[string]int),
		ByImportance: make(map[string]int),
	}

	where, args := scopeClauses(tags, nil)
	scope := fmt.Sprintf("FROM memories m %s WHERE %s", tagJoin(tags), strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT m.type, m.importance, COUNT(DISTINCT m.id) %s GROUP BY m.type, m.importance`, scope), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var typ, importance string
		var count int
		if err := rows.Scan(&typ, &importance, &count); err != nil {
			return nil, err
		}
		st.Total += count
		st.ByType[typ] += count
		st.ByImportance[importance] += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	delWhere := []string{"m.deleted = 1"}
	var delArgs []any
	if len(tags) > 0 {
		delWhere = append(delWhere, "t.tag IN ("+placeholders(len(tags))+")")
		for _, tag := range tags {
			delArgs = append(delArgs, tag)
		}
	}
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(DISTINCT m.id) FROM memories m %s WHERE %s`,
		tagJoin(tags), strings.Join(delWhere, " AND ")), delArgs...).Scan(&st.Deleted)
	if err != nil {
		return nil, err
	}

	return st, nil
}
