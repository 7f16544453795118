package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/memkeep/memkeep/internal/model"
)

// lexicalScoreCeiling caps the raw full-text match score before it is
// normalized into [0,1].
const lexicalScoreCeiling = 10.0

// neutralScore is assigned when there is no query to rank against.
const neutralScore = 0.5

// fallbackScanLimit bounds the candidate set for substring matching.
const fallbackScanLimit = 500

// KeywordParams scopes a lexical query.
type KeywordParams struct {
	Tags  []string
	Query string
	Types []model.MemoryType
	Limit int
}

// KeywordHit is a memory with its normalized lexical score in [0,1].
type KeywordHit struct {
	Memory *model.Memory
	Score  float64
}

// SearchKeyword runs a ranked token query over content and summary. Tokens
// of length one are dropped and the rest are OR-ed as prefix terms. If no
// usable tokens remain, or the index query fails, it falls back to substring
// matching. An empty query returns the most recently updated records in
// scope with a neutral score.
func (s *SQLiteStore) SearchKeyword(ctx context.Context, p KeywordParams) ([]KeywordHit, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	if strings.TrimSpace(p.Query) == "" {
		recent, err := s.Recent(ctx, RecentParams{Tags: p.Tags, Types: p.Types, Limit: limit})
		if err != nil {
			return nil, err
		}
		hits := make([]KeywordHit, len(recent))
		for i, m := range recent {
			hits[i] = KeywordHit{Memory: m, Score: neutralScore}
		}
		return hits, nil
	}

	match := ftsMatchExpr(p.Query)
	if match == "" {
		return s.searchSubstring(ctx, p, limit)
	}

	hits, err := s.searchFTS(ctx, p, match, limit)
	if err != nil {
		// Index corruption is non-fatal; substring matching still works.
		s.logger.Warn("full-text query failed, using substring fallback", "error", err)
		return s.searchSubstring(ctx, p, limit)
	}
	return hits, nil
}

func (s *SQLiteStore) searchFTS(ctx context.Context, p KeywordParams, match string, limit int) ([]KeywordHit, error) {
	where, args := scopeClauses(p.Tags, p.Types)

	query := fmt.Sprintf(`
		SELECT DISTINCT %s, bm25(memory_fts) AS rank
		FROM memory_fts
		INNER JOIN memories m ON m.id = memory_fts.id
		%s
		WHERE memory_fts MATCH ? AND %s
		ORDER BY rank
		LIMIT ?`, prefixedMemoryColumns, tagJoin(p.Tags), strings.Join(where, " AND "))

	queryArgs := append([]any{match}, args...)
	queryArgs = append(queryArgs, limit)

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []KeywordHit
	for rows.Next() {
		var rank float64
		m, err := scanMemory(rows, &rank)
		if err != nil {
			return nil, err
		}
		hits = append(hits, KeywordHit{Memory: m, Score: normalizeRank(rank)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memories := make([]*model.Memory, len(hits))
	for i := range hits {
		memories[i] = hits[i].Memory
	}
	if err := s.loadTags(ctx, memories); err != nil {
		return nil, err
	}
	return hits, nil
}

// searchSubstring counts how many query words of length >2 appear in each
// candidate's lowercased content; score is matched/total.
func (s *SQLiteStore) searchSubstring(ctx context.Context, p KeywordParams, limit int) ([]KeywordHit, error) {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(p.Query)) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil, nil
	}

	candidates, err := s.Recent(ctx, RecentParams{Tags: p.Tags, Types: p.Types, Limit: fallbackScanLimit})
	if err != nil {
		return nil, err
	}

	var hits []KeywordHit
	for _, m := range candidates {
		haystack := strings.ToLower(m.Content + " " + m.Summary)
		matched := 0
		for _, w := range words {
			if strings.Contains(haystack, w) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, KeywordHit{Memory: m, Score: float64(matched) / float64(len(words))})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Memory.UpdatedAt.After(hits[j].Memory.UpdatedAt)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// ftsMatchExpr tokenizes a query into quoted prefix terms OR-ed together.
// Characters the index treats specially are stripped by tokenizing on
// non-alphanumeric boundaries; tokens of length one or less are dropped.
func ftsMatchExpr(query string) string {
	tokens := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var terms []string
	for _, tok := range tokens {
		if len(tok) <= 1 {
			continue
		}
		terms = append(terms, `"`+tok+`"*`)
	}
	return strings.Join(terms, " OR ")
}

// normalizeRank converts a bm25 rank (negative, smaller is better) into a
// score in [0,1], capping the raw value at the fixed ceiling.
func normalizeRank(rank float64) float64 {
	raw := -rank
	if raw < 0 {
		raw = 0
	}
	if raw > lexicalScoreCeiling {
		raw = lexicalScoreCeiling
	}
	return raw / lexicalScoreCeiling
}
