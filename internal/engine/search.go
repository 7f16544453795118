package engine

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/memkeep/memkeep/internal/embedding"
	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/store"
)

// Ranking weights. Tunable policy, fixed at build time; the five weights
// sum to 1.0.
const (
	weightVector     = 0.40
	weightLexical    = 0.25
	weightRecency    = 0.15
	weightImportance = 0.12
	weightAccess     = 0.08

	// recencyHalfLifeDays halves the recency score every 30 days of age.
	recencyHalfLifeDays = 30.0

	// accessBoostScale keeps access frequency sub-linear in the blend.
	accessBoostScale = 0.05
)

// defaultSearchLimit caps results when the caller does not specify one.
const defaultSearchLimit = 10

// SearchParams scopes a hybrid query. At least one tag is required; search
// never crosses partition boundaries.
type SearchParams struct {
	Tags          []string
	Query         string
	Types         []model.MemoryType
	MinImportance model.Importance
	Limit         int
}

// SearchHit is a ranked result with its score breakdown.
type SearchHit struct {
	Memory       *model.Memory `json:"memory"`
	Score        float64       `json:"score"`
	LexicalScore float64       `json:"lexical_score"`
	VectorScore  float64       `json:"vector_score"`
}

// Search runs the lexical index and, when an embedding provider is
// configured, the vector scorer concurrently over an expanded candidate set,
// merges both sides by record id, and ranks the union by the blended score.
// Returned records get their access tracking bumped in one batch.
func (e *Engine) Search(ctx context.Context, p SearchParams) ([]SearchHit, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if len(p.Tags) == 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "at least one tag is required")
	}
	if p.MinImportance != "" && !p.MinImportance.Valid() {
		return nil, model.ErrInvalidInput
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	expanded := limit * 2

	var (
		wg         sync.WaitGroup
		lexical    []store.KeywordHit
		lexicalErr error
		vector     []vectorHit
		vectorErr  error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		lexical, lexicalErr = e.store.SearchKeyword(ctx, store.KeywordParams{
			Tags:  p.Tags,
			Query: p.Query,
			Types: p.Types,
			Limit: expanded,
		})
	}()

	if e.embedder != nil && p.Query != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vector, vectorErr = e.searchVector(ctx, p, expanded)
		}()
	}
	wg.Wait()

	if lexicalErr != nil {
		return nil, lexicalErr
	}
	if vectorErr != nil {
		return nil, vectorErr
	}

	hits := e.rank(mergeCandidates(lexical, vector), p.MinImportance)
	if len(hits) > limit {
		hits = hits[:limit]
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Memory.ID
	}
	if err := e.store.TouchAccessed(ctx, ids); err != nil {
		return nil, err
	}
	return hits, nil
}

type vectorHit struct {
	memory *model.Memory
	score  float64
}

// searchVector embeds the query and brute-force scores every candidate with
// a stored vector in scope, keeping the top limit by cosine similarity.
func (e *Engine) searchVector(ctx context.Context, p SearchParams, limit int) ([]vectorHit, error) {
	qvec, err := e.embed(ctx, p.Query)
	if err != nil {
		return nil, err
	}

	candidates, err := e.store.Recent(ctx, store.RecentParams{
		Tags:          p.Tags,
		Types:         p.Types,
		RequireVector: true,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]vectorHit, 0, len(candidates))
	for _, m := range candidates {
		hits = append(hits, vectorHit{memory: m, score: embedding.Cosine(qvec, m.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

type candidate struct {
	memory  *model.Memory
	lexical float64
	vector  float64
}

// mergeCandidates joins both result sets by record id; a record missing from
// one side scores 0 there.
func mergeCandidates(lexical []store.KeywordHit, vector []vectorHit) []candidate {
	merged := make(map[string]*candidate, len(lexical)+len(vector))
	var order []string

	for _, h := range lexical {
		merged[h.Memory.ID] = &candidate{memory: h.Memory, lexical: h.Score}
		order = append(order, h.Memory.ID)
	}
	for _, h := range vector {
		if c, ok := merged[h.memory.ID]; ok {
			c.vector = h.score
			continue
		}
		merged[h.memory.ID] = &candidate{memory: h.memory, vector: h.score}
		order = append(order, h.memory.ID)
	}

	out := make([]candidate, 0, len(order))
	for _, id := range order {
		out = append(out, *merged[id])
	}
	return out
}

// rank drops candidates below the importance floor, blends the component
// scores, and orders by final score with recency as the tie-breaker.
func (e *Engine) rank(candidates []candidate, minImportance model.Importance) []SearchHit {
	now := time.Now().UTC()
	minWeight := 0
	if minImportance != "" {
		minWeight = minImportance.Weight()
	}

	hits := make([]SearchHit, 0, len(candidates))
	for _, c := range candidates {
		m := c.memory
		if m.Importance.Weight() < minWeight {
			continue
		}

		recency := 1.0
		if m.Type.Decays() {
			ageDays := now.Sub(m.UpdatedAt).Hours() / 24
			if ageDays < 0 {
				ageDays = 0
			}
			recency = math.Pow(0.5, ageDays/recencyHalfLifeDays)
		}

		importance := float64(m.Importance.Weight()) / model.MaxImportanceWeight
		access := math.Log2(float64(m.AccessCount)+1) * accessBoostScale

		score := weightVector*c.vector +
			weightLexical*c.lexical +
			weightRecency*recency +
			weightImportance*importance +
			weightAccess*access

		hits = append(hits, SearchHit{
			Memory:       m,
			Score:        score,
			LexicalScore: c.lexical,
			VectorScore:  c.vector,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Memory.UpdatedAt.After(hits[j].Memory.UpdatedAt)
	})
	return hits
}
