package engine

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/store"
)

const (
	profileStaticLimit = 50
	profileRecentLimit = 10
)

// Profile is an assembled view of a tag scope: permanent facts first, then
// recent context, plus an optional relevance-ranked result set and counts.
type Profile struct {
	Statics []*model.Memory `json:"statics"`
	Recent  []*model.Memory `json:"recent"`
	Results []SearchHit     `json:"results,omitempty"`
	Stats   *store.Stats    `json:"stats"`
}

// GetProfile returns static facts sorted critical-first, recent dynamic and
// episodic context, and, when a query is given, a hybrid search result set.
func (e *Engine) GetProfile(ctx context.Context, tags []string, query string) (*Profile, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "at least one tag is required")
	}

	statics, err := e.store.StaticFacts(ctx, tags, profileStaticLimit)
	if err != nil {
		return nil, err
	}

	recent, err := e.store.Recent(ctx, store.RecentParams{
		Tags:  tags,
		Types: []model.MemoryType{model.TypeDynamic, model.TypeEpisodic},
		Limit: profileRecentLimit,
	})
	if err != nil {
		return nil, err
	}

	profile := &Profile{Statics: statics, Recent: recent}

	if query != "" {
		results, err := e.Search(ctx, SearchParams{Tags: tags, Query: query})
		if err != nil {
			return nil, err
		}
		profile.Results = results
	}

	stats, err := e.store.Stats(ctx, tags)
	if err != nil {
		return nil, err
	}
	profile.Stats = stats

	return profile, nil
}
