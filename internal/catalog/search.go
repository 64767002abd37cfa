package catalog

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/khanglvm/reelfeed/internal/model"
)

// defaultSearchLimit applies when a non-positive limit is passed.
const defaultSearchLimit = 10

// Result is a single search hit with its relevance score.
type Result struct {
	Item  model.Item `json:"item"`
	Score float64    `json:"score"`
}

// Search performs BM25 keyword search over descriptions, usernames and hashtags.
func (i *Index) Search(text string, limit int) ([]Result, error) {
	return i.run(buildMatchQuery(text), limit)
}

// SearchByCreator performs keyword search scoped to one creator.
func (i *Index) SearchByCreator(text, creatorID string, limit int) ([]Result, error) {
	creatorQuery := bleve.NewTermQuery(creatorID)
	creatorQuery.SetField("creator")

	return i.run(bleve.NewConjunctionQuery(buildMatchQuery(text), creatorQuery), limit)
}

// SearchByHashtag returns items carrying tag. The leading '#' is optional.
func (i *Index) SearchByHashtag(tag string, limit int) ([]Result, error) {
	tagQuery := bleve.NewTermQuery(normalizeHashtag(tag))
	tagQuery.SetField("hashtags")

	return i.run(tagQuery, limit)
}

func (i *Index) run(q query.Query, limit int) ([]Result, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = defaultSearchLimit
	}

	searchRequest := bleve.NewSearchRequestOptions(q, limit, 0, false)
	results, err := i.bleveIndex.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	return i.convertBleveResults(results), nil
}

// convertBleveResults resolves hits to items. Hits whose item is no longer
// held in memory are skipped. Must be called with mu held.
func (i *Index) convertBleveResults(results *bleve.SearchResult) []Result {
	out := make([]Result, 0, len(results.Hits))

	for _, hit := range results.Hits {
		item, ok := i.items[hit.ID]
		if !ok {
			continue
		}
		out = append(out, Result{Item: item, Score: hit.Score})
	}

	return out
}
