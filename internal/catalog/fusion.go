package catalog

import (
	"sort"

	"github.com/khanglvm/reelfeed/internal/model"
)

// FusionConfig defines weights for blending text relevance with a personal score.
type FusionConfig struct {
	TextWeight     float64
	PersonalWeight float64
}

// DefaultFusionConfig favors text relevance (60% text, 40% personal).
var DefaultFusionConfig = FusionConfig{
	TextWeight:     0.6,
	PersonalWeight: 0.4,
}

// PersonalScorer returns a viewer-specific score for an item.
type PersonalScorer func(item model.Item) float64

// SearchPersonal performs keyword search and re-ranks the hits by blending the
// normalized text score with the normalized personal score. A nil scorer
// returns plain keyword results.
func (i *Index) SearchPersonal(text string, limit int, personal PersonalScorer, config FusionConfig) ([]Result, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	textResults, err := i.Search(text, limit*2)
	if err != nil {
		return nil, err
	}

	if personal == nil || len(textResults) == 0 {
		if len(textResults) > limit {
			textResults = textResults[:limit]
		}
		return textResults, nil
	}

	personalResults := make([]Result, len(textResults))
	for k, r := range textResults {
		personalResults[k] = Result{Item: r.Item, Score: personal(r.Item)}
	}

	fused := fuseScores(normalizeScores(textResults), normalizeScores(personalResults), config)

	sort.SliceStable(fused, func(a, b int) bool {
		return fused[a].Score > fused[b].Score
	})

	if len(fused) > limit {
		fused = fused[:limit]
	}

	return fused, nil
}

// fuseScores combines two score lists over the same items, by position.
func fuseScores(text, personal []Result, config FusionConfig) []Result {
	fused := make([]Result, len(text))
	for k := range text {
		fused[k] = Result{
			Item:  text[k].Item,
			Score: config.TextWeight*text[k].Score + config.PersonalWeight*personal[k].Score,
		}
	}
	return fused
}

// normalizeScores normalizes scores to [0, 1] range.
func normalizeScores(results []Result) []Result {
	if len(results) == 0 {
		return results
	}

	minScore := results[0].Score
	maxScore := results[0].Score

	for _, result := range results {
		if result.Score < minScore {
			minScore = result.Score
		}
		if result.Score > maxScore {
			maxScore = result.Score
		}
	}

	// When all scores are equal, set all to 1.0.
	normalized := make([]Result, len(results))
	for k, result := range results {
		normalized[k] = result
		if maxScore == minScore {
			normalized[k].Score = 1.0
		} else {
			normalized[k].Score = (result.Score - minScore) / (maxScore - minScore)
		}
	}

	return normalized
}
