package ranking

import (
	"math"
	"sort"

	"github.com/khanglvm/reelfeed/internal/model"
)

const (
	// unseenShare is the fraction of a batch reserved for never-watched items.
	unseenShare = 0.8

	// recentExclusion is how many of the most recently shown items are excluded as candidates.
	recentExclusion = 5
)

// Ranked pairs an item with its score.
type Ranked struct {
	Item   model.Item
	Result ScoreResult
}

// Recommend returns up to count items for a viewer with history.
// The result never contains duplicate ids and is shorter than count only when
// the catalog has fewer distinct items.
func (e *Engine) Recommend(catalog []model.Item, prefs model.Preferences, interactions []model.InteractionRecord, recentlyShown []model.Item, count int) []model.Item {
	ranked := e.Explain(catalog, prefs, interactions, recentlyShown, count)
	items := make([]model.Item, len(ranked))
	for i, r := range ranked {
		items[i] = r.Item
	}
	return items
}

// Explain is Recommend with the score and reasons of every returned item.
func (e *Engine) Explain(catalog []model.Item, prefs model.Preferences, interactions []model.InteractionRecord, recentlyShown []model.Item, count int) []Ranked {
	if count <= 0 {
		return nil
	}

	pool := model.Dedupe(catalog)
	sig := newSignals(interactions, recentlyShown)

	excluded := make(map[string]struct{}, recentExclusion)
	for _, item := range lastN(recentlyShown, recentExclusion) {
		excluded[item.ID] = struct{}{}
	}

	var unseen, seen []Ranked
	for _, item := range pool {
		if _, skip := excluded[item.ID]; skip {
			continue
		}
		r := Ranked{Item: item, Result: sig.score(item, prefs)}
		if _, watched := sig.history[item.ID]; watched {
			seen = append(seen, r)
		} else {
			unseen = append(unseen, r)
		}
	}

	sortByScore(unseen)
	sortByScore(seen)

	unseenCount := int(math.Ceil(float64(count) * unseenShare))
	seenCount := count - unseenCount

	selection := make([]Ranked, 0, min(count, len(pool)))
	selection = append(selection, head(unseen, unseenCount)...)
	selection = append(selection, head(seen, seenCount)...)
	sortByScore(selection)
	selection = head(selection, count)

	if len(selection) < count {
		included := make(map[string]struct{}, len(selection))
		for _, r := range selection {
			included[r.Item.ID] = struct{}{}
		}
		for _, item := range pool {
			if len(selection) >= count {
				break
			}
			if _, ok := included[item.ID]; ok {
				continue
			}
			selection = append(selection, Ranked{Item: item, Result: sig.score(item, prefs)})
			included[item.ID] = struct{}{}
		}
	}

	e.log.Debug().
		Int("catalog", len(pool)).
		Int("interactions", len(interactions)).
		Int("favorite_creators", len(prefs.FavoriteCreators)).
		Int("favorite_hashtags", len(prefs.FavoriteHashtags)).
		Int("returned", len(selection)).
		Msg("generated recommendations")

	return selection
}

// InitialFeed orders the catalog for a viewer with no history. Items are
// ranked by virality plus doubled engagement, preferring distinct creators
// until more than half of count is filled.
func (e *Engine) InitialFeed(catalog []model.Item, count int) []model.Item {
	if count <= 0 {
		return nil
	}

	pool := model.Dedupe(catalog)
	scored := make([]Ranked, len(pool))
	for i, item := range pool {
		scored[i] = Ranked{
			Item: item,
			Result: ScoreResult{
				ItemID:  item.ID,
				Score:   viralityScore(item) + engagementRate(item)*2,
				Reasons: []string{ReasonDiscover},
			},
		}
	}
	sortByScore(scored)

	size := min(count, len(pool))
	feed := make([]model.Item, 0, size)
	included := make(map[string]struct{}, size)
	creators := make(map[string]struct{})

	for _, r := range scored {
		if len(feed) >= count {
			break
		}
		_, used := creators[r.Item.Creator.ID]
		if !used || len(feed)*2 > count {
			feed = append(feed, r.Item)
			included[r.Item.ID] = struct{}{}
			creators[r.Item.Creator.ID] = struct{}{}
		}
	}

	for _, r := range scored {
		if len(feed) >= count {
			break
		}
		if _, ok := included[r.Item.ID]; ok {
			continue
		}
		feed = append(feed, r.Item)
		included[r.Item.ID] = struct{}{}
	}

	e.log.Debug().Int("catalog", len(pool)).Int("returned", len(feed)).Msg("generated initial feed")

	return feed
}

// sortByScore orders by score descending; equal scores keep their input order.
func sortByScore(ranked []Ranked) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Result.Score > ranked[j].Result.Score
	})
}

func head(ranked []Ranked, n int) []Ranked {
	if n < 0 {
		n = 0
	}
	if len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}

func lastN(items []model.Item, n int) []model.Item {
	if len(items) > n {
		return items[len(items)-n:]
	}
	return items
}
