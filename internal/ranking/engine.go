/*
Package ranking implements the feed scoring engine.

The engine is stateless: every call derives its result from the item, the
viewer profile, the interaction history and the recently shown window.
Score = engagement + 0.3*virality + 0.5*creator + 0.6*content + 0.2*recency
+ diversity penalty + history adjustment, floored at zero.
*/
package ranking

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/khanglvm/reelfeed/internal/logging"
	"github.com/khanglvm/reelfeed/internal/model"
)

const (
	// engagementCap bounds the doubled engagement rate term.
	engagementCap = 40.0

	// viralityWeight is applied to the virality sub-score.
	viralityWeight = 0.3

	// creatorWeight is applied to the creator affinity sub-score.
	creatorWeight = 0.5

	// contentWeight is applied to the content affinity sub-score.
	contentWeight = 0.6

	// recencyWeight is applied to the recency sub-score.
	recencyWeight = 0.2

	// affinityCap bounds creator and content affinity before weighting.
	affinityCap = 100.0

	// completionAffinity is the completion rate above which a view counts as a strong signal.
	completionAffinity = 75.0

	// skipCompletion is the completion rate below which a prior view counts as skipped.
	skipCompletion = 50.0

	// recencyMaxOrdinal normalizes the numeric part of an item id.
	recencyMaxOrdinal = 1000.0

	sameCreatorPenalty = -40.0
	topicPenalty       = -20.0
	skippedPenalty     = -50.0
	likedBonus         = 30.0
)

// Reason labels attached to a ScoreResult.
const (
	ReasonTrending  = "Trending content"
	ReasonCreator   = "From creator you like"
	ReasonInterests = "Matches your interests"
	ReasonDiversity = "Diversity adjustment"
	ReasonSkipped   = "Previously skipped"
	ReasonLiked     = "You liked this"
	ReasonDiscover  = "Discover new content"
)

// ScoreResult is the transient ranking outcome of one item.
type ScoreResult struct {
	ItemID  string   `json:"itemId"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// Engine scores and ranks catalog items. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a scoring engine.
func NewEngine() *Engine {
	return &Engine{log: logging.Component("ranking")}
}

// Score computes the relevance score of item for a viewer.
func (e *Engine) Score(item model.Item, prefs model.Preferences, interactions []model.InteractionRecord, recent []model.Item) ScoreResult {
	return newSignals(interactions, recent).score(item, prefs)
}

// signals holds the per-call lookups shared by every scored candidate.
type signals struct {
	history        map[string]model.InteractionRecord
	highCompletion int
	recentCreators map[string]int
	recentTags     map[string]struct{}
	hasRecent      bool
}

func newSignals(interactions []model.InteractionRecord, recent []model.Item) *signals {
	s := &signals{
		history:        make(map[string]model.InteractionRecord, len(interactions)),
		recentCreators: make(map[string]int, len(recent)),
		recentTags:     make(map[string]struct{}),
		hasRecent:      len(recent) > 0,
	}

	for _, rec := range interactions {
		if _, ok := s.history[rec.ItemID]; !ok {
			s.history[rec.ItemID] = rec
		}
		if rec.CompletionRate > completionAffinity {
			s.highCompletion++
		}
	}

	for _, item := range recent {
		s.recentCreators[item.Creator.ID]++
		for _, tag := range item.Hashtags() {
			s.recentTags[tag] = struct{}{}
		}
	}

	return s
}

func (s *signals) score(item model.Item, prefs model.Preferences) ScoreResult {
	var reasons []string
	total := 0.0

	rate := engagementRate(item)
	engagement := math.Min(rate*2, engagementCap)
	total += engagement
	if engagement > 20 {
		reasons = append(reasons, fmt.Sprintf("High engagement (%.1f%%)", rate))
	}

	virality := viralityScore(item)
	total += virality * viralityWeight
	if virality > 50 {
		reasons = append(reasons, ReasonTrending)
	}

	total += creatorScore(item, prefs) * creatorWeight
	if prefs.HasCreator(item.Creator.ID) {
		reasons = append(reasons, ReasonCreator)
	}

	content := s.contentScore(item, prefs)
	total += content * contentWeight
	if content > 40 {
		reasons = append(reasons, ReasonInterests)
	}

	total += recencyScore(item) * recencyWeight

	penalty := s.diversityPenalty(item)
	total += penalty
	if penalty < -30 {
		reasons = append(reasons, ReasonDiversity)
	}

	if rec, ok := s.history[item.ID]; ok {
		if rec.CompletionRate < skipCompletion {
			total += skippedPenalty
			reasons = append(reasons, ReasonSkipped)
		} else if rec.Liked {
			total += likedBonus
			reasons = append(reasons, ReasonLiked)
		}
	}

	if len(reasons) == 0 {
		reasons = []string{ReasonDiscover}
	}

	return ScoreResult{
		ItemID:  item.ID,
		Score:   math.Max(total, 0),
		Reasons: reasons,
	}
}

// contentScore rewards favorite hashtags and a history of completed views elsewhere.
func (s *signals) contentScore(item model.Item, prefs model.Preferences) float64 {
	score := 0.0
	for _, tag := range item.Hashtags() {
		if prefs.HasHashtag(tag) {
			score += 15
		}
	}

	similar := s.highCompletion
	if rec, ok := s.history[item.ID]; ok && rec.CompletionRate > completionAffinity {
		similar--
	}
	if similar > 0 {
		score += math.Min(float64(similar)*5, 30)
	}

	return math.Min(score, affinityCap)
}

// diversityPenalty discourages repeating a creator or topic from the recent window.
func (s *signals) diversityPenalty(item model.Item) float64 {
	if !s.hasRecent {
		return 0
	}

	if s.recentCreators[item.Creator.ID] >= 2 {
		return sameCreatorPenalty
	}

	overlap := 0
	for _, tag := range item.Hashtags() {
		if _, ok := s.recentTags[tag]; ok {
			overlap++
		}
	}
	if overlap > 2 {
		return topicPenalty
	}

	return 0
}

// engagementRate is (likes+comments+shares) per estimated view, in percent.
func engagementRate(item model.Item) float64 {
	likes := nonNegative(item.Likes)
	total := likes + nonNegative(item.Comments) + nonNegative(item.Shares)
	views := math.Max(likes*10, 1000)
	return total / views * 100
}

func viralityScore(item model.Item) float64 {
	likes := math.Min(nonNegative(item.Likes)/100000*20, 40)
	comments := math.Min(nonNegative(item.Comments)/1000*20, 30)
	shares := math.Min(nonNegative(item.Shares)/500*30, 30)
	return likes + comments + shares + engagementRate(item)
}

func creatorScore(item model.Item, prefs model.Preferences) float64 {
	score := 0.0
	if prefs.HasCreator(item.Creator.ID) {
		score += 50
	}
	tier := math.Min(nonNegative(item.Creator.Followers)/1_000_000, 5)
	score += tier * 5
	return math.Min(score, affinityCap)
}

// recencyScore uses the digits of the item id as an ordinal; newer ids are larger.
func recencyScore(item model.Item) float64 {
	ordinal := itemOrdinal(item.ID)
	return math.Min(ordinal/recencyMaxOrdinal*100, 100)
}

func itemOrdinal(id string) float64 {
	var b strings.Builder
	for _, r := range id {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return n
}

func nonNegative(v int64) float64 {
	if v < 0 {
		return 0
	}
	return float64(v)
}
