package learning

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/khanglvm/reelfeed/internal/model"
)

// Persistence keys.
const (
	InteractionsKey = "@user_interactions"
	PreferencesKey  = "@user_preferences"
)

// preferencesDoc is the persisted profile. Sets become sorted string lists and
// the score map becomes a list of [key, score] pairs sorted by key.
type preferencesDoc struct {
	FavoriteCreators   []string    `json:"favoriteCreators"`
	FavoriteHashtags   []string    `json:"favoriteHashtags"`
	CategoryScores     []scorePair `json:"categoryScores"`
	AvgWatchTime       float64     `json:"avgWatchTime"`
	TotalVideosWatched int         `json:"totalVideosWatched"`
}

// scorePair encodes as a two-element JSON array.
type scorePair struct {
	Key   string
	Score float64
}

func (p scorePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Score})
}

func (p *scorePair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("category score pair has %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return fmt.Errorf("category score key: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Score); err != nil {
		return fmt.Errorf("category score value: %w", err)
	}
	return nil
}

// EncodePreferences serializes a profile with deterministic ordering.
func EncodePreferences(p model.Preferences) ([]byte, error) {
	doc := preferencesDoc{
		FavoriteCreators:   model.SortedKeys(p.FavoriteCreators),
		FavoriteHashtags:   model.SortedKeys(p.FavoriteHashtags),
		CategoryScores:     make([]scorePair, 0, len(p.CategoryScores)),
		AvgWatchTime:       p.AvgWatchTimeSeconds,
		TotalVideosWatched: p.TotalItemsWatched,
	}
	for k, v := range p.CategoryScores {
		doc.CategoryScores = append(doc.CategoryScores, scorePair{Key: k, Score: v})
	}
	sort.Slice(doc.CategoryScores, func(i, j int) bool {
		return doc.CategoryScores[i].Key < doc.CategoryScores[j].Key
	})

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}
	return data, nil
}

// DecodePreferences rebuilds a profile. Missing fields decode to empty containers.
func DecodePreferences(data []byte) (model.Preferences, error) {
	var doc preferencesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.NewPreferences(), fmt.Errorf("unmarshal preferences: %w", err)
	}

	p := model.NewPreferences()
	for _, c := range doc.FavoriteCreators {
		p.FavoriteCreators[c] = struct{}{}
	}
	for _, t := range doc.FavoriteHashtags {
		p.FavoriteHashtags[t] = struct{}{}
	}
	for _, pair := range doc.CategoryScores {
		p.CategoryScores[pair.Key] = pair.Score
	}
	p.AvgWatchTimeSeconds = doc.AvgWatchTime
	p.TotalItemsWatched = doc.TotalVideosWatched

	return p, nil
}

// EncodeInteractions serializes the interaction list, newest first.
func EncodeInteractions(records []model.InteractionRecord) ([]byte, error) {
	if records == nil {
		records = []model.InteractionRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal interactions: %w", err)
	}
	return data, nil
}

// DecodeInteractions parses a persisted interaction list. Duplicate item ids
// keep their first (newest) record.
func DecodeInteractions(data []byte) ([]model.InteractionRecord, error) {
	var records []model.InteractionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal interactions: %w", err)
	}

	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, rec := range records {
		if _, dup := seen[rec.ItemID]; dup {
			continue
		}
		seen[rec.ItemID] = struct{}{}
		out = append(out, rec)
	}
	return out, nil
}
