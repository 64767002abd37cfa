package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/rs/zerolog"

	"github.com/khanglvm/reelfeed/internal/logging"
	"github.com/khanglvm/reelfeed/internal/model"
)

// Index is a full-text search index over catalog items.
type Index struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
	indexPath  string
	items      map[string]model.Item
	order      []string
	log        zerolog.Logger
}

// NewIndex creates an in-memory index.
func NewIndex() (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	return newIndex(index, ""), nil
}

// NewIndexWithPath opens or creates a persistent index at indexPath.
// Item bodies are kept in memory, so IndexItems must be called after opening.
func NewIndexWithPath(indexPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	index, err := bleve.NewUsing(indexPath, buildIndexMapping(), scorch.Name, scorch.Name, nil)
	if err != nil {
		index, err = bleve.Open(indexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open/create index: %w", err)
		}
	}

	return newIndex(index, indexPath), nil
}

func newIndex(index bleve.Index, path string) *Index {
	return &Index{
		bleveIndex: index,
		indexPath:  path,
		items:      make(map[string]model.Item),
		log:        logging.Component("catalog"),
	}
}

// buildIndexMapping creates the bleve mapping for item documents.
func buildIndexMapping() mapping.IndexMapping {
	itemMapping := bleve.NewDocumentMapping()

	// Free text, analyzed.
	itemMapping.AddFieldMappingsAt("description", bleve.NewTextFieldMapping())
	itemMapping.AddFieldMappingsAt("username", bleve.NewTextFieldMapping())

	// Exact-match fields.
	itemMapping.AddFieldMappingsAt("creator", bleve.NewKeywordFieldMapping())
	itemMapping.AddFieldMappingsAt("hashtags", bleve.NewKeywordFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", itemMapping)

	return indexMapping
}

// IndexItems adds or replaces items.
func (i *Index) IndexItems(items []model.Item) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.bleveIndex.NewBatch()

	for _, item := range items {
		if item.ID == "" {
			continue
		}

		doc := map[string]interface{}{
			"description": item.Description,
			"username":    item.Creator.Username,
			"creator":     item.Creator.ID,
			"hashtags":    item.Hashtags(),
		}

		if err := batch.Index(item.ID, doc); err != nil {
			i.log.Warn().Err(err).Str("item_id", item.ID).Msg("failed to index item")
			continue
		}

		if _, exists := i.items[item.ID]; !exists {
			i.order = append(i.order, item.ID)
		}
		i.items[item.ID] = item
	}

	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index items: %w", err)
	}

	return nil
}

// Remove deletes items by id.
func (i *Index) Remove(ids ...string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.bleveIndex.NewBatch()
	removed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		batch.Delete(id)
		delete(i.items, id)
		removed[id] = struct{}{}
	}

	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch delete: %w", err)
	}

	order := i.order[:0]
	for _, id := range i.order {
		if _, ok := removed[id]; !ok {
			order = append(order, id)
		}
	}
	i.order = order

	return nil
}

// Items returns the indexed items in insertion order.
func (i *Index) Items() []model.Item {
	i.mu.RLock()
	defer i.mu.RUnlock()

	items := make([]model.Item, 0, len(i.order))
	for _, id := range i.order {
		items = append(items, i.items[id])
	}
	return items
}

// Count returns the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}

	return docCount, nil
}

// Close closes the index and releases resources.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}

	return nil
}

// buildMatchQuery creates a match query over all analyzed fields.
func buildMatchQuery(text string) query.Query {
	return bleve.NewMatchQuery(text)
}

// normalizeHashtag lowercases tag and ensures the leading '#'.
func normalizeHashtag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag != "" && !strings.HasPrefix(tag, "#") {
		tag = "#" + tag
	}
	return tag
}
